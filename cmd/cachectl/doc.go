// Command cachectl is an operator tool for the media cache server. It
// generates encryption key files and drives the cache management API
// (stats, eviction, clearing, download status) over HTTP.
package main
