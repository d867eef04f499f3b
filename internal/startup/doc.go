// Package startup loads configuration from environment variables and
// provides structured startup/shutdown logging: banner, system info,
// configuration dump, directory validation, and route listing.
//
// Configuration is environment-only. Every setting has a default suitable
// for container deployment; see LoadConfig for the full list.
package startup
