// Package database persists the download journal: one row per downloaded
// media file, used for diagnostics and for rebuilding state after a
// restart. SQLite in WAL mode backs the journal.
package database
