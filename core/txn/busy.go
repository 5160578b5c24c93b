package txn

import "strings"

// isBusyError reports whether err is the engine's busy/locked signal.
// txn deliberately does not import either sqlite driver package (the
// pure-Go and CGO builds select between them via build tags one level
// up, in core/sqlite) so this checks the driver-independent substrings
// both modernc.org/sqlite and mattn/go-sqlite3 put in their busy/locked
// error messages rather than asserting on a driver-specific error type.
func isBusyError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
