//go:build cgo_sqlite

// Package sqliteexternal provides a CGO-based SQLite driver using mattn/go-sqlite3.
// This is an optional external dependency for performance-critical applications.
//
// Build with: go build -tags cgo_sqlite
// Requires: CGO_ENABLED=1
package sqliteexternal

import (
	"database/sql"

	"github.com/mattn/go-sqlite3"

	"github.com/stratadb/strata/internal/regexfn"
)

const (
	// DriverName is the SQL driver name to use with database/sql.
	// mattn/go-sqlite3's own package init already claims "sqlite3"; a
	// distinct name is registered here, with a ConnectHook, so every
	// connection gets the "regexp" scalar function strata's dialect
	// shim relies on for pattern search.
	DriverName = "sqlite3_with_regexp"

	// DriverType identifies this as the CGO implementation.
	DriverType = "cgo"

	// DriverPackage is the import path of the underlying driver.
	DriverPackage = "github.com/mattn/go-sqlite3"
)

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("regexp", regexfn.Match, true)
		},
	})
}
