//go:build !cgo_sqlite

package sqlite

import (
	"database/sql/driver"

	"modernc.org/sqlite" // pure Go SQLite driver, registers as "sqlite"

	"github.com/stratadb/strata/internal/regexfn"
)

const (
	driverName    = "sqlite"
	driverType    = "purego"
	driverPackage = "modernc.org/sqlite"
)

func init() {
	sqlite.MustRegisterDeterministicScalarFunction("regexp", 2,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			pattern, _ := args[0].(string)
			value, _ := args[1].(string)
			return regexfn.Match(pattern, value)
		})
}
