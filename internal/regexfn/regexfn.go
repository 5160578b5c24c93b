// Package regexfn implements the "regexp" SQL scalar function shared by
// both SQLite driver backends (modernc.org/sqlite and mattn/go-sqlite3).
// It exists as its own leaf package so that core/sqlite (which registers
// it for the pure-Go driver) and contrib/sqlite-external (which registers
// it for the CGO driver) can both depend on it without either depending
// on the other.
package regexfn

import (
	"fmt"
	"regexp"
)

// Match implements SQLite's regexp(pattern, value) calling convention,
// used for the "value REGEXP pattern" operator.
func Match(pattern, value string) (bool, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("regexfn: invalid pattern %q: %w", pattern, err)
	}
	return re.MatchString(value), nil
}
