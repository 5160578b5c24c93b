package odm

import (
	"strings"
	"unicode"
)

// pluralize applies a frozen suffix-rule order: ends in s/x/z/ch/sh ->
// +es; consonant+y -> y replaced with ies; otherwise -> +s. The rule
// order is part of the contract — changing it would silently rename
// every derived collection.
func pluralize(name string) string {
	switch {
	case strings.HasSuffix(name, "s"), strings.HasSuffix(name, "x"), strings.HasSuffix(name, "z"),
		strings.HasSuffix(name, "ch"), strings.HasSuffix(name, "sh"):
		return name + "es"
	case strings.HasSuffix(name, "y") && len(name) >= 2 && !isVowel(rune(name[len(name)-2])):
		return name[:len(name)-1] + "ies"
	default:
		return name + "s"
	}
}

func isVowel(r rune) bool {
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// toSnakeCase converts a CamelCase type name to snake_case, the first
// step of collection-name derivation.
func toSnakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// deriveCollectionName turns a Go type name (e.g. "Category") into its
// default collection name ("categories").
func deriveCollectionName(typeName string) string {
	return pluralize(toSnakeCase(typeName))
}
