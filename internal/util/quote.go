package util

import (
	"strings"
	"unicode"

	"github.com/lib/pq"
)

// PostgreSQL keywords that cannot be used as schema, relation or role names
// without quoting: the reserved keywords and the type or function name keywords.
var reservedWords = map[string]bool{
	"all":               true,
	"analyse":           true,
	"analyze":           true,
	"and":               true,
	"any":               true,
	"array":             true,
	"as":                true,
	"asc":               true,
	"asymmetric":        true,
	"both":              true,
	"case":              true,
	"cast":              true,
	"check":             true,
	"collate":           true,
	"column":            true,
	"constraint":        true,
	"create":            true,
	"current_catalog":   true,
	"current_date":      true,
	"current_role":      true,
	"current_time":      true,
	"current_timestamp": true,
	"current_user":      true,
	"default":           true,
	"deferrable":        true,
	"desc":              true,
	"distinct":          true,
	"do":                true,
	"else":              true,
	"end":               true,
	"except":            true,
	"false":             true,
	"fetch":             true,
	"for":               true,
	"foreign":           true,
	"from":              true,
	"grant":             true,
	"group":             true,
	"having":            true,
	"in":                true,
	"initially":         true,
	"intersect":         true,
	"into":              true,
	"lateral":           true,
	"leading":           true,
	"limit":             true,
	"localtime":         true,
	"localtimestamp":    true,
	"not":               true,
	"null":              true,
	"offset":            true,
	"on":                true,
	"only":              true,
	"or":                true,
	"order":             true,
	"placing":           true,
	"primary":           true,
	"references":        true,
	"returning":         true,
	"select":            true,
	"session_user":      true,
	"some":              true,
	"symmetric":         true,
	"system_user":       true,
	"table":             true,
	"then":              true,
	"to":                true,
	"trailing":          true,
	"true":              true,
	"union":             true,
	"unique":            true,
	"user":              true,
	"using":             true,
	"variadic":          true,
	"when":              true,
	"where":             true,
	"window":            true,
	"with":              true,

	// type or function name keywords
	"authorization":  true,
	"binary":         true,
	"collation":      true,
	"concurrently":   true,
	"cross":          true,
	"current_schema": true,
	"freeze":         true,
	"full":           true,
	"ilike":          true,
	"inner":          true,
	"is":             true,
	"isnull":         true,
	"join":           true,
	"left":           true,
	"like":           true,
	"natural":        true,
	"notnull":        true,
	"outer":          true,
	"overlaps":       true,
	"right":          true,
	"similar":        true,
	"tablesample":    true,
	"verbose":        true,
}

// NeedsQuoting checks if an identifier needs to be quoted
func NeedsQuoting(identifier string) bool {
	if identifier == "" {
		return false
	}

	// Check if it's a reserved word
	if reservedWords[strings.ToLower(identifier)] {
		return true
	}

	// PostgreSQL folds unquoted identifiers to lowercase
	for _, r := range identifier {
		if unicode.IsUpper(r) {
			return true
		}
	}

	for i, r := range identifier {
		if i == 0 && !unicode.IsLetter(r) && r != '_' {
			return true
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return true
		}
	}

	return false
}

// QuoteIdentifier quotes an identifier if needed, escaping embedded quotes
func QuoteIdentifier(identifier string) string {
	if NeedsQuoting(identifier) {
		return pq.QuoteIdentifier(identifier)
	}
	return identifier
}

// QualifiedName returns schema.name with both parts quoted as needed
func QualifiedName(schema, name string) string {
	return QuoteIdentifier(schema) + "." + QuoteIdentifier(name)
}

// QuoteRole quotes a role name for GRANT statements. PUBLIC is a keyword there,
// not a role, and is emitted bare.
func QuoteRole(role string) string {
	if strings.EqualFold(role, "public") {
		return "PUBLIC"
	}
	return QuoteIdentifier(role)
}
