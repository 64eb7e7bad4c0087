package core

import (
	"regexp"
	"strings"

	"github.com/coregx/sqlforge/internal/dialects"
)

// Params holds named parameter values for Query.BindParams.
// Keys may be given with or without the leading ':'.
//
// Example:
//
//	db.Builder().NewQuery("SELECT * FROM {{users}} WHERE [[id]] = :id AND status = :status").
//	    BindParams(sqlforge.Params{"id": 1, "status": "active"})
type Params map[string]any

var (
	// namedPlaceholderRegex matches the legacy {:name} placeholder form.
	namedPlaceholderRegex = regexp.MustCompile(`\{:(\w+)\}`)

	// quoteRegex matches table and column quoting syntax.
	// {{table_name}} - quotes table name (double curly braces)
	// [[column_name]] - quotes column name (double square brackets)
	// Pattern matches word characters, hyphens, dots, and spaces to support schema.table format.
	quoteRegex = regexp.MustCompile(`(\{\{[\w\-. ]+\}\}|\[\[[\w\-. ]+\]\])`)
)

// expandIdentifiers rewrites {:name} into :name and quotes {{table}} and
// [[column]] for the dialect. The result keeps canonical placeholders.
func expandIdentifiers(sql string, d dialects.Dialect) string {
	sql = namedPlaceholderRegex.ReplaceAllString(sql, ":$1")
	return quoteRegex.ReplaceAllStringFunc(sql, func(match string) string {
		return quoteIdentifier(d, match[2:len(match)-2])
	})
}

// quoteIdentifier quotes an identifier using the dialect-specific quoting.
// For schema-prefixed identifiers like "schema.table", each part is quoted separately.
//
// Example:
//
//	PostgreSQL: "users" → "users", "public.users" → "public"."users"
//	MySQL: `users` → `users`, `mydb.users` → `mydb`.`users`
func quoteIdentifier(d dialects.Dialect, identifier string) string {
	parts := strings.Split(identifier, ".")
	for i, part := range parts {
		parts[i] = d.QuoteIdentifier(strings.TrimSpace(part))
	}
	return strings.Join(parts, ".")
}

// placeholderName returns the canonical ":name" form of a Params key.
func placeholderName(key string) string {
	if !strings.HasPrefix(key, ":") {
		key = ":" + key
	}
	validatePlaceholder(key)
	return key
}
