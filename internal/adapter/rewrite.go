package adapter

import (
	"fmt"
	"strings"

	"github.com/coregx/sqlforge/internal/dialects"
)

// Rewrite replaces canonical placeholders (":0", ":name") with the dialect's
// positional placeholders ($1, $2 for PostgreSQL; ? for MySQL/SQLite).
//
// It returns the rewritten SQL and the placeholder names in order of appearance.
// A name used twice appears twice. Quoted literals, quoted identifiers and
// PostgreSQL casts ("::") are left untouched. MySQL strings honour backslash
// escapes. Inside square brackets a colon starts a placeholder only after
// whitespace, "(" or ",", so array slices such as arr[1:2] and arr[:3] keep
// their bounds.
//
// Example:
//
//	Rewrite("SELECT * FROM t WHERE a = :0 AND b = :name", pg)
//	// "SELECT * FROM t WHERE a = $1 AND b = $2", [":0", ":name"]
func Rewrite(query string, d dialects.Dialect) (string, []string) {
	var (
		out       strings.Builder
		names     []string
		quote     byte
		brackets  int
		backslash = d.Name() == "mysql"
	)
	out.Grow(len(query))

	for i := 0; i < len(query); i++ {
		c := query[i]

		if quote != 0 {
			out.WriteByte(c)
			switch {
			case c == '\\' && backslash && quote != '`' && i+1 < len(query):
				i++
				out.WriteByte(query[i])
			case c == quote:
				quote = 0
			}
			continue
		}

		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			out.WriteByte(c)
		case c == '[':
			brackets++
			out.WriteByte(c)
		case c == ']':
			if brackets > 0 {
				brackets--
			}
			out.WriteByte(c)
		case c == ':' && i+1 < len(query) && query[i+1] == ':':
			out.WriteString("::")
			i++
		case c == ':' && brackets > 0 && !opensPlaceholder(query, i):
			out.WriteByte(c)
		case c == ':' && i+1 < len(query) && isWordChar(query[i+1]):
			j := i + 1
			if isDigit(query[j]) {
				for j < len(query) && isDigit(query[j]) {
					j++
				}
			} else {
				for j < len(query) && isWordChar(query[j]) {
					j++
				}
			}
			names = append(names, query[i:j])
			out.WriteString(d.Placeholder(len(names)))
			i = j - 1
		default:
			out.WriteByte(c)
		}
	}

	return out.String(), names
}

// bindArgs converts named binds to positional values in placeholder order.
// Returns an error if any placeholder has no bind.
func bindArgs(binds Binds, names []string) ([]any, error) {
	args := make([]any, len(names))
	for i, name := range names {
		v, ok := binds[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingBind, name)
		}
		args[i] = v
	}
	return args, nil
}

// opensPlaceholder reports whether the colon at i follows a separator.
func opensPlaceholder(query string, i int) bool {
	if i == 0 {
		return true
	}
	switch query[i-1] {
	case ' ', '\t', '\n', '\r', '(', ',':
		return true
	}
	return false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordChar(c byte) bool {
	return isDigit(c) || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
