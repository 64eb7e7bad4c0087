package logger

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const maskValue = "***REDACTED***"

// defaultSensitiveFields are column name fragments whose values are never logged.
var defaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"token", "api_key", "apikey", "api_token",
	"secret", "auth", "authorization",
	"credit_card", "card_number", "cvv", "cvc",
	"ssn", "social_security",
	"private_key", "priv_key",
}

// comparisonRe matches "column <op> :placeholder", optionally with LOWER() on
// either side, as rendered by the statement builders.
var comparisonRe = regexp.MustCompile(
	`(?i)(?:LOWER\()?([\w.]+)\)?\s*(?:=|<>|<=|>=|<|>|LIKE|IS NOT|IS)\s*(?:LOWER\()?(:\w+)`)

// Sanitizer masks sensitive values in statement parameters before they reach a log.
//
// Values compared against or assigned to a sensitive column are masked. When a
// sensitive column appears in a statement whose values cannot be attributed to
// columns (an INSERT value list, for instance) every value is masked.
type Sanitizer struct {
	fields    *regexp.Regexp
	maskValue string
}

// NewSanitizer creates a sanitizer for the given sensitive field names.
// If no fields are provided, a default set of common sensitive names is used.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = defaultSensitiveFields
	}
	quoted := make([]string, len(sensitiveFields))
	for i, f := range sensitiveFields {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(f))
	}
	return &Sanitizer{
		fields:    regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`),
		maskValue: maskValue,
	}
}

// MaskParams returns a copy of params with sensitive values masked. params[i]
// is the value of placeholder ":i". The original slice is not modified.
func (s *Sanitizer) MaskParams(sql string, params []any) []any {
	if len(params) == 0 || !s.fields.MatchString(sql) {
		return params
	}

	names, all := s.sensitivePlaceholders(sql)
	masked := make([]any, len(params))
	for i, p := range params {
		if all || names[":"+strconv.Itoa(i)] {
			masked[i] = s.maskValue
		} else {
			masked[i] = p
		}
	}
	return masked
}

// MaskBinds returns a copy of binds with sensitive values masked. Named binds
// whose name is itself sensitive (":password") are always masked.
func (s *Sanitizer) MaskBinds(sql string, binds map[string]any) map[string]any {
	if len(binds) == 0 {
		return binds
	}

	names, all := map[string]bool(nil), false
	if s.fields.MatchString(sql) {
		names, all = s.sensitivePlaceholders(sql)
	}
	masked := make(map[string]any, len(binds))
	for name, v := range binds {
		if all || names[name] || s.fields.MatchString(strings.TrimPrefix(name, ":")) {
			masked[name] = s.maskValue
		} else {
			masked[name] = v
		}
	}
	return masked
}

// sensitivePlaceholders returns the placeholders bound to sensitive columns, or
// all=true when the statement mentions a sensitive column it cannot attribute.
func (s *Sanitizer) sensitivePlaceholders(sql string) (names map[string]bool, all bool) {
	names = make(map[string]bool)
	attributed := false
	for _, m := range comparisonRe.FindAllStringSubmatch(sql, -1) {
		col := m[1]
		if i := strings.LastIndexByte(col, '.'); i >= 0 {
			col = col[i+1:]
		}
		if s.fields.MatchString(col) {
			names[m[2]] = true
			attributed = true
		}
	}
	return names, !attributed
}

// FormatParams converts parameters to a safe string representation for logging.
// Sensitive values should be masked using MaskParams before calling this.
func (s *Sanitizer) FormatParams(params []any) string {
	if len(params) == 0 {
		return "[]"
	}

	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = formatValue(p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// FormatBinds renders binds sorted by name, e.g. "{:0=1, :name=alice}".
func (s *Sanitizer) FormatBinds(binds map[string]any) string {
	if len(binds) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(binds))
	for k := range binds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + formatValue(binds[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value, truncating long ones.
func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}

	str := fmt.Sprintf("%v", v)

	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
