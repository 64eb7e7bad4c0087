//go:build sqlforge_debug

package core

import (
	"fmt"
	"regexp"
)

var positionalRe = regexp.MustCompile(`:[0-9]+`)

// checkPlaceholders panics when the rendered text and the binder disagree on
// the number of positional placeholders.
func checkPlaceholders(sql string, b *Binder) {
	seen := make(map[string]struct{})
	for _, m := range positionalRe.FindAllString(sql, -1) {
		seen[m] = struct{}{}
	}
	if len(seen) != b.Len() {
		panic(fmt.Sprintf("sqlforge: rendered %d placeholders but bound %d values: %s", len(seen), b.Len(), sql))
	}
}
