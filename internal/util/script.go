package util

import (
	"regexp"
	"strings"
)

// commentRe matches a "--" comment up to and including its line break and an
// optional statement terminator right after it.
var commentRe = regexp.MustCompile(`--[^\r\n]*(?:[\r\n]{1,2};?|$)`)

// SplitStatements splits a script into statements on ";\n". Empty parts are dropped.
func SplitStatements(script string) []string {
	parts := strings.Split(script, ";\n")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// StripComments removes "--" line comments and trims surrounding whitespace.
// Comment markers inside string literals are not recognized.
func StripComments(stmt string) string {
	return strings.TrimSpace(commentRe.ReplaceAllString(stmt, ""))
}
