package util

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// CreateIdentifier derives a short, stable identifier from text, suitable as
// part of a notification channel name.
func CreateIdentifier(text string) string {
	return strconv.FormatUint(xxhash.Sum64String(text), 16)
}
