//go:build cgo

package dialects

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// cgoLockError classifies errors returned by the cgo driver.
func cgoLockError(err error) (locked, ok bool) {
	var sqErr sqlite3.Error
	if !errors.As(err, &sqErr) {
		return false, false
	}
	return sqErr.Code == sqlite3.ErrBusy || sqErr.Code == sqlite3.ErrLocked, true
}
