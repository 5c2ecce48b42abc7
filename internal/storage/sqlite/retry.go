package sqlite

import (
	"strings"
	"time"
)

const (
	busyRetryAttempts = 5
	busyRetryBackoff  = 10 * time.Millisecond
)

// retryOnBusy runs fn, retrying with doubling backoff while SQLite reports
// the database as locked.
func retryOnBusy(fn func() error) error {
	backoff := busyRetryBackoff
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !isSQLiteBusy(err) || attempt == busyRetryAttempts {
			return err
		}
		time.Sleep(backoff)
		backoff *= 2
	}
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
