package sqlitedb

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// IsBusy reports whether err is SQLite lock contention that outlived busy_timeout.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

// WithBusyRetry runs op again while it fails with lock contention.
// Any other error is returned immediately.
func WithBusyRetry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 10 * time.Second

	return backoff.Retry(func() error {
		err := op()
		if err == nil || IsBusy(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
}
