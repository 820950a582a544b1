package archiver

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// RetryPolicy bounds a retry loop: at most Attempts tries, sleeping Backoff
// between consecutive tries.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
	Clock    Clock
}

// DefaultRetryPolicy matches the lag observed on filesystems that report a
// freshly created directory as missing.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 20, Backoff: 100 * time.Millisecond, Clock: RealClock{}}
}

// Retry runs op until it succeeds, returns an error retryable rejects, or
// the policy's attempts are used up. The last error is returned.
func Retry(p RetryPolicy, retryable func(error) bool, op func() error) error {
	attempts := max(1, p.Attempts)
	clock := p.Clock
	if clock == nil {
		clock = RealClock{}
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			clock.Sleep(p.Backoff)
		}
		if err = op(); err == nil || !retryable(err) {
			return err
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}

// IsNotExist reports whether err means a path was not found.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
