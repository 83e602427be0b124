package repository

import "time"

type storeOptions struct {
	now      func() time.Time
	maxConns int32
}

func defaultOptions() storeOptions {
	return storeOptions{
		now:      func() time.Time { return time.Now().UTC() },
		maxConns: 10,
	}
}

// Option applies a configuration option to a store.
type Option func(*storeOptions)

// WithClock sets the clock used to stamp new users.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMaxConns caps the PostgreSQL pool size.
func WithMaxConns(n int32) Option {
	return func(o *storeOptions) {
		if n > 0 {
			o.maxConns = n
		}
	}
}
