package repository

import "time"

// Options holds settings shared by the store drivers.
type Options struct {
	Clock        func() time.Time
	MaxOpenConns int
}

// Option applies a configuration option to Options.
type Option func(*Options)

// WithClock overrides the time source used for created/updated timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		if clock != nil {
			o.Clock = clock
		}
	}
}

// WithMaxOpenConns caps the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxOpenConns = n
		}
	}
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	o := Options{
		Clock:        func() time.Time { return time.Now().UTC() },
		MaxOpenConns: 10,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
