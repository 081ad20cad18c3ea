package dedupe

// Option applies a configuration option to a Deduper.
type Option func(d *keyDeduper, capacity *int)

// WithCapacity pre-sizes the key set.
func WithCapacity(n int) Option {
	return func(_ *keyDeduper, capacity *int) {
		if n > 0 {
			*capacity = n
		}
	}
}

// WithNormalizer maps every key through fn before comparison.
func WithNormalizer(fn func(string) string) Option {
	return func(d *keyDeduper, _ *int) {
		d.normalize = fn
	}
}
