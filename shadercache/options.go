// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shadercache

// Option configures a Cache.
type Option func(*options)

type options struct {
	strict   bool
	capacity int
}

func defaultOptions() options {
	return options{capacity: 64}
}

// WithStrictSerialization runs source generation while holding the cache
// lock, so at most one variant is generated at a time across all keys. The
// generator must not call back into the cache.
func WithStrictSerialization(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithCapacity sets the initial table capacity.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}
