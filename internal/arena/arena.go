// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package arena provides a generational slot arena. A Handle names a slot
// without owning it: once the slot is removed, every handle to it stops
// resolving, even after the slot is reused for a new value.
package arena

// Handle is a non-owning reference into an Arena. The zero Handle never
// resolves.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h.gen == 0
}

type slot[T any] struct {
	value T
	gen   uint32
	used  bool
}

// Arena stores values of type T in reusable slots.
//
// Arena is not safe for concurrent use; the owner must serialize access.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	live  int
}

// New returns an empty arena with room for capacity values.
func New[T any](capacity int) *Arena[T] {
	return &Arena[T]{slots: make([]slot[T], 0, capacity)}
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}

	s := &a.slots[idx]
	s.gen++
	if s.gen == 0 {
		// Generation wrapped; zero is reserved for the zero handle.
		s.gen = 1
	}
	s.value = v
	s.used = true
	a.live++
	return Handle{index: idx, gen: s.gen}
}

// Get returns the value behind h. ok is false for stale or zero handles.
func (a *Arena[T]) Get(h Handle) (v T, ok bool) {
	s := a.lookup(h)
	if s == nil {
		return v, false
	}
	return s.value, true
}

// Contains reports whether h still resolves.
func (a *Arena[T]) Contains(h Handle) bool {
	return a.lookup(h) != nil
}

// Remove frees the slot behind h. It returns false if h was already stale.
func (a *Arena[T]) Remove(h Handle) bool {
	s := a.lookup(h)
	if s == nil {
		return false
	}
	var zero T
	s.value = zero
	s.used = false
	a.free = append(a.free, h.index)
	a.live--
	return true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	return a.live
}

// Each calls fn for every live value until fn returns false.
func (a *Arena[T]) Each(fn func(Handle, T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.used {
			continue
		}
		if !fn(Handle{index: uint32(i), gen: s.gen}, s.value) {
			return
		}
	}
}

// Clear removes every value. Outstanding handles stop resolving.
func (a *Arena[T]) Clear() {
	var zero T
	a.free = a.free[:0]
	for i := range a.slots {
		s := &a.slots[i]
		if s.used {
			s.value = zero
			s.used = false
		}
		a.free = append(a.free, uint32(i))
	}
	a.live = 0
}

func (a *Arena[T]) lookup(h Handle) *slot[T] {
	if h.gen == 0 || int(h.index) >= len(a.slots) {
		return nil
	}
	s := &a.slots[h.index]
	if !s.used || s.gen != h.gen {
		return nil
	}
	return s
}
