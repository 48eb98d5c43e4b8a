// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package event queues work that must run on the GPU thread.
//
// Any goroutine may post; the GPU thread drains the queue once per frame with
// [Queue.Fire].
package event

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/castor"
)

// Event is one unit of deferred GPU work.
type Event struct {
	// Label names the event in logs and errors.
	Label string

	// Run performs the work. It is called on the GPU thread.
	Run func() error
}

// Queue is a FIFO of events. The zero value is ready to use.
//
// Thread safety: Post, Len and Clear are safe from any goroutine. Fire must
// only be called from the GPU thread.
type Queue struct {
	mu      sync.Mutex
	pending []Event
}

// Post appends an event.
func (q *Queue) Post(label string, run func() error) {
	if run == nil {
		return
	}
	q.PostEvent(Event{Label: label, Run: run})
}

// PostEvent appends ev. Events without a Run function are dropped.
func (q *Queue) PostEvent(ev Event) {
	if ev.Run == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, ev)
	q.mu.Unlock()
}

// Fire runs every event queued before the call, in posting order. Events
// posted while firing run on the next call. Every event runs even if an
// earlier one fails; the errors are joined.
func (q *Queue) Fire() error {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	var errs []error
	for _, ev := range batch {
		if err := ev.Run(); err != nil {
			castor.Logger().Warn("event: failed", "event", ev.Label, "error", err)
			errs = append(errs, fmt.Errorf("event %s: %w", ev.Label, err))
		}
	}
	if len(batch) > 0 {
		castor.Logger().Debug("event: fired", "count", len(batch), "failed", len(errs))
	}
	return errors.Join(errs...)
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Clear drops every queued event and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	q.pending = nil
	return n
}
