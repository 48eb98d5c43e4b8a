// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shadercache

import "errors"

// Shader cache errors.
var (
	// ErrProgramUnavailable is returned when the program factory cannot
	// produce a program (backend not ready). Nothing is inserted.
	ErrProgramUnavailable = errors.New("shadercache: shader program unavailable")

	// ErrCleanupPending is returned by Clear while programs still await
	// their cleanup event.
	ErrCleanupPending = errors.New("shadercache: programs pending cleanup")

	// ErrNilFactory is returned when creating a cache without a factory.
	ErrNilFactory = errors.New("shadercache: program factory is nil")

	// ErrNilContext is returned when creating a cache without a GPU context.
	ErrNilContext = errors.New("shadercache: gpu context is nil")

	// ErrNilPass is returned when requesting a program without a source generator.
	ErrNilPass = errors.New("shadercache: source generator is nil")

	// ErrProgramDestroyed is returned when initialising a destroyed program.
	ErrProgramDestroyed = errors.New("shadercache: program destroyed")
)
