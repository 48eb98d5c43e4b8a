// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shadergen

import (
	"fmt"
	"strings"
)

// writer accumulates WGSL text with four-space indentation.
type writer struct {
	sb     strings.Builder
	indent int
}

func (w *writer) line(format string, args ...any) {
	if format == "" {
		w.sb.WriteByte('\n')
		return
	}
	w.sb.WriteString(strings.Repeat("    ", w.indent))
	fmt.Fprintf(&w.sb, format, args...)
	w.sb.WriteByte('\n')
}

func (w *writer) open(format string, args ...any) {
	w.line(format+" {", args...)
	w.indent++
}

func (w *writer) close() {
	w.indent--
	w.line("}")
}

func (w *writer) String() string {
	return w.sb.String()
}
