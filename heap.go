// Copyright © 2024 Jeff Berkowitz (pdxjjb@gmail.com)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.

// Package gc implements a generational, semi-space copying collector
// for a small embedded managed runtime. A Heap owns one contiguous
// backing buffer, partitioned into a call stack, two young-generation
// semi-spaces, and an old generation. Allocation is by bumping a
// cursor; a minor collection evacuates live young objects to the
// opposite semi-space via Cheney-style scanning with forwarding
// pointers. The surrounding bytecode virtual machine, its compiler,
// and its command-line driver are not part of this package — they are
// external collaborators that only call the operations below.
package gc

// cursors holds the five moving positions spec.md §3 names: the head
// of the stack frame list, the stack bump pointer, which young
// semi-space is active, and the bump pointers within the active young
// side and the old generation.
type cursors struct {
	stackTopFrame Pointer
	stackTopData  Pointer
	youngSide     Side
	youngTop      Pointer
	oldTop        Pointer
}

// Heap is the collector's public handle: one instance per mutator, per
// spec.md §9's "process-wide state ... a clean re-architecture
// introduces an explicit collector handle passed to every operation."
// There is no package-level singleton; every operation is a method on
// *Heap.
type Heap struct {
	conf   Config
	store  *store
	cur    cursors
	tracer *Tracer
	Debug  bool // poison fresh memory; see store.go
}

// NewHeap configures capacities (in words) and allocates the backing
// buffer. Configuration is idempotent in the sense that calling it
// again on a fresh Heap value always starts from a clean slate;
// changing an existing Heap's capacities requires building a new one.
func NewHeap(stackCapacity, youngSideCapacity, oldCapacity WordSize, debug bool) *Heap {
	conf := Config{
		StackCapacity:     stackCapacity,
		YoungSideCapacity: youngSideCapacity,
		OldCapacity:       oldCapacity,
	}
	h := &Heap{
		conf:  conf,
		store: newStore(conf.totalWords(), debug),
		Debug: debug,
	}
	h.reset()
	return h
}

// reset returns all five cursors to the start of their regions.
func (h *Heap) reset() {
	h.cur = cursors{
		stackTopFrame: Null,
		stackTopData:  h.conf.StackStart(),
		youngSide:     Left,
		youngTop:      h.conf.YoungSideStart(Left),
		oldTop:        h.conf.OldStart(),
	}
}

// SetTracer attaches a Tracer that receives diagnostic lines for
// allocation failures and collections. A nil tracer (the default)
// disables tracing entirely.
func (h *Heap) SetTracer(t *Tracer) {
	h.tracer = t
}

// YoungHeapSize returns the word count currently occupied in the
// active young semi-space.
func (h *Heap) YoungHeapSize() WordSize {
	return h.cur.youngTop.Diff(h.conf.YoungSideStart(h.cur.youngSide)).Words()
}

// StackSize returns the word count currently occupied in the stack
// region.
func (h *Heap) StackSize() WordSize {
	return h.cur.stackTopData.Diff(h.conf.StackStart()).Words()
}

// OldHeapSize returns the word count currently occupied in the old
// generation.
func (h *Heap) OldHeapSize() WordSize {
	return h.cur.oldTop.Diff(h.conf.OldStart()).Words()
}

// Config returns a copy of the heap's region configuration, chiefly
// useful to tests and to cmd/gcbench when reporting capacities.
func (h *Heap) Config() Config {
	return h.conf
}
