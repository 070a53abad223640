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

package gc

// FramePush opens a new stack frame. The frame is represented by one
// link word, written at the current stack bump pointer, holding the
// previous frame's address (Null at the bottom of the stack); the
// bump pointer then advances past the link word so that objects
// allocated next land one word past it, never mistaken for headers
// during root scan (spec.md §9 open note 5).
func (h *Heap) FramePush() error {
	link := h.cur.stackTopData
	if link.Add(headerWords.Bytes()) > h.conf.StackEnd() {
		return newError(StackOverflow, "stack exhausted pushing a new frame")
	}
	h.store.writeWord(link, uint32(h.cur.stackTopFrame))
	h.cur.stackTopFrame = link
	h.cur.stackTopData = link.Add(headerWords.Bytes())
	return nil
}

// FramePop closes the current frame, discarding every object
// allocated within it. This is a fatal error if there is no open
// frame (spec.md §7, PopEmptyStack).
func (h *Heap) FramePop() error {
	if h.cur.stackTopFrame.IsNull() {
		return newError(PopEmptyStack, "frame_pop called with no open frame")
	}
	prev := Pointer(h.store.readWord(h.cur.stackTopFrame))
	h.cur.stackTopData = h.cur.stackTopFrame
	h.cur.stackTopFrame = prev
	return nil
}

// Scope pushes a frame, invokes fn, and pops the frame on every exit
// path — the "scoped acquisition" helper spec.md §9 calls for, mirrored
// on the teacher's own defer-based cleanup idiom (e.g. main.go's
// `defer restoreTerminal()`). If fn panics, the frame is still popped
// before the panic continues to propagate.
func (h *Heap) Scope(fn func() error) (err error) {
	if err = h.FramePush(); err != nil {
		return err
	}
	defer func() {
		if popErr := h.FramePop(); err == nil {
			err = popErr
		}
	}()
	return fn()
}
