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

// headerWords is the size, in words, of the current (small) header
// encoding. The two-word "Big" header for oversized objects is
// reserved by spec.md §3 but not implemented; any object that would
// need it fails HeaderTooLarge before a header is ever written.
const headerWords WordSize = 1

// AllocHeap bump-allocates a young-generation object with pointerCount
// leading pointer slots and totalSize total payload words, and writes
// its header. pointersMutable controls whether the object's pointer
// fields may be rewritten after initialization; an immutable object is
// eligible for promotion to the old generation (collector.go), a
// mutable one never is (spec.md §4.7). It fails with YoungHeapFull if
// the allocation would exceed the active semi-space, escalated to a
// fatal error by the caller — use AllocHeap0 to recover locally.
func (h *Heap) AllocHeap(pointerCount, totalSize uint8, pointersMutable bool) (Pointer, error) {
	p, err := h.AllocHeap0(pointerCount, totalSize, pointersMutable)
	if err != nil {
		return Null, err
	}
	if p == Null {
		return Null, newError(YoungHeapFull, "young heap side %s exhausted allocating %d pointer + %d data words",
			h.cur.youngSide, pointerCount, int(totalSize)-int(pointerCount))
	}
	return p, nil
}

// AllocHeap0 is the recoverable face of AllocHeap: it returns Null
// (not an error) when the active semi-space has no room, so a caller
// can retry after a minor collection (spec.md §9 open note 2). A
// non-nil error here always indicates a HeaderTooLarge programming
// error, never exhaustion.
func (h *Heap) AllocHeap0(pointerCount, totalSize uint8, pointersMutable bool) (Pointer, error) {
	header := Header{
		Kind:           KindStruct,
		PointerMutable: pointersMutable,
		PointerCount:   pointerCount,
		TotalSizeWords: totalSize,
	}
	word, err := EncodeHeader(header)
	if err != nil {
		return Null, err
	}

	headerAt := h.cur.youngTop
	payload := headerAt.Add(headerWords.Bytes())
	newTop := payload.Add(WordSize(totalSize).Bytes())

	if newTop > h.conf.YoungSideEnd(h.cur.youngSide) {
		if h.tracer != nil {
			h.tracer.TraceAllocFailure("heap", pointerCount, totalSize)
		}
		return Null, nil
	}

	h.store.writeWord(headerAt, word)
	h.store.poisonRange(payload, WordSize(totalSize))
	h.cur.youngTop = newTop
	return payload, nil
}

// AllocStack bump-allocates an object within the current stack frame.
// Unlike AllocHeap, it has no pointersMutable flag and no age: stack
// objects are always roots, are never evacuated in place, and are
// reclaimed wholesale by FramePop rather than by the minor collector.
// It fails with StackOverflow if the allocation would exceed the
// configured stack capacity.
func (h *Heap) AllocStack(pointerCount, totalSize uint8) (Pointer, error) {
	p, err := h.AllocStack0(pointerCount, totalSize)
	if err != nil {
		return Null, err
	}
	if p == Null {
		return Null, newError(StackOverflow, "stack exhausted allocating %d pointer + %d data words",
			pointerCount, int(totalSize)-int(pointerCount))
	}
	return p, nil
}

// AllocStack0 is the recoverable face of AllocStack: returns Null, nil
// error, when the stack region is full.
func (h *Heap) AllocStack0(pointerCount, totalSize uint8) (Pointer, error) {
	header := Header{
		Kind:           KindStruct,
		PointerCount:   pointerCount,
		TotalSizeWords: totalSize,
	}
	word, err := EncodeHeader(header)
	if err != nil {
		return Null, err
	}

	headerAt := h.cur.stackTopData
	payload := headerAt.Add(headerWords.Bytes())
	newTop := payload.Add(WordSize(totalSize).Bytes())

	if newTop > h.conf.StackEnd() {
		if h.tracer != nil {
			h.tracer.TraceAllocFailure("stack", pointerCount, totalSize)
		}
		return Null, nil
	}

	h.store.writeWord(headerAt, word)
	h.store.poisonRange(payload, WordSize(totalSize))
	h.cur.stackTopData = newTop
	return payload, nil
}

// ReadPointer reads a pointer-typed payload slot at object+word*4.
func (h *Heap) ReadPointer(payload Pointer, slot int) Pointer {
	return Pointer(h.store.readWord(payload.Add(WordSize(slot).Bytes())))
}

// WritePointer writes a pointer-typed payload slot at object+word*4.
func (h *Heap) WritePointer(payload Pointer, slot int, value Pointer) {
	h.store.writeWord(payload.Add(WordSize(slot).Bytes()), uint32(value))
}

// ReadData reads a raw (non-pointer) data word at object+word*4.
func (h *Heap) ReadData(payload Pointer, slot int) uint32 {
	return h.store.readWord(payload.Add(WordSize(slot).Bytes()))
}

// WriteData writes a raw (non-pointer) data word at object+word*4.
func (h *Heap) WriteData(payload Pointer, slot int, value uint32) {
	h.store.writeWord(payload.Add(WordSize(slot).Bytes()), value)
}

// HeaderOf decodes the header word immediately preceding payload.
func (h *Heap) HeaderOf(payload Pointer) (Header, error) {
	return DecodeHeader(h.store.readWord(payload.Sub(headerWords.Bytes())))
}
