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

// promotionAge is the GCAge at which an eligible (immutable) survivor
// is evacuated into the old generation instead of the young to-space.
// spec.md §9 open note 4 leaves the exact threshold unfixed and only
// requires that mutable objects never leave the young generation; 7
// (the saturation value of the 3-bit age field) is chosen so an object
// must survive every collection since its creation, until the counter
// saturates, before it is promoted — a conservative default that
// favors keeping objects young (and thus write-barrier-free) unless
// they have clearly outlived several nurseries.
const promotionAge uint8 = maxAge

// Stats reports the size of the active young semi-space immediately
// before and after a minor collection, in both the old side's capacity
// (unused here but carried for symmetry with a future full collection)
// and occupied length.
type Stats struct {
	InitialCapacity WordSize
	InitialLen      WordSize
	FinalCapacity   WordSize
	FinalLen        WordSize
}

// CollectMinor performs one Cheney-style semi-space evacuation: it
// scans every pointer slot reachable from the stack, copies each
// reachable young object to the opposite semi-space (or, if it is old
// enough and immutable, into the old generation), rewrites every
// evacuated object's former header word into a forwarding pointer, and
// finally flips the active side. It may be called only at a safe point
// (spec.md §5): every pointer slot of every reachable object must
// already hold a valid pointer or Null.
func (h *Heap) CollectMinor() (Stats, error) {
	from := h.cur.youngSide
	to := from.Opposite()

	stats := Stats{
		InitialCapacity: h.conf.YoungSideCapacity,
		InitialLen:      h.YoungHeapSize(),
	}

	toStart := h.conf.YoungSideStart(to)
	toTop := toStart
	// oldScan is the low-water mark of the old generation at the start
	// of this collection: anything promoted in an earlier collection
	// was already scanned then and needs no rescan (the collector never
	// revisits old objects across collections — spec.md §4.7's
	// write-barrier-free design). Anything promoted *during* this
	// collection still has its own pointer slots walked below, so a
	// promoted object's embedded references into the young generation
	// are forwarded before the old generation stops being rescanned.
	oldScan := h.cur.oldTop

	// Root scan over the stack's frame list.
	frame := h.cur.stackTopFrame
	frameEnd := h.cur.stackTopData
	for {
		var next Pointer
		if frame.IsNull() {
			break
		}
		next = Pointer(h.store.readWord(frame))
		cursor := frame.Add(headerWords.Bytes())
		for cursor < frameEnd {
			hdr, err := DecodeHeader(h.store.readWord(cursor))
			if err != nil {
				return stats, err
			}
			payload := cursor.Add(headerWords.Bytes())
			var evErr error
			toTop, evErr = h.scanObjectSlots(payload, hdr, from, to, toTop)
			if evErr != nil {
				return stats, evErr
			}
			cursor = payload.Add(WordSize(hdr.TotalSizeWords).Bytes())
		}
		frameEnd = frame
		frame = next
	}

	// Cheney scan: walk the to-space and the portion of the old
	// generation promoted during this collection together, whichever
	// order objects land in either region, until both frontiers catch
	// up with their still-advancing copy cursors. A to-space object can
	// reference something that in turn gets promoted, and a promoted
	// object can reference something copied into to-space, so neither
	// scan can run to completion before the other.
	scan := toStart
	for scan < toTop || oldScan < h.cur.oldTop {
		var cursor *Pointer
		if scan < toTop {
			cursor = &scan
		} else {
			cursor = &oldScan
		}
		hdr, err := DecodeHeader(h.store.readWord(*cursor))
		if err != nil {
			return stats, err
		}
		payload := (*cursor).Add(headerWords.Bytes())
		toTop, err = h.scanObjectSlots(payload, hdr, from, to, toTop)
		if err != nil {
			return stats, err
		}
		*cursor = payload.Add(WordSize(hdr.TotalSizeWords).Bytes())
	}

	h.cur.youngSide = to
	h.cur.youngTop = toTop

	stats.FinalCapacity = h.conf.YoungSideCapacity
	stats.FinalLen = h.YoungHeapSize()

	if h.tracer != nil {
		h.tracer.TraceMinorCollection(stats)
	}
	return stats, nil
}

// scanObjectSlots processes every pointer-typed payload slot of one
// object (header hdr, payload starting at payload), evacuating through
// evacuateSlot. toTop is threaded through because evacuation may
// advance the to-space copy cursor.
func (h *Heap) scanObjectSlots(payload Pointer, hdr Header, from, to Side, toTop Pointer) (Pointer, error) {
	for i := 0; i < int(hdr.PointerCount); i++ {
		slot := payload.Add(WordSize(i).Bytes())
		newTop, err := h.evacuateSlot(slot, from, to, toTop)
		if err != nil {
			return toTop, err
		}
		toTop = newTop
	}
	return toTop, nil
}

// evacuateSlot processes a single pointer slot during root scan or the
// Cheney to-space scan: if the slot points into the from-space, the
// referenced object is evacuated (or its existing forward is
// followed), and the slot is rewritten to the object's new address.
func (h *Heap) evacuateSlot(slotAddr Pointer, from, to Side, toTop Pointer) (Pointer, error) {
	p := Pointer(h.store.readWord(slotAddr))
	if p.IsNull() || !h.conf.inRange(p, from) {
		return toTop, nil
	}

	headerAt := p.Sub(headerWords.Bytes())
	word := h.store.readWord(headerAt)

	if isForwardWord(word) {
		h.store.writeWord(slotAddr, uint32(decodeForward(word)))
		return toTop, nil
	}

	hdr, err := DecodeHeader(word)
	if err != nil {
		return toTop, err
	}

	if hdr.GCAge < maxAge {
		hdr.GCAge++
	}

	lenWords := WordSize(hdr.TotalSizeWords) + headerWords
	promote := hdr.GCAge >= promotionAge && !hdr.PointerMutable

	var dest Pointer
	if promote {
		dest = h.cur.oldTop
	} else {
		dest = toTop
	}
	newPayload := dest.Add(headerWords.Bytes())

	// The incremented age must be in place at headerAt before the bulk
	// copy below, or the copy carries the stale, pre-increment word to
	// the new location and the age increment is silently lost every
	// collection (no object would ever reach promotionAge).
	updatedWord, err := EncodeHeader(hdr)
	if err != nil {
		return toTop, err
	}
	h.store.writeWord(headerAt, updatedWord)

	h.store.copyWords(dest, headerAt, lenWords)

	if promote {
		h.cur.oldTop = dest.Add(lenWords.Bytes())
	} else {
		toTop = dest.Add(lenWords.Bytes())
	}

	h.store.writeWord(headerAt, encodeForward(newPayload))
	h.store.writeWord(slotAddr, uint32(newPayload))

	if h.tracer != nil {
		h.tracer.TraceEvacuate(p, newPayload, promote)
	}

	return toTop, nil
}

// CollectFull is reserved for a mark-compact pass over the old
// generation. It is unimplemented in the current core (spec.md §4.7);
// every call fails with NotImplemented.
func (h *Heap) CollectFull() error {
	return newError(NotImplemented, "collect_full (old-generation mark-compact) is not implemented")
}
