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

// DataKind identifies the shape of an object's payload. The low two
// bits of the byte value are reserved: Struct and Array leave them
// clear, so that a header word whose bit 0 is set can never be
// mistaken for a real header — it is always a forwarding pointer
// (see isForwardWord and encodeForward below).
type DataKind uint8

const (
	KindForward DataKind = 1 // not a real kind: tags a forwarding word
	KindStruct  DataKind = 4
	KindArray   DataKind = 8
)

// Byte returns the wire encoding of a DataKind.
func (k DataKind) Byte() uint8 {
	return uint8(k)
}

// ParseDataKind recovers a DataKind from its wire encoding.
func ParseDataKind(b uint8) DataKind {
	return DataKind(b)
}

func (k DataKind) String() string {
	switch k {
	case KindForward:
		return "forward"
	case KindStruct:
		return "struct"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Header-word flag bits, packed into byte 1 (bits 8-15 of the full
// word). gcAge occupies the low three bits of that byte (bits 8-10 of
// the word); pointerMutable and gcReachable occupy the top two bits
// (bits 14 and 15 of the word). This is the "later convention" spec.md
// §9 open note 1 settles on.
const (
	flagsAgeMask      = 0x07
	flagsMutableBit   = 1 << 6
	flagsReachableBit = 1 << 7
	maxAge            = 7
)

// maxSmallField is the largest value either PointerCount or TotalSize
// may take in the one-word (small) header encoding.
const maxSmallField = 255

// Header describes one object's shape: how many of its leading payload
// words are pointers, how large its payload is in total, and the
// collector bookkeeping bits the minor collector maintains.
type Header struct {
	Kind           DataKind
	PointerMutable bool
	GCReachable    bool
	GCAge          uint8
	PointerCount   uint8
	TotalSizeWords uint8
}

// EncodeHeader packs h into a single 32-bit header word. It fails with
// HeaderTooLarge if the one-word invariant PointerCount <= TotalSize <=
// 255 does not hold, and is a programming error (not represented here)
// to call with Kind == KindForward — forwarding words are built with
// encodeForward, never through this path.
func EncodeHeader(h Header) (uint32, error) {
	if h.PointerCount > h.TotalSizeWords || h.TotalSizeWords > maxSmallField {
		return 0, newError(HeaderTooLarge, "pointer_count=%d total_size=%d exceeds one-word header capacity",
			h.PointerCount, h.TotalSizeWords)
	}
	if h.PointerCount == 0 && h.PointerMutable {
		return 0, newError(HeaderTooLarge, "pointer_mutable set on an object with no pointer fields")
	}

	flags := h.GCAge & flagsAgeMask
	if h.PointerMutable {
		flags |= flagsMutableBit
	}
	if h.GCReachable {
		flags |= flagsReachableBit
	}

	word := uint32(h.Kind.Byte())
	word |= uint32(flags) << 8
	word |= uint32(h.PointerCount) << 16
	word |= uint32(h.TotalSizeWords) << 24
	return word, nil
}

// DecodeHeader unpacks a header word. It fails with HeaderOnForward if
// the word's low bit is set, since such a word is a forwarding pointer
// and decoding it as a header would silently fabricate garbage shape
// information — a collector bug, per spec.md §7.
func DecodeHeader(word uint32) (Header, error) {
	if word&1 != 0 {
		return Header{}, newError(HeaderOnForward, "word 0x%08X is a forwarding pointer, not a header", word)
	}
	flags := uint8((word >> 8) & 0xFF)
	return Header{
		Kind:           ParseDataKind(uint8(word & 0xFF)),
		PointerMutable: flags&flagsMutableBit != 0,
		GCReachable:    flags&flagsReachableBit != 0,
		GCAge:          flags & flagsAgeMask,
		PointerCount:   uint8((word >> 16) & 0xFF),
		TotalSizeWords: uint8((word >> 24) & 0xFF),
	}, nil
}

// isForwardWord reports whether word's low bit marks it as a
// forwarding pointer rather than a real header.
func isForwardWord(word uint32) bool {
	return word&1 != 0
}

// encodeForward builds a forwarding word pointing at the evacuated
// object's new payload address. target must be word-aligned and
// non-null; its low two bits are already clear, so setting bit 0
// cannot collide with any bit target itself uses.
func encodeForward(target Pointer) uint32 {
	return uint32(target) | 1
}

// decodeForward recovers the target payload address from a forwarding
// word. Calling this on a word that is not a forwarding word (i.e.
// isForwardWord returns false) is a programming error.
func decodeForward(word uint32) Pointer {
	return Pointer(word &^ 1)
}
