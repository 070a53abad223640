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

import "fmt"

// wordBytes is the size in bytes of one word, the collector's only unit
// of addressable storage.
const wordBytes = 4

// Pointer is an absolute byte offset into the backing store. It is
// always a multiple of wordBytes; offset zero is the null pointer and,
// in the stack region, the frame-list terminator.
type Pointer int32

// Null is the zero pointer. It never addresses a live object.
const Null Pointer = 0

// IsNull reports whether p is the null pointer.
func (p Pointer) IsNull() bool {
	return p == Null
}

// Aligned reports whether p is a multiple of wordBytes.
func (p Pointer) Aligned() bool {
	return p%wordBytes == 0
}

// AlignDown rounds p down to the nearest word boundary.
func (p Pointer) AlignDown() Pointer {
	return (p / wordBytes) * wordBytes
}

// Add advances p by a byte size, returning a new pointer.
func (p Pointer) Add(n ByteSize) Pointer {
	return p + Pointer(n)
}

// Sub retreats p by a byte size, returning a new pointer.
func (p Pointer) Sub(n ByteSize) Pointer {
	return p - Pointer(n)
}

// Diff returns the byte distance from rhs to p. It is a programming
// error to call this with p < rhs; callers only ever subtract a lower
// bound from a cursor that has advanced past it.
func (p Pointer) Diff(rhs Pointer) ByteSize {
	if p < rhs {
		panic(fmt.Sprintf("gc: pointer difference would be negative: %d - %d", p, rhs))
	}
	return ByteSize(p - rhs)
}

// ByteSize is a non-negative count of bytes.
type ByteSize int32

// Words converts a byte size to a word size. It is a programming error
// to call this on a size that is not a whole number of words.
func (b ByteSize) Words() WordSize {
	if b%wordBytes != 0 {
		panic(fmt.Sprintf("gc: byte size %d is not word-aligned", b))
	}
	return WordSize(b / wordBytes)
}

// Scale multiplies a byte size by a non-negative integer count.
func (b ByteSize) Scale(n int) ByteSize {
	return b * ByteSize(n)
}

// WordSize is a non-negative count of words (4-byte units).
type WordSize int32

// Bytes converts a word size to the equivalent byte size.
func (w WordSize) Bytes() ByteSize {
	return ByteSize(w) * wordBytes
}

// Plus adds two word sizes.
func (w WordSize) Plus(other WordSize) WordSize {
	return w + other
}
