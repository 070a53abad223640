// Copyright © 2024 Jeff Berkowitz (pdxjjb@gmail.com)
//
// Unit tests for the object header codec.

package gc

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		h    Header
	}{
		{"empty struct", Header{Kind: KindStruct}},
		{"pointers only", Header{Kind: KindStruct, PointerCount: 2, TotalSizeWords: 2}},
		{"mixed", Header{Kind: KindStruct, PointerCount: 1, TotalSizeWords: 3, PointerMutable: true}},
		{"max size", Header{Kind: KindStruct, PointerCount: 255, TotalSizeWords: 255}},
		{"reachable and aged", Header{Kind: KindStruct, PointerCount: 1, TotalSizeWords: 1, GCReachable: true, GCAge: 5}},
		{"array kind", Header{Kind: KindArray, PointerCount: 0, TotalSizeWords: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			word, err := EncodeHeader(tt.h)
			if err != nil {
				t.Fatalf("EncodeHeader failed: %v", err)
			}
			got, err := DecodeHeader(word)
			if err != nil {
				t.Fatalf("DecodeHeader failed: %v", err)
			}
			if got != tt.h {
				t.Errorf("round trip mismatch: got %+v, want %+v", got, tt.h)
			}
		})
	}
}

func TestHeaderEncodeWireBytes(t *testing.T) {
	// spec.md S1: header (Struct, flags=0, pc=1, ts=3) must encode to
	// little-endian bytes [4, 0, 1, 3].
	word, err := EncodeHeader(Header{Kind: KindStruct, PointerCount: 1, TotalSizeWords: 3})
	if err != nil {
		t.Fatalf("EncodeHeader failed: %v", err)
	}
	b0 := byte(word)
	b1 := byte(word >> 8)
	b2 := byte(word >> 16)
	b3 := byte(word >> 24)
	if b0 != 4 || b1 != 0 || b2 != 1 || b3 != 3 {
		t.Errorf("wire bytes = [%d %d %d %d], want [4 0 1 3]", b0, b1, b2, b3)
	}
}

func TestHeaderTooLarge(t *testing.T) {
	_, err := EncodeHeader(Header{Kind: KindStruct, PointerCount: 10, TotalSizeWords: 5})
	assertKind(t, err, HeaderTooLarge)

	_, err = EncodeHeader(Header{Kind: KindStruct, PointerCount: 0, TotalSizeWords: 0, PointerMutable: true})
	assertKind(t, err, HeaderTooLarge)
}

func TestHeaderLowBitZeroForRealHeaders(t *testing.T) {
	for _, k := range []DataKind{KindStruct, KindArray} {
		word, err := EncodeHeader(Header{Kind: k})
		if err != nil {
			t.Fatalf("EncodeHeader(%v) failed: %v", k, err)
		}
		if word&1 != 0 {
			t.Errorf("header word for kind %v has low bit set: 0x%08X", k, word)
		}
	}
}

func TestForwardingRoundTrip(t *testing.T) {
	targets := []Pointer{4, 400, 1_000_000}
	for _, target := range targets {
		word := encodeForward(target)
		if !isForwardWord(word) {
			t.Fatalf("encodeForward(%d) did not set the forwarding bit", target)
		}
		if got := decodeForward(word); got != target {
			t.Errorf("decodeForward(encodeForward(%d)) = %d", target, got)
		}
		if got := Pointer(word &^ 1); got.AlignDown() != target {
			t.Errorf("aligned_down(forward_of(%d)) = %d", target, got.AlignDown())
		}
	}
}

func TestDecodeHeaderOnForwardWordFails(t *testing.T) {
	word := encodeForward(400)
	_, err := DecodeHeader(word)
	assertKind(t, err, HeaderOnForward)
}

func TestDataKindByteRoundTrip(t *testing.T) {
	for _, k := range []DataKind{KindForward, KindStruct, KindArray} {
		if got := ParseDataKind(k.Byte()); got != k {
			t.Errorf("ParseDataKind(%v.Byte()) = %v, want %v", k, got, k)
		}
	}
}

func assertKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error of kind %v, got nil", want)
	}
	gcErr, ok := err.(*GCError)
	if !ok {
		t.Fatalf("expected *GCError, got %T: %v", err, err)
	}
	if gcErr.Kind != want {
		t.Errorf("error kind = %v, want %v", gcErr.Kind, want)
	}
}
