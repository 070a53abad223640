// Copyright © 2024 Jeff Berkowitz (pdxjjb@gmail.com)
//
// Unit tests for the stack and young-heap allocators.

package gc

import "testing"

func newTestHeap() *Heap {
	return NewHeap(1024, 16384, 16384, false)
}

func TestAllocHeapBumpLayout(t *testing.T) {
	// spec.md S1.
	h := newTestHeap()

	p1, err := h.AllocHeap(1, 3, false)
	if err != nil {
		t.Fatalf("AllocHeap(p1) failed: %v", err)
	}
	hdr, err := h.HeaderOf(p1)
	if err != nil {
		t.Fatalf("HeaderOf(p1) failed: %v", err)
	}
	want := Header{Kind: KindStruct, PointerCount: 1, TotalSizeWords: 3}
	if hdr != want {
		t.Errorf("p1 header = %+v, want %+v", hdr, want)
	}

	p2, err := h.AllocHeap(2, 3, false)
	if err != nil {
		t.Fatalf("AllocHeap(p2) failed: %v", err)
	}

	if got, want := p2.Diff(p1), ByteSize(16); got != want {
		t.Errorf("p2 - p1 = %d bytes, want %d", got, want)
	}
	if got, want := h.YoungHeapSize(), WordSize(8); got != want {
		t.Errorf("YoungHeapSize() = %d, want %d", got, want)
	}
	if got := h.StackSize(); got != 0 {
		t.Errorf("StackSize() = %d, want 0", got)
	}
}

func TestAllocHeapWireBytes(t *testing.T) {
	h := newTestHeap()
	p1, err := h.AllocHeap(1, 3, false)
	if err != nil {
		t.Fatalf("AllocHeap failed: %v", err)
	}
	word := h.store.readWord(p1.Sub(headerWords.Bytes()))
	b0, b1, b2, b3 := byte(word), byte(word>>8), byte(word>>16), byte(word>>24)
	if b0 != 4 || b1 != 0 || b2 != 1 || b3 != 3 {
		t.Errorf("wire bytes = [%d %d %d %d], want [4 0 1 3]", b0, b1, b2, b3)
	}
}

func TestAllocHeapNoCollectionMatchesTotals(t *testing.T) {
	// spec.md invariant 2: after any sequence of allocations with no
	// collection, YoungHeapSize equals the sum of (1 + total_size) per
	// allocation.
	h := newTestHeap()
	shapes := []struct{ pc, ts uint8 }{{0, 0}, {1, 1}, {2, 5}, {0, 3}}
	var want WordSize
	for _, s := range shapes {
		if _, err := h.AllocHeap(s.pc, s.ts, false); err != nil {
			t.Fatalf("AllocHeap%+v failed: %v", s, err)
		}
		want += WordSize(1) + WordSize(s.ts)
	}
	if got := h.YoungHeapSize(); got != want {
		t.Errorf("YoungHeapSize() = %d, want %d", got, want)
	}
}

func TestAllocHeap0RecoversOnExhaustion(t *testing.T) {
	h := NewHeap(16, 8, 8, false)
	// Fill the side: one header word + totalSize words per call.
	for {
		p, err := h.AllocHeap0(0, 7, false)
		if err != nil {
			t.Fatalf("AllocHeap0 returned an error instead of Null: %v", err)
		}
		if p == Null {
			break
		}
	}
	if _, err := h.AllocHeap(0, 1, false); err == nil {
		t.Fatalf("AllocHeap should escalate exhaustion to YoungHeapFull")
	} else {
		assertKind(t, err, YoungHeapFull)
	}
}

func TestAllocStackBumpAndOverflow(t *testing.T) {
	h := NewHeap(8, 8192, 8192, false)
	if _, err := h.AllocStack(0, 1); err != nil {
		t.Fatalf("AllocStack failed: %v", err)
	}
	if got, want := h.StackSize(), WordSize(2); got != want {
		t.Errorf("StackSize() = %d, want %d", got, want)
	}
	// Stack capacity is 8 words; 2 used, 6 remain. A 10-word object
	// cannot fit and must fail StackOverflow.
	if _, err := h.AllocStack(0, 10); err == nil {
		t.Fatalf("expected StackOverflow")
	} else {
		assertKind(t, err, StackOverflow)
	}
}

func TestAllocHeaderTooLargePropagates(t *testing.T) {
	h := newTestHeap()
	_, err := h.AllocHeap(10, 5, false)
	assertKind(t, err, HeaderTooLarge)
}

func TestReadWriteRoundTrip(t *testing.T) {
	h := newTestHeap()
	p, err := h.AllocHeap(1, 3, true)
	if err != nil {
		t.Fatalf("AllocHeap failed: %v", err)
	}
	h.WritePointer(p, 0, Pointer(400))
	h.WriteData(p, 1, 111)
	h.WriteData(p, 2, 222)

	if got := h.ReadPointer(p, 0); got != Pointer(400) {
		t.Errorf("ReadPointer = %d, want 400", got)
	}
	if got := h.ReadData(p, 1); got != 111 {
		t.Errorf("ReadData(1) = %d, want 111", got)
	}
	if got := h.ReadData(p, 2); got != 222 {
		t.Errorf("ReadData(2) = %d, want 222", got)
	}
}
