package cache

import "testing"

func TestAllocateAndInstruction(t *testing.T) {
	c := New(0)
	h := c.Allocate(0x1000)
	if !h.Valid() {
		t.Fatalf("Valid() = false for freshly allocated handle")
	}
	if h.Address() != 0x1000 {
		t.Fatalf("Address() = %#x, want 0x1000", h.Address())
	}
	h.Instruction().Mnemonic = "nop"
	if c.entries[0x1000].inst.Mnemonic != "nop" {
		t.Fatalf("mutation through handle did not persist")
	}
	if !c.Contains(0x1000) {
		t.Fatalf("Contains(0x1000) = false after Allocate")
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

func TestLoadMissing(t *testing.T) {
	c := New(0)
	if _, err := c.Load(0x2000); err != ErrMissing {
		t.Fatalf("Load(missing) err = %v, want ErrMissing", err)
	}
}

func TestReleaseEntersCandidatePool(t *testing.T) {
	c := New(0)
	h := c.Allocate(0x1000)
	c.Release(h)

	if c.CandidateCount() != 1 {
		t.Fatalf("CandidateCount() = %d, want 1 after release", c.CandidateCount())
	}
	if !c.Contains(0x1000) {
		t.Fatalf("Contains(0x1000) = false, entry should remain until evicted")
	}
}

func TestLoadRemovesFromCandidatePool(t *testing.T) {
	c := New(0)
	h := c.Allocate(0x1000)
	c.Release(h)

	h2, err := c.Load(0x1000)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if c.CandidateCount() != 0 {
		t.Fatalf("CandidateCount() = %d, want 0 after reload", c.CandidateCount())
	}
	c.Release(h2)
	if c.CandidateCount() != 1 {
		t.Fatalf("CandidateCount() = %d, want 1 after second release", c.CandidateCount())
	}
}

func TestEraseDropsEntry(t *testing.T) {
	c := New(0)
	h := c.Allocate(0x1000)
	c.Erase(0x1000)

	if c.Contains(0x1000) {
		t.Fatalf("Contains(0x1000) = true after Erase")
	}
	// Handle obtained before the erase stays valid until Release.
	if h.Instruction() == nil {
		t.Fatalf("Instruction() = nil for a handle held across Erase")
	}
	c.Release(h)
	if c.CandidateCount() != 0 {
		t.Fatalf("CandidateCount() = %d, want 0: an erased entry should never become a candidate", c.CandidateCount())
	}
}

func TestEvictionAtWatermark(t *testing.T) {
	watermark := 4
	c := New(watermark)

	var handles []Handle
	for addr := uint64(0); addr < 10; addr++ {
		handles = append(handles, c.Allocate(addr))
	}
	for _, h := range handles {
		c.Release(h)
	}

	if c.Len() > watermark {
		t.Fatalf("Len() = %d, expected eviction to have kept the index at or below watermark %d", c.Len(), watermark)
	}
	if c.CandidateCount() > watermark {
		t.Fatalf("CandidateCount() = %d, expected it to never exceed watermark %d", c.CandidateCount(), watermark)
	}
	// The oldest addresses should have been evicted first (FIFO).
	if c.Contains(0) {
		t.Fatalf("Contains(0) = true, oldest entry should have been evicted")
	}
	if !c.Contains(9) {
		t.Fatalf("Contains(9) = false, newest entry should survive eviction")
	}
}
