package bufpool

import "testing"

func TestGetAllocatesWhenEmpty(t *testing.T) {
	p := New(64)
	b := p.Get()
	if len(b) != 64 {
		t.Fatalf("expected buffer of length 64, got %d", len(b))
	}
	if got := p.Capacity(); got != 1 {
		t.Fatalf("expected allocated count 1, got %d", got)
	}
}

func TestPutReuses(t *testing.T) {
	p := New(32)
	b := p.Get()
	p.Put(b)
	if got := p.Size(); got != 1 {
		t.Fatalf("expected 1 free buffer, got %d", got)
	}
	b2 := p.Get()
	if len(b2) != 32 {
		t.Fatalf("expected reused buffer of length 32, got %d", len(b2))
	}
	if got := p.Capacity(); got != 1 {
		t.Fatalf("expected allocated count to stay 1 on reuse, got %d", got)
	}
}

func TestPutDropsWrongSize(t *testing.T) {
	p := New(16)
	p.Put(make([]byte, 8))
	if got := p.Size(); got != 0 {
		t.Fatalf("expected wrong-size buffer to be dropped, got free size %d", got)
	}
}

func TestCompactionInvariant(t *testing.T) {
	p := New(8)
	bufs := make([][]byte, 20)
	for i := range bufs {
		bufs[i] = p.Get()
	}
	for _, b := range bufs {
		p.Put(b)
	}
	// free count never exceeds the allocated count, and after compaction
	// the free list is at most 75% of allocated once allocated exceeds 16
	size := p.Size()
	capc := p.Capacity()
	if size > capc {
		t.Fatalf("size %d exceeds capacity %d", size, capc)
	}
	if float64(size)*4 > float64(capc)*3 && capc > 16 {
		t.Fatalf("free list %d exceeds 75%% of allocated %d after compaction", size, capc)
	}
}
