package buffer_test

import (
	"testing"

	"github.com/rs/zerolog"

	"heapstore/buffer"
	"heapstore/config"
	"heapstore/disk"
)

func setup(t *testing.T, bufCount int, policy string) (*config.Config, *disk.File, *buffer.Manager) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfigWithParams(dir, 512)
	cfg.BMBufferCount = bufCount
	cfg.BMPolicy = policy
	f, err := disk.CreateFile(cfg, "t1")
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	bm := buffer.NewManager(cfg, zerolog.Nop())
	return cfg, f, bm
}

func TestAllocAndUnpin(t *testing.T) {
	_, f, bm := setup(t, 4, "LRU")
	pageNo, data, err := bm.AllocPage(f)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if pageNo != 0 {
		t.Fatalf("expected page 0, got %d", pageNo)
	}
	copy(data, []byte("hi"))
	if err := bm.UnpinPage(f, pageNo, true); err != nil {
		t.Fatalf("unpin: %v", err)
	}
	if err := bm.FlushFile(f); err != nil {
		t.Fatalf("flush: %v", err)
	}
	got, err := f.ReadPageRaw(pageNo)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got[:2]) != "hi" {
		t.Fatalf("expected flushed contents, got %q", got[:2])
	}
}

func TestLRUEviction(t *testing.T) {
	_, f, bm := setup(t, 2, "LRU")
	p0, _, err := bm.AllocPage(f)
	if err != nil {
		t.Fatalf("alloc p0: %v", err)
	}
	p1, _, err := bm.AllocPage(f)
	if err != nil {
		t.Fatalf("alloc p1: %v", err)
	}
	if err := bm.UnpinPage(f, p0, false); err != nil {
		t.Fatalf("unpin p0: %v", err)
	}
	if err := bm.UnpinPage(f, p1, false); err != nil {
		t.Fatalf("unpin p1: %v", err)
	}
	if _, err := bm.ReadPage(f, p1); err != nil {
		t.Fatalf("re-pin p1: %v", err)
	}
	if err := bm.UnpinPage(f, p1, false); err != nil {
		t.Fatalf("unpin p1 again: %v", err)
	}

	p2, _, err := bm.AllocPage(f)
	if err != nil {
		t.Fatalf("alloc p2: %v", err)
	}
	if err := bm.UnpinPage(f, p2, false); err != nil {
		t.Fatalf("unpin p2: %v", err)
	}

	// p0 was least recently touched and had no pins; p1 was re-pinned so it
	// should still be resident without needing a disk fault, while p0's
	// frame was reused for p2.
	if _, err := bm.ReadPage(f, p1); err != nil {
		t.Fatalf("p1 should still be resident: %v", err)
	}
}

func TestAllFramesPinnedError(t *testing.T) {
	_, f, bm := setup(t, 1, "LRU")
	p0, _, err := bm.AllocPage(f)
	if err != nil {
		t.Fatalf("alloc p0: %v", err)
	}
	_ = p0
	if _, _, err := bm.AllocPage(f); err == nil {
		t.Fatalf("expected error when no frame is available")
	}
}

func TestUnpinNotPinnedError(t *testing.T) {
	_, f, bm := setup(t, 2, "LRU")
	if err := bm.UnpinPage(f, 0, false); err == nil {
		t.Fatalf("expected error unpinning a page never pinned")
	}
}

func TestMRUEviction(t *testing.T) {
	_, f, bm := setup(t, 2, "MRU")
	p0, _, err := bm.AllocPage(f)
	if err != nil {
		t.Fatalf("alloc p0: %v", err)
	}
	p1, _, err := bm.AllocPage(f)
	if err != nil {
		t.Fatalf("alloc p1: %v", err)
	}
	if err := bm.UnpinPage(f, p0, false); err != nil {
		t.Fatalf("unpin p0: %v", err)
	}
	if err := bm.UnpinPage(f, p1, false); err != nil {
		t.Fatalf("unpin p1: %v", err)
	}

	if _, _, err := bm.AllocPage(f); err != nil {
		t.Fatalf("alloc p2: %v", err)
	}
}
