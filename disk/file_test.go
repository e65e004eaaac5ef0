package disk_test

import (
	"testing"

	"heapstore/config"
	"heapstore/disk"
)

func setup(t *testing.T) *config.Config {
	dir := t.TempDir()
	return config.NewConfigWithParams(dir, 512)
}

func TestCreateOpenDestroy(t *testing.T) {
	cfg := setup(t)
	f, err := disk.CreateFile(cfg, "t1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if f.NumPages() != 0 {
		t.Fatalf("expected 0 pages, got %d", f.NumPages())
	}
	if f.GetFirstPage() != 0 {
		t.Fatalf("expected first page 0, got %d", f.GetFirstPage())
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f2, err := disk.OpenFile(cfg, "t1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := f2.Close(); err != nil {
		t.Fatalf("close2: %v", err)
	}

	if err := disk.DestroyFile(cfg, "t1"); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if _, err := disk.OpenFile(cfg, "t1"); err != disk.ErrFileNotExists {
		t.Fatalf("expected ErrFileNotExists, got %v", err)
	}
}

func TestCreateFileExists(t *testing.T) {
	cfg := setup(t)
	f, err := disk.CreateFile(cfg, "dup")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if _, err := disk.CreateFile(cfg, "dup"); err != disk.ErrFileExists {
		t.Fatalf("expected ErrFileExists, got %v", err)
	}
}

func TestDestroyWhileOpen(t *testing.T) {
	cfg := setup(t)
	f, err := disk.CreateFile(cfg, "open1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := disk.DestroyFile(cfg, "open1"); err != disk.ErrFileOpen {
		t.Fatalf("expected ErrFileOpen, got %v", err)
	}
}

func TestAllocateReadWritePage(t *testing.T) {
	cfg := setup(t)
	f, err := disk.CreateFile(cfg, "pages")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	p0, err := f.AllocatePage()
	if err != nil {
		t.Fatalf("alloc p0: %v", err)
	}
	if p0 != 0 {
		t.Fatalf("expected page 0, got %d", p0)
	}
	p1, err := f.AllocatePage()
	if err != nil {
		t.Fatalf("alloc p1: %v", err)
	}
	if p1 != 1 {
		t.Fatalf("expected page 1, got %d", p1)
	}
	if f.NumPages() != 2 {
		t.Fatalf("expected 2 pages, got %d", f.NumPages())
	}

	buf := make([]byte, cfg.PageSize)
	copy(buf, []byte("hello"))
	if err := f.WritePageRaw(p1, buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := f.ReadPageRaw(p1)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got[:5]) != "hello" {
		t.Fatalf("expected hello prefix, got %q", got[:5])
	}

	if _, err := f.ReadPageRaw(5); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}
