// Package disk implements the paged File abstraction the heap file layer is
// built on: one OS file per heap file, holding a sequence of fixed-size
// pages numbered from 0. It is deliberately narrow — create, destroy, open,
// close, allocate a page, and report the first page number — mirroring the
// external "File" collaborator the heap file layer consumes rather than
// specifies.
package disk

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"heapstore/config"
)

var (
	// ErrFileExists is returned when CreateFile targets a name already on disk.
	ErrFileExists = errors.New("disk: file already exists")
	// ErrFileNotExists is returned when OpenFile targets a name that is not on disk.
	ErrFileNotExists = errors.New("disk: file does not exist")
	// ErrFileOpen is returned when DestroyFile targets a name that is currently open.
	ErrFileOpen = errors.New("disk: file is currently open")
)

var (
	openMu    sync.Mutex
	openPaths = make(map[string]bool)
)

// File is a single heap file's backing store: a flat sequence of fixed-size
// pages. Page 0 is always the header page; AllocatePage appends the next one.
type File struct {
	mu       sync.Mutex
	f        *os.File
	path     string
	name     string
	pageSize int
	numPages int32
}

func pagePath(cfg *config.Config, name string) string {
	return filepath.Join(cfg.DBPath, name+".heap")
}

// CreateFile creates a brand new, empty heap file on disk.
func CreateFile(cfg *config.Config, name string) (*File, error) {
	if err := os.MkdirAll(cfg.DBPath, 0o755); err != nil {
		return nil, errors.Wrap(err, "create db directory")
	}
	path := pagePath(cfg, name)
	if _, err := os.Stat(path); err == nil {
		return nil, ErrFileExists
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "stat heap file")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrFileExists
		}
		return nil, errors.Wrap(err, "create heap file")
	}
	registerOpen(path)
	return &File{f: f, path: path, name: name, pageSize: cfg.PageSize}, nil
}

// OpenFile opens a heap file that already exists on disk.
func OpenFile(cfg *config.Config, name string) (*File, error) {
	path := pagePath(cfg, name)
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, ErrFileNotExists
	} else if err != nil {
		return nil, errors.Wrap(err, "stat heap file")
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open heap file")
	}
	registerOpen(path)
	return &File{
		f:        f,
		path:     path,
		name:     name,
		pageSize: cfg.PageSize,
		numPages: int32(fi.Size() / int64(cfg.PageSize)),
	}, nil
}

// DestroyFile removes a heap file from disk. It refuses to remove a file
// that is still open through this process.
func DestroyFile(cfg *config.Config, name string) error {
	path := pagePath(cfg, name)
	openMu.Lock()
	stillOpen := openPaths[path]
	openMu.Unlock()
	if stillOpen {
		return ErrFileOpen
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrFileNotExists
		}
		return errors.Wrap(err, "remove heap file")
	}
	return nil
}

func registerOpen(path string) {
	openMu.Lock()
	openPaths[path] = true
	openMu.Unlock()
}

// Close releases the underlying OS file handle.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	openMu.Lock()
	delete(openPaths, f.path)
	openMu.Unlock()
	if err := f.f.Close(); err != nil {
		return errors.Wrap(err, "close heap file")
	}
	return nil
}

// Name returns the logical heap file name this File was created/opened with.
func (f *File) Name() string { return f.name }

// PageSize returns the fixed page size pages of this file are read/written at.
func (f *File) PageSize() int { return f.pageSize }

// NumPages reports how many pages currently exist in the file.
func (f *File) NumPages() int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.numPages
}

// GetFirstPage returns the page number of the file's first page (the header
// page). Heap files always place the header at page 0.
func (f *File) GetFirstPage() int32 { return 0 }

// AllocatePage extends the file by one zero-filled page and returns its
// page number. Pages are never reclaimed by this layer.
func (f *File) AllocatePage() (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pageNo := f.numPages
	zero := make([]byte, f.pageSize)
	off := int64(pageNo) * int64(f.pageSize)
	if _, err := f.f.WriteAt(zero, off); err != nil {
		return 0, errors.Wrap(err, "allocate page")
	}
	f.numPages++
	return pageNo, nil
}

// ReadPageRaw reads exactly one page's worth of bytes at pageNo.
func (f *File) ReadPageRaw(pageNo int32) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pageNo < 0 || pageNo >= f.numPages {
		return nil, errors.Errorf("disk: page %d out of range (numPages=%d)", pageNo, f.numPages)
	}
	buf := make([]byte, f.pageSize)
	off := int64(pageNo) * int64(f.pageSize)
	if _, err := f.f.ReadAt(buf, off); err != nil {
		return nil, errors.Wrap(err, "read page")
	}
	return buf, nil
}

// WritePageRaw writes exactly one page's worth of bytes at pageNo.
func (f *File) WritePageRaw(pageNo int32, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pageNo < 0 || pageNo >= f.numPages {
		return errors.Errorf("disk: page %d out of range (numPages=%d)", pageNo, f.numPages)
	}
	if len(data) != f.pageSize {
		return errors.Errorf("disk: write data length %d != page size %d", len(data), f.pageSize)
	}
	off := int64(pageNo) * int64(f.pageSize)
	if _, err := f.f.WriteAt(data, off); err != nil {
		return errors.Wrap(err, "write page")
	}
	return nil
}

// Sync forces previously written pages to stable storage.
func (f *File) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.f.Sync(); err != nil {
		return errors.Wrap(err, "sync heap file")
	}
	return nil
}
