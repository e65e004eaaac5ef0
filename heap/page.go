// Package heap implements the heap file layer: variable-length records held
// in an unordered, append-friendly chain of fixed-size pages, accessed
// through HeapFile, HeapFileScan, and InsertFileScan handles.
package heap

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// DPFIXED is the fixed header overhead every data page reserves ahead
	// of its slot directory and record payload.
	DPFIXED = 20
	// MAXNAMESIZE bounds the stored length of a heap file's name in its
	// header page.
	MAXNAMESIZE = 256
	// slotEntrySize is the width of one (offset, length) slot directory entry.
	slotEntrySize = 8
	// deletedLen marks a slot whose record has been deleted. Records must
	// therefore be non-empty; a zero-length record is indistinguishable
	// from a deleted slot.
	deletedLen = 0
)

// RID identifies a record by the page it lives on and its slot index
// within that page's slot directory.
type RID struct {
	PageNo int32
	SlotNo int32
}

// NULLRID denotes "no record".
var NULLRID = RID{PageNo: -1, SlotNo: -1}

// Page is a view over a pinned frame buffer implementing the slotted-page
// layout: a fixed header (slot count, free-space pointers, forward link,
// own page number), payload growing forward from the header, and a slot
// directory growing backward from the end of the page.
type Page struct {
	Data []byte
}

func NewPage(data []byte) *Page { return &Page{Data: data} }

func (p *Page) slotCount() uint32   { return binary.LittleEndian.Uint32(p.Data[0:4]) }
func (p *Page) freeStart() uint32   { return binary.LittleEndian.Uint32(p.Data[4:8]) }
func (p *Page) freeEnd() uint32     { return binary.LittleEndian.Uint32(p.Data[8:12]) }
func (p *Page) setSlotCount(v uint32) { binary.LittleEndian.PutUint32(p.Data[0:4], v) }
func (p *Page) setFreeStart(v uint32) { binary.LittleEndian.PutUint32(p.Data[4:8], v) }
func (p *Page) setFreeEnd(v uint32)   { binary.LittleEndian.PutUint32(p.Data[8:12], v) }

// Init zero-initializes a freshly allocated page, stamping its own page
// number and marking it as the tail of a chain (next = -1) until linked.
func (p *Page) Init(pageNo int32) {
	p.setSlotCount(0)
	p.setFreeStart(DPFIXED)
	p.setFreeEnd(uint32(len(p.Data)))
	p.SetNextPage(-1)
	binary.LittleEndian.PutUint32(p.Data[16:20], uint32(pageNo))
}

// PageNo returns the page number stamped by Init.
func (p *Page) PageNo() int32 {
	return int32(binary.LittleEndian.Uint32(p.Data[16:20]))
}

// GetNextPage returns the forward-link page number, or -1 for the tail page.
func (p *Page) GetNextPage() int32 {
	return int32(binary.LittleEndian.Uint32(p.Data[12:16]))
}

// SetNextPage sets the forward-link page number.
func (p *Page) SetNextPage(pageNo int32) {
	binary.LittleEndian.PutUint32(p.Data[12:16], uint32(pageNo))
}

func (p *Page) freeSpace() int {
	return int(p.freeEnd()) - int(p.freeStart()) - int(p.slotCount())*slotEntrySize
}

func slotPos(pageLen int, i uint32) int {
	return pageLen - int(i+1)*slotEntrySize
}

func (p *Page) getSlot(i uint32) (off, ln uint32, err error) {
	if i >= p.slotCount() {
		return 0, 0, errors.Errorf("heap: slot %d out of range", i)
	}
	pos := slotPos(len(p.Data), i)
	off = binary.LittleEndian.Uint32(p.Data[pos : pos+4])
	ln = binary.LittleEndian.Uint32(p.Data[pos+4 : pos+8])
	return off, ln, nil
}

func (p *Page) setSlot(i, off, ln uint32) {
	pos := slotPos(len(p.Data), i)
	binary.LittleEndian.PutUint32(p.Data[pos:pos+4], off)
	binary.LittleEndian.PutUint32(p.Data[pos+4:pos+8], ln)
}

// FirstRecord returns the RID of the first live slot on the page, or
// ErrNoRecords if the page holds none.
func (p *Page) FirstRecord() (RID, error) {
	sc := p.slotCount()
	for i := uint32(0); i < sc; i++ {
		_, ln, _ := p.getSlot(i)
		if ln != deletedLen {
			return RID{PageNo: p.PageNo(), SlotNo: int32(i)}, nil
		}
	}
	return NULLRID, ErrNoRecords
}

// NextRecord returns the RID of the next live slot after cur on the page,
// or ErrEndOfPage once the directory is exhausted. A cur that refers to an
// already-deleted slot is accepted: the search still resumes at
// cur.SlotNo+1.
func (p *Page) NextRecord(cur RID) (RID, error) {
	sc := p.slotCount()
	for i := cur.SlotNo + 1; i < int32(sc); i++ {
		_, ln, _ := p.getSlot(uint32(i))
		if ln != deletedLen {
			return RID{PageNo: p.PageNo(), SlotNo: i}, nil
		}
	}
	return NULLRID, ErrEndOfPage
}

// GetRecord returns the record bytes stored at rid, aliasing the pinned
// frame's buffer directly. A caller that mutates the returned slice is
// writing straight into the frame and must call MarkDirty (HeapFileScan) so
// the write survives eviction.
func (p *Page) GetRecord(rid RID) ([]byte, error) {
	if rid.SlotNo < 0 || uint32(rid.SlotNo) >= p.slotCount() {
		return nil, ErrNoRecords
	}
	off, ln, _ := p.getSlot(uint32(rid.SlotNo))
	if ln == deletedLen {
		return nil, ErrNoRecords
	}
	return p.Data[off : off+ln : off+ln], nil
}

// InsertRecord appends rec to the page's payload region and allocates it a
// new slot, returning ErrNoSpace if the page cannot hold it.
func (p *Page) InsertRecord(rec []byte) (RID, error) {
	req := len(rec) + slotEntrySize
	if p.freeSpace() < req {
		return NULLRID, ErrNoSpace
	}
	fs := p.freeStart()
	copy(p.Data[fs:], rec)
	slotID := p.slotCount()
	p.setSlot(slotID, fs, uint32(len(rec)))
	p.setSlotCount(slotID + 1)
	p.setFreeStart(fs + uint32(len(rec)))
	p.setFreeEnd(p.freeEnd() - slotEntrySize)
	return RID{PageNo: p.PageNo(), SlotNo: int32(slotID)}, nil
}

// DeleteRecord marks rid's slot as deleted. The payload bytes are left in
// place (no compaction); only the slot's length is cleared.
func (p *Page) DeleteRecord(rid RID) error {
	if rid.SlotNo < 0 || uint32(rid.SlotNo) >= p.slotCount() {
		return ErrNoRecords
	}
	off, ln, _ := p.getSlot(uint32(rid.SlotNo))
	if ln == deletedLen {
		return ErrNoRecords
	}
	p.setSlot(uint32(rid.SlotNo), off, deletedLen)
	return nil
}

// FileHdrPage is a view over the header page (always page 0 of a heap
// file): the stored file name and the page-chain bookkeeping counters.
type FileHdrPage struct {
	Data []byte
}

func NewFileHdrPage(data []byte) *FileHdrPage { return &FileHdrPage{Data: data} }

// layout: fileName [MAXNAMESIZE]byte | recCnt int32 | pageCnt int32 | firstPage int32 | lastPage int32
const (
	hdrNameOff      = 0
	hdrRecCntOff    = MAXNAMESIZE
	hdrPageCntOff   = hdrRecCntOff + 4
	hdrFirstPageOff = hdrPageCntOff + 4
	hdrLastPageOff  = hdrFirstPageOff + 4
)

// Init clears the name field and stores fileName, truncated to
// MAXNAMESIZE, then resets the counters: recCnt and pageCnt to 0,
// firstPage and lastPage to -1. The rest of the page is left untouched.
func (h *FileHdrPage) Init(fileName string) {
	for i := range h.Data[:MAXNAMESIZE] {
		h.Data[i] = 0
	}
	name := []byte(fileName)
	if len(name) > MAXNAMESIZE {
		name = name[:MAXNAMESIZE]
	}
	copy(h.Data[hdrNameOff:], name)
	h.SetRecCnt(0)
	h.SetPageCnt(0)
	h.SetFirstPage(-1)
	h.SetLastPage(-1)
}

// FileName returns the stored, NUL-trimmed file name.
func (h *FileHdrPage) FileName() string {
	raw := h.Data[hdrNameOff : hdrNameOff+MAXNAMESIZE]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return string(raw)
}

func (h *FileHdrPage) RecCnt() int32 {
	return int32(binary.LittleEndian.Uint32(h.Data[hdrRecCntOff:]))
}
func (h *FileHdrPage) SetRecCnt(v int32) {
	binary.LittleEndian.PutUint32(h.Data[hdrRecCntOff:], uint32(v))
}
func (h *FileHdrPage) PageCnt() int32 {
	return int32(binary.LittleEndian.Uint32(h.Data[hdrPageCntOff:]))
}
func (h *FileHdrPage) SetPageCnt(v int32) {
	binary.LittleEndian.PutUint32(h.Data[hdrPageCntOff:], uint32(v))
}
func (h *FileHdrPage) FirstPage() int32 {
	return int32(binary.LittleEndian.Uint32(h.Data[hdrFirstPageOff:]))
}
func (h *FileHdrPage) SetFirstPage(v int32) {
	binary.LittleEndian.PutUint32(h.Data[hdrFirstPageOff:], uint32(v))
}
func (h *FileHdrPage) LastPage() int32 {
	return int32(binary.LittleEndian.Uint32(h.Data[hdrLastPageOff:]))
}
func (h *FileHdrPage) SetLastPage(v int32) {
	binary.LittleEndian.PutUint32(h.Data[hdrLastPageOff:], uint32(v))
}
