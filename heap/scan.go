package heap

import (
	"github.com/rs/zerolog"

	"heapstore/buffer"
	"heapstore/config"
)

type scanState int

const (
	scanFresh scanState = iota
	scanPositioned
	scanExhausted
)

// HeapFileScan specializes HeapFile with a typed single-attribute
// predicate, sequentially yielding the RIDs of matching records through a
// resumable, mark/reset-able cursor.
type HeapFileScan struct {
	*HeapFile
	state        scanState
	f            filter
	markedPageNo int32
	markedRec    RID
}

// OpenHeapFileScan opens fileName for scanning. Unlike Open, it does not
// pin a data page up front — the cursor starts Fresh and pins the first
// data page lazily on the first ScanNext call.
func OpenHeapFileScan(cfg *config.Config, bm *buffer.Manager, fileName string, logger zerolog.Logger) (*HeapFileScan, error) {
	hf, err := openBase(cfg, bm, fileName, logger, false)
	if err != nil {
		return nil, err
	}
	return &HeapFileScan{HeapFile: hf, state: scanFresh, markedPageNo: -1, markedRec: NULLRID}, nil
}

// StartScan installs a scan predicate. filterBytes == nil clears any
// filter (every record matches). Otherwise offset, length, typ, and op
// are validated; any violation returns ErrBadScanParm.
func (hfs *HeapFileScan) StartScan(offset, length int, typ AttrType, filterBytes []byte, op CompOp) error {
	if filterBytes == nil {
		hfs.f = filter{}
		return nil
	}
	if offset < 0 || length < 1 || !validAttrType(typ) || !validCompOp(op) {
		return ErrBadScanParm
	}
	if typ == AttrInteger && length != 4 {
		return ErrBadScanParm
	}
	if typ == AttrFloat && length != 4 {
		return ErrBadScanParm
	}
	hfs.f = filter{active: true, offset: offset, length: length, typ: typ, value: filterBytes, op: op}
	return nil
}

// ScanNext advances the cursor to the next matching record and returns
// its RID, or ErrFileEOF once the chain is exhausted.
func (hfs *HeapFileScan) ScanNext() (RID, error) {
	switch hfs.state {
	case scanExhausted:
		return NULLRID, ErrFileEOF
	case scanFresh:
		first := hfs.header.FirstPage()
		if first == -1 {
			hfs.state = scanExhausted
			return NULLRID, ErrFileEOF
		}
		data, err := hfs.bm.ReadPage(hfs.file, first)
		if err != nil {
			return NULLRID, err
		}
		hfs.curPageNo = first
		hfs.curPage = NewPage(data)
		hfs.curDirty = false
		hfs.curRec = NULLRID

		rid, err := hfs.curPage.FirstRecord()
		if err == ErrNoRecords {
			uerr := hfs.bm.UnpinPage(hfs.file, first, hfs.curDirty)
			hfs.curPage = nil
			hfs.curPageNo = -1
			hfs.state = scanExhausted
			if uerr != nil {
				return NULLRID, uerr
			}
			return NULLRID, ErrFileEOF
		}
		if err != nil {
			return NULLRID, err
		}
		hfs.curRec = rid
		hfs.state = scanPositioned
		rec, err := hfs.curPage.GetRecord(rid)
		if err != nil {
			return NULLRID, err
		}
		if hfs.f.matches(rec) {
			return rid, nil
		}
		return hfs.advance()
	default: // scanPositioned
		return hfs.advance()
	}
}

// advance implements step 3 of the scanNext algorithm: walk forward from
// the current record, crossing page boundaries as needed, until a
// matching record is found or the chain is exhausted.
func (hfs *HeapFileScan) advance() (RID, error) {
	for {
		nextRid, err := hfs.curPage.NextRecord(hfs.curRec)
		if err == nil {
			hfs.curRec = nextRid
			rec, gerr := hfs.curPage.GetRecord(nextRid)
			if gerr != nil {
				return NULLRID, gerr
			}
			if hfs.f.matches(rec) {
				return nextRid, nil
			}
			continue
		}
		if err != ErrEndOfPage && err != ErrNoRecords {
			return NULLRID, err
		}

		nextPageNo := hfs.curPage.GetNextPage()
		if nextPageNo == -1 {
			hfs.state = scanExhausted
			return NULLRID, ErrFileEOF
		}
		if uerr := hfs.bm.UnpinPage(hfs.file, hfs.curPageNo, hfs.curDirty); uerr != nil {
			hfs.curPage = nil
			hfs.curPageNo = -1
			return NULLRID, uerr
		}
		hfs.curPage = nil
		data, rerr := hfs.bm.ReadPage(hfs.file, nextPageNo)
		if rerr != nil {
			hfs.curPageNo = -1
			return NULLRID, rerr
		}
		hfs.curPageNo = nextPageNo
		hfs.curPage = NewPage(data)
		hfs.curDirty = false
		hfs.curRec = NULLRID

		rid, ferr := hfs.curPage.FirstRecord()
		if ferr == ErrNoRecords {
			continue
		}
		if ferr != nil {
			return NULLRID, ferr
		}
		hfs.curRec = rid
		rec, gerr := hfs.curPage.GetRecord(rid)
		if gerr != nil {
			return NULLRID, gerr
		}
		if hfs.f.matches(rec) {
			return rid, nil
		}
	}
}

// MarkScan snapshots the current cursor position so a later ResetScan can
// return to it.
func (hfs *HeapFileScan) MarkScan() {
	hfs.markedPageNo = hfs.curPageNo
	hfs.markedRec = hfs.curRec
}

// ResetScan restores the cursor to the last MarkScan snapshot, re-pinning
// the marked page only if it differs from the currently pinned one.
func (hfs *HeapFileScan) ResetScan() error {
	if hfs.markedPageNo != hfs.curPageNo {
		if hfs.curPage != nil {
			if err := hfs.bm.UnpinPage(hfs.file, hfs.curPageNo, hfs.curDirty); err != nil {
				hfs.curPage = nil
				hfs.curPageNo = -1
				return err
			}
		}
		data, err := hfs.bm.ReadPage(hfs.file, hfs.markedPageNo)
		if err != nil {
			hfs.curPage = nil
			hfs.curPageNo = -1
			return err
		}
		hfs.curPageNo = hfs.markedPageNo
		hfs.curPage = NewPage(data)
		hfs.curDirty = false
	}
	hfs.curRec = hfs.markedRec
	hfs.state = scanPositioned
	return nil
}

// GetRecord returns the record at the cursor's current position, leaving
// the current page pinned.
func (hfs *HeapFileScan) GetRecord() ([]byte, error) {
	return hfs.curPage.GetRecord(hfs.curRec)
}

// DeleteRecord deletes the slot at the cursor's current position and
// decrements the file's live record count. The cursor itself does not
// move; the next ScanNext begins from the deleted id.
func (hfs *HeapFileScan) DeleteRecord() error {
	if err := hfs.curPage.DeleteRecord(hfs.curRec); err != nil {
		return err
	}
	hfs.curDirty = true
	hfs.header.SetRecCnt(hfs.header.RecCnt() - 1)
	hfs.hdrDirty = true
	return nil
}

// MarkDirty flags the current page dirty, for callers that mutate a
// record in place through the buffer returned by GetRecord.
func (hfs *HeapFileScan) MarkDirty() {
	hfs.curDirty = true
}

// EndScan unpins the current page, if any, honoring its dirty flag, and
// clears the current-page state. Idempotent.
func (hfs *HeapFileScan) EndScan() error {
	return hfs.releaseCurrent(hfs.curDirty)
}

// Close ends the scan and releases the header page and underlying file.
// Errors are logged, not propagated.
func (hfs *HeapFileScan) Close() {
	if err := hfs.EndScan(); err != nil {
		hfs.log.Error().Err(err).Str("file", hfs.file.Name()).Msg("end scan failed during teardown")
	}
	hfs.releaseHeaderAndFile()
}
