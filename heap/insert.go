package heap

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"heapstore/buffer"
	"heapstore/config"
)

// InsertFileScan specializes HeapFile for append-only insertion: it tracks
// the tail page and allocates a fresh one, linking it into the chain,
// whenever the tail cannot hold the next record.
type InsertFileScan struct {
	*HeapFile
}

// OpenInsertFileScan opens fileName for insertion. The header page and
// the chain's first data page are pinned immediately, as for a plain
// HeapFile handle.
func OpenInsertFileScan(cfg *config.Config, bm *buffer.Manager, fileName string, logger zerolog.Logger) (*InsertFileScan, error) {
	hf, err := openBase(cfg, bm, fileName, logger, true)
	if err != nil {
		return nil, err
	}
	return &InsertFileScan{HeapFile: hf}, nil
}

// ensureAtLastPage re-pins the current page to headerPage.lastPage if it
// is not already there — the case the first InsertRecord call on a
// multi-page file always hits, since the base constructor pinned
// firstPage, not lastPage.
func (ifs *InsertFileScan) ensureAtLastPage() error {
	last := ifs.header.LastPage()
	if ifs.curPageNo == last {
		return nil
	}
	if ifs.curPage != nil {
		if err := ifs.bm.UnpinPage(ifs.file, ifs.curPageNo, ifs.curDirty); err != nil {
			ifs.curPage = nil
			ifs.curPageNo = -1
			return err
		}
	}
	data, err := ifs.bm.ReadPage(ifs.file, last)
	if err != nil {
		ifs.curPage = nil
		ifs.curPageNo = -1
		return err
	}
	ifs.curPageNo = last
	ifs.curPage = NewPage(data)
	ifs.curDirty = false
	return nil
}

// InsertRecord appends rec to the heap file, allocating and linking a
// fresh tail page if the current tail has no room.
func (ifs *InsertFileScan) InsertRecord(rec []byte) (RID, error) {
	if len(rec) > ifs.pageSize-DPFIXED {
		return NULLRID, ErrInvalidRecLen
	}
	if err := ifs.ensureAtLastPage(); err != nil {
		return NULLRID, err
	}

	rid, err := ifs.curPage.InsertRecord(rec)
	if err == nil {
		ifs.header.SetRecCnt(ifs.header.RecCnt() + 1)
		ifs.hdrDirty = true
		ifs.curDirty = true
		return rid, nil
	}
	if err != ErrNoSpace {
		return NULLRID, err
	}

	newPageNo, newData, err := ifs.bm.AllocPage(ifs.file)
	if err != nil {
		return NULLRID, errors.Wrap(err, "heap: allocate new tail page")
	}
	newPage := NewPage(newData)
	newPage.Init(newPageNo)

	ifs.curPage.SetNextPage(newPageNo)
	oldPageNo := ifs.curPageNo
	if err := ifs.bm.UnpinPage(ifs.file, oldPageNo, true); err != nil {
		if uerr := ifs.bm.UnpinPage(ifs.file, newPageNo, true); uerr != nil {
			ifs.log.Error().Err(uerr).Str("file", ifs.file.Name()).Msg("unpin freshly allocated page failed on error path")
		}
		ifs.curPage = nil
		ifs.curPageNo = -1
		return NULLRID, err
	}

	ifs.header.SetLastPage(newPageNo)
	ifs.header.SetPageCnt(ifs.header.PageCnt() + 1)
	ifs.hdrDirty = true

	ifs.curPage = newPage
	ifs.curPageNo = newPageNo
	ifs.curDirty = true

	rid, err = ifs.curPage.InsertRecord(rec)
	if err != nil {
		return NULLRID, errors.Wrap(err, "heap: insert into freshly allocated page")
	}
	ifs.header.SetRecCnt(ifs.header.RecCnt() + 1)
	return rid, nil
}

// Close unpins the current data page — always treated as dirty, since any
// insert may have mutated it — then releases the header page and file.
func (ifs *InsertFileScan) Close() {
	if err := ifs.releaseCurrent(true); err != nil {
		ifs.log.Error().Err(err).Str("file", ifs.file.Name()).Msg("unpin current page failed during teardown")
	}
	ifs.releaseHeaderAndFile()
}
