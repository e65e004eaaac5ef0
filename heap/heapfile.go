package heap

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"heapstore/buffer"
	"heapstore/config"
	"heapstore/disk"
)

// CreateHeapFile creates a new heap file: the underlying File, a
// zero-initialized header page naming it, and a single empty data page
// that becomes both the first and last page of the chain. The buffer
// pool is flushed for this file and the file is closed before returning.
func CreateHeapFile(cfg *config.Config, bm *buffer.Manager, fileName string) error {
	f, err := disk.CreateFile(cfg, fileName)
	if err != nil {
		if err == disk.ErrFileExists {
			return ErrFileExists
		}
		return err
	}

	hdrPageNo, hdrData, err := bm.AllocPage(f)
	if err != nil {
		f.Close()
		return errors.Wrap(err, "heap: create header page")
	}
	hdr := NewFileHdrPage(hdrData)
	hdr.Init(fileName)

	dataPageNo, dataData, err := bm.AllocPage(f)
	if err != nil {
		bm.UnpinPage(f, hdrPageNo, true)
		f.Close()
		return errors.Wrap(err, "heap: create first data page")
	}
	page := NewPage(dataData)
	page.Init(dataPageNo)

	hdr.SetRecCnt(0)
	hdr.SetPageCnt(1)
	hdr.SetFirstPage(dataPageNo)
	hdr.SetLastPage(dataPageNo)

	if err := bm.UnpinPage(f, dataPageNo, true); err != nil {
		bm.UnpinPage(f, hdrPageNo, true)
		f.Close()
		return errors.Wrap(err, "heap: unpin first data page")
	}
	if err := bm.UnpinPage(f, hdrPageNo, true); err != nil {
		f.Close()
		return errors.Wrap(err, "heap: unpin header page")
	}
	if err := bm.FlushFile(f); err != nil {
		f.Close()
		return errors.Wrap(err, "heap: flush new file")
	}
	return f.Close()
}

// DestroyHeapFile removes a heap file from disk. The file layer refuses
// the request if the file is still open in this process.
func DestroyHeapFile(cfg *config.Config, fileName string) error {
	return disk.DestroyFile(cfg, fileName)
}

// HeapFile is the base handle on an open heap file: the header page is
// pinned for the handle's entire lifetime, alongside at most one "current"
// data page.
type HeapFile struct {
	cfg      *config.Config
	bm       *buffer.Manager
	file     *disk.File
	log      zerolog.Logger
	pageSize int

	headerPageNo int32
	header       *FileHdrPage
	hdrDirty     bool

	curPageNo int32
	curPage   *Page
	curDirty  bool
	curRec    RID
}

// openBase opens fileName and pins its header page. When pinFirst is true
// it additionally pins the chain's first data page as the current page
// (the HeapFile/InsertFileScan behavior); HeapFileScan instead starts with
// no current page pinned (the Fresh scan state).
func openBase(cfg *config.Config, bm *buffer.Manager, fileName string, logger zerolog.Logger, pinFirst bool) (*HeapFile, error) {
	f, err := disk.OpenFile(cfg, fileName)
	if err != nil {
		return nil, err
	}

	hdrPageNo := f.GetFirstPage()
	hdrData, err := bm.ReadPage(f, hdrPageNo)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "heap: pin header page")
	}
	hdr := NewFileHdrPage(hdrData)

	hf := &HeapFile{
		cfg:          cfg,
		bm:           bm,
		file:         f,
		log:          logger,
		pageSize:     cfg.PageSize,
		headerPageNo: hdrPageNo,
		header:       hdr,
		curPageNo:    -1,
		curRec:       NULLRID,
	}

	if pinFirst {
		firstPage := hdr.FirstPage()
		data, err := bm.ReadPage(f, firstPage)
		if err != nil {
			bm.UnpinPage(f, hdrPageNo, false)
			f.Close()
			return nil, errors.Wrap(err, "heap: pin first data page")
		}
		hf.curPageNo = firstPage
		hf.curPage = NewPage(data)
	}

	return hf, nil
}

// Open opens an existing heap file, pinning its header page and its first
// data page as current.
func Open(cfg *config.Config, bm *buffer.Manager, fileName string, logger zerolog.Logger) (*HeapFile, error) {
	return openBase(cfg, bm, fileName, logger, true)
}

// releaseCurrent unpins the current data page, if any, with the given
// dirty flag, and clears current-page state. On an unpin failure the
// current-page pointer is cleared regardless, since the handle can no
// longer trust that it still holds the pin.
func (hf *HeapFile) releaseCurrent(dirty bool) error {
	if hf.curPage == nil {
		return nil
	}
	pageNo := hf.curPageNo
	hf.curPage = nil
	hf.curPageNo = -1
	hf.curRec = NULLRID
	if err := hf.bm.UnpinPage(hf.file, pageNo, dirty); err != nil {
		return err
	}
	return nil
}

func (hf *HeapFile) releaseHeaderAndFile() {
	if err := hf.bm.UnpinPage(hf.file, hf.headerPageNo, hf.hdrDirty); err != nil {
		hf.log.Error().Err(err).Str("file", hf.file.Name()).Msg("unpin header page failed during teardown")
	}
	if err := hf.bm.FlushFile(hf.file); err != nil {
		hf.log.Error().Err(err).Str("file", hf.file.Name()).Msg("flush file failed during teardown")
	}
	if err := hf.file.Close(); err != nil {
		hf.log.Error().Err(err).Str("file", hf.file.Name()).Msg("close file failed during teardown")
	}
}

// Close unpins the current data page (if any) and the header page, flushes
// the file's dirty frames to disk, and closes the underlying file. Errors
// are logged, not propagated.
func (hf *HeapFile) Close() {
	if err := hf.releaseCurrent(hf.curDirty); err != nil {
		hf.log.Error().Err(err).Str("file", hf.file.Name()).Msg("unpin current page failed during teardown")
	}
	hf.releaseHeaderAndFile()
}

// GetRecCnt returns the header page's live record count.
func (hf *HeapFile) GetRecCnt() int32 { return hf.header.RecCnt() }

// GetRecord fetches the record at rid, re-pinning the current page if rid
// lives on a different page than the one currently pinned.
func (hf *HeapFile) GetRecord(rid RID) ([]byte, error) {
	if rid.PageNo != hf.curPageNo {
		if err := hf.releaseCurrent(hf.curDirty); err != nil {
			return nil, err
		}
		data, err := hf.bm.ReadPage(hf.file, rid.PageNo)
		if err != nil {
			return nil, err
		}
		hf.curPageNo = rid.PageNo
		hf.curPage = NewPage(data)
		hf.curDirty = false
	}
	rec, err := hf.curPage.GetRecord(rid)
	if err != nil {
		return nil, err
	}
	hf.curRec = rid
	return rec, nil
}
