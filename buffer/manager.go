// Package buffer implements the shared buffer pool every heap file handle
// pins pages through: a fixed number of frames, pin-counted and
// dirty-flagged, replaced by an LRU or MRU policy when the pool is full.
package buffer

import (
	"container/list"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"heapstore/config"
	"heapstore/disk"
)

// Policy selects which pin-free frame is evicted first when the pool is full.
type Policy string

const (
	PolicyLRU Policy = "LRU"
	PolicyMRU Policy = "MRU"
)

type frameKey struct {
	file   *disk.File
	pageNo int32
}

// Frame is one buffer pool slot: the page bytes currently resident in it,
// plus the pin/dirty bookkeeping the heap file layer relies on.
type Frame struct {
	key      frameKey
	Data     []byte
	PinCount int
	Dirty    bool
	token    uuid.UUID
}

// Manager is the process-wide pool of page frames shared by every open
// heap file handle.
type Manager struct {
	mu     sync.Mutex
	frames []*Frame
	policy Policy
	repl   *list.List
	lookup map[frameKey]*list.Element
	log    zerolog.Logger
}

// NewManager constructs a Manager sized per cfg.BMBufferCount, logging
// through logger.
func NewManager(cfg *config.Config, logger zerolog.Logger) *Manager {
	policy := Policy(cfg.BMPolicy)
	if policy != PolicyLRU && policy != PolicyMRU {
		policy = PolicyLRU
	}
	count := cfg.BMBufferCount
	if count <= 0 {
		count = 16
	}
	bm := &Manager{
		frames: make([]*Frame, count),
		policy: policy,
		repl:   list.New(),
		lookup: make(map[frameKey]*list.Element),
		log:    logger,
	}
	for i := range bm.frames {
		bm.frames[i] = &Frame{Data: make([]byte, cfg.PageSize)}
	}
	return bm
}

// SetPolicy switches the eviction policy at runtime.
func (bm *Manager) SetPolicy(policy Policy) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.policy = policy
}

func (bm *Manager) touch(el *list.Element) {
	bm.repl.MoveToBack(el)
}

// victim returns the first pin-free frame in eviction order (least recently
// used first for LRU, most recently used first for MRU), or nil if every
// frame is pinned.
func (bm *Manager) victim() *list.Element {
	if bm.policy == PolicyLRU {
		for el := bm.repl.Front(); el != nil; el = el.Next() {
			if el.Value.(*Frame).PinCount == 0 {
				return el
			}
		}
		return nil
	}
	for el := bm.repl.Back(); el != nil; el = el.Prev() {
		if el.Value.(*Frame).PinCount == 0 {
			return el
		}
	}
	return nil
}

// AllocPage allocates a fresh page on file, pins it, and returns its page
// number along with the (zero-filled) frame buffer backing it.
func (bm *Manager) AllocPage(file *disk.File) (int32, []byte, error) {
	pageNo, err := file.AllocatePage()
	if err != nil {
		return 0, nil, errors.Wrap(err, "buffer: allocate page")
	}
	fr, err := bm.pin(file, pageNo, true)
	if err != nil {
		return 0, nil, err
	}
	return pageNo, fr.Data, nil
}

// ReadPage pins the page at pageNo, faulting it in from disk if it is not
// already resident, and returns the frame buffer backing it.
func (bm *Manager) ReadPage(file *disk.File, pageNo int32) ([]byte, error) {
	fr, err := bm.pin(file, pageNo, false)
	if err != nil {
		return nil, err
	}
	return fr.Data, nil
}

// pin returns the frame for (file, pageNo), incrementing its pin count. If
// the page is not cached, a free or evicted frame is loaded from disk,
// unless fresh is true, in which case the frame is zero-filled in place
// (the page was just allocated and has no prior disk contents worth
// reading back).
func (bm *Manager) pin(file *disk.File, pageNo int32, fresh bool) (*Frame, error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	key := frameKey{file: file, pageNo: pageNo}
	if el, ok := bm.lookup[key]; ok {
		bm.touch(el)
		fr := el.Value.(*Frame)
		fr.PinCount++
		return fr, nil
	}

	for _, fr := range bm.frames {
		if fr.PinCount == 0 && fr.key.file == nil {
			if err := bm.load(fr, key, fresh); err != nil {
				return nil, err
			}
			el := bm.repl.PushBack(fr)
			bm.lookup[key] = el
			return fr, nil
		}
	}

	el := bm.victim()
	if el == nil {
		return nil, errors.New("buffer: no frame available to evict")
	}
	fr := el.Value.(*Frame)
	if fr.PinCount != 0 {
		return nil, errors.New("buffer: all frames pinned")
	}
	if fr.Dirty {
		if err := fr.key.file.WritePageRaw(fr.key.pageNo, fr.Data); err != nil {
			return nil, errors.Wrap(err, "buffer: evict dirty frame")
		}
		bm.log.Debug().
			Str("file", fr.key.file.Name()).
			Int32("page", fr.key.pageNo).
			Msg("evicted dirty frame, wrote back")
	}
	delete(bm.lookup, fr.key)
	if err := bm.load(fr, key, fresh); err != nil {
		return nil, err
	}
	bm.touch(el)
	bm.lookup[key] = el
	return fr, nil
}

func (bm *Manager) load(fr *Frame, key frameKey, fresh bool) error {
	if fresh {
		for i := range fr.Data {
			fr.Data[i] = 0
		}
	} else {
		data, err := key.file.ReadPageRaw(key.pageNo)
		if err != nil {
			return errors.Wrap(err, "buffer: read page")
		}
		copy(fr.Data, data)
	}
	fr.key = key
	fr.PinCount = 1
	fr.Dirty = false
	fr.token = uuid.New()
	bm.log.Debug().
		Str("pin_token", fr.token.String()).
		Str("file", key.file.Name()).
		Int32("page", key.pageNo).
		Msg("page pinned")
	return nil
}

// UnpinPage releases one pin on (file, pageNo). dirty is OR'd into the
// frame's sticky dirty flag — once set it stays set until the frame is
// flushed or evicted.
func (bm *Manager) UnpinPage(file *disk.File, pageNo int32, dirty bool) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	key := frameKey{file: file, pageNo: pageNo}
	el, ok := bm.lookup[key]
	if !ok {
		return errors.Errorf("buffer: page (%s,%d) not pinned", file.Name(), pageNo)
	}
	fr := el.Value.(*Frame)
	if fr.PinCount == 0 {
		return errors.Errorf("buffer: page (%s,%d) already unpinned", file.Name(), pageNo)
	}
	fr.PinCount--
	if dirty {
		fr.Dirty = true
	}
	return nil
}

// FlushFile writes every dirty frame belonging to file back to disk and
// forces the file to stable storage. Frames remain resident (and pinned,
// if still pinned) afterward — only their dirty flag is cleared.
func (bm *Manager) FlushFile(file *disk.File) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	for _, fr := range bm.frames {
		if fr.key.file != file || !fr.Dirty {
			continue
		}
		if err := file.WritePageRaw(fr.key.pageNo, fr.Data); err != nil {
			return errors.Wrap(err, "buffer: flush frame")
		}
		fr.Dirty = false
	}
	return file.Sync()
}

// EvictFile drops every unpinned frame belonging to file from the pool
// without writing anything back; dirty contents of those frames are
// discarded. Nothing in this module calls it — DestroyHeapFile does not
// evict the destroyed file's frames.
func (bm *Manager) EvictFile(file *disk.File) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	for _, fr := range bm.frames {
		if fr.key.file != file || fr.PinCount != 0 {
			continue
		}
		if el, ok := bm.lookup[fr.key]; ok {
			bm.repl.Remove(el)
			delete(bm.lookup, fr.key)
		}
		fr.key = frameKey{}
		fr.Dirty = false
	}
}
