// Package catalog implements a thin named-heap-file registry: enough
// bookkeeping to hand a caller the right heap file handle by name,
// persisted as a simple JSON list of known names.
package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"heapstore/buffer"
	"heapstore/config"
	"heapstore/heap"
)

const saveFileName = "catalog.json"

// Catalog tracks the set of heap files known to a database directory and
// opens handles against them through a shared buffer pool.
type Catalog struct {
	cfg *config.Config
	bm  *buffer.Manager
	log zerolog.Logger

	mu    sync.Mutex
	names map[string]bool
}

// New constructs a Catalog over cfg's database directory, loading any
// previously persisted name set.
func New(cfg *config.Config, bm *buffer.Manager, logger zerolog.Logger) (*Catalog, error) {
	c := &Catalog{cfg: cfg, bm: bm, log: logger, names: make(map[string]bool)}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) savePath() string {
	return filepath.Join(c.cfg.DBPath, saveFileName)
}

func (c *Catalog) load() error {
	data, err := os.ReadFile(c.savePath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "catalog: read save file")
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return errors.Wrap(err, "catalog: parse save file")
	}
	for _, n := range names {
		c.names[n] = true
	}
	return nil
}

func (c *Catalog) save() error {
	names := c.listLocked()
	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return errors.Wrap(err, "catalog: encode save file")
	}
	if err := os.MkdirAll(c.cfg.DBPath, 0o755); err != nil {
		return errors.Wrap(err, "catalog: create db directory")
	}
	if err := os.WriteFile(c.savePath(), data, 0o644); err != nil {
		c.log.Error().Err(err).Str("path", c.savePath()).Msg("catalog: failed to persist save file")
		return errors.Wrap(err, "catalog: write save file")
	}
	return nil
}

func (c *Catalog) listLocked() []string {
	names := make([]string, 0, len(c.names))
	for n := range c.names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// List returns the known heap file names, sorted.
func (c *Catalog) List() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listLocked()
}

// Create creates a new heap file named name and registers it.
func (c *Catalog) Create(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.names[name] {
		return heap.ErrFileExists
	}
	if err := heap.CreateHeapFile(c.cfg, c.bm, name); err != nil {
		return err
	}
	c.names[name] = true
	return c.save()
}

// Destroy destroys a registered heap file and removes it from the catalog.
func (c *Catalog) Destroy(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.names[name] {
		return errors.Errorf("catalog: unknown heap file %q", name)
	}
	if err := heap.DestroyHeapFile(c.cfg, name); err != nil {
		return err
	}
	delete(c.names, name)
	return c.save()
}

// Open opens a plain HeapFile handle on a registered heap file.
func (c *Catalog) Open(name string) (*heap.HeapFile, error) {
	if err := c.requireKnown(name); err != nil {
		return nil, err
	}
	return heap.Open(c.cfg, c.bm, name, c.log)
}

// OpenScan opens a HeapFileScan handle on a registered heap file.
func (c *Catalog) OpenScan(name string) (*heap.HeapFileScan, error) {
	if err := c.requireKnown(name); err != nil {
		return nil, err
	}
	return heap.OpenHeapFileScan(c.cfg, c.bm, name, c.log)
}

// OpenInsert opens an InsertFileScan handle on a registered heap file.
func (c *Catalog) OpenInsert(name string) (*heap.InsertFileScan, error) {
	if err := c.requireKnown(name); err != nil {
		return nil, err
	}
	return heap.OpenInsertFileScan(c.cfg, c.bm, name, c.log)
}

func (c *Catalog) requireKnown(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.names[name] {
		return errors.Errorf("catalog: unknown heap file %q", name)
	}
	return nil
}
