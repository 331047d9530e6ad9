package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
)

// DiskCacheVersion is bumped whenever Key changes layout.
const DiskCacheVersion = 1

// DiskCacheExt is the file extension of pipeline cache files.
const DiskCacheExt = ".pcache"

// ErrLoadCancelled is returned when a load was stopped through its flag.
var ErrLoadCancelled = errors.New("pipeline: disk cache load cancelled")

// ErrVersionMismatch is returned for cache files of another version.
var ErrVersionMismatch = errors.New("pipeline: disk cache version mismatch")

// LoadStage is the phase reported to a LoadCallback.
type LoadStage uint8

const (
	LoadPrepare LoadStage = iota
	LoadBuild
	LoadComplete
)

func (s LoadStage) String() string {
	switch s {
	case LoadPrepare:
		return "prepare"
	case LoadBuild:
		return "build"
	case LoadComplete:
		return "complete"
	default:
		return fmt.Sprintf("LoadStage(%d)", uint8(s))
	}
}

// LoadCallback reports load progress. It may be called from worker
// goroutines.
type LoadCallback func(stage LoadStage, done, total int)

// DiskCache is the on-disk form of a pipeline cache.
type DiskCache struct {
	Version   uint32 `msgpack:"version"`
	ProgramID uint64 `msgpack:"program_id"`
	Entries   []Key  `msgpack:"entries"`
}

// DiskCachePath returns the cache file of a program inside dir.
func DiskCachePath(dir string, programID uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%016x%s", programID, DiskCacheExt))
}

// ReadDiskCache decodes a cache file.
func ReadDiskCache(path string) (*DiskCache, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("pipeline: %s: %w", path, err)
	}
	defer zr.Close()

	var dc DiskCache
	if err := msgpack.NewDecoder(zr).Decode(&dc); err != nil {
		return nil, fmt.Errorf("pipeline: decode %s: %w", path, err)
	}
	if dc.Version != DiskCacheVersion {
		return nil, fmt.Errorf("%w: %s has %d, want %d", ErrVersionMismatch, path, dc.Version, DiskCacheVersion)
	}
	return &dc, nil
}

// WriteDiskCache encodes dc to path, replacing the file atomically.
func WriteDiskCache(path string, dc *DiskCache) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	zw, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return err
	}
	if err := msgpack.NewEncoder(zw).Encode(dc); err != nil {
		zw.Close()
		tmp.Close()
		return fmt.Errorf("pipeline: encode %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// SetProgramID selects the title whose disk cache is loaded and saved.
func (c *Cache) SetProgramID(id uint64) { c.programID = id }

// ProgramID returns the current title id.
func (c *Cache) ProgramID() uint64 { return c.programID }

// SaveDiskCache writes the key of every built pipeline. It does nothing
// when the disk cache is disabled.
func (c *Cache) SaveDiskCache() error {
	if c.opts.DiskCacheDir == "" {
		return nil
	}
	dc := &DiskCache{Version: DiskCacheVersion, ProgramID: c.programID}
	c.mu.Lock()
	for _, e := range c.pipelines {
		if e.ready() && e.err == nil {
			dc.Entries = append(dc.Entries, e.key)
		}
	}
	c.mu.Unlock()

	path := DiskCachePath(c.opts.DiskCacheDir, c.programID)
	if err := WriteDiskCache(path, dc); err != nil {
		return fmt.Errorf("pipeline: save disk cache: %w", err)
	}
	slogger().Info("pipeline disk cache saved", "path", path, "entries", len(dc.Entries))
	return nil
}

// LoadDiskCache builds every pipeline recorded for the current title.
// stop is polled between entries; a set flag ends the load with
// ErrLoadCancelled after the entries in flight finish. A missing file is
// not an error.
func (c *Cache) LoadDiskCache(ctx context.Context, stop *atomic.Bool, cb LoadCallback) error {
	if c.opts.DiskCacheDir == "" {
		return nil
	}
	if cb == nil {
		cb = func(LoadStage, int, int) {}
	}
	path := DiskCachePath(c.opts.DiskCacheDir, c.programID)
	cb(LoadPrepare, 0, 0)
	dc, err := ReadDiskCache(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cb(LoadComplete, 0, 0)
		return nil
	case err != nil:
		slogger().Warn("pipeline disk cache unreadable", "path", path, "err", err)
		cb(LoadComplete, 0, 0)
		return nil
	}
	slogger().Info("pipeline disk cache loading", "path", path, "entries", len(dc.Entries))

	total := len(dc.Entries)
	var done atomic.Int32
	var g errgroup.Group
	g.SetLimit(c.opts.Workers)
	cb(LoadBuild, 0, total)
	for i := range dc.Entries {
		if stop != nil && stop.Load() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		key := dc.Entries[i]
		st, ok := c.stagesFor(&key)
		if !ok {
			cb(LoadBuild, int(done.Add(1)), total)
			continue
		}
		g.Go(func() error {
			if stop != nil && stop.Load() {
				return nil
			}
			c.preload(key, st)
			cb(LoadBuild, int(done.Add(1)), total)
			return nil
		})
	}
	_ = g.Wait()
	if stop != nil && stop.Load() {
		slogger().Info("pipeline disk cache load cancelled", "done", done.Load(), "total", total)
		return ErrLoadCancelled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cb(LoadComplete, total, total)
	slogger().Info("pipeline disk cache loaded", "entries", total, "pipelines", c.Stats().Pipelines)
	return nil
}

// SwitchPipelineCache saves the cache of the current title, then loads
// the cache of id.
func (c *Cache) SwitchPipelineCache(ctx context.Context, id uint64, stop *atomic.Bool, cb LoadCallback) error {
	if id == c.programID {
		return nil
	}
	if err := c.SaveDiskCache(); err != nil {
		slogger().Warn("pipeline disk cache not saved", "err", err)
	}
	c.SetProgramID(id)
	return c.LoadDiskCache(ctx, stop, cb)
}

// stagesFor resolves the modules of a stored key. Programs that need
// register state cannot be rebuilt and are skipped.
func (c *Cache) stagesFor(key *Key) (stages, bool) {
	vs, err := c.moduleFor(c.sourceFor(StageVertex, key.Shaders[StageVertex]),
		&ShaderConfig{Stage: StageVertex, Key: key.Shaders[StageVertex], Layout: &key.VertexLayout, User: c.user})
	if err != nil {
		return stages{}, false
	}
	fs, err := c.moduleFor(c.sourceFor(StageFragment, key.Shaders[StageFragment]),
		&ShaderConfig{Stage: StageFragment, Key: key.Shaders[StageFragment], User: c.user})
	if err != nil {
		return stages{}, false
	}
	return stages{vertex: vs.handle, vsEntry: vs.entry, fragment: fs.handle, fsEntry: fs.entry}, true
}

func (c *Cache) preload(key Key, st stages) {
	hash := key.Hash()
	c.mu.Lock()
	if _, ok := c.pipelines[hash]; ok {
		c.mu.Unlock()
		return
	}
	e := &entry{key: key, done: make(chan struct{})}
	c.pipelines[hash] = e
	c.mu.Unlock()

	c.building.Add(1)
	defer c.building.Add(-1)
	c.build(e, st)
}
