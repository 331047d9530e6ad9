package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDiskCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, _ := newTestCache(t, createNoopDevice(t), Options{DiskCacheDir: dir})
	c.SetProgramID(0x0004000000055D00)
	selectShaders(c)

	a := testInfo()
	b := testInfo()
	b.DepthStencil.DepthTestEnable = true
	for _, info := range []*Info{a, b} {
		if !c.BindPipeline(info, true) {
			t.Fatal("BindPipeline failed")
		}
	}
	if err := c.SaveDiskCache(); err != nil {
		t.Fatalf("SaveDiskCache failed: %v", err)
	}

	path := DiskCachePath(dir, 0x0004000000055D00)
	if filepath.Base(path) != "0004000000055d00.pcache" {
		t.Errorf("cache file = %s", filepath.Base(path))
	}
	dc, err := ReadDiskCache(path)
	if err != nil {
		t.Fatalf("ReadDiskCache failed: %v", err)
	}
	if dc.ProgramID != 0x0004000000055D00 || len(dc.Entries) != 2 {
		t.Fatalf("disk cache = id %x with %d entries, want 2", dc.ProgramID, len(dc.Entries))
	}
	want := map[uint64]bool{KeyOf(a, c.ShaderKeys()).Hash(): true, KeyOf(b, c.ShaderKeys()).Hash(): true}
	for _, k := range dc.Entries {
		if !want[k.Hash()] {
			t.Errorf("unexpected entry %016x", k.Hash())
		}
	}

	fresh, _ := newTestCache(t, createNoopDevice(t), Options{DiskCacheDir: dir, Async: true})
	fresh.SetProgramID(0x0004000000055D00)
	var (
		mu     sync.Mutex
		stages []LoadStage
		last   int
	)
	err = fresh.LoadDiskCache(context.Background(), nil, func(stage LoadStage, done, total int) {
		mu.Lock()
		defer mu.Unlock()
		stages = append(stages, stage)
		if stage == LoadComplete {
			last = done
		}
	})
	if err != nil {
		t.Fatalf("LoadDiskCache failed: %v", err)
	}
	if got := fresh.Stats().Pipelines; got != 2 {
		t.Errorf("loaded pipelines = %d, want 2", got)
	}
	if stages[0] != LoadPrepare || stages[len(stages)-1] != LoadComplete || last != 2 {
		t.Errorf("progress = %v ending at %d", stages, last)
	}

	selectShaders(fresh)
	if !fresh.BindPipeline(b, false) {
		t.Error("preloaded pipeline not ready")
	}
	if st := fresh.Stats(); st.Hits != 1 {
		t.Errorf("Hits = %d, want 1", st.Hits)
	}
}

func TestLoadDiskCacheMissingFile(t *testing.T) {
	c, _ := newTestCache(t, createNoopDevice(t), Options{DiskCacheDir: t.TempDir()})
	c.SetProgramID(1)
	if err := c.LoadDiskCache(context.Background(), nil, nil); err != nil {
		t.Errorf("LoadDiskCache without a file = %v", err)
	}
}

func TestLoadDiskCacheCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(DiskCachePath(dir, 2), []byte("not a cache"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, _ := newTestCache(t, createNoopDevice(t), Options{DiskCacheDir: dir})
	c.SetProgramID(2)
	if err := c.LoadDiskCache(context.Background(), nil, nil); err != nil {
		t.Errorf("LoadDiskCache of a corrupt file = %v", err)
	}
	if got := c.Stats().Pipelines; got != 0 {
		t.Errorf("pipelines = %d, want 0", got)
	}
}

// writeTestDiskCache stores n distinct pipeline keys for program id.
func writeTestDiskCache(t *testing.T, dir string, id uint64, n int) {
	t.Helper()
	entries := make([]Key, n)
	for i := range entries {
		info := testInfo()
		info.Blending.ColorWriteMask = uint8(i)
		entries[i] = KeyOf(info, ShaderKeys{0x11, 0, 0x22})
	}
	dc := &DiskCache{Version: DiskCacheVersion, ProgramID: id, Entries: entries}
	if err := WriteDiskCache(DiskCachePath(dir, id), dc); err != nil {
		t.Fatalf("WriteDiskCache failed: %v", err)
	}
}

func TestLoadDiskCacheCompletes(t *testing.T) {
	for _, async := range []bool{false, true} {
		dir := t.TempDir()
		writeTestDiskCache(t, dir, 4, 3)
		c, _ := newTestCache(t, createNoopDevice(t), Options{DiskCacheDir: dir, Async: async})
		c.SetProgramID(4)

		var (
			mu        sync.Mutex
			completed bool
		)
		err := c.LoadDiskCache(context.Background(), nil, func(stage LoadStage, done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if stage == LoadComplete {
				completed = done == 3 && total == 3
			}
		})
		if err != nil {
			t.Errorf("async=%v: LoadDiskCache error = %v", async, err)
		}
		if !completed {
			t.Errorf("async=%v: LoadComplete not reported for 3 entries", async)
		}
		if got := c.Stats().Pipelines; got != 3 {
			t.Errorf("async=%v: pipelines = %d, want 3", async, got)
		}
	}
}

func TestLoadDiskCacheCancelled(t *testing.T) {
	dir := t.TempDir()
	writeTestDiskCache(t, dir, 3, 8)

	c, _ := newTestCache(t, createNoopDevice(t), Options{DiskCacheDir: dir})
	c.SetProgramID(3)
	var stop atomic.Bool
	stop.Store(true)
	err := c.LoadDiskCache(context.Background(), &stop, nil)
	if !errors.Is(err, ErrLoadCancelled) {
		t.Errorf("LoadDiskCache error = %v, want ErrLoadCancelled", err)
	}
	if got := c.Stats().Pipelines; got != 0 {
		t.Errorf("pipelines built after cancel = %d", got)
	}
}

func TestLoadDiskCacheContextCancelled(t *testing.T) {
	dir := t.TempDir()
	writeTestDiskCache(t, dir, 5, 4)

	c, _ := newTestCache(t, createNoopDevice(t), Options{DiskCacheDir: dir})
	c.SetProgramID(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.LoadDiskCache(ctx, nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("LoadDiskCache error = %v, want context.Canceled", err)
	}
	if got := c.Stats().Pipelines; got != 0 {
		t.Errorf("pipelines built with a cancelled context = %d", got)
	}
}

func TestReadDiskCacheVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.pcache")
	if err := WriteDiskCache(path, &DiskCache{Version: DiskCacheVersion + 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadDiskCache(path); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("ReadDiskCache error = %v, want ErrVersionMismatch", err)
	}
}

func TestSwitchPipelineCache(t *testing.T) {
	dir := t.TempDir()
	c, _ := newTestCache(t, createNoopDevice(t), Options{DiskCacheDir: dir})
	c.SetProgramID(10)
	selectShaders(c)
	if !c.BindPipeline(testInfo(), true) {
		t.Fatal("BindPipeline failed")
	}
	if err := c.SwitchPipelineCache(context.Background(), 11, nil, nil); err != nil {
		t.Fatalf("SwitchPipelineCache failed: %v", err)
	}
	if c.ProgramID() != 11 {
		t.Errorf("ProgramID = %d, want 11", c.ProgramID())
	}
	if _, err := os.Stat(DiskCachePath(dir, 10)); err != nil {
		t.Errorf("previous title not saved: %v", err)
	}
}
