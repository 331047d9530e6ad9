package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/pica/pipeline"
	"github.com/gogpu/pica/regs"
)

func newTool(t *testing.T, dryRun bool) (*tool, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return &tool{
		dir:    t.TempDir(),
		out:    &out,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		dryRun: dryRun,
	}, &out
}

func writeCache(t *testing.T, dir string, id uint64, keys ...pipeline.Key) string {
	t.Helper()
	path := pipeline.DiskCachePath(dir, id)
	dc := &pipeline.DiskCache{Version: pipeline.DiskCacheVersion, ProgramID: id, Entries: keys}
	if err := pipeline.WriteDiskCache(path, dc); err != nil {
		t.Fatalf("WriteDiskCache failed: %v", err)
	}
	return path
}

func testKey(mask uint8) pipeline.Key {
	var k pipeline.Key
	k.Rasterization.Topology = regs.TopologyList
	k.Blending.ColorWriteMask = mask
	return k
}

func TestList(t *testing.T) {
	tl, out := newTool(t, false)
	writeCache(t, tl.dir, 0x42, testKey(0xF), testKey(0x7))
	if err := os.WriteFile(filepath.Join(tl.dir, "0000000000000043.pcache"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := tl.run("list"); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "0000000000000042\t2 entries") {
		t.Errorf("list output missing valid cache:\n%s", got)
	}
	if !strings.Contains(got, "0000000000000043.pcache\tinvalid") {
		t.Errorf("list output missing invalid cache:\n%s", got)
	}
}

func TestPrune(t *testing.T) {
	for _, dryRun := range []bool{true, false} {
		tl, out := newTool(t, dryRun)
		good := writeCache(t, tl.dir, 0x42, testKey(0xF))
		// A file named after another program.
		misplaced := filepath.Join(tl.dir, "0000000000000099.pcache")
		if err := os.Rename(writeCache(t, tl.dir, 0x43, testKey(0xF)), misplaced); err != nil {
			t.Fatal(err)
		}
		badName := filepath.Join(tl.dir, "title.pcache")
		if err := os.WriteFile(badName, nil, 0o644); err != nil {
			t.Fatal(err)
		}

		if err := tl.run("prune"); err != nil {
			t.Fatalf("prune failed: %v", err)
		}
		if n := strings.Count(out.String(), "remove "); n != 2 {
			t.Errorf("dryRun=%v: %d removals reported, want 2:\n%s", dryRun, n, out.String())
		}
		if _, err := os.Stat(good); err != nil {
			t.Errorf("valid cache removed: %v", err)
		}
		for _, p := range []string{misplaced, badName} {
			_, err := os.Stat(p)
			if exists := err == nil; exists != dryRun {
				t.Errorf("dryRun=%v: %s exists = %v", dryRun, filepath.Base(p), exists)
			}
		}
	}
}

func TestCompact(t *testing.T) {
	tl, out := newTool(t, false)
	path := writeCache(t, tl.dir, 0x42, testKey(0xF), testKey(0x7), testKey(0xF), testKey(0xF))
	writeCache(t, tl.dir, 0x43, testKey(0x1))

	if err := tl.run("compact"); err != nil {
		t.Fatalf("compact failed: %v", err)
	}
	if !strings.Contains(out.String(), "0000000000000042\t2 duplicates") {
		t.Errorf("compact output:\n%s", out.String())
	}
	if strings.Contains(out.String(), "0000000000000043") {
		t.Errorf("cache without duplicates reported:\n%s", out.String())
	}
	dc, err := pipeline.ReadDiskCache(path)
	if err != nil {
		t.Fatalf("ReadDiskCache failed: %v", err)
	}
	if len(dc.Entries) != 2 || dc.Entries[0] != testKey(0xF) || dc.Entries[1] != testKey(0x7) {
		t.Errorf("compacted entries = %d, want first occurrences kept in order", len(dc.Entries))
	}
}

func TestRunUnknownCommand(t *testing.T) {
	tl, _ := newTool(t, false)
	if err := tl.run("merge"); !errors.Is(err, errUnknownCommand) {
		t.Errorf("run(merge) error = %v, want errUnknownCommand", err)
	}
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "picacache.log")
	logger, closeLog := newLogger(path, "debug")
	logger.Debug("cache directory scanned", "files", 3)
	closeLog()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"cache directory scanned"`) {
		t.Errorf("log file = %s, want a JSON record", data)
	}
}
