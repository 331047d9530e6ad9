// Command picacache inspects and maintains pipeline disk caches.
//
// Usage:
//
//	picacache [flags] list
//	picacache [flags] prune
//	picacache [flags] compact
//
// list prints every cache file in the directory. prune removes files that
// cannot be loaded. compact drops duplicate pipeline keys.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gogpu/pica"
	"github.com/gogpu/pica/pipeline"
)

func main() {
	var (
		dir     = flag.String("dir", ".", "pipeline cache directory")
		logFile = flag.String("log", "", "log file, rotated; empty logs to stderr")
		level   = flag.String("level", "info", "log level: debug, info, warn or error")
		dryRun  = flag.Bool("n", false, "report changes without writing")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: picacache [flags] list|prune|compact\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	logger, closeLog := newLogger(*logFile, *level)
	defer closeLog()
	pica.SetLogger(logger)

	t := tool{dir: *dir, out: os.Stdout, log: logger, dryRun: *dryRun}
	if err := t.run(flag.Arg(0)); err != nil {
		logger.Error("picacache failed", "cmd", flag.Arg(0), "err", err)
		fmt.Fprintln(os.Stderr, "picacache:", err)
		closeLog()
		os.Exit(1)
	}
}

func newLogger(path, level string) (*slog.Logger, func()) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		fmt.Fprintf(os.Stderr, "%s: invalid log level\n", level)
		lvl = slog.LevelInfo
	}
	if path == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), func() {}
	}
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    16, // MB
		MaxBackups: 2,
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), func() { w.Close() }
}

var errUnknownCommand = errors.New("unknown command")

type tool struct {
	dir    string
	out    io.Writer
	log    *slog.Logger
	dryRun bool
}

func (t *tool) run(cmd string) error {
	switch cmd {
	case "list":
		return t.list()
	case "prune":
		return t.prune()
	case "compact":
		return t.compact()
	}
	return fmt.Errorf("%w %q", errUnknownCommand, cmd)
}

// cacheFile is a cache file found in the directory.
type cacheFile struct {
	path      string
	programID uint64
	cache     *pipeline.DiskCache
	err       error
}

func (t *tool) scan() ([]cacheFile, error) {
	paths, err := filepath.Glob(filepath.Join(t.dir, "*"+pipeline.DiskCacheExt))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)
	files := make([]cacheFile, 0, len(paths))
	for _, p := range paths {
		f := cacheFile{path: p}
		name := strings.TrimSuffix(filepath.Base(p), pipeline.DiskCacheExt)
		f.programID, f.err = strconv.ParseUint(name, 16, 64)
		if f.err == nil {
			f.cache, f.err = pipeline.ReadDiskCache(p)
		}
		if f.err == nil && f.cache.ProgramID != f.programID {
			f.err = fmt.Errorf("file holds program %016x", f.cache.ProgramID)
		}
		files = append(files, f)
	}
	t.log.Debug("cache directory scanned", "dir", t.dir, "files", len(files))
	return files, nil
}

func (t *tool) list() error {
	files, err := t.scan()
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.err != nil {
			fmt.Fprintf(t.out, "%s\tinvalid\t%v\n", filepath.Base(f.path), f.err)
			continue
		}
		fmt.Fprintf(t.out, "%016x\t%d entries\n", f.programID, len(f.cache.Entries))
	}
	return nil
}

func (t *tool) prune() error {
	files, err := t.scan()
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range files {
		if f.err == nil {
			continue
		}
		fmt.Fprintf(t.out, "remove %s\n", filepath.Base(f.path))
		if t.dryRun {
			continue
		}
		if err := os.Remove(f.path); err != nil {
			errs = append(errs, err)
			continue
		}
		t.log.Info("cache file removed", "path", f.path, "reason", f.err)
	}
	return errors.Join(errs...)
}

func (t *tool) compact() error {
	files, err := t.scan()
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range files {
		if f.err != nil {
			continue
		}
		entries := dedupKeys(f.cache.Entries)
		dropped := len(f.cache.Entries) - len(entries)
		if dropped == 0 {
			continue
		}
		fmt.Fprintf(t.out, "%016x\t%d duplicates\n", f.programID, dropped)
		if t.dryRun {
			continue
		}
		f.cache.Entries = entries
		if err := pipeline.WriteDiskCache(f.path, f.cache); err != nil {
			errs = append(errs, err)
			continue
		}
		t.log.Info("cache file compacted", "path", f.path, "dropped", dropped)
	}
	return errors.Join(errs...)
}

// dedupKeys keeps the first occurrence of every key.
func dedupKeys(keys []pipeline.Key) []pipeline.Key {
	seen := make(map[uint64]struct{}, len(keys))
	out := make([]pipeline.Key, 0, len(keys))
	for _, k := range keys {
		h := k.Hash()
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, k)
	}
	return out
}
