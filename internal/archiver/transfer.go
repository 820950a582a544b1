package archiver

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// TransferMode selects how content reaches a disc directory.
type TransferMode int

const (
	Copy TransferMode = iota
	Move
)

func (m TransferMode) String() string {
	if m == Move {
		return "move"
	}
	return "copy"
}

// probeFile is written and removed to confirm a new directory is usable.
const probeFile = ".archiver-probe"

// TransferError aggregates every placement failure of one Place call.
type TransferError struct {
	Disc   int
	Errors []error
}

func (e *TransferError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("disc %d: %d file(s) failed to transfer:\n  %s", e.Disc, len(e.Errors), strings.Join(msgs, "\n  "))
}

func (e *TransferError) Unwrap() []error { return e.Errors }

// Transferer places files into disc directories.
type Transferer struct {
	fsys    FilesystemManager
	logger  Logger
	retry   RetryPolicy
	workers int
	dryRun  bool
}

// NewTransferer creates a Transferer. workers <= 0 means one worker per CPU.
// In dry-run mode nothing is written; intent is only logged.
func NewTransferer(fsys FilesystemManager, logger Logger, retry RetryPolicy, workers int, dryRun bool) *Transferer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Transferer{fsys: fsys, logger: logger, retry: retry, workers: workers, dryRun: dryRun}
}

type placement struct {
	source      string
	destination string
}

// Place realizes every physical path of records beneath disc.Path.
// Destination directories are created first (retrying transient "not found"
// failures), then a fixed pool of workers copies or moves the files.
// Existing destinations are overwritten and sources that have vanished are
// skipped. All failures are collected and returned together as a
// *TransferError; files placed successfully stay in place.
func (t *Transferer) Place(disc *Disc, records []*FileRecord, mode TransferMode) error {
	if t.dryRun {
		t.logger.Info("dry run: not transferring", "disc", disc.Number, "mode", mode.String(), "files", len(records))
		return nil
	}

	var work []placement
	var dirs []string
	seenDirs := make(map[string]struct{})
	for _, r := range records {
		for _, p := range r.paths {
			dst := filepath.Join(disc.Path, filepath.FromSlash(p.Relative))
			work = append(work, placement{source: p.Source, destination: dst})
			dir := filepath.Dir(dst)
			if _, ok := seenDirs[dir]; !ok {
				seenDirs[dir] = struct{}{}
				dirs = append(dirs, dir)
			}
		}
	}

	t.logger.Info("ensuring folders exist", "disc", disc.Number, "folders", len(dirs))
	for _, dir := range dirs {
		if err := t.EnsureDir(dir); err != nil {
			return fmt.Errorf("disc %d: %w", disc.Number, err)
		}
	}

	t.logger.Info("transferring files", "disc", disc.Number, "mode", mode.String(), "files", len(work), "workers", t.workers)

	queue := make(chan placement, len(work))
	for _, w := range work {
		queue <- w
	}
	close(queue)

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for i := 0; i < t.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range queue {
				if err := t.placeOne(w, mode); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		return &TransferError{Disc: disc.Number, Errors: errs}
	}
	return nil
}

func (t *Transferer) placeOne(w placement, mode TransferMode) error {
	if _, err := t.fsys.Stat(w.source); err != nil {
		if IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", w.source, err)
	}

	var err error
	if mode == Move {
		err = t.fsys.MoveFile(w.source, w.destination)
	} else {
		err = t.fsys.CopyFile(w.source, w.destination)
	}
	if err != nil {
		// The source may have vanished after the first Stat.
		if _, statErr := t.fsys.Stat(w.source); IsNotExist(statErr) {
			t.logger.Warn("source vanished during transfer, skipping", "path", w.source)
			return nil
		}
		return fmt.Errorf("%s %s to %s: %w", mode, w.source, w.destination, err)
	}
	return nil
}

// EnsureDir creates dir and proves it writable, retrying while the
// filesystem still reports it as missing.
func (t *Transferer) EnsureDir(dir string) error {
	probe := filepath.Join(dir, probeFile)
	err := Retry(t.retry, IsNotExist, func() error {
		if err := t.fsys.MkdirAll(dir); err != nil {
			return err
		}
		if err := t.fsys.WriteFile(probe, []byte("Test")); err != nil {
			return err
		}
		return t.fsys.Remove(probe)
	})
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

// WriteFile writes data to disc.Path/relative, retrying directory creation.
func (t *Transferer) WriteFile(disc *Disc, relative string, data []byte) error {
	if t.dryRun {
		t.logger.Info("dry run: not writing", "disc", disc.Number, "path", relative)
		return nil
	}
	dst := filepath.Join(disc.Path, filepath.FromSlash(relative))
	err := Retry(t.retry, IsNotExist, func() error {
		if err := t.fsys.MkdirAll(filepath.Dir(dst)); err != nil {
			return err
		}
		return t.fsys.WriteFile(dst, data)
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}
