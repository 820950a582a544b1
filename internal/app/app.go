package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"archiver-go/internal/archiver"
	"archiver-go/internal/cache"
	"archiver-go/internal/config"
	"archiver-go/internal/extras"
	"archiver-go/internal/fs"
	"archiver-go/internal/staging"

	"github.com/gofrs/flock"
)

// ArchiverApp is the application layer between the CLI and ArchiverService.
// It constructs all dependencies from config, runs the pipeline per archive
// set, and releases the cache and staging workspace on Close.
type ArchiverApp struct {
	cfg       *config.Config
	base      string
	fsmgr     archiver.FilesystemManager
	cache     archiver.DiscoveryCache
	workspace *staging.Workspace
	collector *extras.Collector
	service   *archiver.ArchiverService
	logger    archiver.Logger
	clock     archiver.Clock
	op        *Operation
	logFile   *os.File
	lock      *flock.Flock
}

// Options carries what NewArchiverApp needs beyond the config.
type Options struct {
	// Command identifies the CLI command being run, e.g. "run" or "plan".
	Command string
	// HomeDir holds the sqlite cache by default.
	HomeDir string
	// Stderr receives the log stream alongside the log file.
	Stderr io.Writer
}

// NewArchiverApp creates a fully wired ArchiverApp from the given config.
// The caller must call Close when done.
func NewArchiverApp(ctx context.Context, cfg *config.Config, opts Options) (*ArchiverApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	clock := archiver.RealClock{}
	op := NewOperation(opts.Command, clock.Now())

	slogger, logFile, err := newLogger(cfg.LogDir, op.RunID, opts.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a := &ArchiverApp{cfg: cfg, logger: logger, clock: clock, op: op, logFile: logFile}
	if err := a.acquireLock(); err != nil {
		logFile.Close()
		return nil, err
	}
	if err := a.wire(ctx, opts.HomeDir); err != nil {
		a.op.Fail()
		a.logger.Error("initialization failed", "error", err)
		a.Close()
		return nil, err
	}

	logger.Info("starting", "command", op.Command, "base", a.base, "destination", cfg.DestinationPath, "dry_run", cfg.Transfer.DryRun)
	return a, nil
}

func (a *ArchiverApp) wire(ctx context.Context, homeDir string) error {
	cfg := a.cfg
	a.fsmgr = fs.NewOSFilesystemManager(cfg.Filesystem.Ignore)

	base, err := a.fsmgr.Resolve(cfg.BasePath)
	if err != nil {
		return &config.ValidationError{Problems: []string{fmt.Sprintf("base_path %s: %v", cfg.BasePath, err)}}
	}
	if err := base.RequireDir(); err != nil {
		return &config.ValidationError{Problems: []string{fmt.Sprintf("base_path: %v", err)}}
	}
	a.base = base.String()

	a.cache, err = cache.NewCacheFromConfig(cfg.Cache, a.base, homeDir, a.clock)
	if err != nil {
		return fmt.Errorf("creating discovery cache: %w", err)
	}

	a.workspace, err = staging.NewWorkspace("", archiver.UUIDGenerator{})
	if err != nil {
		return err
	}
	metadataDir, err := a.workspace.Dir("metadata")
	if err != nil {
		return err
	}

	fetchers, err := newFetchers(ctx, cfg.Extras)
	if err != nil {
		return err
	}
	a.collector = extras.NewCollector(a.fsmgr, a.logger, a.workspace, fetchers)

	policy := archiver.RetryPolicy{
		Attempts: cfg.Transfer.MkdirAttempts,
		Backoff:  time.Duration(cfg.Transfer.MkdirBackoffMS) * time.Millisecond,
		Clock:    a.clock,
	}
	transfer := archiver.NewTransferer(a.fsmgr, a.logger, policy, cfg.Transfer.Workers, cfg.Transfer.DryRun)

	mode := archiver.Move
	if cfg.Transfer.CopyOnly {
		mode = archiver.Copy
	}
	a.service = archiver.NewArchiverService(a.fsmgr, transfer, a.logger, a.clock, archiver.UUIDGenerator{}, archiver.Options{
		DestinationPath: cfg.DestinationPath,
		StagingDir:      metadataDir,
		Mode:            mode,
		Schema:          archiver.SchemaVersion(cfg.Metadata.SchemaVersion),
	})
	return nil
}

// acquireLock keeps a second archiver from sharing the log directory, and
// with it the discovery cache, while this one runs.
func (a *ArchiverApp) acquireLock() error {
	path := filepath.Join(a.cfg.LogDir, "archiver.lock")
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("another archiver run holds %s", path)
	}
	a.lock = lock
	return nil
}

// newFetchers registers http(s) always and s3 only when an extras URL
// needs it, so runs without s3 sources never load AWS configuration.
func newFetchers(ctx context.Context, cfg config.ExtrasConfig) (map[string]extras.Fetcher, error) {
	httpFetcher := extras.NewHTTPFetcher(nil)
	fetchers := map[string]extras.Fetcher{"http": httpFetcher, "https": httpFetcher}

	if strings.HasPrefix(cfg.SourceURL, "s3://") || strings.HasPrefix(cfg.HTMLURL, "s3://") {
		s3Fetcher, err := extras.NewS3FetcherFromConfig(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("creating s3 fetcher: %w", err)
		}
		fetchers["s3"] = s3Fetcher
	}
	return fetchers, nil
}

// Run archives every enabled set and returns how each was packed.
func (a *ArchiverApp) Run(ctx context.Context) ([]*archiver.SetResult, error) {
	return a.process(ctx, a.service.Archive)
}

// Plan discovers, deduplicates and packs every enabled set without
// writing to the destination.
func (a *ArchiverApp) Plan(ctx context.Context) ([]*archiver.SetResult, error) {
	return a.process(ctx, a.service.Plan)
}

type setFunc func(archiver.ArchiveSet, []*archiver.FileRecord) (*archiver.SetResult, error)

func (a *ArchiverApp) process(ctx context.Context, handle setFunc) ([]*archiver.SetResult, error) {
	results, err := a.processSets(ctx, handle)
	if err != nil {
		a.op.Fail()
		a.logger.Error("operation failed", "error", err)
	}
	return results, err
}

func (a *ArchiverApp) processSets(ctx context.Context, handle setFunc) ([]*archiver.SetResult, error) {
	a.logger.Info("finding files", "base", a.base)
	records, err := archiver.DiscoverCached(a.fsmgr, a.cache, a.logger, a.base)
	if err != nil {
		return nil, err
	}
	important, regular := archiver.SplitByFolders(records, a.cfg.ImportantPaths(a.base))
	a.logger.Info("found files", "total", len(records), "important", len(important), "regular", len(regular))

	extraFiles, err := a.collector.Collect(ctx, extras.Sources{
		Binaries: a.binariesPath(),
		Source:   a.cfg.Extras.SourceURL,
		HTML:     a.cfg.Extras.HTMLURL,
	})
	if err != nil {
		return nil, err
	}

	sets := []struct {
		set  archiver.ArchiveSet
		skip bool
	}{
		{archiver.ArchiveSet{Name: "important", Files: important, DiscCapacity: a.cfg.ImportantCapacity()}, a.cfg.Skip.Important},
		{archiver.ArchiveSet{Name: "regular", Files: regular, DiscCapacity: a.cfg.RegularCapacity()}, a.cfg.Skip.Regular},
	}

	var results []*archiver.SetResult
	for _, s := range sets {
		if s.skip {
			a.logger.Info("skipping set", "set", s.set.Name)
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := handle(s.set, extraFiles)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// binariesPath defaults to the directory of the running executable.
func (a *ArchiverApp) binariesPath() string {
	if a.cfg.Extras.BinariesPath != "" {
		return a.cfg.Extras.BinariesPath
	}
	exe, err := os.Executable()
	if err != nil {
		a.logger.Warn("cannot locate executable, skipping binaries", "error", err)
		return ""
	}
	return filepath.Dir(exe)
}

// Close removes the staging workspace, closes the cache, releases the run
// lock and log file, and logs how the operation ended.
func (a *ArchiverApp) Close() error {
	var firstErr error

	if a.workspace != nil {
		if err := a.workspace.Close(); err != nil {
			firstErr = err
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing discovery cache: %w", err)
		}
	}

	a.logger.Info("finished", "command", a.op.Command, "status", a.op.Status, "elapsed", a.op.Elapsed(a.clock.Now()).String())

	if a.lock != nil {
		if err := a.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("releasing lock: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
