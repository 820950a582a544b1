package extras

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"archiver-go/internal/archiver"
	"archiver-go/internal/config"
	"archiver-go/internal/staging"
)

// Relative path prefixes of the payloads copied onto every disc.
const (
	BinariesPrefix = archiver.MetadataDir + "/binaries/"
	SourcePrefix   = archiver.MetadataDir + "/source/"
	HTMLPrefix     = archiver.MetadataDir + "/html/"
)

// Sources locates each payload. Binaries is a local directory. Source and
// HTML may be a local directory, a local zip, or a URL whose scheme has a
// registered Fetcher. An empty location or config.Disabled skips the payload.
type Sources struct {
	Binaries string
	Source   string
	HTML     string
}

// Collector gathers the auxiliary payloads as FileRecords rooted under
// MetadataDir, fetching and expanding archives inside a staging workspace.
type Collector struct {
	fsys      archiver.FilesystemManager
	logger    archiver.Logger
	workspace *staging.Workspace
	fetchers  map[string]Fetcher
}

// NewCollector creates a Collector. fetchers maps a URL scheme to the
// Fetcher that downloads it.
func NewCollector(fsys archiver.FilesystemManager, logger archiver.Logger, workspace *staging.Workspace, fetchers map[string]Fetcher) *Collector {
	return &Collector{fsys: fsys, logger: logger, workspace: workspace, fetchers: fetchers}
}

// Collect returns the binaries, then the source archive, then the expanded
// HTML browser.
func (c *Collector) Collect(ctx context.Context, src Sources) ([]*archiver.FileRecord, error) {
	var all []*archiver.FileRecord

	if enabled(src.Binaries) {
		records, err := archiver.Discover(c.fsys, src.Binaries, BinariesPrefix)
		if err != nil {
			return nil, fmt.Errorf("collecting binaries: %w", err)
		}
		c.logger.Info("collected binaries", "path", src.Binaries, "files", len(records))
		all = append(all, records...)
	}

	source, err := c.collect(ctx, "source", src.Source, SourcePrefix, false)
	if err != nil {
		return nil, err
	}
	all = append(all, source...)

	html, err := c.collect(ctx, "html", src.HTML, HTMLPrefix, true)
	if err != nil {
		return nil, err
	}
	all = append(all, html...)

	return all, nil
}

// collect resolves location to records under prefix. A directory is taken
// as-is; a zip is either carried whole or expanded first.
func (c *Collector) collect(ctx context.Context, name, location, prefix string, expand bool) ([]*archiver.FileRecord, error) {
	if !enabled(location) {
		return nil, nil
	}

	local, err := c.localize(ctx, name, location)
	if err != nil {
		return nil, fmt.Errorf("collecting %s: %w", name, err)
	}

	p, err := c.fsys.Resolve(local)
	if err != nil {
		return nil, fmt.Errorf("collecting %s: %w", name, err)
	}

	var records []*archiver.FileRecord
	switch {
	case p.IsDir():
		records, err = archiver.Discover(c.fsys, p.String(), prefix)
	case expand:
		records, err = c.expand(name, p.String(), prefix)
	default:
		var r *archiver.FileRecord
		r, err = archiver.NewFileRecord(c.fsys, filepath.Dir(p.String()), p.String(), prefix)
		records = []*archiver.FileRecord{r}
	}
	if err != nil {
		return nil, fmt.Errorf("collecting %s: %w", name, err)
	}

	c.logger.Info("collected "+name, "location", location, "files", len(records))
	return records, nil
}

// localize returns a local path for location, downloading it into the
// workspace when it is a URL.
func (c *Collector) localize(ctx context.Context, name, location string) (string, error) {
	if !strings.Contains(location, "://") {
		return location, nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", location, err)
	}
	if u.Scheme == "file" {
		return u.Path, nil
	}

	fetcher, ok := c.fetchers[u.Scheme]
	if !ok {
		return "", fmt.Errorf("unsupported scheme %q in %s", u.Scheme, location)
	}

	dir, err := c.workspace.Dir(name)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(dir, archiveName(u))

	c.logger.Info("fetching "+name, "url", location)
	if err := fetcher.Fetch(ctx, location, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func (c *Collector) expand(name, zipPath, prefix string) ([]*archiver.FileRecord, error) {
	dir, err := c.workspace.Dir(name, "expanded")
	if err != nil {
		return nil, err
	}
	if err := Expand(zipPath, dir); err != nil {
		return nil, err
	}
	return archiver.Discover(c.fsys, dir, prefix)
}

// archiveName picks a file name for a downloaded archive.
func archiveName(u *url.URL) string {
	base := path.Base(u.Path)
	if strings.HasSuffix(strings.ToLower(base), ".zip") {
		return base
	}
	return "data.zip"
}

func enabled(location string) bool {
	return location != "" && location != config.Disabled
}
