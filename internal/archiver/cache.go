package archiver

import "fmt"

// DiscoveryCache persists the discovered record list of a root so a rerun
// can skip walking and hashing the tree. A cache entry is used as-is
// whenever it exists.
type DiscoveryCache interface {
	// Load returns the records saved for root. found is false when nothing
	// has been saved.
	Load(root string) (records []*FileRecord, found bool, err error)

	// Save replaces whatever is stored for root.
	Save(root string, records []*FileRecord) error

	Close() error
}

// DiscoverCached returns the cached records for root if present, otherwise
// discovers them and saves the result.
func DiscoverCached(fsys FilesystemManager, cache DiscoveryCache, logger Logger, root string) ([]*FileRecord, error) {
	records, found, err := cache.Load(root)
	if err != nil {
		return nil, fmt.Errorf("loading discovery cache: %w", err)
	}
	if found {
		logger.Info("loaded files from discovery cache", "root", root, "count", len(records))
		return records, nil
	}

	records, err = Discover(fsys, root, "")
	if err != nil {
		return nil, err
	}
	if err := cache.Save(root, records); err != nil {
		return nil, fmt.Errorf("saving discovery cache: %w", err)
	}
	return records, nil
}
