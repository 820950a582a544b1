package archiver

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Discover builds FileRecords for every regular file under root, with
// relative paths qualified by prefix. Files directly in root come first,
// followed by each subdirectory's recursive listing. Subdirectories are
// hashed concurrently but the returned order is stable.
func Discover(fsys FilesystemManager, root, prefix string) ([]*FileRecord, error) {
	groups, err := fsys.ListTree(root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}

	results := make([][]*FileRecord, len(groups))
	errs := make([]error, len(groups))

	var wg sync.WaitGroup
	for i, group := range groups {
		wg.Add(1)
		go func(i int, group []string) {
			defer wg.Done()
			records := make([]*FileRecord, 0, len(group))
			for _, path := range group {
				r, err := NewFileRecord(fsys, root, path, prefix)
				if err != nil {
					errs[i] = err
					return
				}
				records = append(records, r)
			}
			results[i] = records
		}(i, group)
	}
	wg.Wait()

	var all []*FileRecord
	for i := range groups {
		if errs[i] != nil {
			return nil, fmt.Errorf("discovering files: %w", errs[i])
		}
		all = append(all, results[i]...)
	}
	return all, nil
}

// SplitByFolders partitions records into those whose principal file lies
// inside any of folders and the rest. Input order is kept in both halves.
func SplitByFolders(records []*FileRecord, folders []string) (inside, outside []*FileRecord) {
	for _, r := range records {
		if underAny(r.principalPath, folders) {
			inside = append(inside, r)
		} else {
			outside = append(outside, r)
		}
	}
	return inside, outside
}

func underAny(path string, folders []string) bool {
	for _, folder := range folders {
		folder = strings.TrimRight(folder, string(filepath.Separator))
		if strings.HasPrefix(path, folder+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
