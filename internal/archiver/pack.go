package archiver

import (
	"fmt"
	"path/filepath"
)

// Disc is one packed container. It is not modified after Pack returns it.
type Disc struct {
	Number int
	Path   string
	Files  []*FileRecord
}

// NewDisc creates a Disc whose directory is base/Disc-NNN.
func NewDisc(base string, number int, files []*FileRecord) *Disc {
	return &Disc{
		Number: number,
		Path:   DiscPath(base, number),
		Files:  append([]*FileRecord(nil), files...),
	}
}

// DiscPath returns the directory of disc number under base.
func DiscPath(base string, number int) string {
	return filepath.Join(base, fmt.Sprintf("Disc-%03d", number))
}

// OversizedFileError reports a unit that cannot fit on an empty disc.
type OversizedFileError struct {
	Path      string
	Size      int64
	Available int64
}

func (e *OversizedFileError) Error() string {
	return fmt.Sprintf("file %s (%d bytes) does not fit on a single disc (%d bytes available); split the file before archiving", e.Path, e.Size, e.Available)
}

// Pack assigns records to discs in input order using greedy sequential
// first-fit. overhead is reserved on every disc; each disc's content stays
// strictly below capacity - overhead. A record that cannot fit on an empty
// disc fails the whole run.
func Pack(base string, records []*FileRecord, overhead, capacity int64) ([]*Disc, error) {
	available := capacity - overhead

	var discs []*Disc
	var current []*FileRecord
	remaining := available

	for _, r := range records {
		if r.size >= available {
			return nil, &OversizedFileError{Path: r.principalPath, Size: r.size, Available: available}
		}
		if remaining <= r.size {
			discs = append(discs, NewDisc(base, len(discs)+1, current))
			current = current[:0]
			remaining = available
		}
		current = append(current, r)
		remaining -= r.size
	}

	if len(current) > 0 {
		discs = append(discs, NewDisc(base, len(discs)+1, current))
	}
	return discs, nil
}
