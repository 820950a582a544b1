package testutil

import (
	"fmt"
	"path"
	"testing"

	"archiver-go/internal/archiver"
)

// Record builds an in-memory FileRecord without touching disk. The
// principal lives at /src/<rel> and the hash is derived from rel, so
// distinct names never collide.
func Record(t *testing.T, rel string, size int64) *archiver.FileRecord {
	t.Helper()
	src := "/src/" + rel
	r, err := archiver.RestoreFileRecord(src, "", size, SHA256Hex(rel), "", []archiver.PathPair{{Source: src, Relative: rel}})
	if err != nil {
		t.Fatalf("building record %s: %v", rel, err)
	}
	return r
}

// Records builds one record per size, named file-1, file-2, ...
func Records(t *testing.T, sizes ...int64) []*archiver.FileRecord {
	t.Helper()
	records := make([]*archiver.FileRecord, len(sizes))
	for i, size := range sizes {
		records[i] = Record(t, path.Join("photos", fmt.Sprintf("file-%d.jpg", i+1)), size)
	}
	return records
}

// Sizes returns the size of every record on every disc.
func Sizes(discs []*archiver.Disc) [][]int64 {
	out := make([][]int64, len(discs))
	for i, d := range discs {
		for _, f := range d.Files {
			out[i] = append(out[i], f.Size())
		}
	}
	return out
}
