// Package report renders packing plans for people and for scripts.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/disiqueira/gotree/v3"
	"github.com/dustin/go-humanize"

	"archiver-go/internal/archiver"
)

// Tree renders results as a tree: set, then disc, then the top-level
// folders each disc holds.
func Tree(results []*archiver.SetResult) string {
	root := gotree.New("archive plan")
	for _, r := range results {
		set := root.Add(fmt.Sprintf("%s: %s, %d unique of %d discovered, %s reserved per disc",
			r.Name, plural(len(r.Discs), "disc"), r.Unique, r.Discovered, size(r.Overhead)))
		for _, d := range r.Discs {
			disc := set.Add(fmt.Sprintf("%s (%s, %s of %s)",
				filepath.Base(d.Path), plural(len(d.Files), "file"), size(archiver.TotalSize(d.Files)), size(r.Capacity-r.Overhead)))
			for _, g := range folders(d.Files) {
				disc.Add(fmt.Sprintf("%s (%s, %s)", g.name, plural(g.files, "file"), size(g.bytes)))
			}
		}
	}
	return root.Print()
}

// TSV writes one tab-separated line per disc: set, disc number, file
// count, content bytes, path.
func TSV(w io.Writer, results []*archiver.SetResult) error {
	if _, err := fmt.Fprintln(w, "set\tdisc\tfiles\tbytes\tpath"); err != nil {
		return err
	}
	for _, r := range results {
		for _, d := range r.Discs {
			if _, err := fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", r.Name, d.Number, len(d.Files), archiver.TotalSize(d.Files), d.Path); err != nil {
				return err
			}
		}
	}
	return nil
}

type folder struct {
	name  string
	files int
	bytes int64
}

// folders groups records by the first segment of their relative path, in
// order of first appearance. Files at the top level group under ".".
func folders(records []*archiver.FileRecord) []folder {
	var out []folder
	index := make(map[string]int)
	for _, r := range records {
		name := "."
		if first, _, nested := strings.Cut(r.PrincipalRelativePath(), "/"); nested {
			name = first
		}
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, folder{name: name})
		}
		out[i].files++
		out[i].bytes += r.Size()
	}
	return out
}

func size(n int64) string {
	return humanize.Bytes(uint64(max(0, n)))
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
