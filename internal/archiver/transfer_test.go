package archiver_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"archiver-go/internal/archiver"
	"archiver-go/internal/testutil"
)

func testPolicy(clock archiver.Clock) archiver.RetryPolicy {
	return archiver.RetryPolicy{Attempts: 20, Backoff: 100 * time.Millisecond, Clock: clock}
}

func discoverWith(t *testing.T, fsys archiver.FilesystemManager, files map[string]string) (string, []*archiver.FileRecord) {
	t.Helper()
	root := t.TempDir()
	testutil.WriteTree(t, root, files)
	records, err := archiver.Discover(fsys, root, "")
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	return root, archiver.Deduplicate(records)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestPlace_CopiesEveryPath(t *testing.T) {
	fsys := testutil.NewFaultyFilesystem()
	root, records := discoverWith(t, fsys, map[string]string{
		"a.jpg":           "a",
		"a.jpg.json":      `{"title":"a"}`,
		"trip/day1/b.jpg": "b",
	})
	disc := archiver.NewDisc(filepath.Join(t.TempDir(), "regularArchive"), 1, records)

	tr := archiver.NewTransferer(fsys, archiver.NewNopLogger(), testPolicy(testutil.FixedClock()), 2, false)
	if err := tr.Place(disc, disc.Files, archiver.Copy); err != nil {
		t.Fatalf("Place() error = %v", err)
	}

	for _, rel := range []string{"a.jpg", "a.jpg.json", "trip/day1/b.jpg"} {
		dst := filepath.Join(disc.Path, filepath.FromSlash(rel))
		if !exists(dst) {
			t.Errorf("%s not placed", rel)
		}
		if !exists(filepath.Join(root, filepath.FromSlash(rel))) {
			t.Errorf("copy removed source %s", rel)
		}
	}
	if got := testutil.ReadFile(t, filepath.Join(disc.Path, "a.jpg.json")); got != `{"title":"a"}` {
		t.Errorf("sidecar content = %q", got)
	}
	if exists(filepath.Join(disc.Path, ".archiver-probe")) {
		t.Error("probe file left behind")
	}
}

func TestPlace_Move(t *testing.T) {
	fsys := testutil.NewFaultyFilesystem()
	root, records := discoverWith(t, fsys, map[string]string{"a.jpg": "a", "b/c.jpg": "c"})
	disc := archiver.NewDisc(filepath.Join(t.TempDir(), "regularArchive"), 1, records)

	tr := archiver.NewTransferer(fsys, archiver.NewNopLogger(), testPolicy(testutil.FixedClock()), 0, false)
	if err := tr.Place(disc, disc.Files, archiver.Move); err != nil {
		t.Fatalf("Place() error = %v", err)
	}

	for _, rel := range []string{"a.jpg", "b/c.jpg"} {
		if !exists(filepath.Join(disc.Path, filepath.FromSlash(rel))) {
			t.Errorf("%s not moved into disc", rel)
		}
		if exists(filepath.Join(root, filepath.FromSlash(rel))) {
			t.Errorf("%s still at source after move", rel)
		}
	}
}

func TestPlace_CollectsEveryFailure(t *testing.T) {
	fsys := testutil.NewFaultyFilesystem()
	fsys.FailNames["f2.jpg"] = true
	fsys.FailNames["f4.jpg"] = true
	_, records := discoverWith(t, fsys, map[string]string{
		"f1.jpg": "1", "f2.jpg": "2", "f3.jpg": "3", "f4.jpg": "4", "f5.jpg": "5",
	})
	disc := archiver.NewDisc(filepath.Join(t.TempDir(), "importantArchive"), 4, records)

	tr := archiver.NewTransferer(fsys, archiver.NewNopLogger(), testPolicy(testutil.FixedClock()), 3, false)
	err := tr.Place(disc, disc.Files, archiver.Copy)

	var terr *archiver.TransferError
	if !errors.As(err, &terr) {
		t.Fatalf("Place() error = %v, want *TransferError", err)
	}
	if terr.Disc != 4 {
		t.Errorf("TransferError.Disc = %d, want 4", terr.Disc)
	}
	if len(terr.Errors) != 2 {
		t.Errorf("TransferError has %d errors, want 2: %v", len(terr.Errors), terr)
	}
	for _, name := range []string{"f1.jpg", "f3.jpg", "f5.jpg"} {
		if !exists(filepath.Join(disc.Path, name)) {
			t.Errorf("%s should have been placed despite sibling failures", name)
		}
	}
	for _, name := range []string{"f2.jpg", "f4.jpg"} {
		if exists(filepath.Join(disc.Path, name)) {
			t.Errorf("%s should not have been placed", name)
		}
	}
}

func TestPlace_SkipsVanishedSource(t *testing.T) {
	tests := []struct {
		name   string
		vanish func(t *testing.T, fsys *testutil.FaultyFilesystem, root string)
	}{
		{"before placement", func(t *testing.T, fsys *testutil.FaultyFilesystem, root string) {
			if err := os.Remove(filepath.Join(root, "gone.jpg")); err != nil {
				t.Fatal(err)
			}
		}},
		{"during transfer", func(t *testing.T, fsys *testutil.FaultyFilesystem, root string) {
			fsys.VanishNames["gone.jpg"] = true
		}},
	}
	for _, tt := range tests {
		for _, mode := range []archiver.TransferMode{archiver.Copy, archiver.Move} {
			t.Run(tt.name+"/"+mode.String(), func(t *testing.T) {
				fsys := testutil.NewFaultyFilesystem()
				root, records := discoverWith(t, fsys, map[string]string{"gone.jpg": "g", "kept.jpg": "k"})
				tt.vanish(t, fsys, root)
				disc := archiver.NewDisc(filepath.Join(t.TempDir(), "regularArchive"), 1, records)

				tr := archiver.NewTransferer(fsys, archiver.NewNopLogger(), testPolicy(testutil.FixedClock()), 2, false)
				if err := tr.Place(disc, disc.Files, mode); err != nil {
					t.Fatalf("Place() error = %v", err)
				}
				if !exists(filepath.Join(disc.Path, "kept.jpg")) {
					t.Error("kept.jpg not placed")
				}
				if exists(filepath.Join(disc.Path, "gone.jpg")) {
					t.Error("gone.jpg appeared in disc")
				}
			})
		}
	}
}

func TestPlace_OverwritesDestination(t *testing.T) {
	fsys := testutil.NewFaultyFilesystem()
	_, records := discoverWith(t, fsys, map[string]string{"a.jpg": "new"})
	disc := archiver.NewDisc(filepath.Join(t.TempDir(), "regularArchive"), 1, records)
	testutil.WriteFile(t, filepath.Join(disc.Path, "a.jpg"), "stale")

	tr := archiver.NewTransferer(fsys, archiver.NewNopLogger(), testPolicy(testutil.FixedClock()), 1, false)
	if err := tr.Place(disc, disc.Files, archiver.Copy); err != nil {
		t.Fatalf("Place() error = %v", err)
	}
	if got := testutil.ReadFile(t, filepath.Join(disc.Path, "a.jpg")); got != "new" {
		t.Errorf("destination = %q, want overwritten with %q", got, "new")
	}
}

func TestPlace_DryRun(t *testing.T) {
	fsys := testutil.NewFaultyFilesystem()
	root, records := discoverWith(t, fsys, map[string]string{"a.jpg": "a"})
	disc := archiver.NewDisc(filepath.Join(t.TempDir(), "regularArchive"), 1, records)

	tr := archiver.NewTransferer(fsys, archiver.NewNopLogger(), testPolicy(testutil.FixedClock()), 2, true)
	if err := tr.Place(disc, disc.Files, archiver.Move); err != nil {
		t.Fatalf("Place() error = %v", err)
	}
	if err := tr.WriteFile(disc, ".archiverMetaData/discMetaData.js", []byte("x")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if exists(disc.Path) {
		t.Error("dry run created the disc directory")
	}
	if !exists(filepath.Join(root, "a.jpg")) {
		t.Error("dry run moved the source")
	}
	if fsys.WriteAttempts() != 0 {
		t.Errorf("dry run attempted %d writes", fsys.WriteAttempts())
	}
}

func TestEnsureDir_RetriesLaggingFilesystem(t *testing.T) {
	fsys := testutil.NewFaultyFilesystem()
	fsys.MissingDirWrites = 3
	clock := testutil.FixedClock()
	_, records := discoverWith(t, fsys, map[string]string{"deep/a.jpg": "a"})
	disc := archiver.NewDisc(filepath.Join(t.TempDir(), "regularArchive"), 1, records)

	tr := archiver.NewTransferer(fsys, archiver.NewNopLogger(), testPolicy(clock), 1, false)
	if err := tr.Place(disc, disc.Files, archiver.Copy); err != nil {
		t.Fatalf("Place() error = %v", err)
	}

	if len(clock.Sleeps()) != 3 {
		t.Errorf("slept %d times, want 3", len(clock.Sleeps()))
	}
	if !exists(filepath.Join(disc.Path, "deep", "a.jpg")) {
		t.Error("file not placed after recovering")
	}
}

func TestEnsureDir_GivesUp(t *testing.T) {
	fsys := testutil.NewFaultyFilesystem()
	fsys.MissingDirWrites = 1000
	policy := archiver.RetryPolicy{Attempts: 4, Backoff: time.Millisecond, Clock: testutil.FixedClock()}

	tr := archiver.NewTransferer(fsys, archiver.NewNopLogger(), policy, 1, false)
	err := tr.EnsureDir(filepath.Join(t.TempDir(), "Disc-001"))

	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("EnsureDir() error = %v, want not-exist", err)
	}
	if fsys.WriteAttempts() != 4 {
		t.Errorf("write attempts = %d, want 4", fsys.WriteAttempts())
	}
}

func TestTransferWriteFile(t *testing.T) {
	fsys := testutil.NewFaultyFilesystem()
	fsys.MissingDirWrites = 1
	disc := archiver.NewDisc(filepath.Join(t.TempDir(), "regularArchive"), 2, nil)

	tr := archiver.NewTransferer(fsys, archiver.NewNopLogger(), testPolicy(testutil.FixedClock()), 1, false)
	if err := tr.WriteFile(disc, ".archiverMetaData/discMetaData.js", []byte("payload")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if got := testutil.ReadFile(t, filepath.Join(disc.Path, ".archiverMetaData", "discMetaData.js")); got != "payload" {
		t.Errorf("written content = %q", got)
	}
}
