package archiver_test

import (
	"encoding/json"
	"path/filepath"
	"reflect"
	"testing"

	"archiver-go/internal/archiver"
	"archiver-go/internal/fs"
	"archiver-go/internal/testutil"
)

func TestNewFileRecord(t *testing.T) {
	fsys := fs.NewOSFilesystemManager(nil)

	t.Run("plain file", func(t *testing.T) {
		root := t.TempDir()
		testutil.WriteTree(t, root, map[string]string{"Photos/2020/a.jpg": "jpeg bytes"})
		path := filepath.Join(root, "Photos", "2020", "a.jpg")

		r, err := archiver.NewFileRecord(fsys, root, path, "")
		if err != nil {
			t.Fatalf("NewFileRecord() error = %v", err)
		}
		if r.PrincipalRelativePath() != "Photos/2020/a.jpg" {
			t.Errorf("PrincipalRelativePath() = %q, want %q", r.PrincipalRelativePath(), "Photos/2020/a.jpg")
		}
		if r.Size() != int64(len("jpeg bytes")) {
			t.Errorf("Size() = %d, want %d", r.Size(), len("jpeg bytes"))
		}
		if r.Hash() != testutil.SHA256Hex("jpeg bytes") {
			t.Errorf("Hash() = %q, want sha256 of content", r.Hash())
		}
		if r.SidecarPath() != "" {
			t.Errorf("SidecarPath() = %q, want empty", r.SidecarPath())
		}
		if r.Name() != "a.jpg" {
			t.Errorf("Name() = %q, want a.jpg", r.Name())
		}
	})

	t.Run("folds sidecar and prefixes paths", func(t *testing.T) {
		root := t.TempDir()
		testutil.WriteTree(t, root, map[string]string{
			"a.jpg":      "jpeg",
			"a.jpg.json": `{"title":"a"}`,
		})
		path := filepath.Join(root, "a.jpg")

		r, err := archiver.NewFileRecord(fsys, root, path, ".archiverMetaData/html/")
		if err != nil {
			t.Fatalf("NewFileRecord() error = %v", err)
		}

		want := []archiver.PathPair{
			{Source: path, Relative: ".archiverMetaData/html/a.jpg"},
			{Source: path + ".json", Relative: ".archiverMetaData/html/a.jpg.json"},
		}
		if !reflect.DeepEqual(r.Paths(), want) {
			t.Errorf("Paths() = %v, want %v", r.Paths(), want)
		}
		if r.Size() != int64(len("jpeg")+len(`{"title":"a"}`)) {
			t.Errorf("Size() = %d, want principal + sidecar", r.Size())
		}
		if r.Hash() != testutil.SHA256Hex("jpeg") {
			t.Error("sidecar must not contribute to the hash")
		}
	})

	t.Run("hashing is stable across identical content", func(t *testing.T) {
		root := t.TempDir()
		testutil.WriteTree(t, root, map[string]string{
			"one/a.jpg":      "same",
			"one/a.jpg.json": `{"title":"first"}`,
			"two/b.jpg":      "same",
			"two/b.jpg.json": `{"title":"second caption"}`,
		})

		a, err := archiver.NewFileRecord(fsys, root, filepath.Join(root, "one", "a.jpg"), "")
		if err != nil {
			t.Fatal(err)
		}
		b, err := archiver.NewFileRecord(fsys, root, filepath.Join(root, "two", "b.jpg"), "")
		if err != nil {
			t.Fatal(err)
		}
		if a.Hash() != b.Hash() {
			t.Errorf("hashes differ for identical principal bytes: %s vs %s", a.Hash(), b.Hash())
		}
	})

	t.Run("rejects path outside root", func(t *testing.T) {
		root := t.TempDir()
		other := t.TempDir()
		testutil.WriteFile(t, filepath.Join(other, "x.jpg"), "x")

		if _, err := archiver.NewFileRecord(fsys, root, filepath.Join(other, "x.jpg"), ""); err == nil {
			t.Error("expected error for file outside root")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		root := t.TempDir()
		if _, err := archiver.NewFileRecord(fsys, root, filepath.Join(root, "gone.jpg"), ""); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestFileRecord_ChangeRelativePathPrefix(t *testing.T) {
	r, err := archiver.RestoreFileRecord("/src/a.jpg", "/src/a.jpg.json", 10, "h", "old/", []archiver.PathPair{
		{Source: "/src/a.jpg", Relative: "old/a.jpg"},
		{Source: "/src/a.jpg.json", Relative: "old/a.jpg.json"},
	})
	if err != nil {
		t.Fatalf("RestoreFileRecord() error = %v", err)
	}

	if err := r.ChangeRelativePathPrefix("new/deeper/"); err != nil {
		t.Fatalf("ChangeRelativePathPrefix() error = %v", err)
	}

	if r.RelativePathPrefix() != "new/deeper/" {
		t.Errorf("RelativePathPrefix() = %q", r.RelativePathPrefix())
	}
	want := []archiver.PathPair{
		{Source: "/src/a.jpg", Relative: "new/deeper/a.jpg"},
		{Source: "/src/a.jpg.json", Relative: "new/deeper/a.jpg.json"},
	}
	if !reflect.DeepEqual(r.Paths(), want) {
		t.Errorf("Paths() = %v, want %v", r.Paths(), want)
	}
	if r.PrincipalRelativePath() != "new/deeper/a.jpg" {
		t.Errorf("PrincipalRelativePath() = %q", r.PrincipalRelativePath())
	}
	if r.Size() != 10 {
		t.Errorf("Size() changed to %d", r.Size())
	}
}

func TestRestoreFileRecord_Validation(t *testing.T) {
	tests := []struct {
		name    string
		sidecar string
		prefix  string
		paths   []archiver.PathPair
	}{
		{
			name:  "no paths",
			paths: nil,
		},
		{
			name:  "principal not first",
			paths: []archiver.PathPair{{Source: "/src/other.jpg", Relative: "other.jpg"}},
		},
		{
			name:   "relative path without prefix",
			prefix: "p/",
			paths:  []archiver.PathPair{{Source: "/src/a.jpg", Relative: "a.jpg"}},
		},
		{
			name:    "sidecar missing from paths",
			sidecar: "/src/a.jpg.json",
			paths:   []archiver.PathPair{{Source: "/src/a.jpg", Relative: "a.jpg"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := archiver.RestoreFileRecord("/src/a.jpg", tt.sidecar, 1, "h", tt.prefix, tt.paths); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestFileRecord_JSONRoundTrip(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"Google Photos/a.jpg":      "jpeg",
		"Google Photos/a.jpg.json": "{}",
		"Drive/b.pdf":              "pdf",
	})

	records, err := archiver.Discover(fs.NewOSFilesystemManager(nil), root, "")
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	data, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got []*archiver.FileRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if len(got) != len(records) {
		t.Fatalf("len = %d, want %d", len(got), len(records))
	}
	for i := range records {
		want, have := records[i], got[i]
		if have.PrincipalPath() != want.PrincipalPath() ||
			have.PrincipalRelativePath() != want.PrincipalRelativePath() ||
			have.SidecarPath() != want.SidecarPath() ||
			have.Size() != want.Size() ||
			have.Hash() != want.Hash() ||
			have.RelativePathPrefix() != want.RelativePathPrefix() ||
			!reflect.DeepEqual(have.Paths(), want.Paths()) {
			t.Errorf("record %d did not round-trip: got %+v, want %+v", i, have, want)
		}
	}
}

func TestFileRecord_UnmarshalRejectsInconsistentRecord(t *testing.T) {
	data := `{"principalPath":"/src/a.jpg","principalRelativePath":"x/a.jpg","size":1,"hash":"h","relativePathPrefix":"","paths":[{"source":"/src/a.jpg","relative":"a.jpg"}]}`
	var r archiver.FileRecord
	if err := json.Unmarshal([]byte(data), &r); err == nil {
		t.Error("expected error for mismatched principal relative path")
	}
}
