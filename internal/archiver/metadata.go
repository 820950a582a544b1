package archiver

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	// MetadataDir holds every archiver payload inside a disc directory.
	MetadataDir = ".archiverMetaData"
	// MetadataFile is the cross-disc payload copied onto every disc.
	MetadataFile = "metaData.js"
	// DiscMetadataFile names the disc it is written on.
	DiscMetadataFile = "discMetaData.js"

	metadataPrefix     = "window.archiverMetaData = "
	discMetadataPrefix = "window.archiverDiscMetaData = "
)

// SchemaVersion selects the metadata entry layout.
type SchemaVersion int

const (
	// SchemaV1 entries carry no content hash.
	SchemaV1 SchemaVersion = 1
	// SchemaV2 entries carry the SHA-256 content hash.
	SchemaV2 SchemaVersion = 2
)

// Valid reports whether v is a known schema version.
func (v SchemaVersion) Valid() bool { return v == SchemaV1 || v == SchemaV2 }

type fieldMeaning struct {
	U string `json:"u"`
	N string `json:"n"`
	R string `json:"r"`
	T string `json:"t"`
	D string `json:"d"`
	L string `json:"l"`
	X string `json:"x"`
	P string `json:"p"`
	C string `json:"c"`
	H string `json:"h,omitempty"`
}

type metadataEntry struct {
	ID           int64    `json:"u"`
	Name         string   `json:"n"`
	RelativePath string   `json:"r"`
	Title        string   `json:"t,omitempty"`
	TakenAt      *int64   `json:"d,omitempty"`
	Location     string   `json:"l,omitempty"`
	Description  string   `json:"x,omitempty"`
	People       []string `json:"p,omitempty"`
	Disc         int      `json:"c"`
	Hash         string   `json:"h,omitempty"`
}

// MetadataGenerator serializes the per-file metadata payload.
type MetadataGenerator struct {
	fsys   FilesystemManager
	logger Logger
	schema SchemaVersion
}

// NewMetadataGenerator creates a generator that reads sidecars through fsys.
func NewMetadataGenerator(fsys FilesystemManager, logger Logger, schema SchemaVersion) *MetadataGenerator {
	return &MetadataGenerator{fsys: fsys, logger: logger, schema: schema}
}

// Measure returns the byte length of the payload Generate would produce for
// records once packed. The records are laid out as one hypothetical disc
// numbered with the largest disc number packing could assign, so the real
// payload is never longer than the measurement.
func (g *MetadataGenerator) Measure(records []*FileRecord) (int64, error) {
	hypothetical := []*Disc{{Number: max(1, len(records)), Files: records}}
	var cw countingWriter
	if err := g.Generate(&cw, hypothetical); err != nil {
		return 0, err
	}
	return cw.n, nil
}

// Generate writes the payload for discs to w: a legend followed by one
// entry per file, in disc order then file order, with ids from 1.
func (g *MetadataGenerator) Generate(w io.Writer, discs []*Disc) error {
	bw := bufio.NewWriter(w)

	legend, err := marshalCompact(g.legend())
	if err != nil {
		return fmt.Errorf("encoding legend: %w", err)
	}
	bw.WriteString(metadataPrefix)
	bw.WriteString(`{"fieldMeaning":`)
	bw.Write(legend)
	bw.WriteString(`,"files":[`)

	var id int64
	for _, disc := range discs {
		for _, r := range disc.Files {
			id++
			entry, err := g.entry(id, disc.Number, r)
			if err != nil {
				return err
			}
			encoded, err := marshalCompact(entry)
			if err != nil {
				return fmt.Errorf("encoding entry for %s: %w", r.principalPath, err)
			}
			if id > 1 {
				bw.WriteByte(',')
			}
			bw.Write(encoded)
		}
	}

	bw.WriteString(`]}`)
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

func (g *MetadataGenerator) legend() fieldMeaning {
	l := fieldMeaning{
		U: "Unique ID",
		N: "Name",
		R: "Relative Path",
		T: "Title",
		D: "Date Taken",
		L: "Location Coordinates",
		X: "Description/Notes",
		P: "People",
		C: "Archival Disc Number",
	}
	if g.schema >= SchemaV2 {
		l.H = "SHA-256 Hash"
	}
	return l
}

func (g *MetadataGenerator) entry(id int64, disc int, r *FileRecord) (*metadataEntry, error) {
	e := &metadataEntry{
		ID:           id,
		Name:         r.Name(),
		RelativePath: r.PrincipalRelativePath(),
		Disc:         disc,
	}
	if g.schema >= SchemaV2 {
		e.Hash = r.hash
	}

	if r.sidecarPath == "" {
		return e, nil
	}

	s, err := g.readSidecar(r.sidecarPath)
	if err != nil {
		g.logger.Warn("ignoring unreadable sidecar", "path", r.sidecarPath, "error", err)
		return e, nil
	}

	e.Title = strings.TrimSpace(s.Title)
	e.Description = strings.TrimSpace(s.Description)
	if ts, ok := s.takenAt(); ok {
		e.TakenAt = &ts
	}
	if loc, ok := s.location(); ok {
		e.Location = loc
	}
	e.People = s.people()
	return e, nil
}

func (g *MetadataGenerator) readSidecar(path string) (*sidecar, error) {
	f, err := g.fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseSidecar(f)
}

// WriteDiscMetadata writes the one-field payload naming disc number.
func WriteDiscMetadata(w io.Writer, number int) error {
	body, err := marshalCompact(struct {
		DiscNumber int `json:"discNumber"`
	}{number})
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, discMetadataPrefix); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// DiscMetadataLength is the size of the disc payload for disc number.
func DiscMetadataLength(number int) int64 {
	var cw countingWriter
	WriteDiscMetadata(&cw, number)
	return cw.n
}

// marshalCompact encodes v without HTML escaping or a trailing newline.
func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// countingWriter discards everything and counts bytes.
type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
