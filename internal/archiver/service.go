package archiver

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// ArchiveSet is a group of discovered files written to its own series of
// discs with a shared capacity.
type ArchiveSet struct {
	Name         string
	Files        []*FileRecord
	DiscCapacity int64
}

// Options configures an ArchiverService.
type Options struct {
	// DestinationPath is the parent of every "<set>Archive" directory.
	DestinationPath string
	// StagingDir is a private scratch directory owned by the caller.
	StagingDir string
	// Mode applies to content files; extras and metadata are always copied.
	Mode   TransferMode
	Schema SchemaVersion
}

// SetResult describes how one ArchiveSet was packed.
type SetResult struct {
	Name           string
	Discs          []*Disc
	Discovered     int
	Unique         int
	Overhead       int64
	MetadataLength int64
	Capacity       int64
}

// ArchiverService runs the packing pipeline for archive sets:
// dedup, overhead measurement, packing, metadata generation and transfer.
type ArchiverService struct {
	fsys     FilesystemManager
	transfer *Transferer
	metadata *MetadataGenerator
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	opts     Options
}

// NewArchiverService creates a new ArchiverService with the provided dependencies.
func NewArchiverService(fsys FilesystemManager, transfer *Transferer, logger Logger, clock Clock, idgen IDGenerator, opts Options) *ArchiverService {
	return &ArchiverService{
		fsys:     fsys,
		transfer: transfer,
		metadata: NewMetadataGenerator(fsys, logger, opts.Schema),
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
		opts:     opts,
	}
}

// SetDir is the directory that holds the discs of set name.
func (s *ArchiverService) SetDir(name string) string {
	return filepath.Join(s.opts.DestinationPath, name+"Archive")
}

// Plan deduplicates set.Files in place, reserves room for extras and the
// metadata payload on every disc, and packs the survivors.
func (s *ArchiverService) Plan(set ArchiveSet, extras []*FileRecord) (*SetResult, error) {
	discovered := len(set.Files)
	files := Deduplicate(set.Files)

	var paths int
	for _, f := range files {
		paths += len(f.paths)
	}
	s.logger.Info("processing unique archive files", "set", set.Name, "units", len(files), "files", paths, "duplicates", discovered-len(files))

	metaLen, err := s.metadata.Measure(files)
	if err != nil {
		return nil, fmt.Errorf("measuring metadata for %s set: %w", set.Name, err)
	}
	overhead := TotalSize(extras) + metaLen + DiscMetadataLength(max(1, len(files)))

	discs, err := Pack(s.SetDir(set.Name), files, overhead, set.DiscCapacity)
	if err != nil {
		return nil, fmt.Errorf("packing %s set: %w", set.Name, err)
	}

	s.logger.Info("packed discs", "set", set.Name, "discs", len(discs),
		"overhead", humanize.Bytes(uint64(max(0, overhead))), "capacity", humanize.Bytes(uint64(max(0, set.DiscCapacity))))

	return &SetResult{
		Name:           set.Name,
		Discs:          discs,
		Discovered:     discovered,
		Unique:         len(files),
		Overhead:       overhead,
		MetadataLength: metaLen,
		Capacity:       set.DiscCapacity,
	}, nil
}

// Archive plans set and writes every disc. Each disc receives the extras,
// the shared metadata payload and its own disc payload before any content
// file, so a disc interrupted midway still describes itself.
func (s *ArchiverService) Archive(set ArchiveSet, extras []*FileRecord) (*SetResult, error) {
	started := s.clock.Now()

	result, err := s.Plan(set, extras)
	if err != nil {
		return nil, err
	}
	if len(result.Discs) == 0 {
		s.logger.Info("nothing to archive", "set", set.Name)
		return result, nil
	}

	metaRecord, err := s.stageMetadata(result)
	if err != nil {
		return nil, err
	}
	payloads := append(append([]*FileRecord(nil), extras...), metaRecord)

	for _, disc := range result.Discs {
		s.logger.Info("creating disc", "set", set.Name, "disc", disc.Number, "of", len(result.Discs), "path", disc.Path)

		s.logger.Info("adding source, binary, html, and metadata files", "disc", disc.Number)
		if err := s.transfer.Place(disc, payloads, Copy); err != nil {
			return nil, fmt.Errorf("adding metadata to disc %d of %s set: %w", disc.Number, set.Name, err)
		}

		var discMeta bytes.Buffer
		if err := WriteDiscMetadata(&discMeta, disc.Number); err != nil {
			return nil, fmt.Errorf("encoding disc metadata: %w", err)
		}
		if err := s.transfer.WriteFile(disc, MetadataDir+"/"+DiscMetadataFile, discMeta.Bytes()); err != nil {
			return nil, fmt.Errorf("writing disc metadata for disc %d of %s set: %w", disc.Number, set.Name, err)
		}

		s.logger.Info("adding content files", "disc", disc.Number, "units", len(disc.Files),
			"size", humanize.Bytes(uint64(TotalSize(disc.Files))), "mode", s.opts.Mode.String())
		if err := s.transfer.Place(disc, disc.Files, s.opts.Mode); err != nil {
			return nil, fmt.Errorf("adding content to disc %d of %s set: %w", disc.Number, set.Name, err)
		}
	}

	s.logger.Info("set complete", "set", set.Name, "discs", len(result.Discs), "elapsed", s.clock.Now().Sub(started).String())
	return result, nil
}

// stageMetadata generates the real payload into a fresh staging directory
// and returns it as a record rooted so that it lands in MetadataDir.
func (s *ArchiverService) stageMetadata(result *SetResult) (*FileRecord, error) {
	var buf bytes.Buffer
	if err := s.metadata.Generate(&buf, result.Discs); err != nil {
		return nil, fmt.Errorf("generating metadata for %s set: %w", result.Name, err)
	}
	if int64(buf.Len()) > result.MetadataLength {
		return nil, fmt.Errorf("metadata for %s set is %d bytes but only %d were reserved", result.Name, buf.Len(), result.MetadataLength)
	}

	root := filepath.Join(s.opts.StagingDir, s.idgen.New())
	dir := filepath.Join(root, MetadataDir)
	if err := s.transfer.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("staging metadata: %w", err)
	}
	path := filepath.Join(dir, MetadataFile)
	if err := s.fsys.WriteFile(path, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("staging metadata: %w", err)
	}

	record, err := NewFileRecord(s.fsys, root, path, "")
	if err != nil {
		return nil, fmt.Errorf("staging metadata: %w", err)
	}
	return record, nil
}
