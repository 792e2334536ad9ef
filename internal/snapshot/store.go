// Package snapshot persists a finished understanding to disk and loads it
// back for the next incremental run. Snapshots are single JSON documents,
// zstd-compressed by default, written atomically so a crashed save never
// leaves a truncated file behind.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"fathom/internal/model"
)

const (
	compressedName = "understanding.json.zst"
	plainName      = "understanding.json"
)

// ErrNotFound is returned by Load when no snapshot has been saved yet.
var ErrNotFound = errors.New("no snapshot found")

// Store reads and writes understanding snapshots under one directory.
type Store struct {
	dir      string
	compress bool
	logger   *slog.Logger
}

// NewStore creates a store rooted at dir. The directory is created on the
// first save.
func NewStore(dir string, compress bool, logger *slog.Logger) *Store {
	return &Store{dir: dir, compress: compress, logger: logger}
}

// Path returns the file the next Save will write.
func (s *Store) Path() string {
	if s.compress {
		return filepath.Join(s.dir, compressedName)
	}
	return filepath.Join(s.dir, plainName)
}

// Save writes the understanding as one snapshot file. The write goes to a
// temp file in the same directory and lands with a rename; the sibling in
// the other format is removed so a later Load cannot pick up stale data.
func (s *Store) Save(u *model.UnifiedUnderstanding) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal understanding: %w", err)
	}
	rawSize := len(data)
	if s.compress {
		if data, err = compressSnapshot(data); err != nil {
			return err
		}
	}

	final := s.Path()
	tmp, err := os.CreateTemp(s.dir, ".understanding-*")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace snapshot: %w", err)
	}
	os.Remove(s.siblingPath())

	s.logger.Debug("Snapshot saved",
		"path", final, "rawBytes", rawSize, "storedBytes", len(data))
	return nil
}

// Load reads the most recent snapshot, whichever format it was saved in.
// Returns ErrNotFound when neither format exists.
func (s *Store) Load() (*model.UnifiedUnderstanding, error) {
	for _, name := range []string{compressedName, plainName} {
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		if strings.HasSuffix(name, ".zst") {
			if data, err = decompressSnapshot(data); err != nil {
				return nil, err
			}
		}
		u := &model.UnifiedUnderstanding{}
		if err := json.Unmarshal(data, u); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot %s: %w", path, err)
		}
		s.logger.Debug("Snapshot loaded", "path", path, "nodes", len(u.CodeNodes))
		return u, nil
	}
	return nil, ErrNotFound
}

// Remove deletes any saved snapshot. Missing files are not an error.
func (s *Store) Remove() error {
	for _, name := range []string{compressedName, plainName} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove snapshot: %w", err)
		}
	}
	return nil
}

func (s *Store) siblingPath() string {
	if s.compress {
		return filepath.Join(s.dir, plainName)
	}
	return filepath.Join(s.dir, compressedName)
}

func compressSnapshot(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/3)), nil
}

func decompressSnapshot(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	return out, nil
}
