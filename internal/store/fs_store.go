package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// FSStore implements the Store interface on the filesystem.
// Records are stored as <baseDir>/fits/<id>/result.json.
//
// Writes go through a temp file and a rename, so concurrent callers never
// observe a partially written record.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSStore{
		baseDir: baseDir,
	}, nil
}

// BaseDir returns the root directory of the store.
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

func (fs *FSStore) fitsDir() string {
	return filepath.Join(fs.baseDir, "fits")
}

func (fs *FSStore) fitDir(id string) string {
	return filepath.Join(fs.fitsDir(), id)
}

func (fs *FSStore) resultPath(id string) string {
	return filepath.Join(fs.fitDir(id), "result.json")
}

// checkID rejects IDs that would escape the fits directory.
func checkID(id string) error {
	if id == "" {
		return fmt.Errorf("fit ID cannot be empty")
	}
	if id != filepath.Base(id) || id == "." || id == ".." {
		return fmt.Errorf("invalid fit ID %q", id)
	}
	return nil
}

// SaveResult atomically saves the record for the given fit.
func (fs *FSStore) SaveResult(id string, record *FitRecord) error {
	if err := checkID(id); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("fit record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	dir := fs.fitDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create fit directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize fit record: %w", err)
	}

	tempPath := fs.resultPath(id) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp result file: %w", err)
	}

	finalPath := fs.resultPath(id)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename result file: %w", err)
	}

	slog.Debug("Fit result saved", "id", id, "path", finalPath)
	return nil
}

// LoadResult retrieves the record for the given fit.
func (fs *FSStore) LoadResult(id string) (*FitRecord, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	path := fs.resultPath(id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read result file: %w", err)
	}

	var record FitRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to deserialize fit record: %w", err)
	}

	slog.Debug("Fit result loaded", "id", id, "path", path)
	return &record, nil
}

// ListResults returns metadata for all stored fits, oldest first.
func (fs *FSStore) ListResults() ([]FitInfo, error) {
	entries, err := os.ReadDir(fs.fitsDir())
	if os.IsNotExist(err) {
		return []FitInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read fits directory: %w", err)
	}

	infos := []FitInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id := entry.Name()
		if _, err := os.Stat(fs.resultPath(id)); os.IsNotExist(err) {
			continue
		}

		record, err := fs.LoadResult(id)
		if err != nil {
			slog.Warn("Failed to load fit result for listing", "id", id, "error", err)
			continue
		}

		infos = append(infos, record.ToInfo())
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Timestamp.Before(infos[j].Timestamp)
	})

	slog.Debug("Listed fit results", "count", len(infos))
	return infos, nil
}

// DeleteResult removes the fit directory and everything in it.
func (fs *FSStore) DeleteResult(id string) error {
	if err := checkID(id); err != nil {
		return err
	}

	dir := fs.fitDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{ID: id}
	} else if err != nil {
		return fmt.Errorf("failed to stat fit directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove fit directory: %w", err)
	}

	slog.Debug("Fit result deleted", "id", id, "path", dir)
	return nil
}

var _ Store = (*FSStore)(nil)
