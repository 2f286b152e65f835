package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"cotracker/internal/database"
)

// Source is the database being backed up
type Source interface {
	Snapshot(path string) error
	ExportFixtures() ([]database.Fixture, error)
}

// Dump writes a database snapshot and one JSON fixture per table group into
// workDir and returns the paths written. Empty fixtures are skipped.
func Dump(logger *slog.Logger, src Source, workDir, dbName string) ([]string, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}

	snapshot := filepath.Join(workDir, dbName+".sqlite3")
	// VACUUM INTO refuses to overwrite
	if err := os.Remove(snapshot); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove old snapshot: %w", err)
	}
	if err := src.Snapshot(snapshot); err != nil {
		return nil, err
	}
	files := []string{snapshot}

	fixtures, err := src.ExportFixtures()
	if err != nil {
		return files, err
	}

	for _, fixture := range fixtures {
		if fixture.Len == 0 {
			logger.Warn("Skipping empty fixture", "fixture", fixture.Name)
			continue
		}

		data, err := json.MarshalIndent(fixture.Rows, "", "  ")
		if err != nil {
			return files, fmt.Errorf("failed to encode fixture %s: %w", fixture.Name, err)
		}

		path := filepath.Join(workDir, fixture.Name+".json")
		if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
			return files, fmt.Errorf("failed to write fixture %s: %w", fixture.Name, err)
		}
		logger.Debug("Wrote fixture", "fixture", fixture.Name, "rows", fixture.Len)
		files = append(files, path)
	}

	return files, nil
}

// RemoveFiles deletes the dump files, ignoring ones already gone
func RemoveFiles(files []string) error {
	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
