package backup

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// LatestName is the symlink that always points at the newest archive
const LatestName = "latest.tar.gz"

const archiveTimeLayout = "2006-01-02T15:04:05"

// ArchiveName names an archive after the UTC time it was made
func ArchiveName(t time.Time) string {
	return t.UTC().Format(archiveTimeLayout) + ".tar.gz"
}

// Package writes files into a gzipped tar named for now inside workDir and
// repoints the latest symlink at it
func Package(workDir string, files []string, now time.Time) (string, error) {
	name := ArchiveName(now)
	path := filepath.Join(workDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for _, file := range files {
		if err := addFile(tw, file); err != nil {
			return "", err
		}
	}

	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive: %w", err)
	}

	latest := filepath.Join(workDir, LatestName)
	if err := os.Remove(latest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to remove latest link: %w", err)
	}
	if err := os.Symlink(name, latest); err != nil {
		return "", fmt.Errorf("failed to link latest archive: %w", err)
	}

	return path, nil
}

func addFile(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to build tar header for %s: %w", path, err)
	}
	header.Name = filepath.Base(path)

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", path, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("failed to archive %s: %w", path, err)
	}
	return nil
}

// UpdateNecessary reports whether the freshly dumped files named by compare
// differ from the copies inside the latest archive. A missing latest archive,
// or a compared file missing on either side, means an update is necessary.
func UpdateNecessary(logger *slog.Logger, workDir string, compare []string) (bool, error) {
	latest := filepath.Join(workDir, LatestName)

	archived, err := archiveDigests(latest, compare)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("No previous archive found", "path", latest)
		return true, nil
	}
	if err != nil {
		return false, err
	}

	for _, name := range compare {
		current, err := DigestFile(filepath.Join(workDir, name))
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("Compared file missing from dump", "file", name)
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to digest %s: %w", name, err)
		}

		previous, ok := archived[name]
		if !ok {
			logger.Info("Compared file missing from latest archive", "file", name)
			return true, nil
		}
		if previous != current {
			logger.Info("Digest changed", "file", name, "previous", previous, "current", current)
			return true, nil
		}
		logger.Debug("Digest unchanged", "file", name, "digest", current)
	}

	return false, nil
}

// archiveDigests digests the members of the archive at path whose names are in names
func archiveDigests(path string, names []string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer gz.Close()

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	digests := make(map[string]string)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if !wanted[header.Name] {
			continue
		}
		digest, err := DigestReader(tr)
		if err != nil {
			return nil, err
		}
		digests[header.Name] = digest
	}
	return digests, nil
}
