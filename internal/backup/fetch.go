package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// FetchOptions configures retrieval of the latest archive
type FetchOptions struct {
	WorkDir      string
	KeyPrefix    string
	PastDays     int
	FutureDays   int
	Decrypt      bool
	IdentityFile string
}

// LatestKey walks from futureDays ahead of now back to pastDays before it and
// returns the lexically last key of the first day that has any. It returns an
// empty key when no day in the window has one.
func LatestKey(ctx context.Context, store ObjectStore, prefix string, now time.Time, pastDays, futureDays int) (string, error) {
	for offset := futureDays; offset >= -pastDays; offset-- {
		day := now.UTC().AddDate(0, 0, offset).Format(dayLayout)
		keys, err := store.List(ctx, path.Join(prefix, day))
		if err != nil {
			return "", err
		}
		if len(keys) == 0 {
			continue
		}
		sort.Strings(keys)
		return keys[len(keys)-1], nil
	}
	return "", nil
}

// Fetch downloads the latest archive into the work dir and, when asked,
// decrypts it. It returns the local path of the usable archive, or an empty
// path when nothing was found.
func Fetch(ctx context.Context, logger *slog.Logger, store ObjectStore, opts FetchOptions, now time.Time) (string, error) {
	var key string
	err := Timed(logger, "find", func() error {
		var err error
		key, err = LatestKey(ctx, store, opts.KeyPrefix, now, opts.PastDays, opts.FutureDays)
		return err
	})
	if err != nil {
		return "", err
	}
	if key == "" {
		logger.Warn("No archive found", "prefix", opts.KeyPrefix, "past_days", opts.PastDays, "future_days", opts.FutureDays)
		return "", nil
	}
	logger.Info("Found latest archive", "key", key)

	encrypted := strings.HasSuffix(key, EncryptedSuffix)
	dst := filepath.Join(opts.WorkDir, LatestName)
	if encrypted {
		dst += EncryptedSuffix
	}

	err = Timed(logger, "download", func() error {
		// latest may be a symlink left by a collect run
		if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		size, err := store.Download(ctx, key, dst)
		if err != nil {
			return err
		}
		logger.Info("Downloaded archive", "key", key, "path", dst, "bytes", size)
		return nil
	})
	if err != nil {
		return "", err
	}

	if !encrypted || !opts.Decrypt {
		return dst, nil
	}
	if opts.IdentityFile == "" {
		return "", fmt.Errorf("decrypting %s requires an identity file", dst)
	}

	plain := filepath.Join(opts.WorkDir, LatestName)
	err = Timed(logger, "decrypt", func() error {
		return Decrypt(dst, plain, opts.IdentityFile)
	})
	if err != nil {
		return "", err
	}
	return plain, nil
}
