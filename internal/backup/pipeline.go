package backup

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Options configures a backup pipeline
type Options struct {
	WorkDir    string
	DBName     string
	KeyPrefix  string
	Compare    []string
	Recipients []string
}

// Result describes one collect run
type Result struct {
	Necessary bool
	Archive   string
	Encrypted string
	Key       string
	Size      int64
}

// Pipeline dumps the database, packages and encrypts it when it changed, and
// uploads the archive
type Pipeline struct {
	source Source
	store  ObjectStore
	logger *slog.Logger
	opts   Options
	now    func() time.Time
}

func NewPipeline(source Source, store ObjectStore, logger *slog.Logger, opts Options) *Pipeline {
	return &Pipeline{
		source: source,
		store:  store,
		logger: logger,
		opts:   opts,
		now:    time.Now,
	}
}

// Collect runs the pipeline once. A failing step aborts the run and leaves its
// files in the work dir.
func (p *Pipeline) Collect(ctx context.Context) (*Result, error) {
	result := &Result{}
	var files []string

	err := Timed(p.logger, "dump", func() error {
		var err error
		files, err = Dump(p.logger, p.source, p.opts.WorkDir, p.opts.DBName)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = Timed(p.logger, "compare", func() error {
		var err error
		result.Necessary, err = UpdateNecessary(p.logger, p.opts.WorkDir, p.opts.Compare)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Necessary {
		if err := p.publish(ctx, files, result); err != nil {
			return nil, err
		}
	} else {
		p.logger.Info("Digests match, no new archive needed")
	}

	err = Timed(p.logger, "cleanup", func() error {
		return RemoveFiles(files)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) publish(ctx context.Context, files []string, result *Result) error {
	err := Timed(p.logger, "package", func() error {
		var err error
		result.Archive, err = Package(p.opts.WorkDir, files, p.now())
		return err
	})
	if err != nil {
		return err
	}

	result.Encrypted = result.Archive + EncryptedSuffix
	err = Timed(p.logger, "encrypt", func() error {
		return Encrypt(result.Archive, result.Encrypted, p.opts.Recipients)
	})
	if err != nil {
		return err
	}

	return Timed(p.logger, "upload", func() error {
		var err error
		result.Key, result.Size, err = Upload(ctx, p.logger, p.store, result.Encrypted, p.opts.KeyPrefix)
		return err
	})
}

// Upload puts localPath into the store under prefix and returns the key and size
func Upload(ctx context.Context, logger *slog.Logger, store ObjectStore, localPath, prefix string) (string, int64, error) {
	if !strings.HasSuffix(localPath, EncryptedSuffix) {
		logger.Warn("Uploading an archive that is not encrypted", "path", localPath)
	}

	key := ObjectKey(prefix, localPath)
	size, err := store.Upload(ctx, localPath, key)
	if err != nil {
		return "", 0, err
	}
	logger.Info("Uploaded archive", "key", key, "bytes", size)
	return key, size, nil
}
