package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"telegram-media-courier/internal/domain"
	"telegram-media-courier/internal/domain/ports/adapter"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var _ adapter.StagingStore = (*DiskStore)(nil)

// DiskStore stages fetched media on the local filesystem under
// root/<jobID>/<key>. Keys are opaque outside this package.
type DiskStore struct {
	root string
	log  *zerolog.Logger
}

func NewDiskStore(root string, logger *zerolog.Logger) (*DiskStore, error) {
	if root == "" {
		return nil, domain.ErrConfiguration
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create staging root: %w", err)
	}
	stLog := logger.With().Str("component", "StagingStore").Logger()
	return &DiskStore{root: root, log: &stLog}, nil
}

func (s *DiskStore) path(key string) (string, error) {
	// Keys are produced by Put; reject anything trying to walk out of root.
	clean := filepath.Clean(key)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", domain.ErrInvalidArgument
	}
	return filepath.Join(s.root, clean), nil
}

func (s *DiskStore) Put(ctx context.Context, jobID, filename string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	key := filepath.Join(jobID, uuid.NewString()+"_"+filepath.Base(filename))
	full := filepath.Join(s.root, key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", 0, fmt.Errorf("%w: %v", domain.ErrStagingIO, err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", domain.ErrStagingIO, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return "", 0, fmt.Errorf("%w: %v", domain.ErrStagingIO, err)
	}
	return key, n, nil
}

func (s *DiskStore) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	full, err := s.path(key)
	if err != nil {
		return nil, 0, err
	}
	fi, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, domain.ErrNotFound
		}
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrStagingIO, err)
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrStagingIO, err)
	}
	return f, fi.Size(), nil
}

// Release removes one staged file. Releasing an absent key is a no-op so
// callers can release unconditionally on every exit path.
func (s *DiskStore) Release(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	full, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", domain.ErrStagingIO, err)
	}
	// Drop the job directory once it is empty; ignore failure, cleanup
	// sweeps will catch it.
	_ = os.Remove(filepath.Dir(full))
	return nil
}

func (s *DiskStore) Cleanup(ctx context.Context, olderThan time.Time) (adapter.CleanupReport, error) {
	var report adapter.CleanupReport
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // entry vanished mid-walk
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() || !info.ModTime().Before(olderThan) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("cleanup could not remove staged file")
			return nil
		}
		report.RemovedCount++
		report.BytesFreed += info.Size()
		return nil
	})
	if err != nil {
		return report, err
	}
	// Second pass for now-empty job directories.
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return report, nil
	}
	for _, e := range entries {
		if e.IsDir() {
			_ = os.Remove(filepath.Join(s.root, e.Name()))
		}
	}
	return report, nil
}

// Len counts currently staged files, used by resource-accounting tests and
// the stats report.
func (s *DiskStore) Len() int {
	n := 0
	_ = filepath.Walk(s.root, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			n++
		}
		return nil
	})
	return n
}
