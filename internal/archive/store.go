package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

const (
	defaultLockRetries = 50
	defaultRetryDelay  = 100 * time.Millisecond
)

// Store reads and rewrites per-document ledger files under a base directory.
// Concurrent writers from multiple processes coordinate through an advisory
// lock on a sibling .lock file; the lock file itself is never replaced so
// its inode stays valid across ledger rewrites.
type Store struct {
	baseDir     string
	lockRetries int
	retryDelay  time.Duration
	logger      *zap.Logger
}

func NewStore(baseDir string, logger *zap.Logger) *Store {
	return &Store{
		baseDir:     baseDir,
		lockRetries: defaultLockRetries,
		retryDelay:  defaultRetryDelay,
		logger:      logger,
	}
}

// Path returns the ledger file location for a document.
func (s *Store) Path(documentID int64) string {
	return filepath.Join(s.baseDir, strconv.FormatInt(documentID, 10)+"_archive.json")
}

// Load reads a document's ledger without taking the lock. A missing file is
// an empty ledger, not an error.
func (s *Store) Load(documentID int64) (*Archive, error) {
	data, err := os.ReadFile(s.Path(documentID))
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("read archive for document %d: %w", documentID, err)
	}
	return Parse(data), nil
}

// Update applies mutate to the document's ledger under the file lock and
// atomically replaces the file. It reports success rather than returning an
// error: ledger writes are best-effort from the caller's point of view and
// must never fail the business operation that triggered them.
//
// The lock is released before the file is rewritten. The lock only
// serializes the read-mutate step; the replace itself is atomic via rename.
func (s *Store) Update(ctx context.Context, documentID int64, mutate func(*Archive)) bool {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		s.logger.Error("create archive directory", zap.String("dir", s.baseDir), zap.Error(err))
		return false
	}

	path := s.Path(documentID)
	lock := flock.New(path + ".lock")

	locked := false
	for i := 0; i < s.lockRetries; i++ {
		ok, err := lock.TryLock()
		if err != nil {
			s.logger.Error("acquire archive lock", zap.String("path", path), zap.Error(err))
			return false
		}
		if ok {
			locked = true
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.retryDelay):
		}
	}
	if !locked {
		s.logger.Warn("archive lock contention, giving up",
			zap.String("path", path),
			zap.Int("retries", s.lockRetries))
		return false
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		_ = lock.Unlock()
		s.logger.Error("read archive", zap.String("path", path), zap.Error(err))
		return false
	}
	a := Parse(data)

	mutate(a)

	out, err := a.Marshal()
	if err != nil {
		_ = lock.Unlock()
		s.logger.Error("marshal archive", zap.String("path", path), zap.Error(err))
		return false
	}

	if err := lock.Unlock(); err != nil {
		s.logger.Warn("release archive lock", zap.String("path", path), zap.Error(err))
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		s.logger.Error("write archive temp file", zap.String("path", tmp), zap.Error(err))
		return false
	}
	if info, err := os.Stat(tmp); err != nil || info.Size() == 0 {
		s.logger.Error("archive temp file empty or unreadable", zap.String("path", tmp))
		_ = os.Remove(tmp)
		return false
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Error("remove previous archive", zap.String("path", path), zap.Error(err))
		_ = os.Remove(tmp)
		return false
	}
	if err := os.Rename(tmp, path); err != nil {
		s.logger.Error("replace archive", zap.String("path", path), zap.Error(err))
		return false
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		s.logger.Error("archive verification failed after replace", zap.String("path", path))
		return false
	}
	return true
}
