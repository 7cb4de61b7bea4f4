// Package upload stores uploaded workbooks for the duration of one request.
//
// Every request gets its own directory named by a random UUID, so two
// requests uploading files with the same name never share a path. The
// directory and everything in it is removed by Session.Cleanup.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/colcompare/internal/config"
	"github.com/JonMunkholm/colcompare/internal/logging"
	"github.com/google/uuid"
)

// ErrFileTooLarge is returned by Save when a file exceeds the size ceiling.
var ErrFileTooLarge = errors.New("file too large")

// Store creates per-request upload sessions under a root directory.
type Store struct {
	root    string
	maxSize int64
	allowed map[string]bool
}

// NewStore returns a store configured from cfg.
func NewStore(cfg config.UploadConfig) *Store {
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimSpace(ext))] = true
	}
	return &Store{root: cfg.Dir, maxSize: cfg.MaxFileSize, allowed: allowed}
}

// Allowed reports whether filename has an allow-listed extension.
// The check is case-insensitive on the text after the last dot.
func (s *Store) Allowed(filename string) bool {
	ext, ok := Extension(filename)
	return ok && s.allowed[ext]
}

// NewSession creates a fresh, uniquely named directory for one request.
func (s *Store) NewSession(ctx context.Context) (*Session, error) {
	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}

	id := uuid.NewString()
	dir := filepath.Join(s.root, id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create upload session: %w", err)
	}

	logging.FromContext(ctx).Debug("upload session created", "session_id", id, "dir", dir)
	return &Session{ID: id, Dir: dir, maxSize: s.maxSize}, nil
}

// Session is one request's private upload directory.
type Session struct {
	ID      string
	Dir     string
	maxSize int64
}

// Save writes r to the session directory and returns the path.
// The stored name is the field name plus the sanitized filename, so the
// two sides of a comparison never collide even when their names match.
func (s *Session) Save(ctx context.Context, field, filename string, r io.Reader) (string, error) {
	name := StoredName(filename)
	path := filepath.Join(s.Dir, field+"_"+name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.maxSize {
		err = fmt.Errorf("%s: %w", name, ErrFileTooLarge)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("save %s: %w", name, err)
	}

	logging.FromContext(ctx).Info("saved upload", "field", field, "path", path, "bytes", n)
	return path, nil
}

// Cleanup removes the session directory and everything in it.
// It is safe to call more than once.
func (s *Session) Cleanup(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	if err := os.RemoveAll(s.Dir); err != nil {
		logger.Error("error cleaning up temporary files", "dir", s.Dir, "error", err)
		return fmt.Errorf("cleanup %s: %w", s.ID, err)
	}
	logger.Info("removed temporary files", "dir", s.Dir)
	return nil
}
