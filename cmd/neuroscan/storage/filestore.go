package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cortexlab/neuroscan/common/logger"
)

// FileStore writes and reads image files under a single upload root.
// Filesystem persistence is always best-effort relative to the metadata
// store: every failure here is soft and reported as an error the caller may
// ignore.
type FileStore struct {
	root string
	log  *logger.Logger
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(dir string, log *logger.Logger) *FileStore {
	return &FileStore{
		root: dir,
		log:  log,
	}
}

// Root returns the upload root directory
func (s *FileStore) Root() string {
	return s.root
}

// Save writes data under a sanitized version of suggestedName and confirms a
// non-empty write landed on disk before reporting the stored name.
func (s *FileStore) Save(data []byte, suggestedName string) (string, error) {
	name := sanitizeFilename(suggestedName)
	if name == "" {
		return "", fmt.Errorf("unusable filename %q", suggestedName)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(s.root, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}

	// Re-read the size: a zero-length file signals a partial write and must
	// not be reported as success.
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("verify %s: %w", name, err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("verify %s: zero-length write", name)
	}

	s.log.Debug("file stored", "name", name, "size", info.Size())
	return name, nil
}

// Load reads a stored file. A missing, unreadable or zero-length file all
// yield an error; zero length signals a prior partial write and is treated
// identically to absent.
func (s *FileStore) Load(storedName string) ([]byte, error) {
	name := sanitizeFilename(storedName)
	if name == "" {
		return nil, fmt.Errorf("unusable filename %q", storedName)
	}

	data, err := os.ReadFile(filepath.Join(s.root, name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("read %s: file is empty", name)
	}

	return data, nil
}

// ScanForToken walks the upload root in directory-listing order and returns
// the first readable, non-empty file whose name contains token.
func (s *FileStore) ScanForToken(token string) (string, []byte, bool) {
	if token == "" {
		return "", nil, false
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		s.log.Debug("upload dir scan failed", "error", err)
		return "", nil, false
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), token) {
			continue
		}

		data, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		return entry.Name(), data, true
	}

	return "", nil, false
}

// sanitizeFilename reduces a suggested name to a safe basename: directory
// components are stripped and anything outside alphanumerics, dot, dash and
// underscore is dropped. Returns "" when nothing safe remains.
func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return ""
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if cleaned == "" || strings.Trim(cleaned, ".") == "" {
		return ""
	}
	return cleaned
}
