// Package media stores uploaded files under a root directory and maps them to
// public URLs.
package media

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	DirAvatars       = "avatars"
	DirDistrictTeams = "district_teams"
)

type Storage struct {
	root    string
	baseURL string
}

func NewStorage(root, baseURL string) *Storage {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Storage{root: root, baseURL: baseURL}
}

func (s *Storage) Root() string { return s.root }

func (s *Storage) BaseURL() string { return s.baseURL }

// Save writes r to dir under a random name with the given extension and
// returns the path relative to the root, slash separated.
func (s *Storage) Save(dir, ext string, r io.Reader) (string, error) {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	name := path.Join(dir, uuid.NewString()+ext)
	full := filepath.Join(s.root, filepath.FromSlash(name))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("media: mkdir: %w", err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("media: create: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("media: write: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("media: close: %w", err)
	}

	return name, nil
}

// Remove deletes a stored file; missing files are ignored.
func (s *Storage) Remove(name string) error {
	if name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(path.Clean("/" + name))))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("media: remove: %w", err)
	}
	return nil
}

func (s *Storage) URL(name string) string {
	return s.baseURL + strings.TrimPrefix(name, "/")
}
