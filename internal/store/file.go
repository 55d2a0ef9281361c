package store

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/MikeSquared-Agency/credence/internal/credibility"
)

// File keeps one JSON document per user under a directory. It suits a
// single household running the CLI or service without a database.
type File struct {
	dir string
}

// NewFile creates dir if needed. A leading ~/ expands to the home directory.
func NewFile(dir string) (*File, error) {
	p := expandHome(dir)
	if err := os.MkdirAll(p, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &File{dir: p}, nil
}

func (s *File) Close() error { return nil }

func (s *File) path(userID string) string {
	return filepath.Join(s.dir, url.PathEscape(userID)+".json")
}

func (s *File) Load(_ context.Context, userID string) (*credibility.State, error) {
	data, err := os.ReadFile(s.path(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	return decodeState(data)
}

// Save writes to a temp file and renames it over the old document.
func (s *File) Save(_ context.Context, userID string, st *credibility.State) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".state-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(userID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
