package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MikeSquared-Agency/credence/internal/credibility"
)

// ErrNotFound is returned by Load when no state has been saved for a user.
var ErrNotFound = errors.New("credibility state not found")

// StateStore persists one credibility state per user.
type StateStore interface {
	Load(ctx context.Context, userID string) (*credibility.State, error)
	Save(ctx context.Context, userID string, st *credibility.State) error
}

// Backend is a StateStore that owns a connection or file handle.
type Backend interface {
	StateStore
	Close() error
}

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendFile     = "file"
	BackendMemory   = "memory"
)

type Options struct {
	Backend     string
	DatabaseURL string
	RedisURL    string
	StateDir    string
}

// Open connects the backend named by opts.Backend. The Postgres backend
// creates its tables before returning.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Backend {
	case BackendPostgres:
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres backend: DATABASE_URL is required")
		}
		pg, err := NewPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	case BackendRedis:
		return NewRedis(ctx, opts.RedisURL)
	case BackendFile:
		return NewFile(opts.StateDir)
	case BackendMemory, "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

// LoadOrNew loads the user's state, or returns the default state for a user
// seen for the first time.
func LoadOrNew(ctx context.Context, s StateStore, userID string) (*credibility.State, error) {
	st, err := s.Load(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return credibility.NewState(), nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// decodeState parses a JSON document written by encodeState and checks it.
func decodeState(data []byte) (*credibility.State, error) {
	var st credibility.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return &st, nil
}

func encodeState(st *credibility.State) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return data, nil
}
