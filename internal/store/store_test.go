package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MikeSquared-Agency/credence/internal/credibility"
)

// sampleState runs a few engine operations so the state carries every kind
// of field a backend has to round-trip.
func sampleState(t *testing.T) *credibility.State {
	t.Helper()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	e, err := credibility.NewEngine(credibility.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	st := credibility.NewState()
	st.Score = 58
	for i := 0; i < 18; i++ {
		e.ProcessApproval(st, fmt.Sprintf("chore-%d", i), "mum", "")
	}
	e.ProcessRejection(st, "dishes", "dad", "left in sink")
	now = now.Add(31 * 24 * time.Hour)
	e.ApplyTimeBasedDecay(st, now)
	return st
}

func assertStatesEqual(t *testing.T, got, want *credibility.State) {
	t.Helper()
	if got.Score != want.Score || got.ConsecutiveApproved != want.ConsecutiveApproved ||
		got.BonusActive != want.BonusActive || got.RecoveringFromLow != want.RecoveringFromLow {
		t.Fatalf("state = %+v, want %+v", got, want)
	}
	if (got.BonusExpiry == nil) != (want.BonusExpiry == nil) ||
		(got.BonusExpiry != nil && !got.BonusExpiry.Equal(*want.BonusExpiry)) {
		t.Errorf("bonus expiry = %v, want %v", got.BonusExpiry, want.BonusExpiry)
	}
	if len(got.History) != len(want.History) {
		t.Fatalf("history length = %d, want %d", len(got.History), len(want.History))
	}
	for i := range want.History {
		g, w := got.History[i], want.History[i]
		if !g.Timestamp.Equal(w.Timestamp) {
			t.Errorf("history[%d] timestamp = %v, want %v", i, g.Timestamp, w.Timestamp)
		}
		g.Timestamp, w.Timestamp = time.Time{}, time.Time{}
		if g != w {
			t.Errorf("history[%d] = %+v, want %+v", i, g, w)
		}
	}
}

func TestMemory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	if _, err := s.Load(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	want := sampleState(t)
	if err := s.Save(ctx, "alice", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertStatesEqual(t, got, want)
}

func TestMemory_CopiesState(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	st := sampleState(t)
	if err := s.Save(ctx, "alice", st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	st.Score = 1
	st.History[0].Undone = true

	got, err := s.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Score == 1 || got.History[0].Undone {
		t.Error("mutating the saved state leaked into the store")
	}

	got.History[1].Notes = "changed"
	again, _ := s.Load(ctx, "alice")
	if again.History[1].Notes == "changed" {
		t.Error("mutating a loaded state leaked into the store")
	}
}

func TestMemory_LoadRejectsInvalidState(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	if err := s.Save(ctx, "bob", &credibility.State{Score: 140}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := s.Load(ctx, "bob"); !errors.Is(err, credibility.ErrInvariantViolation) {
		t.Errorf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestFile_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "state")
	s, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	if _, err := s.Load(ctx, "kid/one"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	want := sampleState(t)
	if err := s.Save(ctx, "kid/one", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "kid/one")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertStatesEqual(t, got, want)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "kid%2Fone.json" {
		t.Errorf("unexpected files in state dir: %v", entries)
	}
}

func TestFile_Overwrite(t *testing.T) {
	ctx := context.Background()
	s, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	st := credibility.NewState()
	if err := s.Save(ctx, "alice", st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	st.Score = 77
	if err := s.Save(ctx, "alice", st); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := s.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Score != 77 {
		t.Errorf("expected score 77, got %d", got.Score)
	}
}

func TestFile_LoadCorrupt(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"out of range score", `{"score": -3, "history": []}`, credibility.ErrInvariantViolation},
		{"not json", `{score`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := s.Load(ctx, "bad")
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/state", filepath.Join(home, "state")},
		{"/var/lib/credence", "/var/lib/credence"},
		{"~", "~"},
		{"./state", "./state"},
	}

	for _, tt := range tests {
		if got := expandHome(tt.in); got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadOrNew(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	st, err := LoadOrNew(ctx, s, "new-kid")
	if err != nil {
		t.Fatalf("LoadOrNew: %v", err)
	}
	if st.Score != credibility.DefaultScore || len(st.History) != 0 {
		t.Errorf("expected default state, got %+v", st)
	}

	st.Score = 64
	if err := s.Save(ctx, "new-kid", st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := LoadOrNew(ctx, s, "new-kid")
	if err != nil {
		t.Fatalf("LoadOrNew: %v", err)
	}
	if got.Score != 64 {
		t.Errorf("expected saved score 64, got %d", got.Score)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"memory", Options{Backend: BackendMemory}, false},
		{"empty defaults to memory", Options{}, false},
		{"file", Options{Backend: BackendFile, StateDir: t.TempDir()}, false},
		{"postgres without url", Options{Backend: BackendPostgres}, true},
		{"redis bad url", Options{Backend: BackendRedis, RedisURL: "://nope"}, true},
		{"unknown", Options{Backend: "sqlite"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Open(ctx, tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer b.Close()
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not found", ErrNotFound, false},
		{"invariant", fmt.Errorf("load: %w", credibility.ErrInvariantViolation), false},
		{"canceled", context.Canceled, false},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"admin shutdown", fmt.Errorf("query: %w", &pgconn.PgError{Code: "57P01"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"net error", timeoutErr{}, true},
		{"eof", fmt.Errorf("read: %w", io.EOF), true},
		{"unexpected eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), true},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"broken pipe", fmt.Errorf("write: %w", syscall.EPIPE), true},
		{"eof only in text", errors.New("decode state: unexpected EOF in notes"), false},
		{"refused only in text", errors.New("reviewer note: connection refused by parent"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.err); got != tt.want {
				t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWithRetry(t *testing.T) {
	retryInitialInterval = time.Millisecond
	retryMaxInterval = 2 * time.Millisecond
	t.Cleanup(func() {
		retryInitialInterval = 200 * time.Millisecond
		retryMaxInterval = 2 * time.Second
	})
	ctx := context.Background()

	t.Run("transient then success", func(t *testing.T) {
		calls := 0
		got, err := withRetry(ctx, func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, &pgconn.PgError{Code: "40001"}
			}
			return 42, nil
		})
		if err != nil || got != 42 {
			t.Fatalf("withRetry = %d, %v; want 42, nil", got, err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("permanent stops immediately", func(t *testing.T) {
		calls := 0
		_, err := withRetry(ctx, func(context.Context) (int, error) {
			calls++
			return 0, ErrNotFound
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("cancelled during backoff keeps both errors", func(t *testing.T) {
		retryInitialInterval = time.Hour
		retryMaxInterval = time.Hour
		defer func() {
			retryInitialInterval = time.Millisecond
			retryMaxInterval = 2 * time.Millisecond
		}()

		cctx, cancel := context.WithCancel(ctx)
		transient := &pgconn.PgError{Code: "40001"}
		calls := 0
		_, err := withRetry(cctx, func(context.Context) (int, error) {
			calls++
			cancel()
			return 0, transient
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled in %v", err)
		}
		if !errors.Is(err, transient) {
			t.Errorf("expected the last backend error in %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		_, err := withRetry(ctx, func(context.Context) (int, error) {
			calls++
			return 0, fmt.Errorf("read: %w", syscall.ECONNRESET)
		})
		if err == nil {
			t.Fatal("expected an error")
		}
		if want := int(retryMaxAttempts) + 1; calls != want {
			t.Errorf("expected %d calls, got %d", want, calls)
		}
	})
}
