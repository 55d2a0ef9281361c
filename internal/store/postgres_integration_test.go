//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/credence/internal/credibility"
)

func setupTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := NewPostgres(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestIntegration_PostgresRoundTrip(t *testing.T) {
	s := setupTestPostgres(t)
	ctx := context.Background()
	userID := "integration-" + uuid.New().String()[:8]

	if _, err := s.Load(ctx, userID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	want := sampleState(t)
	if err := s.Save(ctx, userID, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Load(ctx, userID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertStatesEqual(t, got, want)
}

func TestIntegration_PostgresUpdatesEventFlags(t *testing.T) {
	s := setupTestPostgres(t)
	ctx := context.Background()
	userID := "integration-" + uuid.New().String()[:8]

	e, err := credibility.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	st := credibility.NewState()
	e.ProcessRejection(st, "homework", "dad", "")
	if err := s.Save(ctx, userID, st); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := e.UndoRejection(st, "homework", "dad"); err != nil {
		t.Fatalf("UndoRejection: %v", err)
	}
	if err := s.Save(ctx, userID, st); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := s.Load(ctx, userID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Score != 100 {
		t.Errorf("expected score 100, got %d", got.Score)
	}
	if len(got.History) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got.History))
	}
	if !got.History[0].Undone {
		t.Error("expected the rejection to be stored as undone")
	}
	if got.History[1].Kind != credibility.EventRejectionUndone {
		t.Errorf("expected rejection_undone second, got %s", got.History[1].Kind)
	}
}
