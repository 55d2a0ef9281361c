package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/credence/internal/credibility"
)

// Postgres stores the state row and the event history in separate tables.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS credibility_state (
	user_id              TEXT PRIMARY KEY,
	score                INTEGER NOT NULL CHECK (score BETWEEN 0 AND 100),
	consecutive_approved INTEGER NOT NULL DEFAULT 0,
	bonus_active         BOOLEAN NOT NULL DEFAULT false,
	bonus_expiry         TIMESTAMPTZ,
	recovering_from_low  BOOLEAN NOT NULL DEFAULT false,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS credibility_events (
	id              UUID PRIMARY KEY,
	user_id         TEXT NOT NULL REFERENCES credibility_state (user_id),
	seq             INTEGER NOT NULL,
	kind            TEXT NOT NULL,
	amount          INTEGER NOT NULL,
	nominal         INTEGER NOT NULL DEFAULT 0,
	occurred_at     TIMESTAMPTZ NOT NULL,
	resulting_score INTEGER NOT NULL,
	task_id         TEXT NOT NULL DEFAULT '',
	reviewer_id     TEXT NOT NULL DEFAULT '',
	notes           TEXT NOT NULL DEFAULT '',
	decayed         BOOLEAN NOT NULL DEFAULT false,
	fully_decayed   BOOLEAN NOT NULL DEFAULT false,
	undone          BOOLEAN NOT NULL DEFAULT false,
	streak_count    INTEGER NOT NULL DEFAULT 0,
	UNIQUE (user_id, seq)
);`

// Migrate creates the credibility tables if they do not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate credibility tables: %w", err)
	}
	return nil
}

// Load fetches the state row and its history in insertion order.
func (s *Postgres) Load(ctx context.Context, userID string) (*credibility.State, error) {
	return withRetry(ctx, func(ctx context.Context) (*credibility.State, error) {
		return s.load(ctx, userID)
	})
}

func (s *Postgres) load(ctx context.Context, userID string) (*credibility.State, error) {
	var st credibility.State
	err := s.pool.QueryRow(ctx, `
		SELECT score, consecutive_approved, bonus_active, bonus_expiry, recovering_from_low
		FROM credibility_state
		WHERE user_id = $1`,
		userID,
	).Scan(&st.Score, &st.ConsecutiveApproved, &st.BonusActive, &st.BonusExpiry, &st.RecoveringFromLow)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, amount, nominal, occurred_at, resulting_score, task_id, reviewer_id, notes,
		       decayed, fully_decayed, undone, streak_count
		FROM credibility_events
		WHERE user_id = $1
		ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev credibility.Event
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Amount, &ev.Nominal, &ev.Timestamp, &ev.ResultingScore,
			&ev.TaskID, &ev.ReviewerID, &ev.Notes, &ev.Decayed, &ev.FullyDecayed, &ev.Undone, &ev.StreakCount); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Timestamp = ev.Timestamp.UTC()
		st.History = append(st.History, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	if st.BonusExpiry != nil {
		exp := st.BonusExpiry.UTC()
		st.BonusExpiry = &exp
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return &st, nil
}

// Save writes the state row and upserts every history event in one
// transaction. Events are keyed by id, so flags set on old events (decay,
// undo) are updated in place.
func (s *Postgres) Save(ctx context.Context, userID string, st *credibility.State) error {
	_, err := withRetry(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.save(ctx, userID, st)
	})
	return err
}

func (s *Postgres) save(ctx context.Context, userID string, st *credibility.State) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO credibility_state (user_id, score, consecutive_approved, bonus_active, bonus_expiry, recovering_from_low, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id)
		DO UPDATE SET
			score = $2,
			consecutive_approved = $3,
			bonus_active = $4,
			bonus_expiry = $5,
			recovering_from_low = $6,
			updated_at = $7`,
		userID, st.Score, st.ConsecutiveApproved, st.BonusActive, st.BonusExpiry, st.RecoveringFromLow, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}

	if len(st.History) > 0 {
		batch := &pgx.Batch{}
		for i, ev := range st.History {
			batch.Queue(`
				INSERT INTO credibility_events (id, user_id, seq, kind, amount, nominal, occurred_at, resulting_score,
					task_id, reviewer_id, notes, decayed, fully_decayed, undone, streak_count)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
				ON CONFLICT (id)
				DO UPDATE SET
					decayed = $12,
					fully_decayed = $13,
					undone = $14`,
				ev.ID, userID, i, string(ev.Kind), ev.Amount, ev.Nominal, ev.Timestamp, ev.ResultingScore,
				ev.TaskID, ev.ReviewerID, ev.Notes, ev.Decayed, ev.FullyDecayed, ev.Undone, ev.StreakCount,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for range st.History {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("upsert event: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
