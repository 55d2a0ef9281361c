package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/credence/internal/credibility"
	"github.com/MikeSquared-Agency/credence/internal/metrics"
	"github.com/MikeSquared-Agency/credence/internal/notify"
	"github.com/MikeSquared-Agency/credence/internal/store"
)

// ErrMissingUserID is returned when an operation names no user.
var ErrMissingUserID = errors.New("user id is required")

// Processor runs credibility operations against stored state. Operations on
// the same user are serialized; different users proceed in parallel.
type Processor struct {
	store     store.StateStore
	engine    *credibility.Engine
	publisher *notify.Publisher
	metrics   *metrics.Recorder
	logger    *slog.Logger

	decayOnSessionStart bool

	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// Result is the outcome of a mutating operation plus the status it left.
type Result struct {
	Outcome credibility.Outcome `json:"outcome"`
	Status  credibility.Status  `json:"status"`
}

// Conversion is the answer to an XP-to-minutes query.
type Conversion struct {
	XP      int     `json:"xp"`
	Minutes int     `json:"minutes"`
	Rate    float64 `json:"conversion_rate"`
	Tier    string  `json:"tier"`
}

func New(s store.StateStore, e *credibility.Engine, pub *notify.Publisher, m *metrics.Recorder, decayOnSessionStart bool, logger *slog.Logger) *Processor {
	return &Processor{
		store:               s,
		engine:              e,
		publisher:           pub,
		metrics:             m,
		logger:              logger,
		decayOnSessionStart: decayOnSessionStart,
		locks:               make(map[string]*userLock),
	}
}

// Approve records an approved task for userID.
func (p *Processor) Approve(ctx context.Context, userID, taskID, reviewerID, notes string) (Result, error) {
	return p.mutate(ctx, userID, "approve", func(st *credibility.State) (credibility.Outcome, error) {
		return p.engine.ProcessApproval(st, taskID, reviewerID, notes), nil
	})
}

// Reject records a rejected task for userID.
func (p *Processor) Reject(ctx context.Context, userID, taskID, reviewerID, notes string) (Result, error) {
	return p.mutate(ctx, userID, "reject", func(st *credibility.State) (credibility.Outcome, error) {
		return p.engine.ProcessRejection(st, taskID, reviewerID, notes), nil
	})
}

// Undo reverses the most recent rejection of taskID by reviewerID.
// It returns credibility.ErrRejectionNotFound when there is nothing to undo.
func (p *Processor) Undo(ctx context.Context, userID, taskID, reviewerID string) (Result, error) {
	return p.mutate(ctx, userID, "undo", func(st *credibility.State) (credibility.Outcome, error) {
		return p.engine.UndoRejection(st, taskID, reviewerID)
	})
}

// Decay applies time-based penalty recovery as of the engine clock.
func (p *Processor) Decay(ctx context.Context, userID string) (Result, error) {
	return p.mutate(ctx, userID, "decay", func(st *credibility.State) (credibility.Outcome, error) {
		return p.engine.ApplyTimeBasedDecay(st, p.engine.Now()), nil
	})
}

// Status returns the current status without changing stored state.
func (p *Processor) Status(ctx context.Context, userID string) (credibility.Status, error) {
	st, err := p.load(ctx, userID)
	if err != nil {
		return credibility.Status{}, err
	}
	return p.engine.Status(st), nil
}

// Convert converts xp to screen-time minutes at the user's current rate.
func (p *Processor) Convert(ctx context.Context, userID string, xp int) (Conversion, error) {
	st, err := p.load(ctx, userID)
	if err != nil {
		return Conversion{}, err
	}
	minutes, err := p.engine.ConvertXPToMinutes(st, xp)
	p.metrics.Operation("convert", err)
	if err != nil {
		return Conversion{}, err
	}
	status := p.engine.Status(st)
	return Conversion{XP: xp, Minutes: minutes, Rate: status.ConversionRate, Tier: status.Tier.Name}, nil
}

// History returns up to limit events, newest first. A limit of zero or less
// returns the whole history.
func (p *Processor) History(ctx context.Context, userID string, limit int) ([]credibility.Event, error) {
	st, err := p.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return st.History.Recent(limit), nil
}

func (p *Processor) load(ctx context.Context, userID string) (*credibility.State, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	start := time.Now()
	st, err := store.LoadOrNew(ctx, p.store, userID)
	p.metrics.StoreDuration("load", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return st, nil
}

func (p *Processor) mutate(ctx context.Context, userID, op string, apply func(*credibility.State) (credibility.Outcome, error)) (Result, error) {
	if userID == "" {
		p.metrics.Operation(op, ErrMissingUserID)
		return Result{}, ErrMissingUserID
	}
	unlock := p.lock(userID)
	defer unlock()

	st, err := p.load(ctx, userID)
	if err != nil {
		p.metrics.Operation(op, err)
		return Result{}, err
	}

	out, err := apply(st)
	if err != nil {
		p.metrics.Operation(op, err)
		return Result{}, err
	}

	if len(out.Events) > 0 {
		start := time.Now()
		err = p.store.Save(ctx, userID, st)
		p.metrics.StoreDuration("save", time.Since(start))
		if err != nil {
			p.metrics.Operation(op, err)
			return Result{}, fmt.Errorf("save state: %w", err)
		}
	}

	status := p.engine.Status(st)
	p.metrics.Operation(op, nil)
	for _, ev := range out.Events {
		p.metrics.Event(string(ev.Kind))
	}
	p.metrics.Score(status.Score)

	if err := p.publisher.PublishOutcome(userID, op, out, status); err != nil {
		p.logger.Error("failed to publish credibility update", "user_id", userID, "op", op, "error", err)
	}

	if len(out.Events) > 0 {
		p.logger.Info("credibility updated",
			"user_id", userID,
			"op", op,
			"prior_score", out.PriorScore,
			"score", out.Score,
			"tier", status.Tier.Name,
			"events", len(out.Events),
		)
	}

	return Result{Outcome: out, Status: status}, nil
}

// lock serializes operations on userID and returns the matching unlock.
// Lock entries are dropped once no caller holds or waits on them.
func (p *Processor) lock(userID string) func() {
	p.mu.Lock()
	l, ok := p.locks[userID]
	if !ok {
		l = &userLock{}
		p.locks[userID] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, userID)
		}
		p.mu.Unlock()
	}
}
