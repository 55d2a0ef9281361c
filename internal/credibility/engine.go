package credibility

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Outcome describes what one engine operation did to a state.
type Outcome struct {
	PriorScore int     `json:"prior_score"`
	Score      int     `json:"score"`
	Events     []Event `json:"events"`
}

// Has reports whether the operation appended an event of kind.
func (o Outcome) Has(kind EventKind) bool {
	for _, ev := range o.Events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

// Status is the read-side view of a state used for display and conversion.
type Status struct {
	Score               int        `json:"score"`
	Tier                Tier       `json:"tier"`
	ConsecutiveApproved int        `json:"consecutive_approved"`
	BonusActive         bool       `json:"bonus_active"`
	BonusExpiry         *time.Time `json:"bonus_expiry,omitempty"`
	ConversionRate      float64    `json:"conversion_rate"`

	// RecoveryHint is the number of approvals needed to reach the next tier,
	// nil in the top tier.
	RecoveryHint *int `json:"recovery_hint"`
}

// Engine applies credibility events to a State. It performs no I/O and holds
// no per-user data; callers serialize operations on the same State.
type Engine struct {
	tiers *TierTable
	bonus BonusPolicy
	now   func() time.Time
	newID func() uuid.UUID
}

type Option func(*Engine)

// WithClock replaces time.Now as the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTierTable replaces the default tier table.
func WithTierTable(tt *TierTable) Option {
	return func(e *Engine) { e.tiers = tt }
}

// WithBonusPolicy replaces the default redemption bonus policy.
func WithBonusPolicy(p BonusPolicy) Option {
	return func(e *Engine) { e.bonus = p }
}

// NewEngine builds an engine over the default tier table and bonus policy.
func NewEngine(opts ...Option) (*Engine, error) {
	tiers, err := NewTierTable(DefaultTiers)
	if err != nil {
		return nil, fmt.Errorf("default tiers: %w", err)
	}
	e := &Engine{
		tiers: tiers,
		bonus: DefaultBonusPolicy(),
		now:   time.Now,
		newID: uuid.New,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tiers == nil {
		return nil, fmt.Errorf("%w: nil tier table", ErrInvariantViolation)
	}
	if e.bonus.Percent <= 0 {
		return nil, fmt.Errorf("%w: bonus percent %d", ErrInvariantViolation, e.bonus.Percent)
	}
	return e, nil
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Tiers returns the engine's tier table.
func (e *Engine) Tiers() *TierTable {
	return e.tiers
}

// ProcessApproval awards an approved task, applies the streak bonus on every
// StreakLength-th consecutive approval and activates the redemption bonus when
// the child has climbed back from a low score.
func (e *Engine) ProcessApproval(st *State, taskID, reviewerID, notes string) Outcome {
	o := e.begin(st, e.now())
	prior := o.out.PriorScore

	applied := st.adjust(ApprovalAward)
	st.ConsecutiveApproved++
	o.record(Event{
		Kind:       EventApproved,
		Amount:     applied,
		Nominal:    ApprovalAward,
		TaskID:     taskID,
		ReviewerID: reviewerID,
		Notes:      notes,
	})

	if st.ConsecutiveApproved%StreakLength == 0 {
		applied := st.adjust(StreakBonusAward)
		o.record(Event{
			Kind:        EventStreakBonus,
			Amount:      applied,
			Nominal:     StreakBonusAward,
			TaskID:      taskID,
			ReviewerID:  reviewerID,
			StreakCount: st.ConsecutiveApproved,
		})
	}

	if e.bonus.ShouldActivate(st, prior) {
		expiry := o.now.Add(e.bonus.Duration)
		st.BonusActive = true
		st.BonusExpiry = &expiry
		st.RecoveringFromLow = false
		o.record(Event{Kind: EventRedemptionBonusActivated})
	}

	return o.finish()
}

// ProcessRejection applies the (possibly stacked) rejection penalty, resets
// the approval streak and drops the redemption bonus if the score falls out
// of range.
func (e *Engine) ProcessRejection(st *State, taskID, reviewerID, notes string) Outcome {
	o := e.begin(st, e.now())

	var last *time.Time
	if ev, ok := st.History.LastRejection(); ok {
		ts := ev.Timestamp
		last = &ts
	}
	penalty := PenaltyFor(last, o.now)

	applied := st.adjust(penalty)
	st.ConsecutiveApproved = 0
	o.record(Event{
		Kind:       EventRejected,
		Amount:     applied,
		Nominal:    penalty,
		TaskID:     taskID,
		ReviewerID: reviewerID,
		Notes:      notes,
	})

	if e.bonus.ShouldDeactivate(st) {
		o.endBonus()
	}

	return o.finish()
}

// UndoRejection restores the score taken by the most recent rejection of
// taskID by reviewerID, less whatever decay has already given back. Only the
// score is reversed: the approval streak and any bonus state the rejection
// changed stay as they are.
func (e *Engine) UndoRejection(st *State, taskID, reviewerID string) (Outcome, error) {
	idx := st.History.FindRejection(taskID, reviewerID)
	if idx < 0 {
		return Outcome{PriorScore: st.Score, Score: st.Score}, ErrRejectionNotFound
	}

	o := e.begin(st, e.now())
	rej := st.History[idx]
	restore := abs(rej.Amount) - recoveredByDecay(rej)
	st.History[idx].Undone = true

	applied := st.adjust(restore)
	o.record(Event{
		Kind:       EventRejectionUndone,
		Amount:     applied,
		Nominal:    restore,
		TaskID:     taskID,
		ReviewerID: reviewerID,
	})

	return o.finish(), nil
}

// ApplyTimeBasedDecay recovers half of each rejection's penalty after
// HalfDecayAge and the rest after FullDecayAge. Recovery across all
// rejections is summed into a single decay event. Calling it again with the
// same now recovers nothing.
func (e *Engine) ApplyTimeBasedDecay(st *State, now time.Time) Outcome {
	o := e.begin(st, now)

	total := 0
	for i := range st.History {
		recovered, decayed, fully := DecayRecovery(st.History[i], now)
		st.History[i].Decayed = decayed
		st.History[i].FullyDecayed = fully
		total += recovered
	}

	if total > 0 {
		applied := st.adjust(total)
		o.record(Event{
			Kind:    EventDecayRecovery,
			Amount:  applied,
			Nominal: total,
		})
	}

	return o.finish()
}

// Status reports the tier, conversion rate and recovery hint for st.
func (e *Engine) Status(st *State) Status {
	now := e.now()
	tier := e.tiers.TierFor(st.Score)
	active := e.bonus.Active(st, now)

	s := Status{
		Score:               st.Score,
		Tier:                tier,
		ConsecutiveApproved: st.ConsecutiveApproved,
		BonusActive:         active,
		ConversionRate:      float64(tier.Percent*e.bonusPercent(active)) / rateScale,
	}
	if active {
		exp := *st.BonusExpiry
		s.BonusExpiry = &exp
	}
	if next, ok := e.tiers.NextTierAbove(st.Score); ok {
		needed := (next.Min - st.Score + ApprovalAward - 1) / ApprovalAward
		s.RecoveryHint = &needed
	}
	return s
}

// ConvertXPToMinutes converts earned XP into screen-time minutes at the
// current conversion rate, rounding half up. Negative XP, and XP large enough
// to overflow the conversion, fail with ErrInvalidXP.
func (e *Engine) ConvertXPToMinutes(st *State, xp int) (int, error) {
	if xp < 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidXP, xp)
	}
	tier := e.tiers.TierFor(st.Score)
	bonus := e.bonusPercent(e.bonus.Active(st, e.now()))

	rate := tier.Percent * bonus
	if xp > (math.MaxInt-rateScale/2)/rate {
		return 0, fmt.Errorf("%w: %d exceeds the convertible maximum at rate %d", ErrInvalidXP, xp, rate)
	}
	// Exact integer arithmetic over hundredths avoids float rounding at .5.
	return (xp*rate + rateScale/2) / rateScale, nil
}

// rateScale is the denominator of tier percent × bonus percent.
const rateScale = 100 * 100

func (e *Engine) bonusPercent(active bool) int {
	if active {
		return e.bonus.Percent
	}
	return 100
}

// operation accumulates the events one engine call appends.
type operation struct {
	e   *Engine
	st  *State
	now time.Time
	out Outcome
}

func (e *Engine) begin(st *State, now time.Time) *operation {
	o := &operation{e: e, st: st, now: now, out: Outcome{PriorScore: st.Score}}
	if st.Score < e.bonus.Low {
		st.RecoveringFromLow = true
	}
	if e.bonus.Expired(st, now) {
		o.endBonus()
	}
	return o
}

func (o *operation) record(ev Event) {
	ev.ID = o.e.newID()
	ev.Timestamp = o.now
	ev.ResultingScore = o.st.Score
	o.st.History.Append(ev)
	o.out.Events = append(o.out.Events, ev)
}

func (o *operation) endBonus() {
	o.st.BonusActive = false
	o.st.BonusExpiry = nil
	o.record(Event{Kind: EventRedemptionBonusExpired})
}

func (o *operation) finish() Outcome {
	if o.st.Score < o.e.bonus.Low {
		o.st.RecoveringFromLow = true
	}
	o.out.Score = o.st.Score
	return o.out
}
