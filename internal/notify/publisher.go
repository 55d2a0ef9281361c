package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/credence/internal/credibility"
	"github.com/MikeSquared-Agency/credence/internal/hermes"
)

// Bus is the publishing half of the hermes client.
type Bus interface {
	Publish(subject string, data any) error
}

// Publisher turns engine outcomes into credibility notifications.
type Publisher struct {
	bus Bus
	now func() time.Time
}

// NewPublisher creates a publisher. A nil bus publishes nothing.
func NewPublisher(bus Bus) *Publisher {
	return &Publisher{bus: bus, now: time.Now}
}

// PublishOutcome sends a credibility update for any operation that appended
// events, plus one bonus notification per bonus activation or expiry.
func (p *Publisher) PublishOutcome(userID, op string, out credibility.Outcome, status credibility.Status) error {
	if p == nil || p.bus == nil || len(out.Events) == 0 {
		return nil
	}
	ts := p.now().UTC()

	kinds := make([]string, len(out.Events))
	for i, ev := range out.Events {
		kinds[i] = string(ev.Kind)
	}

	var errs []error
	update := hermes.CredibilityUpdated{
		ID:             uuid.New().String(),
		UserID:         userID,
		Operation:      op,
		PriorScore:     out.PriorScore,
		Score:          out.Score,
		Tier:           status.Tier.Name,
		ConversionRate: status.ConversionRate,
		BonusActive:    status.BonusActive,
		Events:         kinds,
		Timestamp:      ts,
	}
	if err := p.bus.Publish(hermes.SubjectCredibilityUpdated, update); err != nil {
		errs = append(errs, fmt.Errorf("publish update: %w", err))
	}

	for _, ev := range out.Events {
		var msg hermes.BonusChanged
		switch ev.Kind {
		case credibility.EventRedemptionBonusActivated:
			msg = hermes.BonusChanged{Active: true, Expiry: status.BonusExpiry}
		case credibility.EventRedemptionBonusExpired:
			msg = hermes.BonusChanged{Active: false}
		default:
			continue
		}
		msg.ID = uuid.New().String()
		msg.UserID = userID
		msg.Timestamp = ts
		if err := p.bus.Publish(hermes.SubjectCredibilityBonus, msg); err != nil {
			errs = append(errs, fmt.Errorf("publish bonus: %w", err))
		}
	}

	return errors.Join(errs...)
}
