package processor

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/MikeSquared-Agency/credence/internal/credibility"
	"github.com/MikeSquared-Agency/credence/internal/hermes"
)

// HandleTaskApproved is the NATS handler for household.task.approved.
func (p *Processor) HandleTaskApproved(subject string, data []byte) {
	evt, ok := p.parseReview(subject, data)
	if !ok {
		return
	}
	if _, err := p.Approve(context.Background(), evt.UserID, evt.TaskID, evt.ReviewerID, evt.Notes); err != nil {
		p.logger.Error("failed to process approval", "user_id", evt.UserID, "task_id", evt.TaskID, "error", err)
	}
}

// HandleTaskRejected is the NATS handler for household.task.rejected.
func (p *Processor) HandleTaskRejected(subject string, data []byte) {
	evt, ok := p.parseReview(subject, data)
	if !ok {
		return
	}
	if _, err := p.Reject(context.Background(), evt.UserID, evt.TaskID, evt.ReviewerID, evt.Notes); err != nil {
		p.logger.Error("failed to process rejection", "user_id", evt.UserID, "task_id", evt.TaskID, "error", err)
	}
}

// HandleRejectionUndone is the NATS handler for household.task.rejection_undone.
func (p *Processor) HandleRejectionUndone(subject string, data []byte) {
	evt, ok := p.parseReview(subject, data)
	if !ok {
		return
	}
	_, err := p.Undo(context.Background(), evt.UserID, evt.TaskID, evt.ReviewerID)
	switch {
	case errors.Is(err, credibility.ErrRejectionNotFound):
		p.logger.Warn("no rejection to undo", "user_id", evt.UserID, "task_id", evt.TaskID, "reviewer_id", evt.ReviewerID)
	case err != nil:
		p.logger.Error("failed to undo rejection", "user_id", evt.UserID, "task_id", evt.TaskID, "error", err)
	}
}

// HandleSessionStarted is the NATS handler for household.session.started.
// It runs a decay pass so recovered points show up when the child opens the app.
func (p *Processor) HandleSessionStarted(subject string, data []byte) {
	if !p.decayOnSessionStart {
		return
	}
	var evt hermes.SessionEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Warn("failed to parse session event", "subject", subject, "error", err)
		return
	}
	if evt.UserID == "" {
		p.logger.Warn("session event without user id", "subject", subject)
		return
	}
	if _, err := p.Decay(context.Background(), evt.UserID); err != nil {
		p.logger.Error("failed to apply decay", "user_id", evt.UserID, "error", err)
	}
}

func (p *Processor) parseReview(subject string, data []byte) (hermes.TaskReviewEvent, bool) {
	var evt hermes.TaskReviewEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Warn("failed to parse task review event", "subject", subject, "error", err)
		return evt, false
	}
	if evt.UserID == "" {
		p.logger.Warn("task review event without user id", "subject", subject)
		return evt, false
	}
	return evt, true
}

// Subscriber is the subscribing half of the hermes client.
type Subscriber interface {
	Subscribe(subject string, handler func(subject string, data []byte)) error
}

// Subscribe wires the processor's handlers to their subjects.
func (p *Processor) Subscribe(sub Subscriber) error {
	handlers := []struct {
		subject string
		handler func(string, []byte)
	}{
		{hermes.SubjectTaskApproved, p.HandleTaskApproved},
		{hermes.SubjectTaskRejected, p.HandleTaskRejected},
		{hermes.SubjectRejectionUndone, p.HandleRejectionUndone},
		{hermes.SubjectSessionStarted, p.HandleSessionStarted},
	}
	for _, h := range handlers {
		if err := sub.Subscribe(h.subject, h.handler); err != nil {
			return err
		}
	}
	return nil
}
