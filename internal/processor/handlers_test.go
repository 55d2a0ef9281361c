package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/credence/internal/credibility"
	"github.com/MikeSquared-Agency/credence/internal/hermes"
	"github.com/MikeSquared-Agency/credence/internal/store"
)

func TestHandleTaskEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.proc.HandleTaskRejected(hermes.SubjectTaskRejected,
		[]byte(`{"user_id":"kid-1","task_id":"room","reviewer_id":"mum","notes":"messy"}`))
	st, err := f.store.Load(ctx, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, 90, st.Score)
	assert.Equal(t, "messy", st.History[0].Notes)

	f.proc.HandleRejectionUndone(hermes.SubjectRejectionUndone,
		[]byte(`{"user_id":"kid-1","task_id":"room","reviewer_id":"mum"}`))
	st, err = f.store.Load(ctx, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, 100, st.Score)

	// Nothing left to undo; the handler logs and moves on.
	f.proc.HandleRejectionUndone(hermes.SubjectRejectionUndone,
		[]byte(`{"user_id":"kid-1","task_id":"room","reviewer_id":"mum"}`))

	f.proc.HandleTaskApproved(hermes.SubjectTaskApproved,
		[]byte(`{"user_id":"kid-1","task_id":"room","reviewer_id":"mum"}`))
	st, err = f.store.Load(ctx, "kid-1")
	require.NoError(t, err)
	assert.Len(t, st.History, 3)
	assert.Equal(t, 1, st.ConsecutiveApproved)
}

func TestHandleTaskRejected_StampedOnReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.proc.HandleTaskRejected(hermes.SubjectTaskRejected,
		[]byte(`{"user_id":"kid-1","task_id":"room","reviewer_id":"mum"}`))

	// A second verdict delivered eight days later is outside the stacking
	// window regardless of when the publisher says it was reviewed.
	f.clock.Advance(8 * 24 * time.Hour)
	f.proc.HandleTaskRejected(hermes.SubjectTaskRejected,
		[]byte(`{"user_id":"kid-1","task_id":"bed","reviewer_id":"mum","reviewed_at":"2025-03-02T09:00:00Z"}`))

	st, err := f.store.Load(ctx, "kid-1")
	require.NoError(t, err)
	require.Len(t, st.History, 2)
	assert.Equal(t, f.clock.Now(), st.History[1].Timestamp)
	assert.Equal(t, credibility.BasePenalty, st.History[1].Nominal)
	assert.Equal(t, 80, st.Score)
}

func TestHandleTaskEvents_BadPayloads(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		data string
	}{
		{"malformed json", `{"user_id":`},
		{"missing user", `{"task_id":"room","reviewer_id":"mum"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.proc.HandleTaskApproved(hermes.SubjectTaskApproved, []byte(tt.data))
			f.proc.HandleTaskRejected(hermes.SubjectTaskRejected, []byte(tt.data))
			f.proc.HandleSessionStarted(hermes.SubjectSessionStarted, []byte(tt.data))
		})
	}

	assert.Zero(t, f.bus.count(hermes.SubjectCredibilityUpdated))
}

func TestHandleSessionStarted_Decays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.proc.Reject(ctx, "kid-1", "room", "mum", "")
	require.NoError(t, err)
	f.clock.Advance(61 * 24 * time.Hour)

	f.proc.HandleSessionStarted(hermes.SubjectSessionStarted, []byte(`{"user_id":"kid-1"}`))

	st, err := f.store.Load(ctx, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, 100, st.Score)
	assert.True(t, st.History[0].FullyDecayed)
}

func TestHandleSessionStarted_Disabled(t *testing.T) {
	f := newFixture(t)
	f.proc.decayOnSessionStart = false
	ctx := context.Background()

	_, err := f.proc.Reject(ctx, "kid-1", "room", "mum", "")
	require.NoError(t, err)
	f.clock.Advance(61 * 24 * time.Hour)

	f.proc.HandleSessionStarted(hermes.SubjectSessionStarted, []byte(`{"user_id":"kid-1"}`))

	st, err := f.store.Load(ctx, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, 90, st.Score)
}

type fakeSubscriber struct {
	subjects []string
	failOn   string
}

func (s *fakeSubscriber) Subscribe(subject string, _ func(string, []byte)) error {
	if subject == s.failOn {
		return errors.New("nats: connection closed")
	}
	s.subjects = append(s.subjects, subject)
	return nil
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)

	sub := &fakeSubscriber{}
	require.NoError(t, f.proc.Subscribe(sub))
	assert.ElementsMatch(t, []string{
		hermes.SubjectTaskApproved,
		hermes.SubjectTaskRejected,
		hermes.SubjectRejectionUndone,
		hermes.SubjectSessionStarted,
	}, sub.subjects)

	failing := &fakeSubscriber{failOn: hermes.SubjectRejectionUndone}
	assert.Error(t, f.proc.Subscribe(failing))
}

var _ store.StateStore = (*store.Memory)(nil)
