package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestEmitter(t *testing.T) {
	t.Parallel()

	t.Run("no handlers", func(t *testing.T) {
		t.Parallel()
		emitter := NewEmitter(discard)
		err := Emit(context.Background(), emitter, TypeTasksGenerated, uuid.New(), TasksGenerated{Count: 3})
		assert.NoError(t, err)
	})

	t.Run("every handler receives the event", func(t *testing.T) {
		t.Parallel()
		emitter := NewEmitter(discard)
		first, second := &Recorder{}, &Recorder{}
		emitter.Subscribe(first)
		emitter.Subscribe(second)

		userID := uuid.New()
		require.NoError(t, Emit(context.Background(), emitter, TypeTaskEvaluated, userID, TaskEvaluated{QualityScore: 4}))

		for _, rec := range []*Recorder{first, second} {
			events := rec.Events()
			require.Len(t, events, 1)
			assert.Equal(t, TypeTaskEvaluated, events[0].Type)
			assert.Equal(t, userID, events[0].UserID)
		}
	})

	t.Run("failing handler does not stop delivery", func(t *testing.T) {
		t.Parallel()
		emitter := NewEmitter(discard)
		emitter.Subscribe(HandlerFunc(func(context.Context, *Event) error {
			return errors.New("handler error")
		}))
		rec := &Recorder{}
		emitter.Subscribe(rec)

		err := Emit(context.Background(), emitter, TypeMentorFeedback, uuid.New(), MentorFeedback{Tone: "supportive"})
		assert.EqualError(t, err, "handler error")
		assert.Len(t, rec.Events(), 1)
	})
}

func TestRecorder_OfType(t *testing.T) {
	t.Parallel()

	rec := &Recorder{}
	for _, typ := range []Type{TypePlanGenerated, TypeJobFailed, TypePlanGenerated} {
		ev, err := New(typ, uuid.Nil, struct{}{})
		require.NoError(t, err)
		require.NoError(t, rec.HandleEvent(context.Background(), ev))
	}
	assert.Len(t, rec.OfType(TypePlanGenerated), 2)
	assert.Len(t, rec.OfType(TypeJobFailed), 1)
	assert.Empty(t, rec.OfType(TypeTaskEvaluated))
}
