package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtocolIQ/internal/application/preference"
	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
	"github.com/turtacn/ProtocolIQ/internal/testutil"
	apperrors "github.com/turtacn/ProtocolIQ/pkg/errors"
)

var _ preference.Publisher = (*ActionPublisher)(nil)

type recorderFunc func(ctx context.Context, e profile.ActionEvent) error

func (f recorderFunc) RecordAction(ctx context.Context, e profile.ActionEvent) error {
	return f(ctx, e)
}

func sampleAction() profile.ActionEvent {
	return profile.ActionEvent{
		ID:            "evt-1",
		UserID:        "u1",
		Action:        profile.ActionAccept,
		OriginalText:  "as needed",
		SuggestedText: "every 4 hours",
		Context:       "dosing",
		Confidence:    0.8,
		Timestamp:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestActionPublisher_ThenHandler(t *testing.T) {
	pub := &recordingPublisher{}
	ap := NewActionPublisher(pub, "")
	require.NoError(t, ap.PublishAction(context.Background(), sampleAction()))
	require.Len(t, pub.msgs, 1)
	pm := pub.msgs[0]
	assert.Equal(t, TopicUserAction, pm.Topic)
	assert.Equal(t, []byte("u1"), pm.Key)

	var got profile.ActionEvent
	h := NewActionHandler(recorderFunc(func(_ context.Context, e profile.ActionEvent) error {
		got = e
		return nil
	}), nil)
	require.NoError(t, h(context.Background(), &Message{Topic: pm.Topic, Value: pm.Value}))
	assert.Equal(t, sampleAction(), got)
}

func TestActionHandler_InvalidActionIsPermanent(t *testing.T) {
	env, err := NewEventEnvelope(EventTypeUserAction, "test", profile.ActionEvent{UserID: "u1", Action: "cheer"})
	require.NoError(t, err)
	pm, err := env.ToMessage(TopicUserAction, "u1")
	require.NoError(t, err)

	h := NewActionHandler(recorderFunc(func(_ context.Context, e profile.ActionEvent) error {
		return e.Validate()
	}), nil)
	err = h(context.Background(), &Message{Value: pm.Value})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
	assert.False(t, retryable(err))
}

func TestActionHandler_IgnoresOtherEvents(t *testing.T) {
	env, err := NewEventEnvelope("something.else", "test", map[string]int{"n": 1})
	require.NoError(t, err)
	pm, err := env.ToMessage(TopicUserAction, "")
	require.NoError(t, err)

	logger := testutil.NewMockLogger()
	h := NewActionHandler(recorderFunc(func(context.Context, profile.ActionEvent) error {
		t.Fatal("recorder must not be called")
		return nil
	}), logger)
	assert.NoError(t, h(context.Background(), &Message{Value: pm.Value}))

	msg := logger.Find("debug", "ignoring event")
	require.NotNil(t, msg)
	v, _ := msg.Field("event_type")
	assert.Equal(t, "something.else", v)
}
