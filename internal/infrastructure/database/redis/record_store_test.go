package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

func TestRecordStore_ProfileRoundTrip(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewRecordStore(client, 0)
	ctx := context.Background()

	got, err := store.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := profile.ApplyAction(nil, profile.ActionEvent{
		UserID: "u1", Action: profile.ActionAccept, SuggestedText: "tumor response assessed centrally",
		Context: "endpoints", Category: "clarity", Confidence: 0.7, Timestamp: at,
	}, profile.DefaultConfig())

	require.NoError(t, store.Put(ctx, "u1", p))
	got, err = store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestRecordStore_CorruptProfile(t *testing.T) {
	client, mr := newTestClient(t)
	require.NoError(t, mr.Set("protocoliq:profile:u1", "{broken"))

	_, err := NewRecordStore(client, 0).Get(context.Background(), "u1")
	assert.True(t, errors.IsCode(err, errors.CodeProfileDecodeFailed))
}

func TestRecordStore_EventsAreCapped(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewRecordStore(client, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendEvent(ctx, profile.ActionEvent{
			ID: string(rune('a' + i)), UserID: "u1", Action: profile.ActionIgnore,
			Timestamp: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
		}))
	}
	events, err := store.Events(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "c", events[0].ID)
	assert.Equal(t, "e", events[2].ID)
}

func TestRecordStore_Patterns(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewRecordStore(client, 0)
	ctx := context.Background()

	got, err := store.ListPatterns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	patterns := []corpus.SuccessPattern{
		{ID: "p1", Type: corpus.PatternLanguage, Text: "shall", TherapeuticArea: "oncology", Phase: "Phase III",
			Frequency: 2, Correlation: 0.8, Confidence: 0.85, Examples: []string{"Each visit shall follow the schedule."}},
		{ID: "p2", Type: corpus.PatternStructural, Text: "clear primary endpoint", TherapeuticArea: "general", Phase: "general",
			Frequency: 1, Correlation: 0.75, Confidence: 0.8, Examples: []string{"Study A"}},
	}
	require.NoError(t, store.SavePatterns(ctx, patterns))
	got, err = store.ListPatterns(ctx)
	require.NoError(t, err)
	assert.Equal(t, patterns, got)

	require.NoError(t, store.SavePatterns(ctx, patterns[:1]))
	got, err = store.ListPatterns(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
