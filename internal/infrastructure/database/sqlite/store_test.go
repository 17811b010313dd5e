package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "protocoliq.db")
	s, err := Open(context.Background(), path, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestOpen_AppliesMigrationsOnce(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()

	v, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path, 0)
	require.NoError(t, err)
	defer reopened.Close()
	v, err = reopened.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestStore_ProfileRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	got, err := s.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := profile.ApplyAction(nil, profile.ActionEvent{
		ID: "e1", UserID: "u1", Action: profile.ActionAccept, SuggestedText: "tumor response assessed centrally",
		Context: "endpoints", Category: "clarity", Confidence: 0.7, Timestamp: at,
	}, profile.DefaultConfig())

	require.NoError(t, s.Put(ctx, "u1", p))
	p2 := profile.ApplyAction(p.Clone(), profile.ActionEvent{
		ID: "e2", UserID: "u1", Action: profile.ActionReject, SuggestedText: "every 4 weeks",
		Context: "dosing", Category: "clarity", Confidence: 0.6, Timestamp: at.Add(time.Minute),
	}, profile.DefaultConfig())
	require.NoError(t, s.Put(ctx, "u1", p2))

	got, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, p2, got)
}

func TestStore_CorruptProfile(t *testing.T) {
	s, _ := openTestStore(t)
	_, err := s.db.Exec("INSERT INTO profiles (user_id, data) VALUES ('u1', '{broken')")
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "u1")
	assert.True(t, errors.IsCode(err, errors.CodeProfileDecodeFailed))
}

func TestStore_EventsOrderedAndIdempotent(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, id := range []string{"b", "a", "b"} {
		require.NoError(t, s.AppendEvent(ctx, profile.ActionEvent{
			ID: id, UserID: "u1", Action: profile.ActionModify, Context: "safety",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.AppendEvent(ctx, profile.ActionEvent{ID: "c", UserID: "u2", Action: profile.ActionAccept, Timestamp: base}))

	events, err := s.Events(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[0].ID)
	assert.Equal(t, "a", events[1].ID)

	none, err := s.Events(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestStore_Patterns(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	got, err := s.ListPatterns(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	patterns := []corpus.SuccessPattern{
		{ID: "p2", Type: corpus.PatternLanguage, Text: "shall", TherapeuticArea: "oncology", Phase: "Phase III",
			Frequency: 2, Correlation: 0.8, Confidence: 0.85, Examples: []string{"Each visit shall follow the schedule."}},
		{ID: "p1", Type: corpus.PatternStructural, Text: "clear primary endpoint", TherapeuticArea: "general", Phase: "general",
			Frequency: 1, Correlation: 0.75, Confidence: 0.8, Examples: []string{"Study A"}},
	}
	require.NoError(t, s.SavePatterns(ctx, patterns))
	got, err = s.ListPatterns(ctx)
	require.NoError(t, err)
	assert.Equal(t, patterns, got)

	require.NoError(t, s.SavePatterns(ctx, patterns[1:]))
	got, err = s.ListPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := profile.ActionEvent{
				ID: time.Unix(int64(i), 0).UTC().Format(time.RFC3339), UserID: "u1",
				Action: profile.ActionAccept, Timestamp: time.Unix(int64(i), 0).UTC(),
			}
			assert.NoError(t, s.AppendEvent(ctx, e))
		}(i)
	}
	wg.Wait()

	events, err := s.Events(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, events, 20)
}
