package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

// RecordStore keeps each profile as a JSON string and each user's action log
// as a capped list.
type RecordStore struct {
	client    *Client
	maxEvents int64
}

// DefaultMaxEvents caps the per-user action list.
const DefaultMaxEvents = 1000

// NewRecordStore builds the store. maxEvents <= 0 uses DefaultMaxEvents.
func NewRecordStore(client *Client, maxEvents int) *RecordStore {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &RecordStore{client: client, maxEvents: int64(maxEvents)}
}

var (
	_ profile.RecordStore = (*RecordStore)(nil)
	_ corpus.PatternStore = (*RecordStore)(nil)
)

func (s *RecordStore) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	data, err := s.client.Get(ctx, s.client.Key("profile", userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "failed to read profile")
	}
	return profile.Decode(data)
}

func (s *RecordStore) Put(ctx context.Context, userID string, p *profile.Profile) error {
	data, err := profile.Encode(p)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.client.Key("profile", userID), data, 0).Err(); err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "failed to write profile")
	}
	return nil
}

func (s *RecordStore) AppendEvent(ctx context.Context, e profile.ActionEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode action event")
	}
	key := s.client.Key("events", e.UserID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -s.maxEvents, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "failed to append action event")
	}
	return nil
}

// Events returns the stored action log of userID, oldest first.
func (s *RecordStore) Events(ctx context.Context, userID string) ([]profile.ActionEvent, error) {
	raw, err := s.client.LRange(ctx, s.client.Key("events", userID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "failed to read action events")
	}
	out := make([]profile.ActionEvent, 0, len(raw))
	for _, r := range raw {
		var e profile.ActionEvent
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode action event")
		}
		out = append(out, e)
	}
	return out, nil
}

// SavePatterns replaces the mined pattern set in one write.
func (s *RecordStore) SavePatterns(ctx context.Context, patterns []corpus.SuccessPattern) error {
	data, err := json.Marshal(patterns)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode success patterns")
	}
	if err := s.client.Set(ctx, s.client.Key("patterns"), data, 0).Err(); err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "failed to write success patterns")
	}
	return nil
}

func (s *RecordStore) ListPatterns(ctx context.Context) ([]corpus.SuccessPattern, error) {
	data, err := s.client.Get(ctx, s.client.Key("patterns")).Bytes()
	if err == redis.Nil {
		return []corpus.SuccessPattern{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "failed to read success patterns")
	}
	var out []corpus.SuccessPattern
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode success patterns")
	}
	return out, nil
}
