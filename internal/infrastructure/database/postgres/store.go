package postgres

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	TxBeginner
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists profiles, action events and success patterns in the schema
// created by RunMigrations.
type Store struct {
	db DBTX
}

func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

var (
	_ profile.RecordStore = (*Store)(nil)
	_ corpus.PatternStore = (*Store)(nil)
)

func (s *Store) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	var data []byte
	err := s.db.QueryRow(ctx, `SELECT data FROM profiles WHERE user_id = $1`, userID).Scan(&data)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "failed to read profile")
	}
	return profile.Decode(data)
}

func (s *Store) Put(ctx context.Context, userID string, p *profile.Profile) error {
	data, err := profile.Encode(p)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO profiles (user_id, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		userID, data)
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "failed to write profile")
	}
	return nil
}

// AppendEvent is idempotent on the event ID.
func (s *Store) AppendEvent(ctx context.Context, e profile.ActionEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode action event")
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO action_events (id, user_id, action, context, category, data, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.UserID, string(e.Action), e.Context, e.Category, data, e.Timestamp)
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "failed to append action event")
	}
	return nil
}

// Events returns the stored action log of userID, oldest first.
func (s *Store) Events(ctx context.Context, userID string) ([]profile.ActionEvent, error) {
	rows, err := s.db.Query(ctx, `SELECT data FROM action_events WHERE user_id = $1 ORDER BY occurred_at, id`, userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "failed to read action events")
	}
	defer rows.Close()

	out := []profile.ActionEvent{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreError, "failed to scan action event")
		}
		var e profile.ActionEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode action event")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "failed to read action events")
	}
	return out, nil
}

var patternColumns = []string{
	"id", "type", "text", "therapeutic_area", "phase",
	"frequency", "correlation", "confidence", "examples", "position",
}

// SavePatterns replaces the stored set atomically, bulk loading the new rows
// with COPY.
func (s *Store) SavePatterns(ctx context.Context, patterns []corpus.SuccessPattern) error {
	rows := make([][]any, 0, len(patterns))
	for i, p := range patterns {
		examples := p.Examples
		if examples == nil {
			examples = []string{}
		}
		rows = append(rows, []any{
			p.ID, string(p.Type), p.Text, p.TherapeuticArea, p.Phase,
			int32(p.Frequency), p.Correlation, p.Confidence, examples, int32(i),
		})
	}

	err := WithTransaction(ctx, s.db, func(tx pgx.Tx, ctx context.Context) error {
		if _, err := tx.Exec(ctx, `DELETE FROM success_patterns`); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"success_patterns"}, patternColumns, pgx.CopyFromRows(rows))
		return err
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "failed to save success patterns")
	}
	return nil
}

// ListPatterns returns the stored set in the order it was saved.
func (s *Store) ListPatterns(ctx context.Context) ([]corpus.SuccessPattern, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, type, text, therapeutic_area, phase, frequency, correlation, confidence, examples
		FROM success_patterns ORDER BY position`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "failed to read success patterns")
	}
	defer rows.Close()

	out := []corpus.SuccessPattern{}
	for rows.Next() {
		var (
			p        corpus.SuccessPattern
			typ      string
			freq     int32
			examples []string
		)
		if err := rows.Scan(&p.ID, &typ, &p.Text, &p.TherapeuticArea, &p.Phase, &freq, &p.Correlation, &p.Confidence, &examples); err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreError, "failed to scan success pattern")
		}
		p.Type = corpus.PatternType(typ)
		p.Frequency = int(freq)
		p.Examples = examples
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "failed to read success patterns")
	}
	return out, nil
}
