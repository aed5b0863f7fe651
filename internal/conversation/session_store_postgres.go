package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PostgresSessionStore persists sessions in the sessions table:
// (correspondent_id PK, state TEXT, context JSONB, updated_at TIMESTAMPTZ).
type PostgresSessionStore struct {
	db *sql.DB
}

// NewPostgresSessionStore wraps the given database handle.
func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	if db == nil {
		panic("conversation: db cannot be nil")
	}
	return &PostgresSessionStore{db: db}
}

func (s *PostgresSessionStore) Load(ctx context.Context, correspondentID string) (*Session, error) {
	if correspondentID == "" {
		return nil, errors.New("conversation: correspondentID required")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT state, context, updated_at FROM sessions WHERE correspondent_id = $1`,
		correspondentID)

	var (
		state      string
		contextRaw []byte
		updatedAt  time.Time
	)
	if err := row.Scan(&state, &contextRaw, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("conversation: load session: %w", err)
	}

	sess := &Session{
		CorrespondentID: correspondentID,
		State:           State(state),
		UpdatedAt:       updatedAt,
	}
	if len(contextRaw) > 0 {
		if err := json.Unmarshal(contextRaw, &sess.Context); err != nil {
			return nil, fmt.Errorf("conversation: decode session context: %w", err)
		}
	}
	return sess, nil
}

func (s *PostgresSessionStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.CorrespondentID == "" {
		return errors.New("conversation: session with correspondentID required")
	}
	if !sess.State.Valid() {
		return fmt.Errorf("conversation: refusing to save invalid state %q", sess.State)
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = time.Now().UTC()
	}

	contextRaw, err := json.Marshal(sess.Context)
	if err != nil {
		return fmt.Errorf("conversation: encode session context: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (correspondent_id, state, context, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (correspondent_id)
		 DO UPDATE SET state = EXCLUDED.state, context = EXCLUDED.context, updated_at = EXCLUDED.updated_at`,
		sess.CorrespondentID, string(sess.State), contextRaw, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("conversation: save session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) Delete(ctx context.Context, correspondentID string) error {
	if correspondentID == "" {
		return errors.New("conversation: correspondentID required")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE correspondent_id = $1`, correspondentID); err != nil {
		return fmt.Errorf("conversation: delete session: %w", err)
	}
	return nil
}

var _ SessionStore = (*PostgresSessionStore)(nil)
var _ SessionStore = (*RedisSessionStore)(nil)
