package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const sessionKeyPrefix = "session:"

// SessionStore persists dialog sessions keyed by correspondent.
// Load returns (nil, nil) when no session exists.
type SessionStore interface {
	Load(ctx context.Context, correspondentID string) (*Session, error)
	Save(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, correspondentID string) error
}

// RedisSessionStore keeps sessions as JSON values with a sliding TTL.
type RedisSessionStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// NewRedisSessionStore creates a session store over the given Redis client.
// A zero ttl keeps sessions forever.
func NewRedisSessionStore(redisClient *redis.Client, ttl time.Duration) *RedisSessionStore {
	if redisClient == nil {
		panic("conversation: redis client cannot be nil")
	}
	return &RedisSessionStore{
		redis:  redisClient,
		tracer: otel.Tracer("healthgpt.internal.conversation.sessions"),
		ttl:    ttl,
	}
}

func sessionKey(correspondentID string) string {
	return sessionKeyPrefix + correspondentID
}

func (s *RedisSessionStore) Load(ctx context.Context, correspondentID string) (*Session, error) {
	if correspondentID == "" {
		return nil, errors.New("conversation: correspondentID required")
	}

	ctx, span := s.tracer.Start(ctx, "conversation.sessions.load")
	defer span.End()

	raw, err := s.redis.Get(ctx, sessionKey(correspondentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.CorrespondentID == "" {
		return errors.New("conversation: session with correspondentID required")
	}
	if !sess.State.Valid() {
		return fmt.Errorf("conversation: refusing to save invalid state %q", sess.State)
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = time.Now().UTC()
	}

	ctx, span := s.tracer.Start(ctx, "conversation.sessions.save")
	defer span.End()

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("conversation: encode session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sess.CorrespondentID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, correspondentID string) error {
	if correspondentID == "" {
		return errors.New("conversation: correspondentID required")
	}

	ctx, span := s.tracer.Start(ctx, "conversation.sessions.delete")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(correspondentID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: delete session: %w", err)
	}
	return nil
}
