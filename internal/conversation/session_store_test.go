package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client, ttl), mr
}

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)
	ctx := context.Background()

	sess := NewSession("5511999990000")
	sess.State = StateAwaitingInsurer
	sess.Context.InsuranceName = "Unimed"
	sess.Context.OfferedSlotIDs = []string{"a", "b"}

	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx, "5511999990000")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, StateAwaitingInsurer, loaded.State)
	assert.Equal(t, "Unimed", loaded.Context.InsuranceName)
	assert.Equal(t, []string{"a", "b"}, loaded.Context.OfferedSlotIDs)
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestRedisSessionStoreLoadMissing(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)

	loaded, err := store.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisSessionStoreTTL(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, NewSession("p1")))
	assert.Equal(t, time.Minute, mr.TTL("session:p1"))

	mr.FastForward(2 * time.Minute)

	loaded, err := store.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisSessionStoreDelete(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, NewSession("p1")))
	require.NoError(t, store.Delete(ctx, "p1"))

	loaded, err := store.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisSessionStoreRejectsInvalidState(t *testing.T) {
	store, _ := newRedisStore(t, 0)

	sess := NewSession("p1")
	sess.State = State("NOT_A_STATE")
	err := store.Save(context.Background(), sess)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid state")
}

func TestRedisSessionStoreRequiresCorrespondent(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()

	_, err := store.Load(ctx, "")
	require.Error(t, err)
	require.Error(t, store.Save(ctx, &Session{State: StateNew}))
	require.Error(t, store.Delete(ctx, ""))
}

func TestRedisSessionStoreDecodeError(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	require.NoError(t, mr.Set("session:p1", "{not json"))

	_, err := store.Load(context.Background(), "p1")
	require.Error(t, err)
}
