package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProtocolIQ/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(&RedisConfig{Mode: "standalone", Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClient_Standalone(t *testing.T) {
	client, _ := newTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, "protocoliq:profile:u1", client.Key("profile", "u1"))
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	client, err := NewClient(&RedisConfig{Mode: "standalone", Addr: "127.0.0.1:1"}, logging.NewNopLogger())
	assert.Nil(t, client)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
}

func TestNewClient_UnknownModeFallsBackToStandalone(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(&RedisConfig{Mode: "bogus", Addr: mr.Addr(), KeyPrefix: "x:"}, nil)
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, "x:a:b", client.Key("a", "b"))
}

func TestClient_Operations(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "foo", "bar", 0).Err())
	val, err := client.Get(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Equal(t, "bar", val)

	ok, err := client.SetNX(ctx, "foo", "baz", 0).Result()
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := client.Del(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	exists, err := client.Exists(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestClient_Close(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close(), "second close is a no-op")
	assert.Equal(t, ErrClientClosed, client.Get(context.Background(), "foo").Err())
	assert.Equal(t, ErrClientClosed, client.Ping(context.Background()))
}
