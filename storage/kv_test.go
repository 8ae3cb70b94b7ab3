package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJetStream(t *testing.T) jetstream.JetStream {
	t.Helper()

	ns, err := natsserver.NewServer(&natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second), "embedded NATS not ready")

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	js, err := jetstream.New(nc)
	require.NoError(t, err)
	return js
}

func TestKVStore(t *testing.T) {
	ctx := context.Background()
	js := newTestJetStream(t)

	store, err := NewKVStore(ctx, js, "")
	require.NoError(t, err)

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = store.Read(ctx, "plan.yaml")
	assert.True(t, errors.Is(err, ErrNotFound))

	exists, err := store.Exists(ctx, "plan.yaml")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Write(ctx, "plan.yaml", []byte("task: one\n")))
	require.NoError(t, store.Write(ctx, "plan/child.yaml", []byte("task: child\n")))
	require.NoError(t, store.Write(ctx, "plan.yaml", []byte("task: two\n")))

	data, err := store.Read(ctx, "plan.yaml")
	require.NoError(t, err)
	assert.Equal(t, "task: two\n", string(data))

	exists, err = store.Exists(ctx, "plan/child.yaml")
	require.NoError(t, err)
	assert.True(t, exists)

	keys, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"plan.yaml", "plan/child.yaml"}, keys)

	assert.ErrorIs(t, store.Write(ctx, "../escape.yaml", nil), ErrInvalidKey)

	// Reopening finds the existing bucket.
	again, err := NewKVStore(ctx, js, DefaultBucket)
	require.NoError(t, err)
	data, err = again.Read(ctx, "plan/child.yaml")
	require.NoError(t, err)
	assert.Equal(t, "task: child\n", string(data))
}
