package kv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunterhub/hunter-ranking/internal/adapters/kv"
)

type ledger struct {
	Scores []int `json:"scores"`
}

func exerciseStore(t *testing.T, s kv.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, kv.KeyGlobalScores)
	require.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, kv.SetJSON(ctx, s, kv.KeyGlobalScores, ledger{Scores: []int{300, 250}}))
	require.NoError(t, s.Set(ctx, "reflexTestHistory", []byte(`[]`)))

	var got ledger
	require.NoError(t, kv.GetJSON(ctx, s, kv.KeyGlobalScores, &got))
	assert.Equal(t, []int{300, 250}, got.Scores)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{kv.KeyGlobalScores, "reflexTestHistory"}, keys)

	require.NoError(t, s.Remove(ctx, kv.KeyGlobalScores))
	require.NoError(t, s.Remove(ctx, "never-set"))
	_, err = s.Get(ctx, kv.KeyGlobalScores)
	assert.True(t, kv.IsMissing(err))
}

func TestMemory(t *testing.T) {
	exerciseStore(t, kv.NewMemory())
}

func TestMemoryQuota(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory(kv.WithQuota(10))

	require.NoError(t, s.Set(ctx, "a", []byte("12345")))
	err := s.Set(ctx, "b", []byte("1234567"))
	require.ErrorIs(t, err, kv.ErrQuota)

	// Overwriting a key only counts the difference.
	require.NoError(t, s.Set(ctx, "a", []byte("1234567890")))
	require.NoError(t, s.Remove(ctx, "a"))
	require.NoError(t, s.Set(ctx, "b", []byte("1234567")))
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()
	v := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", v))
	v[0] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFile(t *testing.T) {
	s, err := kv.NewFile(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileEscapesKeys(t *testing.T) {
	ctx := context.Background()
	s, err := kv.NewFile(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "../escape/key", []byte("1")))
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"../escape/key"}, keys)
}

func TestGetJSONCorrupt(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()
	require.NoError(t, s.Set(ctx, kv.KeyGlobalScores, []byte("{not json")))

	var got ledger
	err := kv.GetJSON(ctx, s, kv.KeyGlobalScores, &got)
	require.ErrorIs(t, err, kv.ErrCorrupt)
	assert.True(t, kv.IsMissing(err))
}

func TestInstrumentedPassesThrough(t *testing.T) {
	ctx := context.Background()
	s := kv.Instrument(kv.NewMemory(kv.WithQuota(4)), "memory")

	require.ErrorIs(t, s.Set(ctx, "k", []byte("too long")), kv.ErrQuota)
	require.NoError(t, s.Set(ctx, "k", []byte("ok")))
	_, err := s.Get(ctx, "missing")
	assert.True(t, errors.Is(err, kv.ErrNotFound))
}

func TestRedisUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	s := kv.NewRedis(client, "")

	_, err := s.Get(context.Background(), kv.KeyGlobalScores)
	require.Error(t, err)
	assert.False(t, errors.Is(err, kv.ErrNotFound))
}
