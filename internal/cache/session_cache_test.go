package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localchat/internal/model"
)

func newTestCache(t *testing.T) (*SessionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionCache(client, time.Minute, 5*time.Second), mr
}

func TestSessionCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	_, hit, err := c.GetSession(ctx, 1, 10)
	require.NoError(t, err)
	assert.False(t, hit)

	session := &model.Session{
		ID:     10,
		UserID: 1,
		Title:  "hello",
		Model:  "llama3",
		Messages: []model.Message{
			{ID: 1, SessionID: 10, UserID: 1, Role: model.RoleUser, Content: "hello"},
		},
	}
	require.NoError(t, c.SetSession(ctx, session))

	got, hit, err := c.GetSession(ctx, 1, 10)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "hello", got.Title)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, model.RoleUser, got.Messages[0].Role)

	_, hit, err = c.GetSession(ctx, 2, 10)
	require.NoError(t, err)
	assert.False(t, hit, "cache keys are owner scoped")

	require.NoError(t, c.DeleteSession(ctx, 1, 10))
	_, hit, err = c.GetSession(ctx, 1, 10)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestSessionCacheDirtyMarkerExpires(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	dirty, err := c.IsDirty(ctx, 4)
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, c.MarkDirty(ctx, 4))
	dirty, err = c.IsDirty(ctx, 4)
	require.NoError(t, err)
	assert.True(t, dirty)

	mr.FastForward(6 * time.Second)
	dirty, err = c.IsDirty(ctx, 4)
	require.NoError(t, err)
	assert.False(t, dirty)
}
