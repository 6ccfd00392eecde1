package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"localchat/internal/model"
)

// SessionCache holds read-through copies of sessions for GetSession.
// Writers mark a session dirty before saving so readers that raced the
// write do not repopulate the cache with a stale copy.
type SessionCache struct {
	client         *redisv9.Client
	sessionTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewSessionCache(client *redisv9.Client, sessionTTL, dirtyMarkerTTL time.Duration) *SessionCache {
	if sessionTTL <= 0 {
		sessionTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &SessionCache{
		client:         client,
		sessionTTL:     sessionTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *SessionCache) GetSession(ctx context.Context, userID, sessionID uint) (*model.Session, bool, error) {
	raw, err := c.client.Get(ctx, c.sessionKey(userID, sessionID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get session failed: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached session failed: %w", err)
	}
	return &session, true, nil
}

func (c *SessionCache) SetSession(ctx context.Context, session *model.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.sessionKey(session.UserID, session.ID), payload, c.sessionTTL).Err(); err != nil {
		return fmt.Errorf("redis set session failed: %w", err)
	}
	return nil
}

func (c *SessionCache) DeleteSession(ctx context.Context, userID, sessionID uint) error {
	if err := c.client.Del(ctx, c.sessionKey(userID, sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete session failed: %w", err)
	}
	return nil
}

func (c *SessionCache) MarkDirty(ctx context.Context, sessionID uint) error {
	if err := c.client.Set(ctx, c.dirtyKey(sessionID), "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *SessionCache) IsDirty(ctx context.Context, sessionID uint) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *SessionCache) sessionKey(userID, sessionID uint) string {
	return fmt.Sprintf("chat:session:%d:%d", userID, sessionID)
}

func (c *SessionCache) dirtyKey(sessionID uint) string {
	return fmt.Sprintf("chat:session:dirty:%d", sessionID)
}
