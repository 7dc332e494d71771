package storage

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"rconbridge/internal/model"
)

const sessionKeyPrefix = "rconbridge:session:"

// SessionCache layers Redis in front of another Store for session reads.
// Sessions are mirrored with a TTL equal to their remaining lifetime, so
// expiry falls out of Redis itself; the inner store stays the authority and
// every other operation delegates straight through.
type SessionCache struct {
	Store
	client *redis.Client
}

func NewSessionCache(inner Store, addr, password string) (*SessionCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &SessionCache{Store: inner, client: client}, nil
}

func sessionKey(ownerID int64) string {
	return sessionKeyPrefix + strconv.FormatInt(ownerID, 10)
}

func (c *SessionCache) SaveSession(ctx context.Context, session model.Session) error {
	if err := c.Store.SaveSession(ctx, session); err != nil {
		return err
	}
	c.cache(ctx, session)
	return nil
}

func (c *SessionCache) cache(ctx context.Context, session model.Session) {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(session)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, sessionKey(session.OwnerID), data, ttl).Err(); err != nil {
		log.Printf("session cache: set failed: %v", err)
	}
}

func (c *SessionCache) GetActiveSession(ctx context.Context, ownerID int64, now time.Time) (model.Session, error) {
	data, err := c.client.Get(ctx, sessionKey(ownerID)).Bytes()
	if err == nil {
		var session model.Session
		if jerr := json.Unmarshal(data, &session); jerr == nil && !session.Expired(now) {
			return session, nil
		}
	} else if err != redis.Nil {
		log.Printf("session cache: get failed: %v", err)
	}

	session, err := c.Store.GetActiveSession(ctx, ownerID, now)
	if err != nil {
		return model.Session{}, err
	}
	c.cache(ctx, session)
	return session, nil
}

func (c *SessionCache) DeleteSession(ctx context.Context, ownerID int64) error {
	if err := c.client.Del(ctx, sessionKey(ownerID)).Err(); err != nil {
		log.Printf("session cache: del failed: %v", err)
	}
	return c.Store.DeleteSession(ctx, ownerID)
}

func (c *SessionCache) Close() error {
	if err := c.client.Close(); err != nil {
		log.Printf("session cache: close failed: %v", err)
	}
	return c.Store.Close()
}
