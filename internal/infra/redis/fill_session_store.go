package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"formbuilder-service/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// FillSessionStore keeps fill sessions as Redis keys that expire after ttl,
// so sessions survive restarts and are shared between instances.
type FillSessionStore struct {
	client *redis.Client
	ttl    time.Duration
	clock  func() time.Time
}

func NewFillSessionStore(client *redis.Client, ttl time.Duration) *FillSessionStore {
	return &FillSessionStore{client: client, ttl: ttl, clock: time.Now}
}

func (s *FillSessionStore) Start(ctx context.Context, formID string) (domain.FillSession, error) {
	session := domain.FillSession{
		ID:        uuid.NewString(),
		FormID:    formID,
		StartedAt: s.clock().UTC(),
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return domain.FillSession{}, err
	}
	if err := s.client.Set(ctx, s.key(session.ID), raw, s.ttl).Err(); err != nil {
		return domain.FillSession{}, fmt.Errorf("%w: start fill session: %v", domain.ErrPersistence, err)
	}
	return session, nil
}

// Lookup returns a live session without removing it.
func (s *FillSessionStore) Lookup(ctx context.Context, sessionID string) (domain.FillSession, bool, error) {
	return decodeSession("look up", s.client.Get(ctx, s.key(sessionID)))
}

// Finish atomically removes and returns a session.
func (s *FillSessionStore) Finish(ctx context.Context, sessionID string) (domain.FillSession, bool, error) {
	return decodeSession("finish", s.client.GetDel(ctx, s.key(sessionID)))
}

func decodeSession(op string, cmd *redis.StringCmd) (domain.FillSession, bool, error) {
	raw, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.FillSession{}, false, nil
	}
	if err != nil {
		return domain.FillSession{}, false, fmt.Errorf("%w: %s fill session: %v", domain.ErrPersistence, op, err)
	}
	var session domain.FillSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.FillSession{}, false, nil
	}
	return session, true, nil
}

func (s *FillSessionStore) key(sessionID string) string {
	return "form:fill:" + sessionID
}
