package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/partaibook/vendor-discovery/internal/domain/repositories"
	redisclient "github.com/partaibook/vendor-discovery/internal/infrastructure/clients/redis"
	apperrors "github.com/partaibook/vendor-discovery/pkg/errors"
)

const sessionKeyPrefix = "discovery:session-state:"

// RedisSessionStore persists discovery sessions in Redis with a sliding TTL.
type RedisSessionStore struct {
	client *redisclient.Client
	ttl    time.Duration
}

var _ repositories.DiscoverySessionRepository = (*RedisSessionStore)(nil)

// NewRedisSessionStore creates a session store; ttl 0 keeps sessions forever
func NewRedisSessionStore(client *redisclient.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Save writes the session and refreshes its expiry
func (s *RedisSessionStore) Save(ctx context.Context, state *entities.DiscoverySessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return apperrors.NewInternalError("failed to encode session", err)
	}
	if err := s.client.Client().Set(ctx, sessionKey(state.ID), data, s.ttl).Err(); err != nil {
		return apperrors.NewExternalError("failed to save session", err)
	}
	return nil
}

// Get loads a session
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*entities.DiscoverySessionState, error) {
	data, err := s.client.Client().Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("discovery session %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewExternalError("failed to load session", err)
	}

	var state entities.DiscoverySessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, apperrors.NewInternalError("failed to decode session", err)
	}
	return &state, nil
}

// Delete removes a session
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Client().Del(ctx, sessionKey(id)).Err(); err != nil {
		return apperrors.NewExternalError("failed to delete session", err)
	}
	return nil
}
