package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fieldcrew/mobsched/modules/scheduling/services"
)

// unlockScript deletes the lock only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ services.SessionStore = (*RedisSessionStore)(nil)

// RedisSessionStore keeps workflow states as JSON values with a TTL. The
// in-flight lock is a SET NX key next to the state.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: "mobsched:workflow"}
}

// NewRedisClient accepts a redis:// URL or a bare host:port address.
func NewRedisClient(redisURL string) *redis.Client {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		opts = &redis.Options{Addr: redisURL}
	}
	return redis.NewClient(opts)
}

func (s *RedisSessionStore) stateKey(tenantID, id uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, tenantID, id)
}

func (s *RedisSessionStore) lockKey(tenantID, id uuid.UUID) string {
	return s.stateKey(tenantID, id) + ":lock"
}

func (s *RedisSessionStore) Get(ctx context.Context, tenantID, id uuid.UUID) (services.WorkflowState, error) {
	raw, err := s.client.Get(ctx, s.stateKey(tenantID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return services.WorkflowState{}, services.ErrSessionNotFound
	}
	if err != nil {
		return services.WorkflowState{}, errors.Wrap(err, "get workflow session")
	}
	var state services.WorkflowState
	if err := json.Unmarshal(raw, &state); err != nil {
		return services.WorkflowState{}, errors.Wrap(err, "decode workflow session")
	}
	return state, nil
}

func (s *RedisSessionStore) Put(ctx context.Context, tenantID uuid.UUID, state services.WorkflowState, ttl time.Duration) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "encode workflow session")
	}
	if err := s.client.Set(ctx, s.stateKey(tenantID, state.ID), raw, ttl).Err(); err != nil {
		return errors.Wrap(err, "put workflow session")
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.client.Del(ctx, s.stateKey(tenantID, id)).Err(); err != nil {
		return errors.Wrap(err, "delete workflow session")
	}
	return nil
}

func (s *RedisSessionStore) Lock(ctx context.Context, tenantID, id uuid.UUID, ttl time.Duration) (func(), error) {
	key := s.lockKey(tenantID, id)
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, "lock workflow session")
	}
	if !ok {
		return nil, services.ErrSessionBusy
	}
	return func() {
		// The request context may already be cancelled here.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = unlockScript.Run(unlockCtx, s.client, []string{key}, token).Err()
	}, nil
}
