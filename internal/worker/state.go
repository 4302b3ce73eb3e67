package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aescanero/dago-libs/pkg/domain/state"
	"github.com/redis/go-redis/v9"
)

// DefaultStateKeyPrefix is where the orchestrator stores graph state
const DefaultStateKeyPrefix = "graph:state:"

// ErrStateNotFound is returned when an execution has no stored state
var ErrStateNotFound = errors.New("state not found")

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStateStore reads graph state stored as JSON under graph:state:<id>
type RedisStateStore struct {
	client stringGetter
	prefix string
}

// NewRedisStateStore creates a new Redis state store
func NewRedisStateStore(client redis.Cmdable) *RedisStateStore {
	return &RedisStateStore{client: client, prefix: DefaultStateKeyPrefix}
}

// Load loads graph state
func (s *RedisStateStore) Load(ctx context.Context, executionID string) (state.State, error) {
	data, err := s.client.Get(ctx, s.prefix+executionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w for execution %s", ErrStateNotFound, executionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	var st state.State
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return st, nil
}
