package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis. Turn history lives in a list so
// ordering is preserved by the storage itself; the last state snapshot is a
// JSON value next to it.
type RedisStore struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	maxTurns int
}

var _ Store = (*RedisStore)(nil)

// RedisOptions configures the Redis connection and retention policy.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // key prefix, default "careerflow:"
	TTL      time.Duration // session expiration, default 0 (no expiration)
	MaxTurns int           // retained turns per session, 0 = unbounded
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "careerflow:"
	}

	return &RedisStore{
		client:   client,
		prefix:   prefix,
		ttl:      opts.TTL,
		maxTurns: opts.MaxTurns,
	}
}

func (s *RedisStore) turnsKey(id string) string {
	return fmt.Sprintf("%ssession:%s:turns", s.prefix, id)
}

func (s *RedisStore) stateKey(id string) string {
	return fmt.Sprintf("%ssession:%s:state", s.prefix, id)
}

type redisState struct {
	LastState map[string]any `json:"last_state"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Load reads the turn list and state snapshot. An unknown id yields an
// empty session, not an error.
func (s *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	rawTurns, err := s.client.LRange(ctx, s.turnsKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session turns: %w", err)
	}

	sess := emptySession(id)
	for _, raw := range rawTurns {
		var turn Turn
		if err := json.Unmarshal([]byte(raw), &turn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn: %w", err)
		}
		sess.Turns = append(sess.Turns, turn)
	}

	rawState, err := s.client.Get(ctx, s.stateKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return sess, nil
		}
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}

	var state redisState
	if err := json.Unmarshal(rawState, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}
	sess.LastState = state.LastState
	sess.UpdatedAt = state.UpdatedAt
	return sess, nil
}

// Append pushes the turns and rewrites the state snapshot in one pipeline.
// The retention cap trims from the head of the list, so retained ordering
// is untouched.
func (s *RedisStore) Append(ctx context.Context, id string, turns []Turn, state map[string]any) error {
	stateJSON, err := json.Marshal(redisState{LastState: state, UpdatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	encoded := make([]any, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("failed to marshal turn: %w", err)
		}
		encoded = append(encoded, data)
	}

	pipe := s.client.TxPipeline()
	if len(encoded) > 0 {
		pipe.RPush(ctx, s.turnsKey(id), encoded...)
	}
	if s.maxTurns > 0 {
		pipe.LTrim(ctx, s.turnsKey(id), int64(-s.maxTurns), -1)
	}
	pipe.Set(ctx, s.stateKey(id), stateJSON, s.ttl)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.turnsKey(id), s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append session turn: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
