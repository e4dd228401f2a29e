package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "quiz:kv:"

// setIfGreater treats a missing, fractional or negative value as 0 and replies {updated, stored}.
var setIfGreater = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]))
if current == nil or current < 0 or current ~= math.floor(current) then
	current = 0
end
local value = tonumber(ARGV[1])
if value <= current then
	return {0, current}
end
redis.call('SET', KEYS[1], ARGV[1])
return {1, value}
`)

// KVStore keeps small string values (the best score) in Redis so they survive restarts
// and are shared between every process pointed at the same instance.
type KVStore struct {
	client *redis.Client
	prefix string
}

func NewKVStore(client *redis.Client, prefix string) *KVStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &KVStore{client: client, prefix: prefix}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if IsMiss(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) SetIfGreater(ctx context.Context, key string, value int) (int, bool, error) {
	reply, err := setIfGreater.Run(ctx, s.client, []string{s.key(key)}, value).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("redis set-if-greater %s: %w", key, err)
	}
	if len(reply) != 2 {
		return 0, false, fmt.Errorf("redis set-if-greater %s: unexpected reply %v", key, reply)
	}
	return int(reply[1]), reply[0] == 1, nil
}

func (s *KVStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) key(key string) string {
	return s.prefix + key
}
