package memory

import (
	"context"
	"strconv"
	"sync"

	"quiz-runner/internal/domain"
)

// KVStore is an in-process implementation of app.KVStore. Nothing survives a restart.
type KVStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewKVStore() *KVStore {
	return &KVStore{
		values: make(map[string]string),
	}
}

func (s *KVStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *KVStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *KVStore) SetIfGreater(_ context.Context, key string, value int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, _ := domain.ParseScore(s.values[key])
	if value <= current {
		return current, false, nil
	}
	s.values[key] = strconv.Itoa(value)
	return value, true, nil
}

func (s *KVStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
