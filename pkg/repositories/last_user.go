package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LastUserKey is the single persisted entry: the last logged-in username.
const LastUserKey = "bankist:last_user"

// FileStore keeps the last-user entry in a small JSON document. Writes go to
// a temporary file that is renamed over the original.
type FileStore struct {
	mu   sync.Mutex
	path string
}

type fileState struct {
	Key       string    `json:"key"`
	Username  string    `json:"username"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Get returns "" when nothing is stored.
func (s *FileStore) Get(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading %s: %w", s.path, err)
	}

	var st fileState
	if err := json.Unmarshal(b, &st); err != nil {
		return "", fmt.Errorf("error decoding %s: %w", s.path, err)
	}
	if st.Key != LastUserKey {
		return "", nil
	}
	return st.Username, nil
}

func (s *FileStore) Set(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.MarshalIndent(fileState{Key: LastUserKey, Username: username, UpdatedAt: time.Now()}, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("error writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("error replacing %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error removing %s: %w", s.path, err)
	}
	return nil
}

// RedisStore keeps the last-user entry under LastUserKey.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context) (string, error) {
	username, err := s.client.Get(ctx, LastUserKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading %s: %w", LastUserKey, err)
	}
	return username, nil
}

func (s *RedisStore) Set(ctx context.Context, username string) error {
	if err := s.client.Set(ctx, LastUserKey, username, 0).Err(); err != nil {
		return fmt.Errorf("error writing %s: %w", LastUserKey, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, LastUserKey).Err(); err != nil {
		return fmt.Errorf("error removing %s: %w", LastUserKey, err)
	}
	return nil
}
