package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"voicenote-server-go/internal/domain/auth/model"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis constructs a redis-backed session store.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "auth:client:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &redisStore{client: client, ttl: ttl, prefix: prefix}, nil
}

func (s *redisStore) key(id string) string {
	return s.prefix + id
}

func (s *redisStore) Store(ctx context.Context, info model.ClientInfo) error {
	if info.ClientID == "" {
		return fmt.Errorf("client id required")
	}
	if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now()
	}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	expiry := s.ttl
	if info.ExpiresAt != nil {
		expiry = time.Until(*info.ExpiresAt)
	}
	return s.client.Set(ctx, s.key(info.ClientID), data, expiry).Err()
}

func (s *redisStore) Get(ctx context.Context, clientID string) (model.ClientInfo, error) {
	data, err := s.client.Get(ctx, s.key(clientID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return model.ClientInfo{}, fmt.Errorf("client %s not found", clientID)
		}
		return model.ClientInfo{}, err
	}
	var info model.ClientInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return model.ClientInfo{}, err
	}
	return info, nil
}

func (s *redisStore) Validate(ctx context.Context, clientID, username, password string) (model.ClientInfo, bool, error) {
	info, err := s.Get(ctx, clientID)
	if err != nil {
		return model.ClientInfo{}, false, err
	}
	if info.Username != username || info.Password != password {
		return model.ClientInfo{}, false, nil
	}
	return info, true, nil
}

func (s *redisStore) Remove(ctx context.Context, clientID string) error {
	return s.client.Del(ctx, s.key(clientID)).Err()
}

func (s *redisStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// CleanupExpired is a no-op: redis expires keys itself.
func (s *redisStore) CleanupExpired(context.Context) error {
	return nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
