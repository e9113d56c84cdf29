package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"voicenote-server-go/internal/domain/auth/model"
)

type memoryStore struct {
	mu      sync.RWMutex
	clients map[string]model.ClientInfo
	ttl     time.Duration

	gcStop chan struct{}
	gcOnce sync.Once
}

// NewMemory builds an in-memory session store with background expiry.
func NewMemory(cfg Config) Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	gcInterval := time.Minute
	if cfg.Memory != nil && cfg.Memory.GCInterval > 0 {
		gcInterval = cfg.Memory.GCInterval
	}

	s := &memoryStore{
		clients: make(map[string]model.ClientInfo),
		ttl:     ttl,
		gcStop:  make(chan struct{}),
	}
	go s.gcLoop(gcInterval)
	return s
}

func (s *memoryStore) gcLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = s.CleanupExpired(context.Background())
		case <-s.gcStop:
			return
		}
	}
}

func (s *memoryStore) Store(_ context.Context, info model.ClientInfo) error {
	if info.ClientID == "" {
		return fmt.Errorf("client id required")
	}
	if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now()
	}
	if info.ExpiresAt == nil {
		expires := info.CreatedAt.Add(s.ttl)
		info.ExpiresAt = &expires
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[info.ClientID] = info
	return nil
}

func (s *memoryStore) Get(_ context.Context, clientID string) (model.ClientInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.clients[clientID]
	if !ok {
		return model.ClientInfo{}, fmt.Errorf("client %s not found", clientID)
	}
	if expired(info) {
		return model.ClientInfo{}, fmt.Errorf("client %s expired", clientID)
	}
	return info, nil
}

func (s *memoryStore) Validate(ctx context.Context, clientID, username, password string) (model.ClientInfo, bool, error) {
	info, err := s.Get(ctx, clientID)
	if err != nil {
		return model.ClientInfo{}, false, err
	}
	if info.Username != username || info.Password != password {
		return model.ClientInfo{}, false, nil
	}
	return info, true, nil
}

func (s *memoryStore) Remove(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, clientID)
	return nil
}

func (s *memoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.clients))
	for id, info := range s.clients {
		if expired(info) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memoryStore) CleanupExpired(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, info := range s.clients {
		if expired(info) {
			delete(s.clients, id)
		}
	}
	return nil
}

func (s *memoryStore) Close(_ context.Context) error {
	s.gcOnce.Do(func() {
		close(s.gcStop)
	})
	return nil
}

func expired(info model.ClientInfo) bool {
	return info.ExpiresAt != nil && time.Now().After(*info.ExpiresAt)
}
