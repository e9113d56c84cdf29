package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"voicenote-server-go/internal/domain/auth/model"
	"voicenote-server-go/internal/domain/auth/store"
)

type (
	// ClientInfo re-exports the shared auth entity for callers.
	ClientInfo = model.ClientInfo
	// Logger re-exports the logging interface used across the domain.
	Logger = model.Logger
)

const (
	defaultCleanupInterval = 10 * time.Minute
	minCleanupInterval     = 30 * time.Second
)

// Options encapsulates the dependencies required to construct a Manager.
type Options struct {
	Store           store.Store
	Logger          Logger
	Token           *AuthToken
	SessionTTL      time.Duration
	CleanupInterval time.Duration
}

// Manager coordinates the session store and token lifecycle.
type Manager struct {
	store      store.Store
	logger     Logger
	token      *AuthToken
	sessionTTL time.Duration

	cleanupInterval time.Duration
	cleanupStop     chan struct{}
	cleanupOnce     sync.Once
}

// NewManager wires a Manager using the supplied options.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("auth manager requires a store")
	}
	if opts.Logger == nil {
		return nil, errors.New("auth manager requires a logger")
	}
	if opts.Token == nil {
		return nil, errors.New("auth manager requires a token helper")
	}

	sessionTTL := opts.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	cleanupInterval := opts.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	} else if cleanupInterval < minCleanupInterval {
		opts.Logger.Warn("cleanup interval %v too small, adjusting to %v",
			cleanupInterval, minCleanupInterval)
		cleanupInterval = minCleanupInterval
	}

	mgr := &Manager{
		store:           opts.Store,
		logger:          opts.Logger,
		token:           opts.Token,
		sessionTTL:      sessionTTL,
		cleanupInterval: cleanupInterval,
		cleanupStop:     make(chan struct{}),
	}
	go mgr.cleanupLoop()
	return mgr, nil
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := m.store.CleanupExpired(context.Background()); err != nil {
				m.logger.Warn("auth store cleanup failed: %v", err)
			}
		case <-m.cleanupStop:
			return
		}
	}
}

// RegisterClient records an authenticated client and issues its JWT.
func (m *Manager) RegisterClient(ctx context.Context, info ClientInfo) (string, error) {
	if info.ExpiresAt == nil {
		expires := time.Now().Add(m.sessionTTL)
		info.ExpiresAt = &expires
	}
	if err := m.store.Store(ctx, info); err != nil {
		return "", err
	}
	return m.token.GenerateToken(info.UserID, info.ClientID)
}

// VerifyToken resolves a bearer token back to its user identity. A valid
// signature alone is not enough: the client must still be present in the
// session store, so revoked or expired sessions stop authenticating.
func (m *Manager) VerifyToken(ctx context.Context, tokenString string) (uint, string, error) {
	userID, clientID, err := m.token.VerifyToken(tokenString)
	if err != nil {
		return 0, "", err
	}
	if _, err := m.store.Get(ctx, clientID); err != nil {
		return 0, "", fmt.Errorf("session %s not active: %w", clientID, err)
	}
	return userID, clientID, nil
}

// RevokeClient removes a client session.
func (m *Manager) RevokeClient(ctx context.Context, clientID string) error {
	return m.store.Remove(ctx, clientID)
}

// Close stops the cleanup loop and closes the store.
func (m *Manager) Close() error {
	m.cleanupOnce.Do(func() {
		close(m.cleanupStop)
	})
	return m.store.Close(context.Background())
}
