package model

import "time"

// ClientInfo captures one authenticated journal client persisted by the
// session store.
type ClientInfo struct {
	ClientID  string         `json:"client_id"`
	UserID    uint           `json:"user_id"`
	Username  string         `json:"username"`
	Password  string         `json:"password"`
	IP        string         `json:"ip,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Logger provides the minimal logging contract required by the auth domain.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}
