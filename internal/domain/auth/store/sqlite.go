package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"voicenote-server-go/internal/domain/auth/model"
	"voicenote-server-go/internal/platform/storage"
)

type sqliteStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewSQLite wraps the shared database as a session store.
func NewSQLite(db *gorm.DB, cfg Config) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &sqliteStore{db: db, ttl: ttl}, nil
}

func (s *sqliteStore) Store(ctx context.Context, info model.ClientInfo) error {
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

	record := storage.AuthClient{
		ClientID:  info.ClientID,
		Username:  info.Username,
		Password:  info.Password,
		IP:        info.IP,
		CreatedAt: info.CreatedAt,
		ExpiresAt: info.ExpiresAt,
	}
	meta := map[string]any{"user_id": info.UserID}
	for k, v := range info.Metadata {
		meta[k] = v
	}
	if data, err := json.Marshal(meta); err == nil {
		record.Metadata = datatypes.JSON(data)
	}

	return s.db.WithContext(ctx).
		Where("client_id = ?", info.ClientID).
		Assign(record).
		FirstOrCreate(&storage.AuthClient{}).Error
}

func (s *sqliteStore) Get(ctx context.Context, clientID string) (model.ClientInfo, error) {
	var record storage.AuthClient
	err := s.db.WithContext(ctx).Where("client_id = ?", clientID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ClientInfo{}, fmt.Errorf("client %s not found", clientID)
	}
	if err != nil {
		return model.ClientInfo{}, err
	}
	if record.ExpiresAt != nil && time.Now().After(*record.ExpiresAt) {
		return model.ClientInfo{}, fmt.Errorf("client %s expired", clientID)
	}
	return recordToInfo(record), nil
}

func (s *sqliteStore) Validate(ctx context.Context, clientID, username, password string) (model.ClientInfo, bool, error) {
	info, err := s.Get(ctx, clientID)
	if err != nil {
		return model.ClientInfo{}, false, err
	}
	if info.Username != username || info.Password != password {
		return model.ClientInfo{}, false, nil
	}
	return info, true, nil
}

func (s *sqliteStore) Remove(ctx context.Context, clientID string) error {
	return s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Delete(&storage.AuthClient{}).Error
}

func (s *sqliteStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&storage.AuthClient{}).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Pluck("client_id", &ids).Error
	return ids, err
}

func (s *sqliteStore) CleanupExpired(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", time.Now()).
		Delete(&storage.AuthClient{}).Error
}

func (s *sqliteStore) Close(context.Context) error {
	return nil
}

func recordToInfo(record storage.AuthClient) model.ClientInfo {
	info := model.ClientInfo{
		ClientID:  record.ClientID,
		Username:  record.Username,
		Password:  record.Password,
		IP:        record.IP,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}
	if len(record.Metadata) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(record.Metadata, &meta); err == nil {
			if uid, ok := meta["user_id"].(float64); ok {
				info.UserID = uint(uid)
				delete(meta, "user_id")
			}
			if len(meta) > 0 {
				info.Metadata = meta
			}
		}
	}
	return info
}
