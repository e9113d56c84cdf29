package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	platformerrors "voicenote-server-go/internal/platform/errors"
)

// ErrUserNotFound is returned when no account matches the lookup.
var ErrUserNotFound = platformerrors.New(platformerrors.KindStorage, "users", "user not found")

// UserRepository persists journal accounts.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "users.create",
			"insert user", err)
	}
	return nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "users.get",
			"query user", err)
	}
	return &user, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&User{}).Count(&count).Error; err != nil {
		return 0, platformerrors.Wrap(platformerrors.KindStorage, "users.count",
			"count users", err)
	}
	return count, nil
}
