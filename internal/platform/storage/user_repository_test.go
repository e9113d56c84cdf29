package storage

import (
	"context"
	"errors"
	"testing"
)

func TestUserRepositoryRoundTrip(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Exec("DELETE FROM users").Error; err != nil {
		t.Fatalf("clean users: %v", err)
	}
	repo := NewUserRepository(db)
	ctx := context.Background()

	if _, err := repo.GetByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	user := &User{Username: "ada", Password: "hash", Nickname: "Ada"}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("expected assigned user id")
	}

	got, err := repo.GetByUsername(ctx, "ada")
	if err != nil {
		t.Fatalf("GetByUsername error: %v", err)
	}
	if got.ID != user.ID || got.Nickname != "Ada" {
		t.Fatalf("unexpected user: %+v", got)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestUserRepositoryRejectsDuplicateUsername(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Exec("DELETE FROM users").Error; err != nil {
		t.Fatalf("clean users: %v", err)
	}
	repo := NewUserRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &User{Username: "ada", Password: "h"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := repo.Create(ctx, &User{Username: "ada", Password: "h2"}); err == nil {
		t.Fatal("expected unique constraint violation")
	}
}
