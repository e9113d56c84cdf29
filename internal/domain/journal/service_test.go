package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"voicenote-server-go/internal/domain/emotion"
	"voicenote-server-go/internal/platform/storage"
)

func newTestService(t *testing.T, cache *TrendCache) *Service {
	t.Helper()
	db, err := storage.OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Exec("DELETE FROM notes").Error; err != nil {
		t.Fatalf("clean notes: %v", err)
	}
	if cache == nil {
		cache = NewTrendCache(nil, "", 0, nil)
	}
	return NewService(storage.NewNoteRepository(db), cache, nil)
}

func newRedisCache(t *testing.T) (*TrendCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTrendCache(client, "test:", time.Minute, nil), mr
}

func TestCreateNoteDefaults(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	note, err := svc.CreateNote(ctx, CreateParams{
		UserID:          1,
		Title:           "  ",
		Emotion:         emotion.LabelUnset,
		DurationSeconds: 14,
		AudioKey:        "key-1",
		AudioFormat:     "webm",
	})
	if err != nil {
		t.Fatalf("CreateNote error: %v", err)
	}
	if note.Title == "" {
		t.Error("expected default title for blank input")
	}
	if note.Emotion != "neutral" {
		t.Errorf("emotion = %q, want neutral fallback for unset", note.Emotion)
	}
	if note.NoteUID == "" {
		t.Error("expected generated note uid")
	}
}

func TestCreateNoteRejectsNegativeDuration(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.CreateNote(context.Background(), CreateParams{
		UserID:          1,
		DurationSeconds: -5,
	})
	if err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestGetNoteEnforcesOwnership(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	note, err := svc.CreateNote(ctx, CreateParams{
		UserID:  1,
		Title:   "mine",
		Emotion: emotion.LabelHappy,
	})
	if err != nil {
		t.Fatalf("CreateNote error: %v", err)
	}

	if _, err := svc.GetNote(ctx, 2, note.NoteUID); !errors.Is(err, storage.ErrNoteNotFound) {
		t.Fatalf("expected not-found for foreign user, got %v", err)
	}
	if _, err := svc.GetNote(ctx, 1, note.NoteUID); err != nil {
		t.Fatalf("owner GetNote error: %v", err)
	}
}

func TestListNotesPaging(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	for i := 0; i < 7; i++ {
		if _, err := svc.CreateNote(ctx, CreateParams{
			UserID:  3,
			Title:   "entry",
			Emotion: emotion.LabelNeutral,
		}); err != nil {
			t.Fatalf("CreateNote error: %v", err)
		}
	}

	notes, total, err := svc.ListNotes(ctx, 3, 5, 0)
	if err != nil {
		t.Fatalf("ListNotes error: %v", err)
	}
	if len(notes) != 5 || total != 7 {
		t.Fatalf("page = %d items, total = %d; want 5 and 7", len(notes), total)
	}

	rest, _, err := svc.ListNotes(ctx, 3, 5, 5)
	if err != nil {
		t.Fatalf("ListNotes page 2 error: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("second page = %d items, want 2", len(rest))
	}
}

func TestTrendsAggregation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	emotions := []emotion.Label{
		emotion.LabelHappy, emotion.LabelHappy,
		emotion.LabelSad,
		emotion.LabelNeutral,
	}
	for _, e := range emotions {
		if _, err := svc.CreateNote(ctx, CreateParams{UserID: 4, Title: "e", Emotion: e}); err != nil {
			t.Fatalf("CreateNote error: %v", err)
		}
	}

	points, err := svc.Trends(ctx, 4, 7)
	if err != nil {
		t.Fatalf("Trends error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected single day bucket, got %d", len(points))
	}
	p := points[0]
	if p.Happy != 2 || p.Sad != 1 || p.Neutral != 1 || p.Total != 4 {
		t.Fatalf("unexpected bucket: %+v", p)
	}
}

func TestTrendsUsesCache(t *testing.T) {
	ctx := context.Background()
	cache, mr := newRedisCache(t)
	svc := newTestService(t, cache)

	if _, err := svc.CreateNote(ctx, CreateParams{UserID: 5, Title: "a", Emotion: emotion.LabelHappy}); err != nil {
		t.Fatalf("CreateNote error: %v", err)
	}

	first, err := svc.Trends(ctx, 5, 7)
	if err != nil {
		t.Fatalf("Trends error: %v", err)
	}
	if len(mr.Keys()) == 0 {
		t.Fatal("expected trend series cached in redis")
	}

	// Served from cache even after the underlying notes vanish.
	if err := mrFlushNotes(svc); err != nil {
		t.Fatalf("flush notes: %v", err)
	}
	cached, err := svc.Trends(ctx, 5, 7)
	if err != nil {
		t.Fatalf("Trends error: %v", err)
	}
	if len(cached) != len(first) {
		t.Fatalf("cached series length %d, want %d", len(cached), len(first))
	}

	// A new note invalidates the cache.
	if _, err := svc.CreateNote(ctx, CreateParams{UserID: 5, Title: "b", Emotion: emotion.LabelSad}); err != nil {
		t.Fatalf("CreateNote error: %v", err)
	}
	refreshed, err := svc.Trends(ctx, 5, 7)
	if err != nil {
		t.Fatalf("Trends error: %v", err)
	}
	var total int
	for _, p := range refreshed {
		total += p.Total
	}
	if total != 1 {
		t.Fatalf("post-invalidation total = %d, want 1 (only the new note)", total)
	}
}

// mrFlushNotes empties the notes table behind the service.
func mrFlushNotes(svc *Service) error {
	db, err := storage.OpenInMemory()
	if err != nil {
		return err
	}
	return db.Exec("DELETE FROM notes").Error
}
