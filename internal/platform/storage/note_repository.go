package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	platformerrors "voicenote-server-go/internal/platform/errors"
)

// ErrNoteNotFound is returned when a note lookup misses.
var ErrNoteNotFound = platformerrors.New(platformerrors.KindStorage, "note", "note not found")

// NoteRepository provides persistence for journal notes.
type NoteRepository struct {
	db *gorm.DB
}

func NewNoteRepository(db *gorm.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// Create inserts a new note.
func (r *NoteRepository) Create(ctx context.Context, note *Note) error {
	if err := r.db.WithContext(ctx).Create(note).Error; err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "note.create", "insert note", err)
	}
	return nil
}

// GetByUID fetches a note by its public identifier.
func (r *NoteRepository) GetByUID(ctx context.Context, uid string) (*Note, error) {
	var note Note
	err := r.db.WithContext(ctx).Where("note_uid = ?", uid).First(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "note.get", "query note", err)
	}
	return &note, nil
}

// List returns the user's notes, newest first.
func (r *NoteRepository) List(ctx context.Context, userID uint, limit, offset int) ([]Note, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var notes []Note
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notes).Error
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "note.list", "query notes", err)
	}
	return notes, nil
}

// Count reports how many notes the user holds.
func (r *NoteRepository) Count(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Note{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return 0, platformerrors.Wrap(platformerrors.KindStorage, "note.count", "count notes", err)
	}
	return count, nil
}

// DeleteByUID removes a note owned by userID. Returns ErrNoteNotFound when
// nothing matched.
func (r *NoteRepository) DeleteByUID(ctx context.Context, userID uint, uid string) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND note_uid = ?", userID, uid).
		Delete(&Note{})
	if result.Error != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "note.delete", "delete note", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// TrendRow is one (day, emotion) bucket of the trend aggregation.
type TrendRow struct {
	Day     string `json:"day"`
	Emotion string `json:"emotion"`
	Count   int    `json:"count"`
}

// TrendBuckets aggregates per-day emotion counts since the cutoff.
func (r *NoteRepository) TrendBuckets(ctx context.Context, userID uint, since time.Time) ([]TrendRow, error) {
	var rows []TrendRow
	err := r.db.WithContext(ctx).
		Model(&Note{}).
		Select("date(created_at) AS day, emotion, count(*) AS count").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Group("day, emotion").
		Order("day ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "note.trends", "aggregate trends", err)
	}
	return rows, nil
}
