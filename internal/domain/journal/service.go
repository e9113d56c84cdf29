// Package journal owns persisted voice notes: creation at the end of a
// recording session, browsing, deletion and emotion trend aggregation.
package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"voicenote-server-go/internal/domain/emotion"
	"voicenote-server-go/internal/domain/eventbus"
	platformerrors "voicenote-server-go/internal/platform/errors"
	"voicenote-server-go/internal/platform/logging"
	"voicenote-server-go/internal/platform/storage"
)

const maxTitleLen = 200

// Service provides the note operations behind the HTTP API and the
// recorder.
type Service struct {
	repo   *storage.NoteRepository
	trends *TrendCache
	logger *logging.Logger
}

func NewService(repo *storage.NoteRepository, trends *TrendCache, logger *logging.Logger) *Service {
	return &Service{
		repo:   repo,
		trends: trends,
		logger: logger,
	}
}

// CreateParams describes a finished recording ready to persist.
type CreateParams struct {
	UserID          uint
	Title           string
	Emotion         emotion.Label
	DurationSeconds int
	AudioKey        string
	AudioFormat     string
	Metadata        map[string]any
}

// CreateNote persists a note and publishes note:created.
func (s *Service) CreateNote(ctx context.Context, p CreateParams) (*storage.Note, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = "Voice note " + time.Now().Format("Jan 2, 2006 15:04")
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}

	label := p.Emotion
	if label == emotion.LabelUnset {
		// Sessions that never reached the minimum window fall back to
		// neutral on the persisted record.
		label = emotion.LabelNeutral
	}

	if p.DurationSeconds < 0 {
		return nil, platformerrors.New(platformerrors.KindJournal, "create",
			fmt.Sprintf("negative duration %d", p.DurationSeconds))
	}

	note := &storage.Note{
		NoteUID:         uuid.NewString(),
		UserID:          p.UserID,
		Title:           title,
		Emotion:         label.String(),
		DurationSeconds: p.DurationSeconds,
		AudioKey:        p.AudioKey,
		AudioFormat:     p.AudioFormat,
		CreatedAt:       time.Now(),
	}
	if len(p.Metadata) > 0 {
		if data, err := marshalJSON(p.Metadata); err == nil {
			note.Metadata = datatypes.JSON(data)
		}
	}

	if err := s.repo.Create(ctx, note); err != nil {
		return nil, err
	}

	s.trends.Invalidate(ctx, p.UserID)
	eventbus.PublishAsync(eventbus.EventNoteCreated, eventbus.NoteEventData{
		NoteUID: note.NoteUID,
		UserID:  note.UserID,
		Emotion: note.Emotion,
	})
	if s.logger != nil {
		s.logger.InfoTag("Journal", "note %s stored (%s, %ds)",
			note.NoteUID, note.Emotion, note.DurationSeconds)
	}
	return note, nil
}

// ListNotes returns a page of the user's notes, newest first.
func (s *Service) ListNotes(ctx context.Context, userID uint, limit, offset int) ([]storage.Note, int64, error) {
	notes, err := s.repo.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

// GetNote fetches one note, enforcing ownership.
func (s *Service) GetNote(ctx context.Context, userID uint, uid string) (*storage.Note, error) {
	note, err := s.repo.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if note.UserID != userID {
		return nil, storage.ErrNoteNotFound
	}
	return note, nil
}

// DeleteNote removes a note and publishes note:deleted. The recorder
// subscribes to that topic and reaps the audio payload.
func (s *Service) DeleteNote(ctx context.Context, userID uint, uid string) (*storage.Note, error) {
	note, err := s.GetNote(ctx, userID, uid)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteByUID(ctx, userID, uid); err != nil {
		return nil, err
	}

	s.trends.Invalidate(ctx, userID)
	eventbus.PublishAsync(eventbus.EventNoteDeleted, eventbus.NoteEventData{
		NoteUID:  note.NoteUID,
		UserID:   userID,
		Emotion:  note.Emotion,
		AudioKey: note.AudioKey,
	})
	return note, nil
}

// TrendPoint is one day of the emotion trend chart.
type TrendPoint struct {
	Day     string `json:"day"`
	Happy   int    `json:"happy"`
	Neutral int    `json:"neutral"`
	Sad     int    `json:"sad"`
	Total   int    `json:"total"`
}

// Trends aggregates per-day emotion counts over the trailing day span.
// Results are served from the trend cache when fresh.
func (s *Service) Trends(ctx context.Context, userID uint, days int) ([]TrendPoint, error) {
	if days <= 0 {
		days = 30
	}
	if days > 365 {
		days = 365
	}

	if points, ok := s.trends.Get(ctx, userID, days); ok {
		return points, nil
	}

	since := time.Now().AddDate(0, 0, -days).Truncate(24 * time.Hour)
	rows, err := s.repo.TrendBuckets(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*TrendPoint)
	order := make([]string, 0)
	for _, row := range rows {
		point, ok := byDay[row.Day]
		if !ok {
			point = &TrendPoint{Day: row.Day}
			byDay[row.Day] = point
			order = append(order, row.Day)
		}
		switch row.Emotion {
		case emotion.LabelHappy.String():
			point.Happy += row.Count
		case emotion.LabelSad.String():
			point.Sad += row.Count
		default:
			point.Neutral += row.Count
		}
		point.Total += row.Count
	}

	points := make([]TrendPoint, 0, len(order))
	for _, day := range order {
		points = append(points, *byDay[day])
	}

	s.trends.Put(ctx, userID, days, points)
	return points, nil
}
