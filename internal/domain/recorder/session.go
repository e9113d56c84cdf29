// Package recorder drives one live recording session: it feeds analysis
// frames into the emotion classifier, accumulates the uploaded audio
// payload and finalizes the persisted journal note when the client stops.
package recorder

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"

	"voicenote-server-go/internal/domain/audio"
	"voicenote-server-go/internal/domain/emotion"
	"voicenote-server-go/internal/domain/eventbus"
	"voicenote-server-go/internal/domain/journal"
	platformerrors "voicenote-server-go/internal/platform/errors"
	"voicenote-server-go/internal/platform/storage"
)

// Session owns one recording's classifier state. Calls are serialized by
// the owning websocket handler; the session itself is not locked.
type Session struct {
	id     string
	userID uint
	title  string
	format string

	classifier *emotion.Classifier
	payload    bytes.Buffer

	startedAt time.Time
	frames    int
	lastLabel emotion.Label
	done      bool

	service *Service
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Frames reports how many analysis frames the session has consumed.
func (s *Session) Frames() int {
	return s.frames
}

// Feed applies one analysis tick and returns the current label estimate.
func (s *Session) Feed(spectrum, timeDomain []float64, sampleRate float64) emotion.Label {
	if s.done {
		return s.lastLabel
	}

	s.classifier.IngestFrame(spectrum, timeDomain, sampleRate)
	s.frames++

	label := s.classifier.CurrentLabel()
	if label != s.lastLabel {
		s.lastLabel = label
		eventbus.PublishAsync(eventbus.EventEmotionChanged, eventbus.EmotionEventData{
			SessionID: s.id,
			Label:     label.String(),
			Frames:    s.frames,
		})
	}
	return label
}

// AppendAudio buffers an uploaded chunk of the encoded recording.
func (s *Session) AppendAudio(chunk []byte) {
	if s.done {
		return
	}
	s.payload.Write(chunk)
}

// CurrentLabel exposes the running estimate without ingesting a frame.
func (s *Session) CurrentLabel() emotion.Label {
	return s.lastLabel
}

// Finish stores the payload, derives the duration and persists the note.
// The final emotion is the last computed label, neutral when the window
// never reached the minimum sample count.
func (s *Session) Finish(ctx context.Context, title string) (*storage.Note, error) {
	if s.done {
		return nil, platformerrors.New(platformerrors.KindClassifier, "session.finish",
			"session already finished")
	}
	s.done = true

	if title != "" {
		s.title = title
	}

	audioKey := ""
	data := s.payload.Bytes()
	if len(data) > 0 {
		audioKey = uuid.NewString()
		if err := s.service.blobs.Store(audioKey, data, s.format); err != nil {
			return nil, err
		}
	}

	note, err := s.service.journal.CreateNote(ctx, journal.CreateParams{
		UserID:          s.userID,
		Title:           s.title,
		Emotion:         s.lastLabel,
		DurationSeconds: s.duration(data),
		AudioKey:        audioKey,
		AudioFormat:     s.format,
		Metadata: map[string]any{
			"frames":      s.frames,
			"sample_ms":   s.service.sampleInterval.Milliseconds(),
			"payload_len": len(data),
		},
	})
	if err != nil {
		// The note never landed; queue the orphaned payload for removal.
		if audioKey != "" {
			s.service.queueBlobDelete(audioKey)
		}
		return nil, err
	}

	s.service.dropSession(s.id)
	eventbus.PublishAsync(eventbus.EventSessionFinished, eventbus.SessionEventData{
		SessionID: s.id,
		UserID:    s.userID,
		NoteUID:   note.NoteUID,
	})
	return note, nil
}

// Abort discards the session without persisting anything.
func (s *Session) Abort() {
	if s.done {
		return
	}
	s.done = true
	s.classifier.Reset()
	s.service.dropSession(s.id)
	eventbus.PublishAsync(eventbus.EventSessionAborted, eventbus.SessionEventData{
		SessionID: s.id,
		UserID:    s.userID,
	})
}

// duration prefers the probed payload duration and falls back to the
// frame count times the sampling cadence, then the wall clock.
func (s *Session) duration(data []byte) int {
	if len(data) > 0 {
		if probed, err := audio.ProbeDuration(data, s.format); err == nil {
			return audio.WholeSeconds(probed)
		}
	}
	if s.frames > 0 {
		return audio.WholeSeconds(time.Duration(s.frames) * s.service.sampleInterval)
	}
	return audio.WholeSeconds(time.Since(s.startedAt))
}
