package recorder

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"voicenote-server-go/internal/domain/blob"
	"voicenote-server-go/internal/domain/emotion"
	"voicenote-server-go/internal/domain/eventbus"
	"voicenote-server-go/internal/domain/journal"
	"voicenote-server-go/internal/platform/logging"
	"voicenote-server-go/internal/util/work"
)

const blobDeleteRetries = 3

// Service creates recording sessions and owns the background maintenance
// queue that removes audio payloads for deleted notes.
type Service struct {
	journal        *journal.Service
	blobs          blob.Store
	logger         *logging.Logger
	sampleInterval time.Duration

	mu       sync.Mutex
	sessions map[string]*Session

	maintenance *work.Queue[string]
}

func NewService(journalSvc *journal.Service, blobs blob.Store, sampleInterval time.Duration, logger *logging.Logger) *Service {
	if sampleInterval <= 0 {
		sampleInterval = 200 * time.Millisecond
	}
	s := &Service{
		journal:        journalSvc,
		blobs:          blobs,
		logger:         logger,
		sampleInterval: sampleInterval,
		sessions:       make(map[string]*Session),
	}
	s.maintenance = work.NewQueue(1, 64, s.deleteBlob)
	s.maintenance.OnDrop(func(key string, err error) {
		if logger != nil {
			logger.WarnTag("Recorder", "payload %s cleanup abandoned: %v", key, err)
		}
	})

	// Deleted notes leave their payload behind; clean it up off-thread.
	_ = eventbus.GetAsync().SubscribeAsync(eventbus.EventNoteDeleted, s.onNoteDeleted)
	return s
}

// StartSession begins a recording for the user.
func (s *Service) StartSession(userID uint, title, format string) *Session {
	session := &Session{
		id:         uuid.NewString(),
		userID:     userID,
		title:      title,
		format:     format,
		classifier: emotion.NewClassifier(),
		startedAt:  time.Now(),
		lastLabel:  emotion.LabelUnset,
		service:    s,
	}

	s.mu.Lock()
	s.sessions[session.id] = session
	s.mu.Unlock()

	eventbus.PublishAsync(eventbus.EventSessionStarted, eventbus.SessionEventData{
		SessionID: session.id,
		UserID:    userID,
	})
	if s.logger != nil {
		s.logger.InfoTag("Recorder", "session %s started for user %d", session.id, userID)
	}
	return session
}

// ActiveSessions reports how many recordings are in flight.
func (s *Service) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops the maintenance queue after draining it.
func (s *Service) Close() {
	s.maintenance.Stop()
}

func (s *Service) dropSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Service) queueBlobDelete(key string) {
	if key == "" {
		return
	}
	if err := s.maintenance.SubmitWithRetries(key, blobDeleteRetries); err != nil && s.logger != nil {
		s.logger.WarnTag("Recorder", "payload %s cleanup not queued: %v", key, err)
	}
}

func (s *Service) deleteBlob(key string) error {
	err := s.blobs.Delete(key)
	if err == blob.ErrNotFound {
		return nil
	}
	return err
}

func (s *Service) onNoteDeleted(data eventbus.NoteEventData) {
	s.queueBlobDelete(data.AudioKey)
}
