package recorder

import (
	"context"
	"testing"
	"time"

	"voicenote-server-go/internal/domain/blob"
	"voicenote-server-go/internal/domain/emotion"
	"voicenote-server-go/internal/domain/journal"
	"voicenote-server-go/internal/platform/storage"
)

func newTestRecorder(t *testing.T) (*Service, blob.Store) {
	t.Helper()
	db, err := storage.OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Exec("DELETE FROM notes").Error; err != nil {
		t.Fatalf("clean notes: %v", err)
	}

	blobs, err := blob.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}

	journalSvc := journal.NewService(storage.NewNoteRepository(db),
		journal.NewTrendCache(nil, "", 0, nil), nil)
	svc := NewService(journalSvc, blobs, 200*time.Millisecond, nil)
	t.Cleanup(svc.Close)
	return svc, blobs
}

// happyFrame builds an analysis tick that the classifier scores as happy:
// a high dominant bin, loud time-domain signal and a spread-out spectrum.
func happyFrame() (spectrum, timeDomain []float64, sampleRate float64) {
	spectrum = make([]float64, 1024)
	for i := range spectrum {
		if i%2 == 0 {
			spectrum[i] = 250
		}
	}
	spectrum[1000] = 255

	timeDomain = make([]float64, 1024)
	for i := range timeDomain {
		if i%2 == 0 {
			timeDomain[i] = 0.95
		} else {
			timeDomain[i] = -0.95
		}
	}
	return spectrum, timeDomain, 44100
}

func TestSessionFeedReportsLabel(t *testing.T) {
	svc, _ := newTestRecorder(t)
	session := svc.StartSession(1, "morning", "webm")

	spectrum, timeDomain, rate := happyFrame()
	var label emotion.Label
	for i := 0; i < 12; i++ {
		label = session.Feed(spectrum, timeDomain, rate)
	}
	if label != emotion.LabelHappy {
		t.Fatalf("label = %v, want happy", label)
	}
	if session.Frames() != 12 {
		t.Fatalf("frames = %d, want 12", session.Frames())
	}
}

func TestSessionFinishPersistsNote(t *testing.T) {
	svc, blobs := newTestRecorder(t)
	session := svc.StartSession(7, "", "webm")

	spectrum, timeDomain, rate := happyFrame()
	for i := 0; i < 15; i++ {
		session.Feed(spectrum, timeDomain, rate)
	}
	session.AppendAudio([]byte("chunk-one"))
	session.AppendAudio([]byte("chunk-two"))

	note, err := session.Finish(context.Background(), "evening walk")
	if err != nil {
		t.Fatalf("Finish error: %v", err)
	}
	if note.Title != "evening walk" {
		t.Errorf("title = %q", note.Title)
	}
	if note.Emotion != "happy" {
		t.Errorf("emotion = %q, want happy", note.Emotion)
	}
	// webm is not probeable, so duration comes from 15 frames at 200ms.
	if note.DurationSeconds != 3 {
		t.Errorf("duration = %d, want 3", note.DurationSeconds)
	}
	if note.AudioKey == "" {
		t.Fatal("expected stored audio key")
	}

	data, format, err := blobs.Load(note.AudioKey)
	if err != nil {
		t.Fatalf("load payload: %v", err)
	}
	if string(data) != "chunk-onechunk-two" || format != "webm" {
		t.Fatalf("payload = %q (%s)", data, format)
	}
	if svc.ActiveSessions() != 0 {
		t.Fatalf("active sessions = %d after finish", svc.ActiveSessions())
	}
}

func TestSessionFinishWithoutFramesIsNeutral(t *testing.T) {
	svc, _ := newTestRecorder(t)
	session := svc.StartSession(2, "quick", "webm")

	note, err := session.Finish(context.Background(), "")
	if err != nil {
		t.Fatalf("Finish error: %v", err)
	}
	if note.Emotion != "neutral" {
		t.Fatalf("emotion = %q, want neutral for empty session", note.Emotion)
	}
	if note.AudioKey != "" {
		t.Fatalf("audio key = %q, want empty for payload-less session", note.AudioKey)
	}
}

func TestSessionFinishTwiceFails(t *testing.T) {
	svc, _ := newTestRecorder(t)
	session := svc.StartSession(3, "t", "webm")

	if _, err := session.Finish(context.Background(), ""); err != nil {
		t.Fatalf("first Finish error: %v", err)
	}
	if _, err := session.Finish(context.Background(), ""); err == nil {
		t.Fatal("expected error for double finish")
	}
}

func TestSessionAbortDropsSession(t *testing.T) {
	svc, _ := newTestRecorder(t)
	session := svc.StartSession(4, "t", "webm")
	if svc.ActiveSessions() != 1 {
		t.Fatalf("active sessions = %d, want 1", svc.ActiveSessions())
	}

	session.Abort()
	if svc.ActiveSessions() != 0 {
		t.Fatalf("active sessions = %d after abort", svc.ActiveSessions())
	}
	if _, err := session.Finish(context.Background(), ""); err == nil {
		t.Fatal("expected error finishing an aborted session")
	}
}

func TestDeleteBlobIgnoresMissingPayload(t *testing.T) {
	svc, _ := newTestRecorder(t)
	if err := svc.deleteBlob("no-such-key"); err != nil {
		t.Fatalf("deleteBlob on missing payload: %v", err)
	}
}
