package ws

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voicenote-server-go/internal/domain/recorder"
	"voicenote-server-go/internal/platform/logging"
	"voicenote-server-go/internal/platform/storage"
)

const finishTimeout = 10 * time.Second

// clientMessage is every JSON frame the browser can send. Type selects which
// fields are meaningful.
type clientMessage struct {
	Type       string    `json:"type"`
	Title      string    `json:"title,omitempty"`
	Format     string    `json:"format,omitempty"`
	Spectrum   []float64 `json:"spectrum,omitempty"`
	TimeDomain []float64 `json:"time_domain,omitempty"`
	SampleRate float64   `json:"sample_rate,omitempty"`
}

type serverMessage struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Label     string    `json:"label,omitempty"`
	Frames    int       `json:"frames,omitempty"`
	Note      *noteView `json:"note,omitempty"`
	Message   string    `json:"message,omitempty"`
}

type noteView struct {
	UID             string    `json:"uid"`
	Title           string    `json:"title"`
	Emotion         string    `json:"emotion"`
	DurationSeconds int       `json:"duration_seconds"`
	AudioFormat     string    `json:"audio_format,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// RecordingHandler speaks the recording protocol over one connection:
// "start" opens a recorder session, "frame" messages feed the classifier and
// echo the current label, binary messages carry the encoded audio payload,
// and "stop" persists the note.
type RecordingHandler struct {
	id       string
	conn     *Connection
	recorder *recorder.Service
	userID   uint
	logger   *logging.Logger

	session *recorder.Session
	closed  atomic.Bool
}

// NewRecordingHandler builds the protocol handler for an authenticated user.
func NewRecordingHandler(conn *Connection, recorderSvc *recorder.Service, userID uint, logger *logging.Logger) *RecordingHandler {
	return &RecordingHandler{
		id:       uuid.NewString(),
		conn:     conn,
		recorder: recorderSvc,
		userID:   userID,
		logger:   logger,
	}
}

// SessionID implements SessionHandler.
func (h *RecordingHandler) SessionID() string {
	return h.id
}

// Handle reads client messages until the connection drops. The in-flight
// session, if any, is aborted here on the way out so that session state
// is only ever touched from this goroutine.
func (h *RecordingHandler) Handle() {
	defer h.abortSession()

	for {
		messageType, payload, err := h.conn.ReadMessage()
		if err != nil {
			return
		}

		switch messageType {
		case websocket.TextMessage:
			h.handleText(payload)
		case websocket.BinaryMessage:
			if h.session != nil {
				h.session.AppendAudio(payload)
			}
		}

		if h.closed.Load() {
			return
		}
	}
}

// Close unblocks the read loop by closing the connection. It never touches
// the session directly: Handle owns it and aborts it once the loop exits.
func (h *RecordingHandler) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	_ = h.conn.Close()
}

func (h *RecordingHandler) abortSession() {
	if h.session != nil {
		h.session.Abort()
		h.session = nil
	}
}

func (h *RecordingHandler) handleText(payload []byte) {
	var msg clientMessage
	if err := sonic.Unmarshal(payload, &msg); err != nil {
		h.sendError("malformed message")
		return
	}

	switch msg.Type {
	case "start":
		h.handleStart(msg)
	case "frame":
		h.handleFrame(msg)
	case "stop":
		h.handleStop(msg)
	case "abort":
		h.handleAbort()
	default:
		h.sendError("unknown message type " + msg.Type)
	}
}

func (h *RecordingHandler) handleStart(msg clientMessage) {
	if h.session != nil {
		h.sendError("recording already in progress")
		return
	}
	h.session = h.recorder.StartSession(h.userID, msg.Title, msg.Format)
	h.send(serverMessage{Type: "started", SessionID: h.session.ID()})
}

func (h *RecordingHandler) handleFrame(msg clientMessage) {
	if h.session == nil {
		h.sendError("no recording in progress")
		return
	}
	label := h.session.Feed(msg.Spectrum, msg.TimeDomain, msg.SampleRate)
	h.send(serverMessage{
		Type:   "emotion",
		Label:  label.String(),
		Frames: h.session.Frames(),
	})
}

func (h *RecordingHandler) handleStop(msg clientMessage) {
	if h.session == nil {
		h.sendError("no recording in progress")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()

	note, err := h.session.Finish(ctx, msg.Title)
	h.session = nil
	if err != nil {
		if h.logger != nil {
			h.logger.ErrorTag("WebSocket", "finish recording: %v", err)
		}
		h.sendError("failed to save recording")
		return
	}
	h.send(serverMessage{Type: "saved", Note: newNoteView(note)})
}

func (h *RecordingHandler) handleAbort() {
	if h.session == nil {
		h.sendError("no recording in progress")
		return
	}
	h.session.Abort()
	h.session = nil
	h.send(serverMessage{Type: "aborted"})
}

func (h *RecordingHandler) send(msg serverMessage) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return
	}
	if err := h.conn.WriteMessage(websocket.TextMessage, data); err != nil && h.logger != nil {
		h.logger.DebugTag("WebSocket", "write to %s failed: %v", h.conn.ID(), err)
	}
}

func (h *RecordingHandler) sendError(message string) {
	h.send(serverMessage{Type: "error", Message: message})
}

func newNoteView(note *storage.Note) *noteView {
	return &noteView{
		UID:             note.NoteUID,
		Title:           note.Title,
		Emotion:         note.Emotion,
		DurationSeconds: note.DurationSeconds,
		AudioFormat:     note.AudioFormat,
		CreatedAt:       note.CreatedAt,
	}
}
