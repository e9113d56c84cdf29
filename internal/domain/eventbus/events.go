package eventbus

// Topic names published across the server.
const (
	EventSessionStarted  = "session:started"
	EventSessionFinished = "session:finished"
	EventSessionAborted  = "session:aborted"
	EventEmotionChanged  = "emotion:changed"

	EventNoteCreated = "note:created"
	EventNoteDeleted = "note:deleted"
)

// SessionEventData accompanies session lifecycle topics.
type SessionEventData struct {
	SessionID string `json:"session_id"`
	UserID    uint   `json:"user_id"`
	NoteUID   string `json:"note_uid,omitempty"`
}

// EmotionEventData accompanies emotion:changed.
type EmotionEventData struct {
	SessionID string `json:"session_id"`
	Label     string `json:"label"`
	Frames    int    `json:"frames"`
}

// NoteEventData accompanies note lifecycle topics. AudioKey is set on
// note:deleted so the recorder can reap the stored payload.
type NoteEventData struct {
	NoteUID  string `json:"note_uid"`
	UserID   uint   `json:"user_id"`
	Emotion  string `json:"emotion"`
	AudioKey string `json:"audio_key,omitempty"`
}
