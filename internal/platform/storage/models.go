package storage

import (
	"time"

	"gorm.io/datatypes"
)

// User is an account that owns journal notes.
type User struct {
	ID        uint      `gorm:"primaryKey"`
	Username  string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Password  string    `json:"-"`
	Nickname  string    `gorm:"type:varchar(255)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Note is one persisted voice-journal entry. The emotion label is final
// once the recording session ends; the audio payload lives in the blob
// store under AudioKey.
type Note struct {
	ID              uint           `gorm:"primaryKey"`
	NoteUID         string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"note_uid"`
	UserID          uint           `gorm:"index"                                 json:"user_id"`
	Title           string         `gorm:"type:varchar(255);not null"            json:"title"`
	Emotion         string         `gorm:"type:varchar(16);index;not null"       json:"emotion"`
	DurationSeconds int            `gorm:"not null"                              json:"duration_seconds"`
	AudioKey        string         `gorm:"type:varchar(64)"                      json:"audio_key"`
	AudioFormat     string         `gorm:"type:varchar(16)"                      json:"audio_format"`
	Metadata        datatypes.JSON `                                             json:"metadata,omitempty"`
	CreatedAt       time.Time      `gorm:"index"                                 json:"created_at"`
}

// AuthClient backs the sqlite auth store.
type AuthClient struct {
	ID        uint           `gorm:"primaryKey"`
	ClientID  string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"client_id"`
	Username  string         `gorm:"not null"                               json:"username"`
	Password  string         `gorm:"not null"                               json:"password"`
	IP        string         `                                              json:"ip"`
	CreatedAt time.Time      `                                              json:"created_at"`
	ExpiresAt *time.Time     `                                              json:"expires_at,omitempty"`
	Metadata  datatypes.JSON `                                              json:"metadata,omitempty"`
}
