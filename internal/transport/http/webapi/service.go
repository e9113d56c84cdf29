// Package webapi implements the journal REST endpoints: login, note
// browsing, audio playback and emotion trends.
package webapi

import (
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"voicenote-server-go/internal/domain/auth"
	"voicenote-server-go/internal/domain/blob"
	"voicenote-server-go/internal/domain/emotion"
	"voicenote-server-go/internal/domain/journal"
	"voicenote-server-go/internal/domain/recorder"
	"voicenote-server-go/internal/platform/config"
	platformerrors "voicenote-server-go/internal/platform/errors"
	"voicenote-server-go/internal/platform/logging"
	"voicenote-server-go/internal/platform/storage"
	httptransport "voicenote-server-go/internal/transport/http"
)

// DefaultUserID owns all notes when authentication is disabled.
const DefaultUserID uint = 1

const userIDKey = "user_id"

// Service is the HTTP transport layer over the journal domain.
type Service struct {
	cfg      *config.Config
	logger   *logging.Logger
	journal  *journal.Service
	recorder *recorder.Service
	blobs    blob.Store
	auth     *auth.Manager
	users    *storage.UserRepository

	startedAt time.Time
}

// Options collects the service dependencies. Auth may be nil when the
// transport runs without authentication.
type Options struct {
	Config   *config.Config
	Logger   *logging.Logger
	Journal  *journal.Service
	Recorder *recorder.Service
	Blobs    blob.Store
	Auth     *auth.Manager
	Users    *storage.UserRepository
}

func NewService(opts Options) (*Service, error) {
	if opts.Config == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "webapi.new", "config is required")
	}
	if opts.Journal == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "webapi.new", "journal service is required")
	}

	return &Service{
		cfg:       opts.Config,
		logger:    opts.Logger,
		journal:   opts.Journal,
		recorder:  opts.Recorder,
		blobs:     opts.Blobs,
		auth:      opts.Auth,
		users:     opts.Users,
		startedAt: time.Now(),
	}, nil
}

// Register mounts the public routes.
func (s *Service) Register(router *gin.RouterGroup) {
	router.POST("/auth/login", s.handleLogin)
}

// RegisterSecured mounts the routes behind the auth middleware.
func (s *Service) RegisterSecured(router *gin.RouterGroup) {
	router.GET("/notes", s.handleListNotes)
	router.POST("/notes", s.handleCreateNote)
	router.GET("/notes/:uid", s.handleGetNote)
	router.DELETE("/notes/:uid", s.handleDeleteNote)
	router.GET("/notes/:uid/audio", s.handleNoteAudio)
	router.GET("/trends", s.handleTrends)
	router.GET("/system", s.handleSystem)
}

// AuthMiddleware resolves the bearer token to a user id. With auth disabled
// every request maps to the default single-user account.
func (s *Service) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.auth == nil {
			c.Set(userIDKey, DefaultUserID)
			c.Next()
			return
		}

		token := c.GetHeader("Authorization")
		if token == "" {
			token = c.Query("token")
		}
		token = strings.TrimPrefix(token, "Bearer ")
		if token == "" {
			httptransport.RespondError(c, http.StatusUnauthorized, "missing auth token", nil)
			c.Abort()
			return
		}

		userID, _, err := s.auth.VerifyToken(c.Request.Context(), token)
		if err != nil {
			httptransport.RespondError(c, http.StatusUnauthorized, "invalid auth token", nil)
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func (s *Service) userID(c *gin.Context) uint {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return DefaultUserID
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleLogin authenticates by username and password. The first login for an
// unknown username provisions the account, which keeps single-user
// self-hosted setups free of a separate signup flow.
func (s *Service) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "username and password are required", nil)
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		httptransport.RespondError(c, http.StatusBadRequest, "username and password are required", nil)
		return
	}

	user, err := s.users.GetByUsername(c.Request.Context(), username)
	switch {
	case err == nil:
		if !auth.VerifyPassword(user.Password, req.Password) {
			httptransport.RespondError(c, http.StatusUnauthorized, "invalid credentials", nil)
			return
		}
	case err == storage.ErrUserNotFound:
		hash, hashErr := auth.HashPassword(req.Password)
		if hashErr != nil {
			httptransport.RespondError(c, http.StatusInternalServerError, "failed to create account", nil)
			return
		}
		user = &storage.User{Username: username, Password: hash, Nickname: username}
		if createErr := s.users.Create(c.Request.Context(), user); createErr != nil {
			httptransport.RespondError(c, http.StatusInternalServerError, "failed to create account", nil)
			return
		}
		if s.logger != nil {
			s.logger.InfoTag("Auth", "provisioned account %q (id %d)", username, user.ID)
		}
	default:
		httptransport.RespondError(c, http.StatusInternalServerError, "login failed", nil)
		return
	}

	token := ""
	if s.auth != nil {
		token, err = s.auth.RegisterClient(c.Request.Context(), auth.ClientInfo{
			ClientID: uuid.NewString(),
			UserID:   user.ID,
			Username: user.Username,
			IP:       c.ClientIP(),
		})
		if err != nil {
			httptransport.RespondError(c, http.StatusInternalServerError, "failed to issue token", nil)
			return
		}
	}

	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"nickname": user.Nickname,
		},
	}, "login successful")
}

func (s *Service) handleListNotes(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	notes, total, err := s.journal.ListNotes(c.Request.Context(), s.userID(c), limit, offset)
	if err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to list notes", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"notes": notes,
		"total": total,
	}, "")
}

type createNoteRequest struct {
	Title           string         `json:"title"`
	Emotion         string         `json:"emotion"`
	DurationSeconds int            `json:"duration_seconds"`
	Metadata        map[string]any `json:"metadata"`
}

// handleCreateNote stores a note without an audio payload, used for text-only
// entries and imports.
func (s *Service) handleCreateNote(c *gin.Context) {
	var req createNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid note payload", nil)
		return
	}

	label := emotion.LabelNeutral
	if req.Emotion != "" {
		parsed, err := emotion.ParseLabel(req.Emotion)
		if err != nil {
			httptransport.RespondError(c, http.StatusBadRequest, "unknown emotion label", nil)
			return
		}
		label = parsed
	}

	note, err := s.journal.CreateNote(c.Request.Context(), journal.CreateParams{
		UserID:          s.userID(c),
		Title:           req.Title,
		Emotion:         label,
		DurationSeconds: req.DurationSeconds,
		Metadata:        req.Metadata,
	})
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "failed to create note", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusCreated, note, "note created")
}

func (s *Service) handleGetNote(c *gin.Context) {
	note, err := s.journal.GetNote(c.Request.Context(), s.userID(c), c.Param("uid"))
	if err != nil {
		httptransport.RespondError(c, http.StatusNotFound, "note not found", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, note, "")
}

func (s *Service) handleDeleteNote(c *gin.Context) {
	note, err := s.journal.DeleteNote(c.Request.Context(), s.userID(c), c.Param("uid"))
	if err != nil {
		httptransport.RespondError(c, http.StatusNotFound, "note not found", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{"uid": note.NoteUID}, "note deleted")
}

func (s *Service) handleNoteAudio(c *gin.Context) {
	note, err := s.journal.GetNote(c.Request.Context(), s.userID(c), c.Param("uid"))
	if err != nil {
		httptransport.RespondError(c, http.StatusNotFound, "note not found", nil)
		return
	}
	if note.AudioKey == "" {
		httptransport.RespondError(c, http.StatusNotFound, "note has no audio payload", nil)
		return
	}

	data, format, err := s.blobs.Load(note.AudioKey)
	if err != nil {
		httptransport.RespondError(c, http.StatusNotFound, "audio payload missing", nil)
		return
	}
	c.Data(http.StatusOK, audioContentType(format), data)
}

func (s *Service) handleTrends(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	points, err := s.journal.Trends(c.Request.Context(), s.userID(c), days)
	if err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to load trends", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"days":   days,
		"points": points,
	}, "")
}

// handleSystem reports process and host health for the settings page.
func (s *Service) handleSystem(c *gin.Context) {
	data := gin.H{
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
	}
	if s.recorder != nil {
		data["active_recordings"] = s.recorder.ActiveSessions()
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		data["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		data["memory_percent"] = vm.UsedPercent
		data["memory_total"] = vm.Total
	}

	httptransport.RespondSuccess(c, http.StatusOK, data, "")
}

func audioContentType(format string) string {
	switch format {
	case "webm":
		return "audio/webm"
	case "ogg":
		return "audio/ogg"
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
