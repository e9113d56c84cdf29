// Package bootstrap wires the whole server: configuration, logging,
// storage, auth and both transports, with an ordered init graph and
// graceful shutdown.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	domainauth "voicenote-server-go/internal/domain/auth"
	authstore "voicenote-server-go/internal/domain/auth/store"
	"voicenote-server-go/internal/domain/blob"
	"voicenote-server-go/internal/domain/eventbus"
	"voicenote-server-go/internal/domain/journal"
	"voicenote-server-go/internal/domain/recorder"
	platformconfig "voicenote-server-go/internal/platform/config"
	platformerrors "voicenote-server-go/internal/platform/errors"
	platformlogging "voicenote-server-go/internal/platform/logging"
	platformstorage "voicenote-server-go/internal/platform/storage"
	httptransport "voicenote-server-go/internal/transport/http"
	httpwebapi "voicenote-server-go/internal/transport/http/webapi"
	"voicenote-server-go/internal/transport/ws"

	"gorm.io/gorm"
)

const shutdownGrace = 15 * time.Second

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	config     *platformconfig.Config
	configPath string
	logger     *platformlogging.Logger

	db          *gorm.DB
	blobs       blob.Store
	redisClient *redis.Client

	authManager *domainauth.Manager
	users       *platformstorage.UserRepository
	journal     *journal.Service
	recorder    *recorder.Service
}

// Run drives the full server lifecycle: init graph, transports, signal
// handling and cleanup.
func Run(ctx context.Context) error {
	state := &appState{}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	config := state.config
	logger := state.logger
	if config == nil || logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}

	defer func() {
		state.recorder.Close()
		eventbus.Shutdown()
		if state.authManager != nil {
			if closeErr := state.authManager.Close(); closeErr != nil {
				logger.ErrorTag("Auth", "auth manager close failed: %v", closeErr)
			}
		}
		if state.redisClient != nil {
			_ = state.redisClient.Close()
		}
		logger.Close()
	}()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if err := startServices(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	logger.InfoTag("Bootstrap", "server is up")
	return waitForShutdown(signalCtx, cancel, logger, group)
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph lists the ordered initialisation steps with their dependencies.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init",
			Title:     "Initialise logging",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise sqlite database",
			DependsOn: []string{"logging:init"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "storage:init-blobs",
			Title:     "Initialise blob store",
			DependsOn: []string{"logging:init"},
			Kind:      platformerrors.KindStorage,
			Execute:   initBlobStoreStep,
		},
		{
			ID:        "redis:init-client",
			Title:     "Initialise redis client",
			DependsOn: []string{"logging:init"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initRedisStep,
		},
		{
			ID:        "auth:init-manager",
			Title:     "Initialise auth manager",
			DependsOn: []string{"storage:init-database"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initAuthStep,
		},
		{
			ID:        "journal:init-service",
			Title:     "Initialise journal service",
			DependsOn: []string{"storage:init-database", "redis:init-client"},
			Kind:      platformerrors.KindJournal,
			Execute:   initJournalStep,
		},
		{
			ID:        "recorder:init-service",
			Title:     "Initialise recorder service",
			DependsOn: []string{"journal:init-service", "storage:init-blobs"},
			Kind:      platformerrors.KindClassifier,
			Execute:   initRecorderStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init",
			"failed to initialise logging", err)
	}
	state.logger = logger

	source := state.configPath
	if source == "" {
		source = "defaults"
	}
	logger.InfoTag("Bootstrap", "logging ready [%s] config from %s", state.config.Log.Level, source)
	return nil
}

func initDatabaseStep(_ context.Context, state *appState) error {
	db, err := platformstorage.Open(state.config.Storage.SQLitePath)
	if err != nil {
		return err
	}
	state.db = db
	state.users = platformstorage.NewUserRepository(db)
	state.logger.InfoTag("Storage", "sqlite ready at %s", state.config.Storage.SQLitePath)
	return nil
}

func initBlobStoreStep(_ context.Context, state *appState) error {
	blobs, err := blob.NewFileStore(state.config.Storage.BlobDir)
	if err != nil {
		return err
	}
	state.blobs = blobs
	return nil
}

// initRedisStep connects the optional trend cache. An unreachable redis is
// logged and skipped, never fatal.
func initRedisStep(ctx context.Context, state *appState) error {
	if !state.config.Redis.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     state.config.Redis.Addr,
		Username: state.config.Redis.Username,
		Password: state.config.Redis.Password,
		DB:       state.config.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		state.logger.WarnTag("Bootstrap", "redis %s unreachable, trend cache disabled: %v",
			state.config.Redis.Addr, err)
		_ = client.Close()
		return nil
	}

	state.redisClient = client
	state.logger.InfoTag("Bootstrap", "redis trend cache at %s", state.config.Redis.Addr)
	return nil
}

func initAuthStep(_ context.Context, state *appState) error {
	if !state.config.Auth.Enabled {
		state.logger.WarnTag("Auth", "authentication disabled, running single-user")
		return nil
	}

	manager, err := buildAuthManager(state.config, state.logger, state.db)
	if err != nil {
		return err
	}
	state.authManager = manager
	return nil
}

func initJournalStep(_ context.Context, state *appState) error {
	trendCache := journal.NewTrendCache(
		state.redisClient,
		state.config.Redis.Prefix,
		state.config.Redis.TrendTTL,
		state.logger,
	)
	state.journal = journal.NewService(
		platformstorage.NewNoteRepository(state.db),
		trendCache,
		state.logger,
	)
	return nil
}

func initRecorderStep(_ context.Context, state *appState) error {
	state.recorder = recorder.NewService(
		state.journal,
		state.blobs,
		state.config.Audio.SampleInterval,
		state.logger,
	)
	return nil
}

func buildAuthManager(config *platformconfig.Config, logger *platformlogging.Logger, db *gorm.DB) (*domainauth.Manager, error) {
	storeType := strings.ToLower(strings.TrimSpace(config.Auth.Store.Type))
	storeCfg := authstore.Config{
		Driver: storeType,
		TTL:    config.Auth.Store.Expiry,
	}

	switch storeCfg.Driver {
	case "", "database", authstore.DriverSQLite:
		storeCfg.Driver = authstore.DriverSQLite
	case authstore.DriverMemory:
		storeCfg.Memory = &authstore.MemoryConfig{
			GCInterval: config.Auth.Store.Cleanup,
		}
	case authstore.DriverRedis:
		if config.Redis.Addr == "" {
			return nil, platformerrors.New(platformerrors.KindBootstrap,
				"auth:init-manager", "redis auth store requires redis.addr")
		}
		storeCfg.Redis = &authstore.RedisConfig{
			Addr:     config.Redis.Addr,
			Username: config.Redis.Username,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
			Prefix:   config.Redis.Prefix,
		}
	default:
		logger.WarnTag("Auth", "unsupported auth store %q, falling back to memory", storeType)
		storeCfg.Driver = authstore.DriverMemory
		storeCfg.Memory = &authstore.MemoryConfig{GCInterval: config.Auth.Store.Cleanup}
	}

	authStore, err := authstore.New(storeCfg, authstore.Dependencies{SQLiteDB: db})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindBootstrap,
			"auth:init-manager", "failed to create auth store", err)
	}

	token := domainauth.NewAuthToken(config.Auth.Secret)
	if config.Auth.TokenTTL > 0 {
		token = token.WithTTL(config.Auth.TokenTTL)
	}

	manager, err := domainauth.NewManager(domainauth.Options{
		Store:           authStore,
		Logger:          logger,
		Token:           token,
		SessionTTL:      config.Auth.Store.Expiry,
		CleanupInterval: config.Auth.Store.Cleanup,
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindBootstrap,
			"auth:init-manager", "failed to create auth manager", err)
	}
	return manager, nil
}

func startServices(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	if state.config.Transport.WebSocket.Enabled {
		if err := startWebSocketServer(state, g, groupCtx); err != nil {
			return fmt.Errorf("start websocket transport: %w", err)
		}
	}
	if state.config.Web.Enabled {
		if err := startHTTPServer(state, g, groupCtx); err != nil {
			return fmt.Errorf("start http transport: %w", err)
		}
	}
	return nil
}

func startWebSocketServer(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	config := state.config
	logger := state.logger

	hub := ws.NewHub(logger)
	router := ws.NewRouter(hub, logger, ws.RouterOptions{
		HandshakeTimeout: config.Transport.WebSocket.HandshakeTimeout,
	})

	addr := config.Transport.WebSocket.IP + ":" + strconv.Itoa(config.Transport.WebSocket.Port)
	server := ws.NewServer(ws.ServerConfig{
		Addr:             addr,
		Path:             config.Transport.WebSocket.Path,
		HandshakeTimeout: config.Transport.WebSocket.HandshakeTimeout,
		IdleTimeout:      config.Transport.WebSocket.IdleTimeout,
	}, router, hub, logger)

	server.SetHandlerBuilder(func(conn *ws.Connection, req *http.Request) (ws.SessionHandler, error) {
		userID, err := resolveWebSocketUser(state, req)
		if err != nil {
			return nil, err
		}
		return ws.NewRecordingHandler(conn, state.recorder, userID, logger), nil
	})

	g.Go(func() error {
		return server.Start(groupCtx)
	})
	return nil
}

// resolveWebSocketUser authenticates the upgrade request. Browsers cannot
// set headers on websocket dials, so the token also rides a query param.
func resolveWebSocketUser(state *appState, req *http.Request) (uint, error) {
	if state.authManager == nil {
		return httpwebapi.DefaultUserID, nil
	}

	token := req.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return 0, platformerrors.New(platformerrors.KindAuth, "ws.auth", "missing token")
	}

	userID, _, err := state.authManager.VerifyToken(req.Context(), token)
	if err != nil {
		return 0, platformerrors.Wrap(platformerrors.KindAuth, "ws.auth", "invalid token", err)
	}
	return userID, nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	config := state.config
	logger := state.logger

	webapiService, err := httpwebapi.NewService(httpwebapi.Options{
		Config:   config,
		Logger:   logger,
		Journal:  state.journal,
		Recorder: state.recorder,
		Blobs:    state.blobs,
		Auth:     state.authManager,
		Users:    state.users,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindTransport,
			"webapi:new-service", "failed to create webapi service", err)
	}

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config:         config,
		Logger:         logger,
		AuthMiddleware: webapiService.AuthMiddleware(),
		StaticRoot:     config.Web.StaticDir,
	})
	if err != nil {
		return err
	}

	webapiService.Register(httpRouter.API)
	webapiService.RegisterSecured(httpRouter.Secured)

	engine := httpRouter.Engine
	engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			httptransport.RespondError(c, http.StatusNotFound, "not found", gin.H{})
			return
		}
		c.File(config.Web.StaticDir + "/index.html")
	})

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(config.Web.Port),
		Handler: engine,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "serving on http://localhost:%d", config.Web.Port)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "shutdown failed: %v", err)
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return err
		}
		return nil
	})
	return nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("Bootstrap", "shutdown signal received, cleaning up")

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("Bootstrap", "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag("Bootstrap", "all services stopped")
	case <-time.After(shutdownGrace):
		logger.ErrorTag("Bootstrap", "shutdown timed out, forcing exit")
		return errors.New("shutdown timed out")
	}
	return nil
}
