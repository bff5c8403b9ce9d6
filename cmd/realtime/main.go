package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/taskfolio/realtime/internal/auth"
	"github.com/taskfolio/realtime/internal/broadcaster"
	"github.com/taskfolio/realtime/internal/handler"
	"github.com/taskfolio/realtime/internal/persistence"
	"github.com/taskfolio/realtime/internal/persistence/memory"
	"github.com/taskfolio/realtime/internal/persistence/mongodb"
	"github.com/taskfolio/realtime/internal/presence"
	"github.com/taskfolio/realtime/internal/server"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type App struct {
	logger            *zap.Logger
	settings          Settings
	persistenceEngine persistence.Engine
	websocketServer   *server.WebSocketServer
	restServer        *server.RESTServer
}

func NewApp(logger *zap.Logger, settings Settings, persistenceEngine persistence.Engine) *App {
	originChecker := server.NewOriginChecker(settings.AllowedHosts...)
	websocketUpgrader := &websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		CheckOrigin:       originChecker.Check,
		EnableCompression: true,
	}

	authenticator := auth.NewAuthenticator(settings.JWTSecret, settings.APIKeys)
	projectIdValidator := handler.NewProjectIdValidator()

	hub := broadcaster.NewHub(logger)
	roomBroadcaster := broadcaster.NewBroadcaster(hub)

	registry := presence.NewRegistry()
	presenceManager := presence.NewManager(logger, registry, hub)

	heartbeatHandler := handler.NewHeartbeatHandler()
	authHandler := handler.NewAuthHandler(authenticator, hub)
	joinHandler := handler.NewJoinHandler(projectIdValidator, presenceManager)
	leaveHandler := handler.NewLeaveHandler(projectIdValidator, presenceManager)
	roomEventHandler := handler.NewRoomEventHandler(projectIdValidator, roomBroadcaster)
	notificationHandler := handler.NewNotificationHandler(persistenceEngine, roomBroadcaster)
	activityHandler := handler.NewActivityHandler(projectIdValidator, persistenceEngine, roomBroadcaster)

	router := server.NewRouter(
		logger,
		heartbeatHandler,
		authHandler,
		joinHandler,
		leaveHandler,
	)

	websocketServer := server.NewWebSocketServer(
		logger,
		websocketUpgrader,
		hub,
		presenceManager,
		router,
	)
	restServer := server.NewRESTServer(
		logger,
		authenticator,
		roomEventHandler,
		notificationHandler,
		activityHandler,
	)

	return &App{
		logger,
		settings,
		persistenceEngine,
		websocketServer,
		restServer,
	}
}

func (a *App) setup(ctx context.Context) error {
	err := a.persistenceEngine.Setup(ctx)
	if err != nil {
		return err
	}

	a.startHttpServer(ctx)

	return nil
}

func (a *App) startHttpServer(ctx context.Context) {
	notifyCtx, notifyCtxCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer notifyCtxCancel()

	address := fmt.Sprintf("0.0.0.0:%d", a.settings.Port)

	router := mux.NewRouter().
		PathPrefix(a.settings.BasePath).
		Subrouter()

	a.websocketServer.Register(router)
	a.restServer.Register(router)

	httpServer := &http.Server{
		Addr:    address,
		Handler: router,
	}

	a.logger.Info("starting http server",
		zap.String("address", address))

	go func() {
		err := httpServer.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("failed to start http server",
				zap.Error(err))
		}
	}()

	<-notifyCtx.Done()

	a.logger.Info("stopping http server")

	shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCtxCancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Fatal("http server shutdown failed",
			zap.Error(err))
	}

	a.logger.Info("http server stopped")
}

func buildPersistenceEngine(logger *zap.Logger, settings Settings) persistence.Engine {
	if settings.MongoURI == "" {
		logger.Warn("MONGO_URI not set, notifications and activities are kept in memory only")

		return memory.NewEngine()
	}

	client, err := mongo.Connect(options.Client().ApplyURI(settings.MongoURI))
	if err != nil {
		logger.Fatal("failed to connect to mongodb", zap.Error(err))
	}

	return mongodb.NewEngine(client)
}

func main() {
	ctx := context.Background()

	var settings Settings
	_, err := env.UnmarshalFromEnviron(&settings)
	if err != nil {
		logger, _ := zap.NewDevelopment()
		logger.Fatal("failed to parse settings from environment", zap.Error(err))
	}

	logger, err := buildZapLogger(settings.LogEncoding)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	persistenceEngine := buildPersistenceEngine(logger, settings)

	app := NewApp(logger, settings, persistenceEngine)

	err = app.setup(ctx)
	if err != nil {
		logger.Fatal("failed to setup", zap.Error(err))
	}
}
