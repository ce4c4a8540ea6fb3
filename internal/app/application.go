package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"gamechat/internal/api"
	"gamechat/internal/config"
	"gamechat/internal/relay"
	"gamechat/internal/session"
	"gamechat/internal/storage"
	"gamechat/pkg/database"
)

// Application wires the relay together: persistence gateway, session
// authenticator, connection registry, websocket handler and the HTTP
// listener carrying all three endpoints.
type Application struct {
	config     *config.Config
	gateway    *storage.Gateway
	registry   *relay.Registry
	httpServer *http.Server
}

// New builds the application. Storage bootstrap runs here with the bounded
// retry sequence; an error from New means the process has no store and must
// not serve.
func New(cfg *config.Config) (*Application, error) {
	gateway, err := storage.Connect(storeConfig(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "storage bootstrap failed")
	}

	if err := prepareSchema(gateway, cfg.Database.Driver); err != nil {
		_ = gateway.Close()
		return nil, err
	}

	sessionStore := session.NewFileStore(cfg.Session.Dir)
	authenticator := session.NewAuthenticator(sessionStore)
	registry := relay.NewRegistry()
	handler := relay.NewHandler(registry, authenticator, gateway, cfg)

	server := api.NewServer(gateway, registry)
	server.Handle("/ws", handler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		gateway:    gateway,
		registry:   registry,
		httpServer: httpServer,
	}, nil
}

// storeConfig maps the application settings onto the gateway configuration.
func storeConfig(cfg *config.Config) *database.Config {
	dbCfg := database.DefaultConfig()
	dbCfg.Driver = cfg.Database.Driver
	dbCfg.DSN = cfg.Database.DSN
	dbCfg.MaxConnectAttempts = cfg.Database.MaxConnectAttempts
	dbCfg.ReconnectDelay = cfg.Database.ReconnectDelay
	return dbCfg
}

// prepareSchema applies pending migrations and verifies the required tables
// exist before the relay accepts its first connection.
func prepareSchema(gateway *storage.Gateway, driver string) error {
	manager := database.NewMigrationManager(gateway.DB(), driver)
	if err := manager.ApplyMigrations(); err != nil {
		return errors.Wrap(err, "schema migration failed")
	}

	validator := database.NewSchemaValidator(gateway.DB(), driver)
	if err := validator.ValidateTablesExist(); err != nil {
		return errors.Wrap(err, "schema validation failed")
	}

	return nil
}

// Start begins serving. Blocks until the listener fails or Stop shuts it
// down.
func (a *Application) Start() error {
	log.WithFields(log.Fields{
		"addr":        a.httpServer.Addr,
		"session_dir": a.config.Session.Dir,
		"driver":      a.config.Database.Driver,
	}).Info("chat relay listening")

	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Stop drains the HTTP listener and releases the store handle.
func (a *Application) Stop(ctx context.Context) error {
	log.Info("shutting down chat relay")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown did not complete cleanly")
	}

	if err := a.gateway.Close(); err != nil {
		log.WithError(err).Warn("store close failed")
	}

	log.Info("chat relay stopped")
	return nil
}

// Registry exposes the connection registry for diagnostics.
func (a *Application) Registry() *relay.Registry {
	return a.registry
}
