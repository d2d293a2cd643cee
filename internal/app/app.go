// Package app initializes and runs the main application service.
// It configures logging, storage, sessions, views, and routing,
// and handles graceful shutdown.
package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/patric-chuzhbe/tinyapp/internal/config"
	"github.com/patric-chuzhbe/tinyapp/internal/db/jsondb"
	"github.com/patric-chuzhbe/tinyapp/internal/db/memorystorage"
	"github.com/patric-chuzhbe/tinyapp/internal/db/postgresdb"
	"github.com/patric-chuzhbe/tinyapp/internal/db/storage"
	"github.com/patric-chuzhbe/tinyapp/internal/grpcserver"
	"github.com/patric-chuzhbe/tinyapp/internal/ipchecker"
	"github.com/patric-chuzhbe/tinyapp/internal/logger"
	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/router"
	"github.com/patric-chuzhbe/tinyapp/internal/session"
	"github.com/patric-chuzhbe/tinyapp/internal/view"
)

const shutdownTimeout = 10 * time.Second

// App encapsulates the configuration, HTTP handler, storage backend,
// and the optional internal gRPC server needed to run the service.
type App struct {
	cfg         *config.Config
	db          storage.Storage
	httpHandler http.Handler
	grpcServer  *grpc.Server
	grpcRun     func() error
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - setting up sessions, views, and the router
// - setting up the internal gRPC server when it is enabled
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	sessionSigningSecretKey, err := base64.URLEncoding.DecodeString(app.cfg.SessionSigningSecretKey)
	if err != nil {
		return nil, err
	}

	views, err := view.New()
	if err != nil {
		return nil, err
	}

	ipChecker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	app.httpHandler = router.New(
		app.db,
		app.cfg.ShortURLBase,
		session.New(
			app.db,
			app.cfg.SessionCookieName,
			sessionSigningSecretKey,
			app.cfg.SessionTTL,
		),
		views,
		ipChecker,
	)

	if app.cfg.GRPCRunAddr != "" {
		server, lis, err := grpcserver.NewGRPCServer(
			app.cfg.GRPCRunAddr,
			grpcserver.NewResolverHandler(app.db),
		)
		if err != nil {
			return nil, err
		}
		app.grpcServer = server
		app.grpcRun = func() error { return server.Serve(lis) }
	}

	return app, nil
}

// Run starts the HTTP server (and the internal gRPC server when configured)
// with graceful shutdown support. It listens for system signals and cleans
// up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	if a.grpcServer != nil {
		logger.Log.Infoln("internal gRPC server running", "GRPCRunAddr", a.cfg.GRPCRunAddr)
		go func() {
			if err := a.grpcRun(); err != nil {
				serverErrCh <- fmt.Errorf("gRPC server error: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Saving database and exiting...")

		if a.grpcServer != nil {
			a.grpcServer.GracefulStop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.db.Close()

	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}
