package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Skotchmaster/product_catalog/internal/config"
	"github.com/Skotchmaster/product_catalog/internal/es"
	"github.com/Skotchmaster/product_catalog/internal/httpserver"
	"github.com/Skotchmaster/product_catalog/internal/mykafka"
	"github.com/Skotchmaster/product_catalog/internal/repo"
	"github.com/Skotchmaster/product_catalog/internal/search"
	"github.com/Skotchmaster/product_catalog/internal/service"
	"github.com/Skotchmaster/product_catalog/internal/tracing"
	"github.com/Skotchmaster/product_catalog/internal/upload"
	pkgdb "github.com/Skotchmaster/product_catalog/pkg/db"
	"github.com/Skotchmaster/product_catalog/pkg/logging"
)

// store is the opened repository plus its readiness check and closer.
type store struct {
	repo  repo.Repository
	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	kind, err := pkgdb.KindOf(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if kind == pkgdb.KindMongo {
		client, err := pkgdb.OpenMongo(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		r, err := repo.NewMongoRepo(ctx, client.Database(cfg.DatabaseName))
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return &store{
			repo:  r,
			ping:  func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) },
			close: client.Disconnect,
		}, nil
	}

	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	r, err := repo.NewGormRepo(db)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &store{
		repo:  r,
		ping:  sqlDB.PingContext,
		close: func(context.Context) error { return sqlDB.Close() },
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	shutdownTracing, err := tracing.Init(cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		logger.Error("tracing_init_error", "error", err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := openStore(ctx, cfg)
	cancel()
	if err != nil {
		logger.Error("db_open_error", "error", err.Error())
		os.Exit(1)
	}

	images, err := upload.NewImageStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		logger.Error("upload_dir_error", "error", err.Error())
		os.Exit(1)
	}

	var events mykafka.Publisher = mykafka.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		events = mykafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		logger.Info("kafka_enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	var index search.Index
	if cfg.ESURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := es.NewClient(ctx, es.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword}, logger)
		if err == nil {
			esIndex := search.NewESIndex(client, cfg.ESIndex)
			if err = esIndex.EnsureIndex(ctx); err == nil {
				index = esIndex
			}
		}
		cancel()
		if err != nil {
			logger.Warn("search_index_disabled", "reason", "elasticsearch unavailable", "error", err.Error())
		}
	}

	svc := service.NewCatalogService(st.repo, images, events, index)
	e := httpserver.New(&httpserver.Deps{
		CatalogHandler: &httpserver.CatalogHTTP{Svc: svc},
		Images:         images,
		JWTSecret:      []byte(cfg.JWTSecret),
		Logger:         logger,
		Ready:          st.ping,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen_error", "error", err.Error())
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err.Error())
	}
	if err := events.Close(); err != nil {
		logger.Error("kafka_close_error", "error", err.Error())
	}
	if err := st.close(shutdownCtx); err != nil {
		logger.Error("db_close_error", "error", err.Error())
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing_shutdown_error", "error", err.Error())
	}

	logger.Info("server_stopped")
}
