package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/example/fleet-tracking/internal/auth"
	"github.com/example/fleet-tracking/internal/config"
	"github.com/example/fleet-tracking/internal/engine"
	"github.com/example/fleet-tracking/internal/geo"
	httpapi "github.com/example/fleet-tracking/internal/http"
	"github.com/example/fleet-tracking/internal/ingest"
	"github.com/example/fleet-tracking/internal/logging"
	"github.com/example/fleet-tracking/internal/models"
	"github.com/example/fleet-tracking/internal/payments"
	"github.com/example/fleet-tracking/internal/registry"
	"github.com/example/fleet-tracking/internal/storage"
	"github.com/example/fleet-tracking/internal/zone"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if cfg.RunMigrations && cfg.PGDSN != "" {
		runMigrations(cfg.PGDSN, logger)
	}

	var store storage.Store
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer ps.Close()
		store = ps
	} else {
		store = storage.NewMemoryStore()
	}

	var index geo.LastKnown
	if cfg.RedisAddr != "" {
		index = geo.NewRedisLastKnown(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		index = geo.NewIndex()
	}

	var publisher engine.PositionPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}

	eng := &engine.Engine{
		Registry:      registry.New(),
		Zone:          zone.New(models.Zone{Lat: cfg.ZoneLat, Lng: cfg.ZoneLng, RadiusM: cfg.ZoneRadiusM}),
		Store:         store,
		Index:         index,
		Publisher:     publisher,
		Log:           logger,
		SpeedKmPerMin: cfg.AverageSpeedKmh / 60.0,
	}

	var holder httpapi.PaymentProcessor
	if os.Getenv("STRIPE_API_KEY") != "" && cfg.StripeHoldAmount > 0 {
		holder = payments.NewStripeClient()
	}

	api := httpapi.NewServer(cfg, logger, eng, store, auth.NewResolver(cfg.JWTSecret), holder)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("fleet-tracking listening", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// runMigrations applies the SQL files under migrations/ when MIGRATE=true.
func runMigrations(dsn string, logger *slog.Logger) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("migration db open error", "error", err)
		return
	}
	defer db.Close()
	files, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		logger.Error("migration glob error", "error", err)
		return
	}
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			logger.Error("migration read error", "file", f, "error", err)
			continue
		}
		if _, err := db.Exec(string(b)); err != nil {
			logger.Error("migration exec error", "file", f, "error", err)
			continue
		}
		logger.Info("migration applied", "file", f)
	}
}
