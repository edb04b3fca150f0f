package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"workflow-portal-go/internal/blob"
	"workflow-portal-go/internal/catalog"
	"workflow-portal-go/internal/config"
	"workflow-portal-go/internal/handlers"
	"workflow-portal-go/internal/logger"
	"workflow-portal-go/internal/metrics"
	"workflow-portal-go/internal/portal"
	"workflow-portal-go/internal/push"
	"workflow-portal-go/internal/store"
)

func main() {
	cfg, foundEnv := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, "workflow-portal")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()
	if !foundEnv {
		zlog.Info("No .env file found, using environment and defaults")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatal("Server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zlog *zap.Logger) error {
	m := metrics.New()

	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return err
	}

	medium, err := store.OpenMedium(ctx, cfg.Snapshot)
	if err != nil {
		return err
	}
	defer medium.Close()
	zlog.Info("Snapshot medium ready", zap.String("driver", cfg.Snapshot.Driver), zap.String("prefix", cfg.Snapshot.Prefix))

	names := store.NamesFor(cfg.Snapshot.Prefix)
	storeOpts := []store.Option{store.WithLogger(zlog), store.WithMetrics(m)}
	alerts := store.NewAlertStore(medium, names.Alerts, storeOpts...)
	records := store.NewRecordStore(medium, names.Records, append(storeOpts, store.WithValidator(cat))...)
	subs := store.NewPushStore(medium, names.Push, storeOpts...)
	for name, hydrate := range map[string]func(context.Context) error{
		names.Alerts:  alerts.Hydrate,
		names.Records: records.Hydrate,
		names.Push:    subs.Hydrate,
	} {
		if err := hydrate(ctx); err != nil {
			return err
		}
		zlog.Info("Snapshot loaded", zap.String("snapshot", name))
	}

	backend, err := blob.OpenBackend(ctx, cfg.Blob)
	if err != nil {
		return err
	}
	blobs := blob.New(backend, blob.WithLogger(zlog), blob.WithMetrics(m))

	notifier, err := push.New(cfg.Push, subs, push.WithLogger(zlog), push.WithMetrics(m))
	if err != nil {
		return err
	}

	svc := portal.New(cat, alerts, records, blobs, portal.WithNotifier(notifier), portal.WithLogger(zlog))
	if err := svc.RestoreAttachmentRefs(ctx); err != nil {
		return err
	}

	h := handlers.NewHandler(svc, notifier, m, zlog, cfg.Session)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("Listening", zap.String("addr", srv.Addr), zap.String("blob_driver", string(blobs.Driver())))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	zlog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
