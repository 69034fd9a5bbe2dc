// Command oocanad is the remote task daemon: it accepts Task node
// firings a Scheduler's RemoteClient submits over HTTP, spawns the same
// worker process locally that a non-remote Task node would get, and
// periodically garbage-collects stale service workers from the shared
// registry.
package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oocana-go/oocana/cmd/oocanad/config"
	"github.com/oocana-go/oocana/internal/domain/workerpool"
	oohttp "github.com/oocana-go/oocana/internal/infrastructure/http"
	"github.com/oocana-go/oocana/internal/infrastructure/monitoring"
	"github.com/oocana-go/oocana/internal/infrastructure/persistence/postgres"
	"github.com/oocana-go/oocana/internal/infrastructure/reporter"
	"github.com/oocana-go/oocana/internal/infrastructure/tracing"
)

func main() {
	cfg := config.Load()

	fmt.Println("oocanad - remote task daemon")
	fmt.Printf("listening on %s:%d\n", cfg.Server.Host, cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		ServiceName: "oocanad",
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	if cfg.Database.Enabled {
		dsn := postgres.DSN(postgres.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err := postgres.Migrate(dsn); err != nil {
			log.Fatalf("failed to migrate session store: %v", err)
		}
		fmt.Println("session store migrated")
	}

	metrics := monitoring.NewMetrics("oocana")
	broadcaster := reporter.NewBroadcaster()
	registry := workerpool.New()

	server := oohttp.New(oohttp.Config{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		OOMOLToken:  cfg.Server.OOMOLToken,
		ServiceName: "oocanad",
	}, metrics, broadcaster)

	c := cron.New()
	staleFor := time.Duration(cfg.GC.WorkerStaleFor) * time.Second
	if _, err := c.AddFunc(cfg.GC.Schedule, func() {
		n := registry.CleanupStale(staleFor)
		if n > 0 {
			log.Printf("gc: deregistered %d stale workers", n)
		}
	}); err != nil {
		log.Fatalf("failed to schedule gc: %v", err)
	}
	c.Start()
	defer c.Stop()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}

	fmt.Println("shutdown complete")
}
