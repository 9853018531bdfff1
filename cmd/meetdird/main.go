package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meetdir/internal/directory"
	"meetdir/internal/directory/ldap"
	"meetdir/internal/identity/metrics"
	"meetdir/internal/identity/onboarding"
	"meetdir/internal/platform/config"
	"meetdir/internal/platform/httpserver"
	"meetdir/internal/platform/logger"
	"meetdir/pkg/platform/audit"
)

// main wires the directory session and its ambient stack, then parks on the
// metrics endpoint. Domain logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	backend, err := ldap.Dial(ldap.Config{
		URL:          cfg.LDAPURL,
		BindDN:       cfg.BindDN,
		BindPassword: cfg.BindPassword,
		Timeout:      cfg.LDAPTimeout,
	})
	if err != nil {
		log.Error("directory dial failed", "url", cfg.LDAPURL, "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	conn := directory.NewConn(backend, cfg.BaseDN)

	opts := []onboarding.Option{
		onboarding.WithLogger(log),
		onboarding.WithMetrics(metrics.New()),
	}
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := audit.NewKafka(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("audit sink unavailable", "brokers", cfg.KafkaBrokers, "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		opts = append(opts, onboarding.WithAudit(sink))
	}
	svc := onboarding.NewService(conn, opts...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := httpserver.New(cfg.MetricsAddr, mux)

	log.Info("meetdird up", "base", conn.Base(), "metrics", cfg.MetricsAddr)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweepPending(sweepCtx, svc, log)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// sweepPending keeps the pending-invite backlog gauge current.
func sweepPending(ctx context.Context, svc *onboarding.Service, log *slog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		invites, err := svc.Pending(ctx)
		if err != nil {
			log.Warn("pending sweep failed", "error", err)
		} else {
			log.Debug("pending sweep", "count", len(invites))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
