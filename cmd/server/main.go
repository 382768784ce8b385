package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jacksonlee411/registry-console/internal/bootstrap"
	"github.com/jacksonlee411/registry-console/internal/config"
	"github.com/jacksonlee411/registry-console/internal/logging"
	"github.com/jacksonlee411/registry-console/internal/server"
	"github.com/jacksonlee411/registry-console/internal/tracing"
)

func main() {
	if err := run(); err != nil {
		logging.ErrorErr(logging.CatConfig, "server exited", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	if err := logging.Init(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SampleRate:   cfg.TracingSampleRate,
		ServiceName:  "registry-console",
	})
	if err != nil {
		return err
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	st, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close(context.Background()) }()

	if _, err := st.SeedAccess(ctx); err != nil {
		return err
	}
	h, err := server.NewHandlerWithOptions(st.HandlerOptions(cfg))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Info(logging.CatHTTP, "listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logging.Info(logging.CatHTTP, "shutting down")
	return srv.Shutdown(shutdownCtx)
}
