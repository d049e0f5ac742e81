package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fiapx/fiapx-pose-service/internal/app"
	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"github.com/fiapx/fiapx-pose-service/internal/infra/config"
	"github.com/fiapx/fiapx-pose-service/internal/infra/metrics"
	"github.com/fiapx/fiapx-pose-service/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-pose-service/internal/infra/tracing"
	httptransport "github.com/fiapx/fiapx-pose-service/internal/transport/http"
	"github.com/fiapx/fiapx-pose-service/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting fiapx-pose-service", zap.String("decoder", cfg.Decoder), zap.String("padding_mode", cfg.PaddingMode))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	shutdownTracer, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer shutdownTracer(context.Background())
	}

	// Summary events (optional)
	var publisher port.EventPublisher
	if cfg.RabbitMQURL != "" {
		conn, pub, err := rabbitmq.Dial(cfg.RabbitMQURL, rabbitmq.PublisherConfig{
			Exchange:   cfg.RabbitMQExchange,
			RoutingKey: cfg.RabbitMQRoutingKey,
		}, log)
		if err != nil {
			log.Warn("rabbitmq unavailable, extraction events disabled", zap.Error(err))
		} else {
			defer conn.Close()
			defer pub.Close()
			publisher = pub
		}
	}

	uc, err := app.NewExtractPose(cfg, publisher, log)
	fatalOnErr(err, "build extraction pipeline")

	router, err := httptransport.Build(httptransport.Options{
		Extractor: uc,
		Logger:    log,
		Debug:     cfg.LogLevel == "debug",
	})
	fatalOnErr(err, "build http router")

	// No WriteTimeout: a request lasts as long as its video takes to process.
	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.StartServer(cfg.MetricsPort, log)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown", zap.Error(err))
	}
	if metricsSrv != nil {
		metricsSrv.Shutdown(shutdownCtx)
	}

	log.Info("fiapx-pose-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
