package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/code-100-precent/LingChat/cmd/bootstrap"
	"github.com/code-100-precent/LingChat/pkg/config"
	"github.com/code-100-precent/LingChat/pkg/logger"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Print Banner
	if err := bootstrap.PrintBannerFromFile(os.Stdout, "banner.txt"); err != nil {
		log.Printf("unload banner: %v", err)
	}

	// 2. Parse Command Line Parameters
	mode := flag.String("mode", "", "running environment (development, test, production)")
	addr := flag.String("addr", "", "control API listen address")
	endpoint := flag.String("url", "", "event stream endpoint (ws:// or wss://)")
	quiet := flag.Bool("quiet", false, "do not render notifications on stdout")
	flag.Parse()

	// 3. Set Environment Variables
	if *mode != "" {
		os.Setenv("APP_ENV", *mode)
	}

	// 4. Load Global Configuration
	if err := config.Load(); err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	cfg := config.GlobalConfig
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *endpoint != "" {
		cfg.Realtime.URL = *endpoint
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid -url: %v", err)
		}
	}

	// 5. Load Log Configuration
	if err := logger.Init(&cfg.Log, cfg.Mode); err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.RealtimeLogLevel); err == nil {
		logrus.SetLevel(level)
	} else {
		logger.Warn("invalid realtime log level", zap.String("level", cfg.RealtimeLogLevel))
	}

	// 6. Print Configuration
	bootstrap.LogConfigInfo()

	// 7. Assemble Client
	opts := &bootstrap.Options{
		Output:       os.Stdout,
		SeedSettings: os.Getenv("APP_ENV") != "production",
	}
	if *quiet {
		opts.Output = nil
	}
	client, err := bootstrap.SetupClient(cfg, opts)
	if err != nil {
		logger.Error("client setup failed", zap.Error(err))
		os.Exit(1)
	}
	defer client.Close()

	// 8. Control API
	engine, err := bootstrap.NewEngine(cfg, client.Handlers, zap.L())
	if err != nil {
		logger.Error("control router setup failed", zap.Error(err))
		return
	}
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting control server", zap.String("addr", cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		client.Start(gctx)
		return nil
	})

	if cfg.Notification.WatchSettings {
		g.Go(func() error {
			if err := client.WatchSettings(gctx); err != nil {
				// live reload is optional, the daemon keeps running
				logger.Warn("settings watch unavailable", zap.Error(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("chat client stopped with error", zap.Error(err))
	}
	logger.Info("chat client shut down")
	_ = logger.Lg.Sync()
}
