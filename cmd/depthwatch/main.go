package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"depthwatch/internal/config"
	"depthwatch/internal/dedupe"
	"depthwatch/internal/logger"
	"depthwatch/internal/market"
	"depthwatch/internal/notify"
	"depthwatch/internal/recorder"
	"depthwatch/internal/scanner"
	"depthwatch/internal/storage"
)

var (
	configPath     = pflag.String("config", "configs/config.yaml", "Path to configuration file")
	pollInterval   = pflag.Duration("poll-interval", 0, "Override scanner poll interval")
	duration       = pflag.Duration("duration", 0, "Stop after this much time (0 = run until interrupted)")
	logLevel       = pflag.String("log-level", "", "Override logging level (debug, info, warn, error)")
	thresholdsPath = pflag.String("thresholds", "", "Override thresholds file path")
)

func main() {
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *pollInterval > 0 {
		cfg.Scanner.PollInterval = *pollInterval
		if cfg.Scanner.HeartbeatInterval < *pollInterval {
			cfg.Scanner.HeartbeatInterval = *pollInterval
		}
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *thresholdsPath != "" {
		cfg.Scanner.ThresholdsPath = *thresholdsPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	rec := recorder.New(store, cfg.Recorder.SamplingInterval, cfg.Recorder.QueueSize)
	rec.Start()

	client := market.NewClient(
		cfg.Market.CLOBAPIURL,
		cfg.Market.WSURL,
		cfg.Market.Timeout,
		market.ClientConfig{
			MaxRetries:     cfg.Market.MaxRetries,
			RetryDelayBase: cfg.Market.RetryDelayBase,
		},
	)

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(
			cfg.Telegram.BotToken,
			cfg.Telegram.ChatID,
			cfg.Market.MaxRetries,
			cfg.Market.RetryDelayBase,
			cfg.Telegram.Throttle,
		)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram notifier: %v", err)
		}
		notifier = tg
		logger.Info("Telegram notifier initialized")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	policy := dedupe.NewTracker(cfg.Scanner.DedupeWindow)

	runner := scanner.New(client, policy, notifier, rec, store, scanner.Config{
		PollInterval:      cfg.Scanner.PollInterval,
		HeartbeatInterval: cfg.Scanner.HeartbeatInterval,
		BackoffBase:       cfg.Scanner.BackoffBase,
		BackoffCap:        cfg.Scanner.BackoffCap,
		MaxRetries:        cfg.Scanner.MaxRetries,
		ThresholdsPath:    cfg.Scanner.ThresholdsPath,
		BookDepth:         cfg.Market.BookDepth,
		Duration:          *duration,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	runErr := runner.Run(ctx)

	if err := rec.Stop(cfg.Recorder.StopTimeout); err != nil {
		logger.Warn("Recorder shutdown: %v", err)
	}
	recStats := rec.Stats()
	logger.Info("Recorder: %d recorded, %d sampled out, %d dropped, %d write errors",
		recStats.Recorded, recStats.SkippedSampling, recStats.Dropped, recStats.Errors)

	if runErr != nil {
		logger.Error("Scanner exited with error: %v", runErr)
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("Service stopped")
}
