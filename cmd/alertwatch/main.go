// Command alertwatch manages price alerts and watches the live market feed
// for them.
//
//	alertwatch add <market-id> <above|below> <target-price>
//	alertwatch list
//	alertwatch remove <alert-id>
//	alertwatch watch
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"

	"depthwatch/internal/alerts"
	"depthwatch/internal/config"
	"depthwatch/internal/dedupe"
	"depthwatch/internal/logger"
	"depthwatch/internal/market"
	"depthwatch/internal/models"
	"depthwatch/internal/notify"
	"depthwatch/internal/watch"
)

var (
	configPath = pflag.String("config", "configs/config.yaml", "Path to configuration file")
	logLevel   = pflag.String("log-level", "", "Override logging level (debug, info, warn, error)")
)

func main() {
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()

	store := alerts.NewStore(cfg.Watcher.AlertsPath)

	args := pflag.Args()
	command := "watch"
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "add":
		runAdd(store, args[1:])
	case "list":
		runList(store)
	case "remove":
		runRemove(store, args[1:])
	case "watch":
		runWatch(cfg, store)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q (expected add, list, remove, or watch)\n", command)
		os.Exit(2)
	}
}

func runAdd(store *alerts.Store, args []string) {
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "Usage: alertwatch add <market-id> <above|below> <target-price>")
		os.Exit(2)
	}
	target, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid target price %q: %v\n", args[2], err)
		os.Exit(2)
	}

	id, err := store.Add(args[0], models.AlertDirection(args[1]), target)
	if err != nil {
		logger.Fatal("Failed to add alert: %v", err)
	}
	fmt.Printf("Added alert %s: %s %s %.4f\n", id, args[0], args[1], target)
}

func runList(store *alerts.Store) {
	list, err := store.List()
	if err != nil {
		logger.Fatal("Failed to list alerts: %v", err)
	}
	if len(list) == 0 {
		fmt.Println("No alerts configured")
		return
	}
	for _, a := range list {
		status := "pending"
		if a.Triggered {
			status = fmt.Sprintf("triggered at %s", a.TriggeredAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("%s  %s %s %.4f  [%s]\n", a.ID, a.MarketID, a.Direction, a.TargetPrice, status)
	}
}

func runRemove(store *alerts.Store, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: alertwatch remove <alert-id>")
		os.Exit(2)
	}
	if err := store.Remove(args[0]); err != nil {
		logger.Fatal("Failed to remove alert: %v", err)
	}
	fmt.Printf("Removed alert %s\n", args[0])
}

func runWatch(cfg *config.Config, store *alerts.Store) {
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
	}

	watcher := watch.New(client, store, dedupe.NewTracker(cfg.Watcher.Cooldown), func(alert models.PriceAlert) {
		notifier.DispatchAlert(alert)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received, stopping watcher")
}
