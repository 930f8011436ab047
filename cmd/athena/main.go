package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"athena/libs/aggregator"
	"athena/libs/appconfig"
	"athena/libs/command"
	"athena/libs/condition"
	"athena/libs/database"
	"athena/libs/observability"
	"athena/libs/scheduler"
	"athena/libs/store"
	"athena/libs/storekeeper"
	"athena/libs/testing"
	"athena/libs/ticker"
)

const tickJobName = "notification_tick"

func main() {
	resDir := flag.String("res", ".", "directory containing res/telegram.key, res/polygon.key, res/moex.key")
	dbPath := flag.String("db", "res/db/athena_data.sqlite", "path to the SQLite database file")
	tickInterval := flag.Duration("tick-interval", 30*time.Second, "notification re-evaluation period (production target 1800s)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := appconfig.Load(*resDir)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	appconfig.LogLoaded(ctx, cfg)

	dbConfig := database.DefaultConfig()
	dbConfig.Path = *dbPath
	db, err := database.ConnectWithMigrations(ctx, dbConfig)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("database connected and migrated")

	dispatcher := aggregator.NewDispatcher()
	dispatcher.Register(ticker.MOEX, aggregator.NewMOEXAdapter(""))
	if cfg.MOEXCredentials.Login != "" {
		dispatcher.Register(ticker.MOEXAnalytic, aggregator.NewMOEXAnalyticAdapter("", cfg.MOEXCredentials))
	} else {
		log.Println("moex.key absent, MOEXAnalytic aggregator unavailable")
	}

	metrics := observability.NewAthenaMetrics(observability.NewRegistry())

	s := store.New(db)
	keeper := storekeeper.New(s, dispatcher, testing.SystemClock{}, metrics)

	notifier := &loggingNotifier{}
	processor, err := condition.New(ctx, s, keeper, notifier, metrics)
	if err != nil {
		log.Fatalf("failed to load active notifications: %v", err)
	}
	surface := command.New(processor)
	_ = surface // wired for a chat transport to drive

	sched := scheduler.New()
	if err := sched.Schedule(tickJobName, *tickInterval, func() {
		processor.Tick(ctx)
	}); err != nil {
		log.Fatalf("failed to schedule notification tick: %v", err)
	}
	log.Printf("notification tick scheduled every %s", tickInterval.String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("shutdown signal received, stopping scheduler")
	cancel()
	sched.Stop()
	log.Println("athena stopped")
}

// loggingNotifier is the default Notifier until a real chat transport
// is wired in. It logs what would have been sent instead of silently
// dropping it.
type loggingNotifier struct{}

func (loggingNotifier) Notify(ctx context.Context, chatID int64, messages []string) error {
	observability.LogEvent(ctx, "info", "notification_ready", map[string]any{
		"chat_id": chatID,
		"count":   len(messages),
	})
	return nil
}
