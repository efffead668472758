package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"contrabot/internal/broker"
	"contrabot/internal/config"
	"contrabot/internal/engine"
	"contrabot/internal/executor"
	"contrabot/internal/feed"
	"contrabot/internal/filter"
	"contrabot/internal/pipeline"
	sig "contrabot/internal/signal"
	"contrabot/internal/store"
	"contrabot/internal/util"
)

const summaryInterval = 10 * time.Minute

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfgPath := "config/contrabot.yaml"
	if p := os.Getenv("CONTRABOT_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	st, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	var bk broker.Broker
	switch cfg.Broker.Kind {
	case "simulator":
		bk = broker.NewSimulatorBroker()
	default:
		bk = broker.NewAlpacaBroker(
			cfg.Broker.Alpaca.APIKey,
			cfg.Broker.Alpaca.APISecret,
			cfg.Broker.Alpaca.BaseURL,
			cfg.Broker.Alpaca.DataURL,
		)
	}

	exec := executor.New(bk, st, st, cfg.Trading.MaxPositionSizeUSD)
	manager := engine.NewManager(st, exec, engine.ManagerConfig{
		MaxOpenPositions: cfg.Trading.MaxOpenPositions,
		DedupWindow:      cfg.Trading.DedupWindow(),
		HoldingPeriod:    cfg.Trading.HoldingPeriod(),
		CheckInterval:    cfg.Trading.CheckInterval(),
	})

	runner := pipeline.NewRunner(pipeline.Deps{
		Source:    feed.NewRedditSource(cfg.Feed.Subreddits, cfg.Feed.PostsPerPoll, st),
		Filter:    filter.New(cfg.Filter.MinAuthorKarma),
		Extractor: sig.NewAnthropicExtractor(cfg.Signal.AnthropicKey, cfg.Signal.Model),
		Gate: sig.Gate{
			MinConfidence: cfg.Signal.MinConfidence,
			Markets:       sig.EnabledMarkets(cfg.Signal.MarketsEnabled),
		},
		Invert:   cfg.Mode == "against",
		Posts:    st,
		Signals:  st,
		Admitter: manager,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("contrabot starting",
		"mode", cfg.Mode, "broker", bk.Name(),
		"subreddits", cfg.Feed.Subreddits,
		"max_open_positions", cfg.Trading.MaxOpenPositions)

	go manager.RunPeriodicChecks(ctx)
	go logSummaries(ctx, manager)

	poll := time.NewTicker(cfg.Feed.PollInterval())
	defer poll.Stop()

	for {
		// Queued stock orders go out first so they keep their place ahead
		// of this cycle's signals.
		exec.SubmitPendingOrders(ctx)
		runner.RunOnce(ctx)

		select {
		case <-ctx.Done():
			logger.Info("contrabot shutting down")
			return
		case <-poll.C:
		}
	}
}

func logSummaries(ctx context.Context, manager *engine.Manager) {
	ticker := time.NewTicker(summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sum, err := manager.Summary(ctx)
		if err != nil {
			continue
		}
		slog.Info("portfolio summary",
			"open_positions", sum.OpenCount,
			"realized_pnl", fmt.Sprintf("%.2f", sum.RealizedPnL),
			"unrealized_pnl", fmt.Sprintf("%.2f", sum.UnrealizedPnL))
	}
}
