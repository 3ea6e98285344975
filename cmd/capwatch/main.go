package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"capwatch/internal/alerts"
	"capwatch/internal/anomaly"
	"capwatch/internal/config"
	"capwatch/internal/logger"
	"capwatch/internal/marketdata"
	"capwatch/internal/models"
	"capwatch/internal/monitor"
	"capwatch/internal/orderbook"
	"capwatch/internal/storage"
	"capwatch/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	dataClient := marketdata.New(marketdata.Config{
		BaseURL:           cfg.MarketData.BaseURL,
		Timeout:           cfg.MarketData.Timeout,
		RequestsPerSecond: cfg.MarketData.RequestsPerSecond,
		MaxRetryElapsed:   cfg.MarketData.MaxRetryElapsed,
		VolumeWindow:      cfg.Anomaly.Window,
	})

	engine := alerts.New(alerts.Config{
		PriceThresholdPercent: cfg.Alerts.PriceThresholdPercent,
		VolumeRatioThreshold:  cfg.Alerts.VolumeRatioThreshold,
		ComboChangePercent:    15.0,
		ComboVolumeRatio:      3.0,
		SmallCapCeiling:       cfg.Alerts.SmallCapCeiling,
		SmallCapChangePercent: 20.0,
		Cooldown:              cfg.Alerts.Cooldown,
		MaxActive:             100,
		MaxHistory:            1000,
	})

	detector := anomaly.New(anomaly.Config{
		VolumeWindow:         cfg.Anomaly.Window,
		VolumeThreshold:      cfg.Anomaly.VolumeThreshold,
		PriceWindow:          cfg.Anomaly.Window,
		PriceZScoreThreshold: cfg.Anomaly.PriceZScoreThreshold,
		GapThresholdPercent:  cfg.Anomaly.GapThresholdPercent,
		CorrelationThreshold: cfg.Anomaly.CorrelationThreshold,
		CorrelationMinBars:   cfg.Anomaly.Window,
	})

	bookConfig := orderbook.DefaultConfig()
	bookConfig.PressureLevels = cfg.OrderBook.PressureLevels
	analyzer := orderbook.New(bookConfig)
	synth := orderbook.NewSynthesizer(rand.New(rand.NewSource(time.Now().UnixNano())), cfg.OrderBook.Levels)

	mon := monitor.New(dataClient, engine, detector, analyzer, synth, monitor.Config{
		Symbols:         cfg.Monitor.Symbols,
		MaxWorkers:      cfg.Monitor.MaxWorkers,
		HistoryDays:     cfg.Monitor.HistoryDays,
		SynthesizeBooks: cfg.OrderBook.Synthesize,
		SqueezeMinScore: 60,
	})
	mon.SetRecorder(store)

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, 3, time.Second)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		mon.SetNotifier(telegramClient)
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	logger.Info("Starting monitoring service (symbols: %d, interval: %v, workers: %d)",
		len(cfg.Monitor.Symbols), cfg.Monitor.PollInterval, cfg.Monitor.MaxWorkers)

	ticker := time.NewTicker(cfg.Monitor.PollInterval)
	defer ticker.Stop()
	cleanup := time.NewTicker(cfg.Storage.CleanupEvery)
	defer cleanup.Stop()

	// A nil channel never fires, so the digest case stays inert when
	// notifications are disabled.
	var digestC <-chan time.Time
	if telegramClient != nil && cfg.Telegram.DigestEvery > 0 {
		digest := time.NewTicker(cfg.Telegram.DigestEvery)
		defer digest.Stop()
		digestC = digest.C
	}

	consecutiveFailures := 0
	handleCycleResult := func(result monitor.CycleResult, err error) {
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveFailures++
			logger.Error("Monitoring cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
			return
		}
		if consecutiveFailures > 0 && telegramClient != nil {
			if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
		consecutiveFailures = 0
		logger.Info("Cycle complete: %d processed, %d skipped, %d failed, %d alerts, %d anomalies, %d patterns",
			result.Processed, result.Skipped, result.Failed, len(result.Alerts), result.Anomalies, result.Patterns)
	}

	logger.Debug("Running initial monitoring cycle")
	handleCycleResult(mon.RunCycle(ctx))

	retention := time.Duration(cfg.Storage.RetentionDays) * 24 * time.Hour
	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled monitoring cycle")
			handleCycleResult(mon.RunCycle(ctx))

		case <-digestC:
			sendDigest(telegramClient, store, cfg.Monitor.Symbols, cfg.Telegram.DigestEvery)

		case <-cleanup.C:
			mon.Purge(cfg.Alerts.Retention)
			removed, err := store.Cleanup(retention)
			if err != nil {
				logger.Warn("Storage cleanup failed: %v", err)
			} else if removed > 0 {
				logger.Info("Storage cleanup removed %d rows", removed)
			}
		}
	}
}

// sendDigest summarizes the window's activity from storage into one
// Telegram message: recent alerts, leaderboards, anomaly counts.
func sendDigest(tg *telegram.Client, store *storage.Storage, symbols []string, window time.Duration) {
	recent, err := store.RecentAlerts(window)
	if err != nil {
		logger.Warn("Digest alert query failed: %v", err)
		return
	}
	movers, err := store.TopMovers(window, 5)
	if err != nil {
		logger.Warn("Digest movers query failed: %v", err)
		return
	}
	leaders, err := store.VolumeLeaders(window, 5)
	if err != nil {
		logger.Warn("Digest volume query failed: %v", err)
		return
	}

	anomalies := 0
	kinds := []models.AnomalyKind{
		models.AnomalyVolume, models.AnomalyPrice, models.AnomalyGap,
		models.AnomalyVolatility, models.AnomalyCorrelation, models.AnomalyNews,
	}
	for _, symbol := range symbols {
		for _, kind := range kinds {
			n, err := store.AnomalyCount(symbol, kind, window)
			if err != nil {
				logger.Warn("Digest anomaly count for %s failed: %v", symbol, err)
				continue
			}
			anomalies += n
		}
	}

	if err := tg.SendDigest(telegram.Digest{
		Window:    window,
		Alerts:    recent,
		Movers:    movers,
		Leaders:   leaders,
		Anomalies: anomalies,
	}); err != nil {
		logger.Warn("Failed to send digest: %v", err)
	}
}
