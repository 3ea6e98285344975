// Package monitor runs the per-symbol evaluation cycle: fetch a
// snapshot, evaluate alert rules, scan bar history for anomalies,
// analyze the order book, and hand results to persistence and
// notification. Collaborator failures are contained per symbol; one
// bad symbol never aborts the batch.
package monitor

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"capwatch/internal/alerts"
	"capwatch/internal/anomaly"
	"capwatch/internal/logger"
	"capwatch/internal/models"
	"capwatch/internal/news"
	"capwatch/internal/orderbook"
)

type Config struct {
	Symbols          []string
	MaxWorkers       int
	HistoryDays      int
	SynthesizeBooks  bool
	SqueezeMinScore  int
	NewsImpactMin    float64
	NewsRelevanceMin float64
}

func DefaultConfig() Config {
	return Config{
		MaxWorkers:       8,
		HistoryDays:      30,
		SynthesizeBooks:  true,
		SqueezeMinScore:  60,
		NewsImpactMin:    5,
		NewsRelevanceMin: 8,
	}
}

// MarketData supplies snapshots and bar history. A (nil, nil) quote
// means no data for the symbol; the cycle skips it.
type MarketData interface {
	Quote(ctx context.Context, symbol string) (*models.Snapshot, error)
	History(ctx context.Context, symbol string, days int) ([]models.Bar, error)
}

// BookSource supplies Level-2 snapshots, or (nil, nil) when none are
// available for the symbol.
type BookSource interface {
	Book(ctx context.Context, symbol string) (*models.OrderBookSnapshot, error)
}

// Recorder persists finalized records. Failures are logged, never
// propagated into the evaluation.
type Recorder interface {
	SaveAlert(alert *models.Alert) error
	SaveAnomaly(anomaly *models.Anomaly) error
	SaveSnapshot(snap *models.Snapshot) error
}

// Notifier delivers alerts to the outside world.
type Notifier interface {
	SendAlert(alert models.Alert) error
}

// Monitor owns one evaluation pipeline. The alert engine is shared
// across workers and does its own locking.
type Monitor struct {
	data     MarketData
	books    BookSource
	engine   *alerts.Engine
	detector *anomaly.Detector
	analyzer *orderbook.Analyzer
	synth    *orderbook.Synthesizer
	recorder Recorder
	notifier Notifier
	config   Config

	newsMu sync.Mutex
	items  []models.NewsItem
}

func New(
	data MarketData,
	engine *alerts.Engine,
	detector *anomaly.Detector,
	analyzer *orderbook.Analyzer,
	synth *orderbook.Synthesizer,
	config Config,
) *Monitor {
	if config.MaxWorkers < 1 {
		config.MaxWorkers = 8
	}
	if config.HistoryDays < 1 {
		config.HistoryDays = 30
	}
	if config.NewsImpactMin <= 0 {
		config.NewsImpactMin = 5
	}
	if config.NewsRelevanceMin <= 0 {
		config.NewsRelevanceMin = 8
	}
	return &Monitor{
		data:     data,
		engine:   engine,
		detector: detector,
		analyzer: analyzer,
		synth:    synth,
		config:   config,
	}
}

// SetRecorder attaches a persistence collaborator.
func (m *Monitor) SetRecorder(r Recorder) { m.recorder = r }

// SetNotifier attaches a notification collaborator.
func (m *Monitor) SetNotifier(n Notifier) { m.notifier = n }

// SetBookSource attaches a Level-2 feed. Without one, books are
// synthesized when the config allows it.
func (m *Monitor) SetBookSource(b BookSource) { m.books = b }

// SetNews replaces the headline batch consumed by subsequent cycles.
// Sentiment is stamped once here; per-symbol impact and relevance
// ranking happens during evaluation.
func (m *Monitor) SetNews(items []models.NewsItem) {
	news.AnalyzeSentiment(items)
	m.newsMu.Lock()
	m.items = append([]models.NewsItem(nil), items...)
	m.newsMu.Unlock()
}

func (m *Monitor) newsBatch() []models.NewsItem {
	m.newsMu.Lock()
	defer m.newsMu.Unlock()
	return m.items
}

// CycleResult summarizes one full pass over the watchlist.
type CycleResult struct {
	Processed int
	Skipped   int
	Failed    int
	Alerts    []models.Alert
	Anomalies int
	Patterns  int
}

// RunCycle evaluates every configured symbol using a bounded worker
// pool. Per-symbol failures are counted and logged; the cycle itself
// fails only when the context is cancelled or every symbol fails.
func (m *Monitor) RunCycle(ctx context.Context) (CycleResult, error) {
	var result CycleResult
	var mu sync.Mutex

	symbols := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < m.config.MaxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range symbols {
				if ctx.Err() != nil {
					return
				}
				sr, err := m.processSymbol(ctx, symbol)
				mu.Lock()
				switch {
				case err != nil:
					result.Failed++
				case sr == nil:
					result.Skipped++
				default:
					result.Processed++
					result.Alerts = append(result.Alerts, sr.alerts...)
					result.Anomalies += sr.anomalies
					result.Patterns += sr.patterns
				}
				mu.Unlock()
				if err != nil {
					logger.Warn("Symbol %s failed: %v", symbol, err)
				}
			}
		}()
	}

	for _, symbol := range m.config.Symbols {
		select {
		case <-ctx.Done():
			close(symbols)
			wg.Wait()
			return result, ctx.Err()
		case symbols <- symbol:
		}
	}
	close(symbols)
	wg.Wait()

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	if len(m.config.Symbols) > 0 && result.Failed == len(m.config.Symbols) {
		return result, errors.New("all symbols failed")
	}
	return result, nil
}

type symbolResult struct {
	alerts    []models.Alert
	anomalies int
	patterns  int
}

// processSymbol runs one symbol through the whole pipeline. A nil
// result with nil error means the symbol was skipped (no data or
// malformed snapshot).
func (m *Monitor) processSymbol(ctx context.Context, symbol string) (*symbolResult, error) {
	snap, err := m.data.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		logger.Debug("No data for %s, skipping", symbol)
		return nil, nil
	}

	sr := &symbolResult{}

	alert, err := m.engine.Evaluate(*snap)
	if err != nil {
		if errors.Is(err, models.ErrMalformedSnapshot) {
			logger.Warn("Skipping %s: %v", symbol, err)
			return nil, nil
		}
		return nil, err
	}
	if alert != nil {
		sr.alerts = append(sr.alerts, *alert)
	}
	sr.alerts = append(sr.alerts, m.engine.EvaluateCustomRules(*snap)...)

	bars, err := m.data.History(ctx, symbol, m.config.HistoryDays)
	if err != nil {
		logger.Warn("History fetch for %s failed: %v", symbol, err)
	}
	var found []models.Anomaly
	if len(bars) > 0 {
		found = m.detector.Scan(symbol, bars)
		if patterns, err := m.detector.DetectPatterns(symbol, bars); err == nil && len(patterns) > 0 {
			sr.patterns = len(patterns)
			logger.Info("Patterns on %s: %v", symbol, patterns)
		}
	}
	found = append(found, m.newsEvents(symbol)...)
	sr.anomalies = len(found)

	book := m.fetchBook(ctx, symbol, snap, bars)
	var metrics *models.BookMetrics
	if book != nil {
		bm, err := m.analyzer.Analyze(book)
		if err != nil {
			logger.Warn("Order book for %s invalid: %v", symbol, err)
		} else {
			metrics = &bm
		}
	}

	squeeze := m.detector.AnalyzeShortSqueeze(*snap, metrics)
	if squeeze.Probability >= m.config.SqueezeMinScore {
		logger.Info("Squeeze setup on %s: score %d, factors %v",
			symbol, squeeze.Probability, squeeze.BullishIndicators)
	}

	m.record(snap, sr.alerts, found)
	m.notify(sr.alerts)
	return sr, nil
}

// newsEvents ranks the current headline batch for the symbol and
// converts items clearing both the impact and relevance floors into
// news anomalies, so they flow through the same persistence path as
// the statistical detections.
func (m *Monitor) newsEvents(symbol string) []models.Anomaly {
	batch := m.newsBatch()
	if len(batch) == 0 {
		return nil
	}
	var events []models.Anomaly
	for _, item := range news.RankForSymbol(batch, symbol, time.Now()) {
		if item.ImpactScore < m.config.NewsImpactMin || item.Relevance < m.config.NewsRelevanceMin {
			continue
		}
		events = append(events, models.Anomaly{
			Timestamp: item.Timestamp,
			Kind:      models.AnomalyNews,
			Symbol:    symbol,
			Metrics: map[string]float64{
				"impact_score": item.ImpactScore,
				"relevance":    item.Relevance,
				"sentiment":    float64(item.Sentiment),
			},
			Detail: item.Title,
		})
		logger.Info("News event on %s (impact %.1f): %s", symbol, item.ImpactScore, item.Title)
	}
	return events
}

// fetchBook prefers the real feed and falls back to a synthesized
// book derived from recent volatility.
func (m *Monitor) fetchBook(ctx context.Context, symbol string, snap *models.Snapshot, bars []models.Bar) *models.OrderBookSnapshot {
	if m.books != nil {
		book, err := m.books.Book(ctx, symbol)
		if err != nil {
			logger.Warn("Book fetch for %s failed: %v", symbol, err)
		} else if book != nil {
			return book
		}
	}
	if !m.config.SynthesizeBooks || m.synth == nil {
		return nil
	}
	return m.synth.Synthesize(symbol, snap.Price, recentVolatility(bars), snap.Volume, snap.Timestamp)
}

// recentVolatility is the mean absolute close-to-close change over
// the last few bars, as a fraction.
func recentVolatility(bars []models.Bar) float64 {
	const lookback = 5
	if len(bars) < 2 {
		return 0
	}
	start := len(bars) - lookback
	if start < 1 {
		start = 1
	}
	var total float64
	n := 0
	for i := start; i < len(bars); i++ {
		if bars[i-1].Close == 0 {
			continue
		}
		total += math.Abs(bars[i].Close-bars[i-1].Close) / bars[i-1].Close
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// record persists the cycle's output. Storage is fire-and-forget:
// failures are logged and never fail the evaluation that produced the
// records.
func (m *Monitor) record(snap *models.Snapshot, alerts []models.Alert, anomalies []models.Anomaly) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.SaveSnapshot(snap); err != nil {
		logger.Warn("Failed to persist snapshot for %s: %v", snap.Symbol, err)
	}
	for i := range alerts {
		if err := m.recorder.SaveAlert(&alerts[i]); err != nil {
			logger.Warn("Failed to persist alert %s: %v", alerts[i].ID, err)
		}
	}
	for i := range anomalies {
		if err := m.recorder.SaveAnomaly(&anomalies[i]); err != nil {
			logger.Warn("Failed to persist anomaly for %s: %v", anomalies[i].Symbol, err)
		}
	}
}

func (m *Monitor) notify(alerts []models.Alert) {
	if m.notifier == nil {
		return
	}
	for _, alert := range alerts {
		if err := m.notifier.SendAlert(alert); err != nil {
			logger.Warn("Failed to deliver alert %s: %v", alert.ID, err)
		}
	}
}

// Purge trims the engine's cooldown and active tables. Call it
// periodically from the scheduling loop.
func (m *Monitor) Purge(retention time.Duration) {
	m.engine.Purge(retention)
}
