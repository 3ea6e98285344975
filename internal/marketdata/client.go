// Package marketdata fetches quotes and bar history from a Yahoo
// chart compatible JSON endpoint. Requests are rate limited and
// retried with exponential backoff; transient server errors retry,
// client errors do not.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"capwatch/internal/models"
	"capwatch/internal/stats"
)

type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond int
	MaxRetryElapsed   time.Duration
	VolumeWindow      int
}

func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://query1.finance.yahoo.com",
		Timeout:           10 * time.Second,
		RequestsPerSecond: 5,
		MaxRetryElapsed:   30 * time.Second,
		VolumeWindow:      20,
	}
}

// Client is safe for concurrent use; the limiter is shared across all
// calls so a batch of symbols stays under the endpoint's rate limit.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	limiter         *rate.Limiter
	maxRetryElapsed time.Duration
	volumeWindow    int
}

func New(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = 5
	}
	if config.MaxRetryElapsed == 0 {
		config.MaxRetryElapsed = 30 * time.Second
	}
	if config.VolumeWindow == 0 {
		config.VolumeWindow = 20
	}
	return &Client{
		baseURL:         config.BaseURL,
		httpClient:      &http.Client{Timeout: config.Timeout},
		limiter:         rate.NewLimiter(rate.Every(time.Second), config.RequestsPerSecond),
		maxRetryElapsed: config.MaxRetryElapsed,
		volumeWindow:    config.VolumeWindow,
	}
}

// chartResponse mirrors the Yahoo chart payload shape.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		ChartPreviousClose float64 `json:"chartPreviousClose"`
		MarketCap          float64 `json:"marketCap"`
		FloatShares        float64 `json:"floatShares"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []float64 `json:"open"`
			High   []float64 `json:"high"`
			Low    []float64 `json:"low"`
			Close  []float64 `json:"close"`
			Volume []float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// History fetches up to the requested number of daily bars, oldest
// first. An empty payload means no data for the symbol and returns
// (nil, nil) so callers skip the symbol instead of failing the batch.
func (c *Client) History(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	result, err := c.fetchChart(ctx, symbol, days)
	if err != nil || result == nil {
		return nil, err
	}
	return barsFromChart(result), nil
}

// Quote fetches recent history and derives the latest snapshot from
// it: change percent against the previous close and volume ratio
// against the trailing bar-volume mean. No data returns (nil, nil).
func (c *Client) Quote(ctx context.Context, symbol string) (*models.Snapshot, error) {
	result, err := c.fetchChart(ctx, symbol, c.volumeWindow+1)
	if err != nil || result == nil {
		return nil, err
	}
	bars := barsFromChart(result)
	if len(bars) == 0 {
		return nil, nil
	}

	last := bars[len(bars)-1]
	previousClose := result.Meta.ChartPreviousClose
	if previousClose == 0 && len(bars) > 1 {
		previousClose = bars[len(bars)-2].Close
	}

	price := result.Meta.RegularMarketPrice
	if price == 0 {
		price = last.Close
	}

	snap := &models.Snapshot{
		Symbol:        symbol,
		Price:         price,
		PreviousClose: previousClose,
		Volume:        last.Volume,
		High:          last.High,
		Low:           last.Low,
		Open:          last.Open,
		Timestamp:     last.Timestamp,
		MarketCap:     result.Meta.MarketCap,
		FloatShares:   result.Meta.FloatShares,
	}
	if previousClose > 0 {
		snap.PriceChange = price - previousClose
		snap.ChangePercent = snap.PriceChange / previousClose * 100
	}

	window := c.volumeWindow
	if window > len(bars) {
		window = len(bars)
	}
	volumes := make([]float64, 0, window)
	for _, b := range bars[len(bars)-window:] {
		volumes = append(volumes, b.Volume)
	}
	snap.AvgVolume = stats.Mean(volumes)
	if snap.AvgVolume > 0 {
		snap.VolumeRatio = snap.Volume / snap.AvgVolume
	} else {
		snap.VolumeRatio = 1
	}
	return snap, nil
}

// fetchChart returns nil with no error when the endpoint has no data
// for the symbol.
func (c *Client) fetchChart(ctx context.Context, symbol string, days int) (*chartResult, error) {
	u, err := url.Parse(fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(symbol)))
	if err != nil {
		return nil, fmt.Errorf("parse chart URL: %w", err)
	}
	q := u.Query()
	q.Set("interval", "1d")
	q.Set("range", rangeParam(days))
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("fetch chart for %s: %w", symbol, err)
	}
	if resp == nil {
		return nil, nil
	}
	defer resp.Body.Close()

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode chart for %s: %w", symbol, err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("chart error for %s: %s", symbol, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, nil
	}
	return &payload.Chart.Result[0], nil
}

// doRequest applies the rate limit and retries transient failures.
// A 404 means the symbol has no data and returns (nil, nil).
func (c *Client) doRequest(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var resp *http.Response
	notFound := false
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err = c.httpClient.Do(req)
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == http.StatusOK:
			return nil
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			resp = nil
			notFound = true
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			resp.Body.Close()
			return backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		default:
			resp.Body.Close()
			return fmt.Errorf("status %d", resp.StatusCode)
		}
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = c.maxRetryElapsed
	if err := backoff.Retry(operation, backoff.WithContext(strategy, ctx)); err != nil {
		return nil, err
	}
	if notFound {
		return nil, nil
	}
	return resp, nil
}

func barsFromChart(result *chartResult) []models.Bar {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	quote := result.Indicators.Quote[0]
	bars := make([]models.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) {
			break
		}
		bar := models.Bar{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      at(quote.Open, i),
			High:      at(quote.High, i),
			Low:       at(quote.Low, i),
			Close:     at(quote.Close, i),
			Volume:    at(quote.Volume, i),
		}
		if bar.Close == 0 {
			continue
		}
		bars = append(bars, bar)
	}
	return bars
}

func at(values []float64, i int) float64 {
	if i >= len(values) {
		return 0
	}
	return values[i]
}

func rangeParam(days int) string {
	switch {
	case days <= 5:
		return "5d"
	case days <= 21:
		return "1mo"
	case days <= 63:
		return "3mo"
	case days <= 126:
		return "6mo"
	default:
		return "1y"
	}
}
