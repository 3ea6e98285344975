// Package alerts turns snapshots into deduplicated alerts. The engine
// owns all mutable alerting state (cooldown table, active list,
// history, custom rules) behind one mutex so batches of symbols can be
// evaluated from concurrent workers.
package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"capwatch/internal/models"
)

type Config struct {
	PriceThresholdPercent float64
	VolumeRatioThreshold  float64
	ComboChangePercent    float64
	ComboVolumeRatio      float64
	SmallCapCeiling       float64
	SmallCapChangePercent float64
	Cooldown              time.Duration
	MaxActive             int
	MaxHistory            int
}

func DefaultConfig() Config {
	return Config{
		PriceThresholdPercent: 25.0,
		VolumeRatioThreshold:  5.0,
		ComboChangePercent:    15.0,
		ComboVolumeRatio:      3.0,
		SmallCapCeiling:       1e9,
		SmallCapChangePercent: 20.0,
		Cooldown:              5 * time.Minute,
		MaxActive:             100,
		MaxHistory:            1000,
	}
}

// Engine evaluates the built-in rules plus user-defined custom rules.
// Cooldown keys are namespaced by symbol, so evaluations of different
// symbols never suppress each other.
type Engine struct {
	mu        sync.Mutex
	config    Config
	cooldowns map[string]time.Time
	active    []models.Alert
	history   []models.Alert
	custom    []models.CustomRule
	now       func() time.Time
}

func New(config Config) *Engine {
	if config.MaxActive < 1 {
		config.MaxActive = 100
	}
	if config.MaxHistory < config.MaxActive {
		config.MaxHistory = config.MaxActive
	}
	return &Engine{
		config:    config,
		cooldowns: make(map[string]time.Time),
		now:       time.Now,
	}
}

// SetClock replaces the engine's time source. Tests use this to step
// through cooldown windows without sleeping.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

// Evaluate runs the built-in rules against one snapshot and returns at
// most one alert: the highest-severity candidate not currently cooling
// down, ties broken by rule order. A nil alert with nil error means no
// condition triggered, which is not a failure.
func (e *Engine) Evaluate(snap models.Snapshot) (*models.Alert, error) {
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", snap.Symbol, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var winner *candidate
	for _, c := range builtinCandidates(snap, e.config, now) {
		if e.coolingLocked(c.key, now) {
			continue
		}
		if winner == nil || c.alert.Severity > winner.alert.Severity {
			c := c
			winner = &c
		}
	}
	if winner == nil {
		return nil, nil
	}

	e.cooldowns[winner.key] = now
	alert := winner.alert
	alert.ID = uuid.NewString()
	e.recordLocked(alert)
	return &alert, nil
}

// coolingLocked reports whether the key fired within the cooldown
// window. Callers must hold e.mu.
func (e *Engine) coolingLocked(key string, now time.Time) bool {
	fired, ok := e.cooldowns[key]
	if !ok {
		return false
	}
	return now.Sub(fired) < e.config.Cooldown
}

func (e *Engine) recordLocked(alert models.Alert) {
	e.active = append(e.active, alert)
	if len(e.active) > e.config.MaxActive {
		e.active = e.active[len(e.active)-e.config.MaxActive:]
	}
	e.history = append(e.history, alert)
	if len(e.history) > e.config.MaxHistory {
		e.history = e.history[len(e.history)-e.config.MaxHistory:]
	}
}

// ActiveAlerts returns the recent alerts fired within the horizon,
// most-recent-last.
func (e *Engine) ActiveAlerts(horizon time.Duration) []models.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-horizon)
	out := make([]models.Alert, 0, len(e.active))
	for _, a := range e.active {
		if a.Timestamp.After(cutoff) {
			out = append(out, a)
		}
	}
	return out
}

// History returns a copy of the rolling alert history.
func (e *Engine) History() []models.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.Alert, len(e.history))
	copy(out, e.history)
	return out
}

// Purge drops cooldown entries and active alerts older than the
// retention horizon. The scan runs entirely under the lock with no
// I/O, so it stays cheap even with a full table.
func (e *Engine) Purge(retention time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-retention)
	for key, fired := range e.cooldowns {
		if fired.Before(cutoff) {
			delete(e.cooldowns, key)
		}
	}
	kept := e.active[:0]
	for _, a := range e.active {
		if a.Timestamp.After(cutoff) {
			kept = append(kept, a)
		}
	}
	e.active = kept
}

// Summary reports alert counts by type over the current history.
func (e *Engine) Summary() map[models.AlertType]int {
	e.mu.Lock()
	defer e.mu.Unlock()

	counts := make(map[models.AlertType]int)
	for _, a := range e.history {
		counts[a.Type]++
	}
	return counts
}
