// Package storage provides SQLite-backed persistence for alerts,
// anomalies, and snapshots. Writes are fire-and-forget from the
// evaluation path; a failed insert never blocks alerting.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"capwatch/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/capwatch/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "capwatch", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id             TEXT PRIMARY KEY,
			symbol         TEXT NOT NULL,
			type           TEXT NOT NULL,
			message        TEXT NOT NULL,
			severity       INTEGER NOT NULL,
			trigger_value  REAL NOT NULL,
			price          REAL NOT NULL,
			volume         REAL,
			change_percent REAL,
			volume_ratio   REAL,
			market_cap     REAL,
			created_at     INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS anomalies (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT NOT NULL,
			kind       TEXT NOT NULL,
			detail     TEXT,
			severity   INTEGER NOT NULL,
			metrics    TEXT NOT NULL DEFAULT '{}',
			bar_time   INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol         TEXT NOT NULL,
			price          REAL NOT NULL,
			change_percent REAL NOT NULL,
			volume         REAL NOT NULL,
			volume_ratio   REAL NOT NULL,
			market_cap     REAL,
			created_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_symbol ON alerts(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_anomalies_symbol ON anomalies(symbol, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_symbol ON snapshots(symbol, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveAlert persists a finalized alert record. The id column is the
// primary key and the engine stamps a UUID on every emit path,
// built-in and custom alike. A reused or empty ID makes the insert
// fail rather than silently overwrite the earlier row.
func (s *Storage) SaveAlert(alert *models.Alert) error {
	_, err := s.db.Exec(`
		INSERT INTO alerts
			(id, symbol, type, message, severity, trigger_value,
			 price, volume, change_percent, volume_ratio, market_cap, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		alert.ID, alert.Symbol, string(alert.Type), alert.Message, alert.Severity,
		alert.TriggerValue, alert.Price, alert.Volume, alert.ChangePercent,
		alert.VolumeRatio, alert.MarketCap, alert.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// SaveAnomaly persists a detected anomaly; its metrics map is stored
// as JSON.
func (s *Storage) SaveAnomaly(anomaly *models.Anomaly) error {
	metricsJSON, err := json.Marshal(anomaly.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO anomalies (symbol, kind, detail, severity, metrics, bar_time, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		anomaly.Symbol, string(anomaly.Kind), anomaly.Detail, anomaly.Severity,
		string(metricsJSON), anomaly.Timestamp.UnixNano(), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert anomaly: %w", err)
	}
	return nil
}

// SaveSnapshot persists a per-cycle snapshot row for the analytics
// queries.
func (s *Storage) SaveSnapshot(snap *models.Snapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO snapshots (symbol, price, change_percent, volume, volume_ratio, market_cap, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		snap.Symbol, snap.Price, snap.ChangePercent, snap.Volume,
		snap.VolumeRatio, snap.MarketCap, snap.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

const alertCols = `id, symbol, type, message, severity, trigger_value,
	price, volume, change_percent, volume_ratio, market_cap, created_at`

// RecentAlerts returns alerts fired within the window, newest first.
func (s *Storage) RecentAlerts(window time.Duration) ([]models.Alert, error) {
	cutoff := time.Now().Add(-window).UnixNano()
	rows, err := s.db.Query(`
		SELECT `+alertCols+` FROM alerts
		WHERE created_at >= ?
		ORDER BY created_at DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// TopMovers returns the latest snapshot per symbol within the window,
// ordered by absolute change percent descending.
func (s *Storage) TopMovers(window time.Duration, limit int) ([]models.SymbolRow, error) {
	return s.leaderboard(`ORDER BY ABS(change_percent) DESC`, window, limit)
}

// VolumeLeaders returns the latest snapshot per symbol within the
// window, ordered by volume ratio descending.
func (s *Storage) VolumeLeaders(window time.Duration, limit int) ([]models.SymbolRow, error) {
	return s.leaderboard(`ORDER BY volume_ratio DESC`, window, limit)
}

func (s *Storage) leaderboard(orderBy string, window time.Duration, limit int) ([]models.SymbolRow, error) {
	cutoff := time.Now().Add(-window).UnixNano()
	rows, err := s.db.Query(`
		SELECT symbol, price, change_percent, volume, volume_ratio FROM snapshots
		WHERE id IN (
			SELECT MAX(id) FROM snapshots WHERE created_at >= ? GROUP BY symbol
		)
		`+orderBy+` LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	out := []models.SymbolRow{}
	for rows.Next() {
		var r models.SymbolRow
		if err := rows.Scan(&r.Symbol, &r.Price, &r.ChangePercent, &r.Volume, &r.VolumeRatio); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AnomalyCount returns how many anomalies of the kind were recorded
// for the symbol within the window.
func (s *Storage) AnomalyCount(symbol string, kind models.AnomalyKind, window time.Duration) (int, error) {
	cutoff := time.Now().Add(-window).UnixNano()
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM anomalies
		WHERE symbol = ? AND kind = ? AND created_at >= ?`,
		symbol, string(kind), cutoff).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count anomalies: %w", err)
	}
	return n, nil
}

// Cleanup deletes rows older than the retention horizon from all
// tables and returns the total rows removed.
func (s *Storage) Cleanup(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UnixNano()
	var total int64
	for _, table := range []string{"alerts", "anomalies", "snapshots"} {
		res, err := s.db.Exec(`DELETE FROM `+table+` WHERE created_at < ?`, cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to clean %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func scanAlert(scan func(...any) error) (models.Alert, error) {
	var a models.Alert
	var alertType string
	var createdAtNano int64
	err := scan(
		&a.ID, &a.Symbol, &alertType, &a.Message, &a.Severity, &a.TriggerValue,
		&a.Price, &a.Volume, &a.ChangePercent, &a.VolumeRatio, &a.MarketCap,
		&createdAtNano,
	)
	if err != nil {
		return a, err
	}
	a.Type = models.AlertType(alertType)
	a.Timestamp = time.Unix(0, createdAtNano)
	return a, nil
}
