// Package store persists analysed interval sessions in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	intervals "github.com/lucasjlepore/fit-intervals"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// Store wraps a SQLite database holding sessions, repetitions and
// recoveries.
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// SessionRow is the summary of one stored session.
type SessionRow struct {
	ID             string    `json:"session_id"`
	SourceName     string    `json:"source_name"`
	StartTime      time.Time `json:"start_time"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	MovingSeconds  float64   `json:"moving_seconds"`
	DistanceMeters float64   `json:"distance_meters"`
	RestingPolicy  string    `json:"resting_policy"`
	CycleCount     int       `json:"cycle_count"`
	Truncated      bool      `json:"truncated"`
	CanonicalLabel string    `json:"canonical_label"`
}

// Open opens (or creates) the database at path and applies all pending
// migrations. A nil logger discards migration output.
func Open(path string, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer; serialise through one connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	s := &Store{db: db, log: logger}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{log: s.log}

	// m is not closed: closing it would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	version, dirty, err := m.Version()
	if err == nil {
		s.log.Debugw("schema ready", "version", version, "dirty", dirty)
	}
	return nil
}

// SaveSession stores a report and its per-cycle tables in one transaction
// and returns the new session id.
func (s *Store) SaveSession(ctx context.Context, sourceName string, r *intervals.Report) (string, error) {
	if r == nil {
		return "", fmt.Errorf("report is required")
	}
	reportJSON, err := json.Marshal(r.Rounded())
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	id := uuid.NewString()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var start sql.NullString
	if !r.StartTime.IsZero() {
		start = sql.NullString{String: r.StartTime.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (
			session_id, source_name, start_time, elapsed_seconds, moving_seconds,
			distance_meters, resting_policy, cycle_count, truncated, canonical_label, report_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, sourceName, start, r.ElapsedSeconds, r.MovingSeconds,
		r.DistanceMeters, string(r.RestingPolicy), len(r.Cycles), r.Truncated,
		r.SessionStructure.CanonicalLabel, string(reportJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}

	repStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO repetitions (
			session_id, cycle_number, half, duration_s, distance_m, avg_speed_kmh, max_speed_kmh,
			max_heart_rate_bpm, avg_cadence, avg_vertical_ratio, avg_stance_time_percent,
			pacing_drift_percent, pacing_style
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare repetitions: %w", err)
	}
	defer repStmt.Close()
	for _, rep := range r.Repetitions {
		drift := sql.NullFloat64{}
		if rep.PacingDriftPercent != nil {
			drift = sql.NullFloat64{Float64: *rep.PacingDriftPercent, Valid: true}
		}
		if _, err := repStmt.ExecContext(ctx,
			id, rep.CycleNumber, rep.Half, rep.DurationS, rep.DistanceM,
			nullable(rep.AvgSpeedKmh), nullable(rep.MaxSpeedKmh), rep.MaxHeartRate,
			nullable(rep.AvgCadence), nullable(rep.AvgVerticalRatio), nullable(rep.AvgStanceTimePercent),
			drift, string(rep.PacingStyle),
		); err != nil {
			return "", fmt.Errorf("insert repetition %d: %w", rep.CycleNumber, err)
		}
	}

	recStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recoveries (
			session_id, cycle_number, half, heart_rate_at_recovery_start, heart_rate_at_recovery_end,
			heart_rate_drop, recovery_duration_s, recovery_rate_bpm_per_s
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare recoveries: %w", err)
	}
	defer recStmt.Close()
	for _, rec := range r.Recoveries {
		if _, err := recStmt.ExecContext(ctx,
			id, rec.CycleNumber, rec.Half, rec.HeartRateStart, rec.HeartRateEnd,
			rec.HeartRateDrop, rec.DurationS, rec.RecoveryRateBPMPS,
		); err != nil {
			return "", fmt.Errorf("insert recovery %d: %w", rec.CycleNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit session: %w", err)
	}
	s.log.Infow("session stored", "session_id", id, "source", sourceName,
		"repetitions", len(r.Repetitions), "recoveries", len(r.Recoveries))
	return id, nil
}

// ListSessions returns stored sessions, most recent start first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, source_name, start_time, elapsed_seconds, moving_seconds,
		       distance_meters, resting_policy, cycle_count, truncated, canonical_label
		FROM sessions
		ORDER BY start_time DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var (
			row   SessionRow
			start sql.NullString
			label sql.NullString
		)
		if err := rows.Scan(&row.ID, &row.SourceName, &start, &row.ElapsedSeconds, &row.MovingSeconds,
			&row.DistanceMeters, &row.RestingPolicy, &row.CycleCount, &row.Truncated, &label); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if start.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, start.String); err == nil {
				row.StartTime = ts
			}
		}
		row.CanonicalLabel = label.String
		out = append(out, row)
	}
	return out, rows.Err()
}

// Report returns the stored JSON report of a session.
func (s *Store) Report(ctx context.Context, id string) (json.RawMessage, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM sessions WHERE session_id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}
	return json.RawMessage(raw), nil
}

// Repetitions returns the repetition rows of a session in cycle order.
func (s *Store) Repetitions(ctx context.Context, id string) ([]intervals.RepetitionMetrics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cycle_number, half, duration_s, distance_m, avg_speed_kmh, max_speed_kmh,
		       max_heart_rate_bpm, avg_cadence, avg_vertical_ratio, avg_stance_time_percent,
		       pacing_drift_percent, pacing_style
		FROM repetitions
		WHERE session_id = ?
		ORDER BY cycle_number`, id)
	if err != nil {
		return nil, fmt.Errorf("query repetitions: %w", err)
	}
	defer rows.Close()

	var out []intervals.RepetitionMetrics
	for rows.Next() {
		var (
			rep                             intervals.RepetitionMetrics
			avgSpeed, maxSpeed, cad, vr, st sql.NullFloat64
			drift                           sql.NullFloat64
			style                           sql.NullString
		)
		if err := rows.Scan(&rep.CycleNumber, &rep.Half, &rep.DurationS, &rep.DistanceM, &avgSpeed, &maxSpeed,
			&rep.MaxHeartRate, &cad, &vr, &st, &drift, &style); err != nil {
			return nil, fmt.Errorf("scan repetition: %w", err)
		}
		rep.AvgSpeedKmh = orNaN(avgSpeed)
		rep.MaxSpeedKmh = orNaN(maxSpeed)
		rep.AvgCadence = orNaN(cad)
		rep.AvgVerticalRatio = orNaN(vr)
		rep.AvgStanceTimePercent = orNaN(st)
		if drift.Valid {
			v := drift.Float64
			rep.PacingDriftPercent = &v
		}
		rep.PacingStyle = intervals.PacingStyle(style.String)
		out = append(out, rep)
	}
	return out, rows.Err()
}

// Recoveries returns the recovery rows of a session in cycle order.
func (s *Store) Recoveries(ctx context.Context, id string) ([]intervals.RecoveryMetrics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cycle_number, half, heart_rate_at_recovery_start, heart_rate_at_recovery_end,
		       heart_rate_drop, recovery_duration_s, recovery_rate_bpm_per_s
		FROM recoveries
		WHERE session_id = ?
		ORDER BY cycle_number`, id)
	if err != nil {
		return nil, fmt.Errorf("query recoveries: %w", err)
	}
	defer rows.Close()

	var out []intervals.RecoveryMetrics
	for rows.Next() {
		var rec intervals.RecoveryMetrics
		if err := rows.Scan(&rec.CycleNumber, &rec.Half, &rec.HeartRateStart, &rec.HeartRateEnd,
			&rec.HeartRateDrop, &rec.DurationS, &rec.RecoveryRateBPMPS); err != nil {
			return nil, fmt.Errorf("scan recovery: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its rows.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// migrateLogger routes golang-migrate output through zap.
type migrateLogger struct {
	log *zap.SugaredLogger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debugf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
