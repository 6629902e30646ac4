// Package store is the sqlite archive of finalized deliveries and their
// decisions. Schema changes go through versioned migrations embedded in
// the binary.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/gully-data/crease.review/internal/events"
	"github.com/gully-data/crease.review/internal/monitoring"
	"github.com/gully-data/crease.review/internal/rules"
	"github.com/gully-data/crease.review/internal/track"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the sqlite handle.
type Store struct {
	*sql.DB
}

// Open opens (or creates) the archive at path and migrates it to the
// latest schema version.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	s := &Store{db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrateUp applies all pending migrations from the embedded source.
func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Not closing m: that would close the underlying DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// DeliverySummary is one archived delivery's scalar row.
type DeliverySummary struct {
	ID          string
	SessionID   string
	SpeedKmh    float64
	DeviationPx float64
	Complete    bool
	CreatedAt   time.Time
}

// DecisionRow is one archived adjudication.
type DecisionRow struct {
	DeliveryID string
	Kind       string
	Verdict    string
	Reason     string
	Confidence float64
	CreatedAt  time.Time
}

// SaveDelivery archives a finalized delivery with its impacts. The full
// trajectory is stored as JSON alongside the scalar metrics so replay can
// redraw the path.
func (s *Store) SaveDelivery(ctx context.Context, sessionID string, t *track.Trajectory, impacts []events.Impact) error {
	trajJSON, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode trajectory: %w", err)
	}

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var bounceX, bounceY sql.NullFloat64
	if b := t.Bounce(); b != nil {
		bounceX = sql.NullFloat64{Float64: b.Pixel.X, Valid: true}
		bounceY = sql.NullFloat64{Float64: b.Pixel.Y, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO deliveries (id, session_id, started_frame, ended_frame, speed_kmh, deviation_px, complete, bounce_x, bounce_y, trajectory)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.DeliveryID, sessionID, startFrame(t), endFrame(t),
		t.SpeedKmh, t.DeviationPx, t.Complete, bounceX, bounceY, string(trajJSON),
	)
	if err != nil {
		return fmt.Errorf("insert delivery %s: %w", t.DeliveryID, err)
	}

	for _, imp := range impacts {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO impacts (delivery_id, frame, x, y, velocity_change, surface, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.DeliveryID, imp.Frame, imp.Pixel.X, imp.Pixel.Y, imp.VelocityChange, string(imp.Surface), imp.Confidence,
		)
		if err != nil {
			return fmt.Errorf("insert impact for %s: %w", t.DeliveryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	monitoring.Logf("store: archived delivery %s (%d samples, %d impacts)", t.DeliveryID, t.Len(), len(impacts))
	return nil
}

// SaveDecision archives one adjudication against a delivery.
func (s *Store) SaveDecision(ctx context.Context, deliveryID string, d rules.Decision) error {
	geoJSON, err := json.Marshal(d.Geometry)
	if err != nil {
		return fmt.Errorf("encode geometry: %w", err)
	}
	_, err = s.ExecContext(ctx, `
		INSERT INTO decisions (delivery_id, kind, verdict, reason, confidence, geometry)
		VALUES (?, ?, ?, ?, ?, ?)`,
		deliveryID, string(d.Kind), string(d.Verdict), d.Reason, d.Confidence, string(geoJSON),
	)
	if err != nil {
		return fmt.Errorf("insert decision for %s: %w", deliveryID, err)
	}
	return nil
}

// ListDeliveries returns the most recent deliveries, newest first.
func (s *Store) ListDeliveries(ctx context.Context, limit int) ([]DeliverySummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.QueryContext(ctx, `
		SELECT id, session_id, speed_kmh, deviation_px, complete, created_at
		FROM deliveries ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeliverySummary
	for rows.Next() {
		var d DeliverySummary
		if err := rows.Scan(&d.ID, &d.SessionID, &d.SpeedKmh, &d.DeviationPx, &d.Complete, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetTrajectory loads the archived trajectory for a delivery.
func (s *Store) GetTrajectory(ctx context.Context, deliveryID string) (*track.Trajectory, error) {
	var raw string
	err := s.QueryRowContext(ctx,
		`SELECT trajectory FROM deliveries WHERE id = ?`, deliveryID).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("load trajectory %s: %w", deliveryID, err)
	}
	var t track.Trajectory
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("decode trajectory %s: %w", deliveryID, err)
	}
	return &t, nil
}

// ListImpacts returns the archived impacts of a delivery in frame order.
func (s *Store) ListImpacts(ctx context.Context, deliveryID string) ([]events.Impact, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT frame, x, y, velocity_change, surface, confidence
		FROM impacts WHERE delivery_id = ? ORDER BY frame`, deliveryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Impact
	for rows.Next() {
		var imp events.Impact
		var surface string
		if err := rows.Scan(&imp.Frame, &imp.Pixel.X, &imp.Pixel.Y, &imp.VelocityChange, &surface, &imp.Confidence); err != nil {
			return nil, err
		}
		imp.Surface = events.Surface(surface)
		out = append(out, imp)
	}
	return out, rows.Err()
}

// ListDecisions returns the archived decisions of a delivery.
func (s *Store) ListDecisions(ctx context.Context, deliveryID string) ([]DecisionRow, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT delivery_id, kind, verdict, reason, confidence, created_at
		FROM decisions WHERE delivery_id = ? ORDER BY rowid`, deliveryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionRow
	for rows.Next() {
		var d DecisionRow
		if err := rows.Scan(&d.DeliveryID, &d.Kind, &d.Verdict, &d.Reason, &d.Confidence, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// AllDecisions returns every archived decision, oldest first. Used by the
// session report tool.
func (s *Store) AllDecisions(ctx context.Context) ([]DecisionRow, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT delivery_id, kind, verdict, reason, confidence, created_at
		FROM decisions ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionRow
	for rows.Next() {
		var d DecisionRow
		if err := rows.Scan(&d.DeliveryID, &d.Kind, &d.Verdict, &d.Reason, &d.Confidence, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func startFrame(t *track.Trajectory) int64 {
	if p := t.Start(); p != nil {
		return p.Frame
	}
	return 0
}

func endFrame(t *track.Trajectory) int64 {
	if p := t.End(); p != nil {
		return p.Frame
	}
	return 0
}
