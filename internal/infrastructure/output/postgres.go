package output

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/promolens/backend/internal/domain"
)

const promotionsTable = "promotions"

const createPromotionsTable = `
	CREATE TABLE IF NOT EXISTS promotions (
		id                   UUID PRIMARY KEY,
		run_id               UUID NOT NULL,
		flyer_name           TEXT NOT NULL,
		product_name         TEXT NOT NULL,
		unit_promo_price     DOUBLE PRECISION,
		uom                  TEXT,
		least_unit_for_promo DOUBLE PRECISION,
		save_per_unit        DOUBLE PRECISION,
		discount             DOUBLE PRECISION,
		organic              BOOLEAN,
		confidence           INTEGER NOT NULL,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// promotionColumns are the columns filled by the bulk copy
var promotionColumns = []string{
	"id", "run_id", "flyer_name", "product_name", "unit_promo_price", "uom",
	"least_unit_for_promo", "save_per_unit", "discount", "organic", "confidence",
}

// PostgresSink stores promotions in PostgreSQL, one run id per sink
type PostgresSink struct {
	db    *sql.DB
	runID uuid.UUID
}

// NewPostgresSink connects to databaseURL and makes sure the promotions
// table exists.
func NewPostgresSink(ctx context.Context, databaseURL string) (*PostgresSink, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, createPromotionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create promotions table: %w", err)
	}

	return NewPostgresSinkFromDB(db), nil
}

// NewPostgresSinkFromDB wraps an open database handle
func NewPostgresSinkFromDB(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db, runID: uuid.New()}
}

// RunID identifies the rows written through this sink
func (s *PostgresSink) RunID() uuid.UUID {
	return s.runID
}

// Write bulk-copies the promotions in a single transaction
func (s *PostgresSink) Write(ctx context.Context, promotions []domain.Promotion) error {
	if len(promotions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(promotionsTable, promotionColumns...))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for _, p := range promotions {
		if _, err := stmt.ExecContext(ctx, promotionValues(s.runID, p)...); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy promotion %s/%s: %w", p.FlyerName, p.ProductName, err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit promotions: %w", err)
	}
	return nil
}

// Close closes the database handle
func (s *PostgresSink) Close() error {
	return s.db.Close()
}

// promotionValues lists the column values of one row; absent fields are NULL
func promotionValues(runID uuid.UUID, p domain.Promotion) []any {
	return []any{
		uuid.New().String(),
		runID.String(),
		p.FlyerName,
		p.ProductName,
		nullFloat(p.UnitPromoPrice),
		nullString(p.UnitOfMeasurement),
		nullFloat(p.LeastUnitCountForPromo),
		nullFloat(p.PriceDiscount),
		nullFloat(p.PercentDiscount),
		nullBool(p.IsOrganic),
		p.Confidence,
	}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}
