package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"airbnb-cleaning/models"
	"airbnb-cleaning/utils"
)

const insertBatchSize = 50

// listingColumns is the Postgres column list, in OutputColumns order.
var listingColumns = strings.Join(models.OutputColumns, ", ")

// PostgresWriter mirrors cleaned listings into a PostgreSQL table.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, waits for it to accept
// connections, runs the schema migration and returns a ready-to-use writer.
func NewPostgresWriter(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, Logger: logger}
	if err := retry.Do(ctx, "postgres ping", func(ctx context.Context) error {
		return db.PingContext(ctx)
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id                             TEXT PRIMARY KEY,
			name                           TEXT,
			host_id                        BIGINT NOT NULL,
			host_name                      TEXT NOT NULL DEFAULT '',
			neighbourhood_group            TEXT NOT NULL DEFAULT '',
			neighbourhood                  TEXT NOT NULL DEFAULT '',
			latitude                       DOUBLE PRECISION NOT NULL,
			longitude                      DOUBLE PRECISION NOT NULL,
			room_type                      TEXT NOT NULL DEFAULT '',
			price                          NUMERIC(10,2) NOT NULL,
			minimum_nights                 INTEGER NOT NULL,
			number_of_reviews              INTEGER NOT NULL,
			last_review                    DATE,
			reviews_per_month              DOUBLE PRECISION,
			calculated_host_listings_count INTEGER NOT NULL,
			availability_365               DOUBLE PRECISION NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_listings_price     ON listings(price);
		CREATE INDEX IF NOT EXISTS idx_listings_group     ON listings(neighbourhood_group);
		CREATE INDEX IF NOT EXISTS idx_listings_room_type ON listings(room_type);
	`)
	return err
}

// Write replaces the table contents with the rows of t in a single transaction.
func (pw *PostgresWriter) Write(ctx context.Context, t *models.Table) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM listings"); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}

	for i := 0; i < len(t.Rows); i += insertBatchSize {
		end := i + insertBatchSize
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		if err := insertBatch(ctx, tx, t.Rows[i:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func insertBatch(ctx context.Context, tx *sql.Tx, batch []*models.Listing) error {
	ncols := len(models.OutputColumns)
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*ncols)

	for idx, l := range batch {
		placeholders := make([]string, ncols)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", idx*ncols+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs, listingArgs(l)...)
	}

	query := fmt.Sprintf(`
		INSERT INTO listings (%s)
		VALUES %s
		ON CONFLICT (id) DO NOTHING
	`, listingColumns, strings.Join(valueStrings, ","))

	if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert batch: %w", err)
	}
	return nil
}

// listingArgs returns the SQL arguments for l in OutputColumns order.
func listingArgs(l *models.Listing) []any {
	var name, lastReview, reviewsPerMonth, availability any
	if l.Name != nil {
		name = *l.Name
	}
	if l.LastReview != nil {
		lastReview = *l.LastReview
	}
	if l.ReviewsPerMonth != nil {
		reviewsPerMonth = *l.ReviewsPerMonth
	}
	if l.Availability365 != nil {
		availability = *l.Availability365
	}
	return []any{
		l.ID, name, l.HostID, l.HostName, l.NeighbourhoodGroup, l.Neighbourhood,
		l.Latitude, l.Longitude, l.RoomType, l.Price, l.MinimumNights, l.NumberOfReviews,
		lastReview, reviewsPerMonth, l.CalculatedHostListingsCount, availability,
	}
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
