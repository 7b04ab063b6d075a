package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"airbnb-cleaning/models"
)

var tableNameRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DuckDBWriter mirrors cleaned listings into a DuckDB table. The table is
// recreated from a CSV export on every write.
type DuckDBWriter struct {
	db     *sql.DB
	table  string
	tmpDir string
}

// NewDuckDBWriter opens the DuckDB database at path (":memory:" or empty for
// an in-memory database) and targets the given table.
func NewDuckDBWriter(ctx context.Context, path, table string) (*DuckDBWriter, error) {
	if !tableNameRegexp.MatchString(table) {
		return nil, fmt.Errorf("duckdb: invalid table name %q", table)
	}
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("duckdb: ping: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "duckdb-sink-*")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("duckdb: temp dir: %w", err)
	}

	return &DuckDBWriter{db: db, table: table, tmpDir: tmpDir}, nil
}

// Write replaces the target table with the rows of t.
func (w *DuckDBWriter) Write(ctx context.Context, t *models.Table) error {
	csvPath := filepath.Join(w.tmpDir, w.table+".csv")
	if err := WriteListingsFile(csvPath, t); err != nil {
		return fmt.Errorf("duckdb: export: %w", err)
	}

	absPath, err := filepath.Abs(csvPath)
	if err != nil {
		return fmt.Errorf("duckdb: abs path: %w", err)
	}

	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto('%s', header=true)",
		w.table,
		strings.ReplaceAll(absPath, "'", "''"),
	)
	if _, err := w.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("duckdb: load csv: %w", err)
	}
	return nil
}

// Count returns the number of rows currently in the target table.
func (w *DuckDBWriter) Count(ctx context.Context) (int, error) {
	var n int
	if err := w.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+w.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("duckdb: count: %w", err)
	}
	return n, nil
}

func (w *DuckDBWriter) Close() error {
	_ = os.RemoveAll(w.tmpDir)
	return w.db.Close()
}
