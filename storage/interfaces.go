package storage

import (
	"context"

	"airbnb-cleaning/models"
)

// ListingWriter is the interface any storage backend must satisfy.
type ListingWriter interface {
	Write(ctx context.Context, t *models.Table) error
	Close() error
}

var (
	_ ListingWriter = (*CSVWriter)(nil)
	_ ListingWriter = (*PostgresWriter)(nil)
	_ ListingWriter = (*DuckDBWriter)(nil)
)
