package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"airbnb-cleaning/models"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// CSVWriter writes listings to a CSV file using the fixed output column set.
type CSVWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("csv: create output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(models.OutputColumns); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}

	return &CSVWriter{path: path, file: f, writer: w}, nil
}

// Path returns the file being written.
func (c *CSVWriter) Path() string {
	return c.path
}

// Write appends the rows of t. Only the output columns are written, so
// derived or unknown fields never reach the file.
func (c *CSVWriter) Write(_ context.Context, t *models.Table) error {
	for _, l := range t.Rows {
		if err := c.writer.Write(listingRecord(l)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		_ = c.file.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	return c.file.Close()
}

// WriteListingsFile writes t to path, header included.
func WriteListingsFile(path string, t *models.Table) error {
	w, err := NewCSVWriter(path)
	if err != nil {
		return err
	}
	if err := w.Write(context.Background(), t); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// WriteListings writes t to w, header included.
func WriteListings(w io.Writer, t *models.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.OutputColumns); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, l := range t.Rows {
		if err := cw.Write(listingRecord(l)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// listingRecord renders l in OutputColumns order.
func listingRecord(l *models.Listing) []string {
	return []string{
		l.ID,
		formatNullableString(l.Name),
		strconv.FormatInt(l.HostID, 10),
		l.HostName,
		l.NeighbourhoodGroup,
		l.Neighbourhood,
		formatFloat(l.Latitude),
		formatFloat(l.Longitude),
		l.RoomType,
		formatFloat(l.Price),
		strconv.FormatInt(l.MinimumNights, 10),
		strconv.FormatInt(l.NumberOfReviews, 10),
		formatLastReview(l),
		formatNullableFloat(l.ReviewsPerMonth),
		strconv.FormatInt(l.CalculatedHostListingsCount, 10),
		formatNullableFloat(l.Availability365),
	}
}

func formatNullableString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// formatFloat writes NaN as an empty cell so it reads back as null.
func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatNullableFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func formatLastReview(l *models.Listing) string {
	if l.LastReview == nil {
		return l.LastReviewRaw
	}
	return FormatDate(*l.LastReview)
}

// FormatDate renders a date without a time part when it falls on midnight.
func FormatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(dateLayout)
	}
	return t.Format(dateTimeLayout)
}
