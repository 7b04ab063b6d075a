package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"airbnb-cleaning/models"
)

var (
	// ErrSchema is returned when the input lacks required columns.
	ErrSchema = errors.New("schema error")
	// ErrMalformedRow is returned when a cell cannot be parsed as its column type.
	ErrMalformedRow = errors.New("malformed row")
)

// SchemaError lists the required columns missing from a CSV header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("csv: missing required columns: %s", strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// ReadListingsFile reads a listings CSV from disk.
func ReadListingsFile(path string) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	return ReadListings(f)
}

// ReadListings parses a comma-separated listings table with a header row.
// Columns outside the listings schema are ignored; an empty cell is null.
func ReadListings(r io.Reader) (*models.Table, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &SchemaError{Missing: models.OutputColumns}
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	cols, err := columnPositions(header)
	if err != nil {
		return nil, err
	}

	var rows []*models.Listing
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv: read line %d: %w", line, err)
		}

		l, err := parseListing(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
		rows = append(rows, l)
	}

	return models.NewTable(rows), nil
}

// columnPositions maps each required column to its index in the header.
func columnPositions(header []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}

	var missing []string
	for _, c := range models.OutputColumns {
		if _, ok := pos[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	return pos, nil
}

// naValues are the cell texts read as missing: the NA spellings common in
// exported listing data.
var naValues = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true,
	"-1.#QNAN": true, "-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true,
	"<NA>": true, "N/A": true, "NA": true, "NULL": true, "NaN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

func parseListing(rec []string, cols map[string]int) (*models.Listing, error) {
	p := cellParser{rec: rec, cols: cols}

	l := &models.Listing{
		ID:                          p.str(models.ColID),
		Name:                        p.nullableStr(models.ColName),
		HostID:                      p.int(models.ColHostID),
		HostName:                    p.str(models.ColHostName),
		NeighbourhoodGroup:          p.str(models.ColNeighbourhoodGroup),
		Neighbourhood:               p.str(models.ColNeighbourhood),
		Latitude:                    p.float(models.ColLatitude),
		Longitude:                   p.float(models.ColLongitude),
		RoomType:                    p.str(models.ColRoomType),
		Price:                       p.float(models.ColPrice),
		MinimumNights:               p.int(models.ColMinimumNights),
		NumberOfReviews:             p.int(models.ColNumberOfReviews),
		LastReviewRaw:               p.lastReview(),
		ReviewsPerMonth:             p.nullableFloat(models.ColReviewsPerMonth),
		CalculatedHostListingsCount: p.int(models.ColCalculatedHostListingsCount),
		Availability365:             p.nullableFloat(models.ColAvailability365),
	}
	if p.err != nil {
		return nil, p.err
	}
	return l, nil
}

// cellParser pulls typed values out of a record and keeps the first error.
type cellParser struct {
	rec  []string
	cols map[string]int
	err  error
}

func (p *cellParser) str(col string) string {
	i := p.cols[col]
	if i >= len(p.rec) {
		return ""
	}
	return p.rec[i]
}

func (p *cellParser) nullableStr(col string) *string {
	s := p.str(col)
	if naValues[s] {
		return nil
	}
	return models.StringPtr(s)
}

func (p *cellParser) lastReview() string {
	s := strings.TrimSpace(p.str(models.ColLastReview))
	if naValues[s] {
		return ""
	}
	return s
}

func (p *cellParser) int(col string) int64 {
	s := strings.TrimSpace(p.str(col))
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n
	}
	// Integer columns written by float-typed tools come back as "3.0".
	if f, ferr := strconv.ParseFloat(s, 64); ferr == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return int64(f)
	}
	p.fail(col, s)
	return 0
}

// float returns NaN for a missing cell.
func (p *cellParser) float(col string) float64 {
	s := strings.TrimSpace(p.str(col))
	if naValues[s] {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(col, s)
		return math.NaN()
	}
	return f
}

func (p *cellParser) nullableFloat(col string) *float64 {
	s := strings.TrimSpace(p.str(col))
	if naValues[s] {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(col, s)
		return nil
	}
	if math.IsNaN(f) {
		return nil
	}
	return models.FloatPtr(f)
}

func (p *cellParser) fail(col, value string) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: column %s: cannot parse %q", ErrMalformedRow, col, value)
	}
}
