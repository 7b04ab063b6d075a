package services

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"

	"airbnb-cleaning/models"
	"airbnb-cleaning/utils"
)

// ErrInvariantViolation is returned when a cleaning postcondition does not hold.
var ErrInvariantViolation = errors.New("invariant violation")

// BoundingBox is an inclusive latitude/longitude rectangle.
type BoundingBox struct {
	MinLongitude, MaxLongitude float64
	MinLatitude, MaxLatitude   float64
}

// Contains reports whether the point lies inside the box. NaN coordinates never do.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lon >= b.MinLongitude && lon <= b.MaxLongitude &&
		lat >= b.MinLatitude && lat <= b.MaxLatitude
}

// NYCBoundingBox covers the New York City market.
var NYCBoundingBox = BoundingBox{
	MinLongitude: -74.25,
	MaxLongitude: -73.50,
	MinLatitude:  40.5,
	MaxLatitude:  41.2,
}

// lastReviewLayouts are tried in order when parsing last_review.
var lastReviewLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

// Cleaner applies the fixed listing cleaning pipeline.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean runs the pipeline over raw and returns the cleaned table. raw is not modified.
func (c *Cleaner) Clean(raw *models.Table, minPrice, maxPrice float64) (*models.Table, error) {
	out, _, err := c.CleanWithReport(raw, minPrice, maxPrice)
	return out, err
}

// CleanWithReport is Clean plus per-step row counts.
func (c *Cleaner) CleanWithReport(raw *models.Table, minPrice, maxPrice float64) (*models.Table, *models.CleanReport, error) {
	report := &models.CleanReport{InputRows: raw.Len()}
	stage := func(name string, t *models.Table) {
		report.Stages = append(report.Stages, models.StageCount{Stage: name, Rows: t.Len()})
		c.logger.Debug("[cleaner] %-24s %d rows", name, t.Len())
	}

	t := raw.Clone()
	stage("input", t)

	t = DropDuplicateNames(t)
	stage("drop_duplicate_names", t)
	if err := assertUniqueNames(t); err != nil {
		return nil, report, err
	}

	IndexByName(t)

	report.FilledNames = FillMissingNames(t)
	if err := assertUniqueNames(t); err != nil {
		return nil, report, fmt.Errorf("after filling names from host_id: %w", err)
	}
	DeriveLogMinimumNights(t)

	t = FilterPriceRange(t, minPrice, maxPrice)
	stage("filter_price_range", t)

	report.UnparsedDates = ParseLastReview(t)

	median, imputed, ok := ImputeAvailability(t)
	if !ok && t.Len() > 0 {
		c.logger.Warn("[cleaner] availability_365 has no observed values, imputing 0")
	}
	report.ImputedAvailability = median
	report.ImputedRows = imputed

	t = FilterBoundingBox(t, NYCBoundingBox)
	stage("filter_bounding_box", t)

	ProjectOutputColumns(t)

	report.OutputRows = t.Len()
	c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d, imputed availability %g on %d rows)",
		report.InputRows, report.OutputRows, report.InputRows-report.OutputRows, median, imputed)

	return t, report, nil
}

// nameKey distinguishes a null name from any string value.
type nameKey struct {
	null bool
	name string
}

func keyOf(l *models.Listing) nameKey {
	if l.Name == nil {
		return nameKey{null: true}
	}
	return nameKey{name: *l.Name}
}

// DropDuplicateNames keeps the first row for each distinct name. All null
// names count as one value.
func DropDuplicateNames(t *models.Table) *models.Table {
	seen := utils.NewKeySet[nameKey]()
	return t.Filter(func(l *models.Listing) bool {
		return seen.Add(keyOf(l))
	})
}

func assertUniqueNames(t *models.Table) error {
	seen := utils.NewKeySet[nameKey]()
	for _, l := range t.Rows {
		if !seen.Add(keyOf(l)) {
			return fmt.Errorf("%w: name %q occurs more than once",
				ErrInvariantViolation, formatName(l.Name))
		}
	}
	return nil
}

func formatName(n *string) string {
	if n == nil {
		return "<null>"
	}
	return *n
}

// IndexByName sets the name lookup index on t.
func IndexByName(t *models.Table) {
	t.Reindex()
}

// FillMissingNames replaces null names with the row's host_id and returns
// the number of rows changed.
func FillMissingNames(t *models.Table) int {
	filled := 0
	for _, l := range t.Rows {
		if l.Name == nil {
			l.Name = models.StringPtr(cast.ToString(l.HostID))
			filled++
		}
	}
	if filled > 0 && t.Indexed() {
		t.Reindex()
	}
	return filled
}

// DeriveLogMinimumNights sets LognormMinimumNights to ln(minimum_nights).
// Zero yields -Inf and negatives NaN; both are kept as is.
func DeriveLogMinimumNights(t *models.Table) {
	for _, l := range t.Rows {
		l.LognormMinimumNights = math.Log(float64(l.MinimumNights))
	}
}

// FilterPriceRange keeps rows with minPrice <= price <= maxPrice.
func FilterPriceRange(t *models.Table, minPrice, maxPrice float64) *models.Table {
	return t.Filter(func(l *models.Listing) bool {
		return l.Price >= minPrice && l.Price <= maxPrice
	})
}

// ParseLastReview converts the raw last_review text into a date. Values that
// do not parse become null. It returns how many non-empty values failed.
func ParseLastReview(t *models.Table) int {
	failed := 0
	for _, l := range t.Rows {
		if l.LastReview != nil {
			l.LastReviewRaw = ""
			continue
		}
		raw := strings.TrimSpace(l.LastReviewRaw)
		l.LastReviewRaw = ""
		if raw == "" {
			continue
		}
		d, ok := parseDate(raw)
		if !ok {
			failed++
			continue
		}
		l.LastReview = &d
	}
	return failed
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range lastReviewLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// ImputeAvailability fills null availability_365 values with the median of
// the observed values in t. It returns the median, the number of rows filled
// and whether any value was observed; with no observations nulls become 0.
func ImputeAvailability(t *models.Table) (float64, int, bool) {
	observed := make([]float64, 0, len(t.Rows))
	for _, l := range t.Rows {
		if l.Availability365 != nil {
			observed = append(observed, *l.Availability365)
		}
	}

	median, ok := Median(observed)
	if !ok {
		median = 0
	}

	imputed := 0
	for _, l := range t.Rows {
		if l.Availability365 == nil {
			l.Availability365 = models.FloatPtr(median)
			imputed++
		}
	}
	return median, imputed, ok
}

// Median returns the median of values, averaging the two middle values for
// an even count. It reports false for an empty slice.
func Median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

// FilterBoundingBox keeps rows whose coordinates fall inside box.
func FilterBoundingBox(t *models.Table, box BoundingBox) *models.Table {
	return t.Filter(func(l *models.Listing) bool {
		return box.Contains(l.Latitude, l.Longitude)
	})
}

// ProjectOutputColumns clears every field outside models.OutputColumns, so
// the derived lognorm_minimum_nights does not survive into the result.
func ProjectOutputColumns(t *models.Table) {
	for _, l := range t.Rows {
		l.LognormMinimumNights = 0
		l.LastReviewRaw = ""
	}
}
