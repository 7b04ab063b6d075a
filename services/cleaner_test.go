package services

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airbnb-cleaning/models"
	"airbnb-cleaning/testutil"
)

// listing returns a row that survives cleaning with bounds [10, 350].
func listing(id, name string) *models.Listing {
	return &models.Listing{
		ID:                 id,
		Name:               models.StringPtr(name),
		HostID:             1000,
		HostName:           "Host",
		NeighbourhoodGroup: "Manhattan",
		Neighbourhood:      "Midtown",
		Latitude:           40.75,
		Longitude:          -73.98,
		RoomType:           "Entire home/apt",
		Price:              150,
		MinimumNights:      3,
		NumberOfReviews:    10,
		LastReviewRaw:      "2019-05-21",
		ReviewsPerMonth:    models.FloatPtr(0.5),
		Availability365:    models.FloatPtr(200),
	}
}

func names(t *models.Table) []string {
	out := make([]string, 0, t.Len())
	for _, l := range t.Rows {
		out = append(out, formatName(l.Name))
	}
	return out
}

func TestCleanKeepsFirstDuplicateName(t *testing.T) {
	first := listing("1", "A")
	first.HostID = 1
	second := listing("2", "A")
	second.HostID = 2
	raw := models.NewTable([]*models.Listing{first, second, listing("3", "B")})

	out, err := NewCleaner(testutil.NewTestLogger(t)).Clean(raw, 10, 350)
	require.NoError(t, err)

	require.Equal(t, []string{"A", "B"}, names(out))
	assert.Equal(t, "1", out.Rows[0].ID)
	assert.Equal(t, int64(1), out.Rows[0].HostID)
}

func TestCleanDropsPriceOutsideRange(t *testing.T) {
	cheap := listing("1", "cheap")
	cheap.Price = 5
	low := listing("2", "low")
	low.Price = 10
	high := listing("3", "high")
	high.Price = 350
	pricey := listing("4", "pricey")
	pricey.Price = 350.01
	raw := models.NewTable([]*models.Listing{cheap, low, high, pricey})

	out, err := NewCleaner(testutil.NewTestLogger(t)).Clean(raw, 10, 350)
	require.NoError(t, err)

	assert.Equal(t, []string{"low", "high"}, names(out))
}

func TestCleanImputesAvailabilityWithMedian(t *testing.T) {
	a := listing("1", "a")
	a.Availability365 = models.FloatPtr(100)
	b := listing("2", "b")
	b.Availability365 = models.FloatPtr(120)
	c := listing("3", "c")
	c.Availability365 = models.FloatPtr(300)
	missing := listing("4", "missing")
	missing.Availability365 = nil
	raw := models.NewTable([]*models.Listing{a, b, c, missing})

	out, report, err := NewCleaner(testutil.NewTestLogger(t)).CleanWithReport(raw, 10, 350)
	require.NoError(t, err)

	got, ok := out.Lookup("missing")
	require.True(t, ok)
	require.NotNil(t, got.Availability365)
	assert.Equal(t, 120.0, *got.Availability365)
	assert.Equal(t, 120.0, report.ImputedAvailability)
	assert.Equal(t, 1, report.ImputedRows)
}

func TestCleanDropsRowsOutsideBoundingBox(t *testing.T) {
	west := listing("1", "west")
	west.Longitude = -75.0
	west.Price = 100
	north := listing("2", "north")
	north.Latitude = 41.3
	corner := listing("3", "corner")
	corner.Longitude, corner.Latitude = -74.25, 40.5
	raw := models.NewTable([]*models.Listing{west, north, corner})

	out, err := NewCleaner(testutil.NewTestLogger(t)).Clean(raw, 10, 350)
	require.NoError(t, err)

	assert.Equal(t, []string{"corner"}, names(out))
}

func TestCleanDoesNotModifyInput(t *testing.T) {
	missing := listing("1", "a")
	missing.Availability365 = nil
	raw := models.NewTable([]*models.Listing{missing, listing("2", "a")})

	_, err := NewCleaner(testutil.NewTestLogger(t)).Clean(raw, 10, 350)
	require.NoError(t, err)

	assert.Equal(t, 2, raw.Len())
	assert.Nil(t, raw.Rows[0].Availability365)
	assert.Nil(t, raw.Rows[0].LastReview)
}

func TestCleanInvertedBoundsGivesEmptyTable(t *testing.T) {
	raw := models.NewTable([]*models.Listing{listing("1", "a"), listing("2", "b")})

	out, err := NewCleaner(testutil.NewTestLogger(t)).Clean(raw, 350, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}

func TestCleanPostconditions(t *testing.T) {
	rows := []*models.Listing{}
	for i, p := range []struct {
		name     string
		price    float64
		lat, lon float64
		avail    *float64
	}{
		{"a", 50, 40.7, -73.9, models.FloatPtr(10)},
		{"b", 500, 40.7, -73.9, nil},
		{"a", 60, 40.7, -73.9, nil},
		{"c", 70, 42.0, -73.9, models.FloatPtr(30)},
		{"d", 80, 40.6, -74.1, nil},
		{"e", 0, 40.6, -74.1, models.FloatPtr(365)},
		{"f", 349, 41.2, -73.5, models.FloatPtr(0)},
	} {
		l := listing(string(rune('1'+i)), p.name)
		l.Price, l.Latitude, l.Longitude, l.Availability365 = p.price, p.lat, p.lon, p.avail
		rows = append(rows, l)
	}
	rows = append(rows, &models.Listing{ID: "99", HostID: 7, Price: 100, Latitude: 40.7, Longitude: -73.9, MinimumNights: 1})

	out, err := NewCleaner(testutil.NewTestLogger(t)).Clean(models.NewTable(rows), 10, 350)
	require.NoError(t, err)
	require.NotZero(t, out.Len())

	seen := map[string]bool{}
	for _, l := range out.Rows {
		require.NotNil(t, l.Name)
		assert.False(t, seen[*l.Name], "duplicate name %q", *l.Name)
		seen[*l.Name] = true

		assert.GreaterOrEqual(t, l.Price, 10.0)
		assert.LessOrEqual(t, l.Price, 350.0)
		assert.True(t, NYCBoundingBox.Contains(l.Latitude, l.Longitude), "row %s outside box", l.ID)
		assert.NotNil(t, l.Availability365, "row %s has null availability", l.ID)
		assert.Zero(t, l.LognormMinimumNights)
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	missing := listing("2", "b")
	missing.Availability365 = nil
	missing.LastReviewRaw = "not a date"
	noName := listing("3", "")
	noName.Name = nil
	noName.HostID = 42
	raw := models.NewTable([]*models.Listing{listing("1", "a"), missing, noName, listing("4", "a")})

	c := NewCleaner(testutil.NewTestLogger(t))
	once, err := c.Clean(raw, 10, 350)
	require.NoError(t, err)
	twice, err := c.Clean(once, 10, 350)
	require.NoError(t, err)

	opts := cmp.Options{cmpopts.IgnoreUnexported(models.Table{}), cmpopts.EquateNaNs()}
	if diff := cmp.Diff(once, twice, opts); diff != "" {
		t.Errorf("second clean changed the table (-once +twice):\n%s", diff)
	}
}

func TestCleanReportStages(t *testing.T) {
	cheap := listing("3", "c")
	cheap.Price = 1
	away := listing("4", "d")
	away.Longitude = 0
	raw := models.NewTable([]*models.Listing{listing("1", "a"), listing("2", "a"), cheap, away})

	_, report, err := NewCleaner(testutil.NewTestLogger(t)).CleanWithReport(raw, 10, 350)
	require.NoError(t, err)

	assert.Equal(t, []models.StageCount{
		{Stage: "input", Rows: 4},
		{Stage: "drop_duplicate_names", Rows: 3},
		{Stage: "filter_price_range", Rows: 2},
		{Stage: "filter_bounding_box", Rows: 1},
	}, report.Stages)
	assert.Equal(t, 4, report.InputRows)
	assert.Equal(t, 1, report.OutputRows)
}

func TestDropDuplicateNamesTreatsNullsAsOneName(t *testing.T) {
	n1 := listing("1", "")
	n1.Name = nil
	n2 := listing("2", "")
	n2.Name = nil
	empty := listing("3", "")
	table := models.NewTable([]*models.Listing{n1, n2, empty})

	out := DropDuplicateNames(table)

	require.Equal(t, 2, out.Len())
	assert.Equal(t, "1", out.Rows[0].ID)
	assert.Equal(t, "3", out.Rows[1].ID)
	assert.NoError(t, assertUniqueNames(out))
}

func TestAssertUniqueNamesReportsViolation(t *testing.T) {
	table := models.NewTable([]*models.Listing{listing("1", "a"), listing("2", "a")})

	err := assertUniqueNames(table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvariantViolation))
	assert.Contains(t, err.Error(), `"a"`)
}

func TestFillMissingNamesUsesHostID(t *testing.T) {
	noName := listing("1", "")
	noName.Name = nil
	noName.HostID = 2787
	table := models.NewTable([]*models.Listing{noName, listing("2", "kept")})
	IndexByName(table)

	filled := FillMissingNames(table)

	assert.Equal(t, 1, filled)
	require.NotNil(t, table.Rows[0].Name)
	assert.Equal(t, "2787", *table.Rows[0].Name)
	_, ok := table.Lookup("2787")
	assert.True(t, ok)
	assert.Equal(t, "kept", *table.Rows[1].Name)
}

func TestCleanFailsWhenFilledNameCollides(t *testing.T) {
	named := listing("1", "42")
	noName := listing("2", "")
	noName.Name = nil
	noName.HostID = 42
	raw := models.NewTable([]*models.Listing{named, noName})

	out, _, err := NewCleaner(testutil.NewTestLogger(t)).CleanWithReport(raw, 10, 350)

	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, ErrInvariantViolation))
	assert.Contains(t, err.Error(), `"42"`)
}

func TestDeriveLogMinimumNights(t *testing.T) {
	tests := []struct {
		nights int64
		check  func(float64) bool
	}{
		{1, func(f float64) bool { return f == 0 }},
		{3, func(f float64) bool { return math.Abs(f-math.Log(3)) < 1e-12 }},
		{0, func(f float64) bool { return math.IsInf(f, -1) }},
		{-2, math.IsNaN},
	}

	for _, tt := range tests {
		l := listing("1", "a")
		l.MinimumNights = tt.nights
		DeriveLogMinimumNights(models.NewTable([]*models.Listing{l}))
		assert.True(t, tt.check(l.LognormMinimumNights), "ln(%d) = %v", tt.nights, l.LognormMinimumNights)
	}
}

func TestFilterPriceRangeDropsNaNPrices(t *testing.T) {
	l := listing("1", "a")
	l.Price = math.NaN()

	out := FilterPriceRange(models.NewTable([]*models.Listing{l}), 0, math.MaxFloat64)
	assert.Equal(t, 0, out.Len())
}

func TestParseLastReview(t *testing.T) {
	tests := []struct {
		raw  string
		want *time.Time
	}{
		{"2019-05-21", ptrTime(time.Date(2019, 5, 21, 0, 0, 0, 0, time.UTC))},
		{"2019-05-21 13:45:00", ptrTime(time.Date(2019, 5, 21, 13, 45, 0, 0, time.UTC))},
		{"2019-05-21T13:45:00Z", ptrTime(time.Date(2019, 5, 21, 13, 45, 0, 0, time.UTC))},
		{"05/21/2019", ptrTime(time.Date(2019, 5, 21, 0, 0, 0, 0, time.UTC))},
		{"", nil},
		{"yesterday", nil},
	}

	rows := make([]*models.Listing, len(tests))
	for i, tt := range tests {
		rows[i] = listing("1", "a")
		rows[i].LastReviewRaw = tt.raw
	}

	failed := ParseLastReview(models.NewTable(rows))

	assert.Equal(t, 1, failed)
	for i, tt := range tests {
		assert.Empty(t, rows[i].LastReviewRaw)
		if tt.want == nil {
			assert.Nil(t, rows[i].LastReview, "%q", tt.raw)
			continue
		}
		require.NotNil(t, rows[i].LastReview, "%q", tt.raw)
		assert.True(t, tt.want.Equal(*rows[i].LastReview), "%q parsed as %v", tt.raw, rows[i].LastReview)
	}
}

func TestImputeAvailabilityWithoutObservations(t *testing.T) {
	l := listing("1", "a")
	l.Availability365 = nil

	median, imputed, ok := ImputeAvailability(models.NewTable([]*models.Listing{l}))

	assert.False(t, ok)
	assert.Equal(t, 0.0, median)
	assert.Equal(t, 1, imputed)
	require.NotNil(t, l.Availability365)
	assert.Equal(t, 0.0, *l.Availability365)
}

func TestMedian(t *testing.T) {
	tests := []struct {
		values []float64
		want   float64
		ok     bool
	}{
		{nil, 0, false},
		{[]float64{7}, 7, true},
		{[]float64{300, 100, 120}, 120, true},
		{[]float64{4, 1, 3, 2}, 2.5, true},
	}

	for _, tt := range tests {
		got, ok := Median(tt.values)
		assert.Equal(t, tt.ok, ok, "%v", tt.values)
		assert.Equal(t, tt.want, got, "%v", tt.values)
	}
}

func TestBoundingBoxContains(t *testing.T) {
	assert.True(t, NYCBoundingBox.Contains(40.5, -74.25))
	assert.True(t, NYCBoundingBox.Contains(41.2, -73.50))
	assert.False(t, NYCBoundingBox.Contains(40.49, -74.0))
	assert.False(t, NYCBoundingBox.Contains(40.7, -73.49))
	assert.False(t, NYCBoundingBox.Contains(math.NaN(), -74.0))
}

func ptrTime(t time.Time) *time.Time { return &t }
