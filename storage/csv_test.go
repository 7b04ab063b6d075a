package storage

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airbnb-cleaning/models"
)

const header = "id,name,host_id,host_name,neighbourhood_group,neighbourhood,latitude,longitude," +
	"room_type,price,minimum_nights,number_of_reviews,last_review,reviews_per_month," +
	"calculated_host_listings_count,availability_365"

func TestReadListings(t *testing.T) {
	input := header + "\n" +
		"2539,Clean & quiet apt home by the park,2787,John,Brooklyn,Kensington,40.64749,-73.97237,Private room,149,1,9,2018-10-19,0.21,6,365\n" +
		"3647,,4632,Elisabeth,Manhattan,Harlem,40.80902,-73.9419,Private room,150,3.0,0,,,1,\n"

	table, err := ReadListings(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	first := table.Rows[0]
	assert.Equal(t, "2539", first.ID)
	require.NotNil(t, first.Name)
	assert.Equal(t, "Clean & quiet apt home by the park", *first.Name)
	assert.Equal(t, int64(2787), first.HostID)
	assert.Equal(t, 40.64749, first.Latitude)
	assert.Equal(t, 149.0, first.Price)
	assert.Equal(t, "2018-10-19", first.LastReviewRaw)
	require.NotNil(t, first.ReviewsPerMonth)
	assert.Equal(t, 0.21, *first.ReviewsPerMonth)
	require.NotNil(t, first.Availability365)
	assert.Equal(t, 365.0, *first.Availability365)

	second := table.Rows[1]
	assert.Nil(t, second.Name)
	assert.Equal(t, int64(3), second.MinimumNights)
	assert.Empty(t, second.LastReviewRaw)
	assert.Nil(t, second.ReviewsPerMonth)
	assert.Nil(t, second.Availability365)
}

func TestReadListingsMissingColumns(t *testing.T) {
	input := "id,name,host_id,price\n1,a,2,100\n"

	_, err := ReadListings(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Contains(t, schemaErr.Missing, "availability_365")
	assert.NotContains(t, schemaErr.Missing, "price")
}

func TestReadListingsEmptyInput(t *testing.T) {
	_, err := ReadListings(strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrSchema))
}

func TestReadListingsMalformedInteger(t *testing.T) {
	input := header + "\n1,a,not-a-number,h,g,n,40.7,-73.9,r,100,1,0,,,1,10\n"

	_, err := ReadListings(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedRow))
	assert.Contains(t, err.Error(), "host_id")
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadListingsIgnoresExtraColumnsAndBOM(t *testing.T) {
	input := "\ufeffextra," + header + ",also_extra\n" +
		"x,1,a,2,h,g,n,40.7,-73.9,r,100,1,0,,,1,10,y\n"

	table, err := ReadListings(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, "1", table.Rows[0].ID)
	assert.Equal(t, 100.0, table.Rows[0].Price)

	var buf bytes.Buffer
	require.NoError(t, WriteListings(&buf, table))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, header, lines[0])
	assert.Len(t, strings.Split(lines[1], ","), len(models.OutputColumns))
}

func TestReadListingsEmptyRequiredFloatIsNaN(t *testing.T) {
	input := header + "\n1,a,2,h,g,n,,-73.9,r,100,1,0,,,1,10\n"

	table, err := ReadListings(strings.NewReader(input))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(table.Rows[0].Latitude))
}

func TestReadListingsNAMarkers(t *testing.T) {
	input := header + "\n" +
		"1,NA,2,h,g,n,N/A,-73.9,r,100,1,0,NULL,None,1,null\n" +
		"2,NaN,3,h,g,n,40.7,-73.9,r,100,1,0,n/a,nan,1,#N/A\n" +
		"3,Not NA,4,h,g,n,40.7,-73.9,r,100,1,0,,,1,\n"

	table, err := ReadListings(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	first := table.Rows[0]
	assert.Nil(t, first.Name)
	assert.True(t, math.IsNaN(first.Latitude))
	assert.Empty(t, first.LastReviewRaw)
	assert.Nil(t, first.ReviewsPerMonth)
	assert.Nil(t, first.Availability365)

	second := table.Rows[1]
	assert.Nil(t, second.Name)
	assert.Empty(t, second.LastReviewRaw)
	assert.Nil(t, second.ReviewsPerMonth)
	assert.Nil(t, second.Availability365)

	require.NotNil(t, table.Rows[2].Name)
	assert.Equal(t, "Not NA", *table.Rows[2].Name)
}

func TestWriteListingsFormatsNullsAndDates(t *testing.T) {
	review := time.Date(2019, 7, 5, 0, 0, 0, 0, time.UTC)
	l := &models.Listing{
		ID:              "7",
		HostID:          99,
		Latitude:        40.7,
		Longitude:       -73.95,
		Price:           89.5,
		MinimumNights:   2,
		LastReview:      &review,
		Availability365: models.FloatPtr(120),

		LognormMinimumNights: 0.693,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteListings(&buf, models.NewTable([]*models.Listing{l})))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "7,,99,,,,40.7,-73.95,,89.5,2,0,2019-07-05,,0,120", lines[1])
	assert.NotContains(t, buf.String(), "lognorm")
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2019-07-05", FormatDate(time.Date(2019, 7, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2019-07-05 08:30:00", FormatDate(time.Date(2019, 7, 5, 8, 30, 0, 0, time.UTC)))
}

func TestCSVWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "clean_sample.csv")
	review := time.Date(2019, 5, 21, 0, 0, 0, 0, time.UTC)
	in := models.NewTable([]*models.Listing{
		{
			ID: "1", Name: models.StringPtr("Cozy, \"quoted\" loft"), HostID: 5, HostName: "Ann",
			NeighbourhoodGroup: "Queens", Neighbourhood: "Astoria", Latitude: 40.76, Longitude: -73.92,
			RoomType: "Private room", Price: 75, MinimumNights: 2, NumberOfReviews: 4,
			LastReview: &review, ReviewsPerMonth: models.FloatPtr(0.38), CalculatedHostListingsCount: 1,
			Availability365: models.FloatPtr(42),
		},
	})

	w, err := NewCSVWriter(path)
	require.NoError(t, err)
	assert.Equal(t, path, w.Path())
	require.NoError(t, w.Write(context.Background(), in))
	require.NoError(t, w.Close())

	out, err := ReadListingsFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())

	got := out.Rows[0]
	assert.Equal(t, "Cozy, \"quoted\" loft", *got.Name)
	assert.Equal(t, "2019-05-21", got.LastReviewRaw)
	assert.Equal(t, 0.38, *got.ReviewsPerMonth)
	assert.Equal(t, 42.0, *got.Availability365)
	assert.Equal(t, "Astoria", got.Neighbourhood)
}

func TestReadListingsFileMissing(t *testing.T) {
	_, err := ReadListingsFile(filepath.Join(t.TempDir(), "absent.csv"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
