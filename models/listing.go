package models

import (
	"time"
)

// Listing is one row of the rental listings dataset.
// Nullable columns are pointers; a nil pointer is an empty CSV cell.
type Listing struct {
	ID                          string
	Name                        *string
	HostID                      int64
	HostName                    string
	NeighbourhoodGroup          string
	Neighbourhood               string
	Latitude                    float64
	Longitude                   float64
	RoomType                    string
	Price                       float64
	MinimumNights               int64
	NumberOfReviews             int64
	LastReview                  *time.Time
	ReviewsPerMonth             *float64
	CalculatedHostListingsCount int64
	Availability365             *float64

	// LastReviewRaw holds the unparsed last_review cell until the date is parsed.
	LastReviewRaw string

	// LognormMinimumNights is derived during cleaning and never written out.
	LognormMinimumNights float64
}

// Column names of the listings dataset.
const (
	ColID                          = "id"
	ColName                        = "name"
	ColHostID                      = "host_id"
	ColHostName                    = "host_name"
	ColNeighbourhoodGroup          = "neighbourhood_group"
	ColNeighbourhood               = "neighbourhood"
	ColLatitude                    = "latitude"
	ColLongitude                   = "longitude"
	ColRoomType                    = "room_type"
	ColPrice                       = "price"
	ColMinimumNights               = "minimum_nights"
	ColNumberOfReviews             = "number_of_reviews"
	ColLastReview                  = "last_review"
	ColReviewsPerMonth             = "reviews_per_month"
	ColCalculatedHostListingsCount = "calculated_host_listings_count"
	ColAvailability365             = "availability_365"
)

// OutputColumns is the exact column set, in order, of a cleaned dataset.
var OutputColumns = []string{
	ColID,
	ColName,
	ColHostID,
	ColHostName,
	ColNeighbourhoodGroup,
	ColNeighbourhood,
	ColLatitude,
	ColLongitude,
	ColRoomType,
	ColPrice,
	ColMinimumNights,
	ColNumberOfReviews,
	ColLastReview,
	ColReviewsPerMonth,
	ColCalculatedHostListingsCount,
	ColAvailability365,
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 { return &f }

// Clone returns a copy of l that shares no pointers with it.
func (l *Listing) Clone() *Listing {
	c := *l
	if l.Name != nil {
		c.Name = StringPtr(*l.Name)
	}
	if l.LastReview != nil {
		t := *l.LastReview
		c.LastReview = &t
	}
	if l.ReviewsPerMonth != nil {
		c.ReviewsPerMonth = FloatPtr(*l.ReviewsPerMonth)
	}
	if l.Availability365 != nil {
		c.Availability365 = FloatPtr(*l.Availability365)
	}
	return &c
}

// StageCount records how many rows survived a pipeline step.
type StageCount struct {
	Stage string
	Rows  int
}

// CleanReport describes one cleaning run.
type CleanReport struct {
	InputRows           int
	OutputRows          int
	Stages              []StageCount
	ImputedAvailability float64
	ImputedRows         int
	FilledNames         int
	UnparsedDates       int
}

// InsightReport holds summary statistics over a cleaned dataset.
type InsightReport struct {
	TotalListings       int
	AveragePrice        float64
	MedianPrice         float64
	MinPrice            float64
	MaxPrice            float64
	MostExpensive       *Listing
	ListingsByGroup     map[string]int
	ListingsByRoomType  map[string]int
	AverageAvailability float64
}
