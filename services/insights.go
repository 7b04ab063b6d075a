package services

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"airbnb-cleaning/models"
	"airbnb-cleaning/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate computes summary statistics over a cleaned table.
func (s *InsightService) Generate(t *models.Table) *models.InsightReport {
	report := &models.InsightReport{
		ListingsByGroup:    make(map[string]int),
		ListingsByRoomType: make(map[string]int),
	}

	if t.Len() == 0 {
		return report
	}

	report.TotalListings = t.Len()

	prices := make([]float64, 0, t.Len())
	var total, availability float64
	var withAvailability int

	for _, l := range t.Rows {
		prices = append(prices, l.Price)
		total += l.Price
		if report.MostExpensive == nil || l.Price > report.MostExpensive.Price {
			report.MostExpensive = l
		}
		if l.NeighbourhoodGroup != "" {
			report.ListingsByGroup[l.NeighbourhoodGroup]++
		}
		if l.RoomType != "" {
			report.ListingsByRoomType[l.RoomType]++
		}
		if l.Availability365 != nil {
			availability += *l.Availability365
			withAvailability++
		}
	}

	report.AveragePrice = round2(total / float64(len(prices)))
	report.MinPrice = report.MostExpensive.Price
	for _, p := range prices {
		if p < report.MinPrice {
			report.MinPrice = p
		}
	}
	report.MaxPrice = report.MostExpensive.Price
	report.MedianPrice, _ = Median(prices)
	if withAvailability > 0 {
		report.AverageAvailability = round2(availability / float64(withAvailability))
	}

	s.logger.Debug("[insights] %d listings, %d neighbourhood groups, %d room types",
		report.TotalListings, len(report.ListingsByGroup), len(report.ListingsByRoomType))
	return report
}

// Print renders the cleaning report and dataset insights as terminal tables.
func (s *InsightService) Print(w io.Writer, clean *models.CleanReport, r *models.InsightReport) {
	if clean != nil {
		t := newTable(w, "Cleaning stages")
		t.AppendHeader(table.Row{"Stage", "Rows", "Dropped"})
		prev := clean.InputRows
		for _, st := range clean.Stages {
			t.AppendRow(table.Row{st.Stage, st.Rows, prev - st.Rows})
			prev = st.Rows
		}
		t.AppendFooter(table.Row{"output", clean.OutputRows, clean.InputRows - clean.OutputRows})
		t.Render()

		n := newTable(w, "Null handling")
		n.AppendHeader(table.Row{"Action", "Rows"})
		n.AppendRow(table.Row{"name filled from host_id", clean.FilledNames})
		n.AppendRow(table.Row{fmt.Sprintf("availability_365 imputed (median %g)", clean.ImputedAvailability), clean.ImputedRows})
		n.AppendRow(table.Row{"last_review unparseable", clean.UnparsedDates})
		n.Render()
	}

	p := newTable(w, "Price statistics (per night)")
	p.AppendHeader(table.Row{"Metric", "Value"})
	if r.TotalListings == 0 {
		p.AppendRow(table.Row{"listings", 0})
	} else {
		p.AppendRow(table.Row{"listings", r.TotalListings})
		p.AppendRow(table.Row{"average", fmt.Sprintf("$%.2f", r.AveragePrice)})
		p.AppendRow(table.Row{"median", fmt.Sprintf("$%.2f", r.MedianPrice)})
		p.AppendRow(table.Row{"minimum", fmt.Sprintf("$%.2f", r.MinPrice)})
		p.AppendRow(table.Row{"maximum", fmt.Sprintf("$%.2f", r.MaxPrice)})
		p.AppendRow(table.Row{"average availability", fmt.Sprintf("%.2f days", r.AverageAvailability)})
		if r.MostExpensive != nil && r.MostExpensive.Name != nil {
			p.AppendRow(table.Row{"most expensive", truncate(*r.MostExpensive.Name, 40)})
		}
	}
	p.Render()

	printCounts(w, "Listings by neighbourhood group", "Group", r.ListingsByGroup)
	printCounts(w, "Listings by room type", "Room type", r.ListingsByRoomType)
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	t.Style().Title.Align = text.AlignLeft
	return t
}

// printCounts renders counts sorted by count descending, then key.
func printCounts(w io.Writer, title, label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}

	type keyCount struct {
		key   string
		count int
	}
	var kcs []keyCount
	for k, c := range counts {
		kcs = append(kcs, keyCount{k, c})
	}
	sort.Slice(kcs, func(i, j int) bool {
		if kcs[i].count != kcs[j].count {
			return kcs[i].count > kcs[j].count
		}
		return kcs[i].key < kcs[j].key
	})

	t := newTable(w, title)
	t.AppendHeader(table.Row{label, "Listings"})
	for _, kc := range kcs {
		t.AppendRow(table.Row{truncate(kc.key, 28), kc.count})
	}
	t.Render()
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
