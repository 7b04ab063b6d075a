package models

// Table is an ordered set of listings sharing the listings schema.
type Table struct {
	Rows []*Listing

	// byName is set once the table has been indexed by name.
	byName map[string]*Listing
}

// NewTable wraps rows in a Table.
func NewTable(rows []*Listing) *Table {
	return &Table{Rows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Clone returns a deep copy of the table, index included.
func (t *Table) Clone() *Table {
	rows := make([]*Listing, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = r.Clone()
	}
	c := &Table{Rows: rows}
	if t.byName != nil {
		c.Reindex()
	}
	return c
}

// Reindex builds the name index over the current rows. Rows with a null
// name are not indexed.
func (t *Table) Reindex() {
	t.byName = make(map[string]*Listing, len(t.Rows))
	for _, r := range t.Rows {
		if r.Name != nil {
			t.byName[*r.Name] = r
		}
	}
}

// Indexed reports whether the table carries a name index.
func (t *Table) Indexed() bool {
	return t.byName != nil
}

// Lookup returns the row with the given name from the name index.
func (t *Table) Lookup(name string) (*Listing, bool) {
	l, ok := t.byName[name]
	return l, ok
}

// Filter returns a new table with the rows for which keep returns true.
// The name index is carried over when present.
func (t *Table) Filter(keep func(*Listing) bool) *Table {
	rows := make([]*Listing, 0, len(t.Rows))
	for _, r := range t.Rows {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	out := &Table{Rows: rows}
	if t.byName != nil {
		out.Reindex()
	}
	return out
}
