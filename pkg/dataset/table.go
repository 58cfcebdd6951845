package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// missingMarkers are the cell spellings read as missing values
var missingMarkers = map[string]bool{
	"":          true,
	"#N/A":      true,
	"#N/A N/A":  true,
	"#NA":       true,
	"-1.#IND":   true,
	"-1.#QNAN":  true,
	"-NaN":      true,
	"-nan":      true,
	"1.#IND":    true,
	"1.#QNAN":   true,
	"<NA>":      true,
	"N/A":       true,
	"NA":        true,
	"NULL":      true,
	"NaN":       true,
	"None":      true,
	"n/a":       true,
	"nan":       true,
	"null":      true,
}

// Column is one named column of a Table
type Column struct {
	Name    string
	Cells   []string
	Missing []bool

	// Numeric is set when every present cell parses as a finite number.
	// Floats then holds the parsed values with NaN for missing cells.
	Numeric bool
	Floats  []float64
}

// Present returns the number of non-missing cells
func (c *Column) Present() int {
	n := 0
	for _, m := range c.Missing {
		if !m {
			n++
		}
	}
	return n
}

// Distinct returns the number of distinct non-missing values
func (c *Column) Distinct() int {
	seen := make(map[string]struct{})
	for i, cell := range c.Cells {
		if c.Missing[i] {
			continue
		}
		if c.Numeric {
			cell = formatFloat(c.Floats[i])
		}
		seen[cell] = struct{}{}
	}
	return len(seen)
}

// Table is an in-memory dataset with a header row and uniform column lengths
type Table struct {
	Columns []*Column
	index   map[string]int
	rows    int
}

// NewTable builds a table from a header and data records. Short records are
// padded with missing cells and surplus cells are ignored.
func NewTable(header []string, records [][]string) *Table {
	names := uniqueNames(header)
	t := &Table{
		Columns: make([]*Column, len(names)),
		index:   make(map[string]int, len(names)),
		rows:    len(records),
	}

	for j, name := range names {
		col := &Column{
			Name:    name,
			Cells:   make([]string, len(records)),
			Missing: make([]bool, len(records)),
		}
		for i, rec := range records {
			cell := ""
			if j < len(rec) {
				cell = strings.TrimSpace(rec[j])
			}
			col.Cells[i] = cell
			col.Missing[i] = missingMarkers[cell]
		}
		col.inferNumeric()
		t.Columns[j] = col
		t.index[name] = j
	}

	return t
}

// NumRows returns the number of data rows
func (t *Table) NumRows() int {
	return t.rows
}

// Column looks up a column by exact name
func (t *Table) Column(name string) (*Column, bool) {
	j, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.Columns[j], true
}

// Names returns the column names in order
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (c *Column) inferNumeric() {
	floats := make([]float64, len(c.Cells))
	for i, cell := range c.Cells {
		if c.Missing[i] {
			floats[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			c.Numeric = false
			c.Floats = nil
			return
		}
		floats[i] = v
	}
	c.Numeric = true
	c.Floats = floats
}

// uniqueNames names blank headers "Unnamed: i" and suffixes repeats with ".n"
func uniqueNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			candidate := fmt.Sprintf("%s.%d", name, n+1)
			for {
				if _, taken := seen[candidate]; !taken {
					break
				}
				seen[name]++
				candidate = fmt.Sprintf("%s.%d", name, seen[name])
			}
			name = candidate
		}
		seen[name] = 0
		names[i] = name
	}
	return names
}
