package dataset

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/modelsite/modelsite-go/pkg/models"
)

// Target is the label column of a prepared dataset. Numeric targets carry
// their parsed values; every target carries its cell text.
type Target struct {
	Name    string
	Numeric bool
	Values  []float64
	Labels  []string
}

// Len returns the number of target values
func (t *Target) Len() int {
	return len(t.Labels)
}

// Distinct returns the number of distinct target values
func (t *Target) Distinct() int {
	if t.Numeric {
		seen := make(map[float64]struct{}, len(t.Values))
		for _, v := range t.Values {
			seen[v] = struct{}{}
		}
		return len(seen)
	}
	seen := make(map[string]struct{}, len(t.Labels))
	for _, l := range t.Labels {
		seen[l] = struct{}{}
	}
	return len(seen)
}

// Factorize encodes the target as integer codes in order of first appearance.
// The returned classes hold the original value of each code.
func (t *Target) Factorize() (codes []float64, classes []any) {
	codes = make([]float64, t.Len())
	index := make(map[string]int)
	for i, label := range t.Labels {
		key := label
		if t.Numeric {
			key = formatFloat(t.Values[i])
		}
		code, ok := index[key]
		if !ok {
			code = len(classes)
			index[key] = code
			if t.Numeric {
				classes = append(classes, t.Values[i])
			} else {
				classes = append(classes, label)
			}
		}
		codes[i] = float64(code)
	}
	return codes, classes
}

// Features is a standardized feature matrix aligned row-for-row with its target
type Features struct {
	X      *mat.Dense
	Target *Target
	Names  []string

	// Means and Scales are the per-column standardization parameters.
	Means  []float64
	Scales []float64
}

// Rows returns the number of samples
func (f *Features) Rows() int {
	r, _ := f.X.Dims()
	return r
}

// Prepare turns a table into a standardized numeric matrix and a target.
// Rows without a target value are dropped, non-numeric columns are expanded
// into indicator columns (first category dropped), rows with a missing
// numeric feature are dropped and every column is scaled to zero mean and
// unit population variance.
func Prepare(t *Table, target string) (*Features, error) {
	tcol, ok := t.Column(target)
	if !ok {
		return nil, models.ColumnNotFoundError(target)
	}

	n := t.NumRows()
	keep := make([]bool, n)
	for i := range keep {
		keep[i] = !tcol.Missing[i]
	}

	var numeric, categorical []*Column
	for _, c := range t.Columns {
		if c == tcol || !presentIn(c, keep) {
			continue
		}
		if c.Numeric {
			numeric = append(numeric, c)
		} else {
			categorical = append(categorical, c)
		}
	}

	for _, c := range numeric {
		for i := range keep {
			if keep[i] && c.Missing[i] {
				keep[i] = false
			}
		}
	}

	rows := make([]int, 0, n)
	for i, k := range keep {
		if k {
			rows = append(rows, i)
		}
	}

	type indicator struct {
		col   *Column
		value string
	}
	names := make([]string, 0, len(numeric))
	for _, c := range numeric {
		names = append(names, c.Name)
	}
	var indicators []indicator
	for _, c := range categorical {
		for _, v := range categories(c, rows)[1:] {
			indicators = append(indicators, indicator{col: c, value: v})
			names = append(names, c.Name+"_"+v)
		}
	}

	if len(names) == 0 {
		return nil, models.InvalidDataError("No valid numeric features found.")
	}
	if len(rows) == 0 {
		return nil, models.InvalidDataError("Invalid feature or target data.")
	}

	X := mat.NewDense(len(rows), len(names), nil)
	for r, i := range rows {
		for j, c := range numeric {
			X.Set(r, j, c.Floats[i])
		}
		for k, ind := range indicators {
			if !ind.col.Missing[i] && ind.col.Cells[i] == ind.value {
				X.Set(r, len(numeric)+k, 1)
			}
		}
	}

	means, scales := standardize(X)

	tgt := &Target{
		Name:    tcol.Name,
		Numeric: tcol.Numeric,
		Labels:  make([]string, len(rows)),
	}
	if tcol.Numeric {
		tgt.Values = make([]float64, len(rows))
	}
	for r, i := range rows {
		tgt.Labels[r] = tcol.Cells[i]
		if tcol.Numeric {
			tgt.Values[r] = tcol.Floats[i]
		}
	}

	return &Features{
		X:      X,
		Target: tgt,
		Names:  names,
		Means:  means,
		Scales: scales,
	}, nil
}

// epsilon is the float64 machine epsilon
const epsilon = 2.220446049250313e-16

// standardize scales X in place and returns the column means and scales.
// Constant columns keep a scale of one so they centre to zero.
func standardize(X *mat.Dense) (means, scales []float64) {
	r, c := X.Dims()
	means = make([]float64, c)
	scales = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		m, v := stat.PopMeanVariance(col, nil)
		s := math.Sqrt(v)
		if s < 10*epsilon {
			s = 1
		}
		means[j], scales[j] = m, s
		for i := 0; i < r; i++ {
			X.Set(i, j, (col[i]-m)/s)
		}
	}
	return means, scales
}

// categories returns the sorted distinct present values of c over rows
func categories(c *Column, rows []int) []string {
	seen := make(map[string]struct{})
	for _, i := range rows {
		if !c.Missing[i] {
			seen[c.Cells[i]] = struct{}{}
		}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	if len(values) == 0 {
		return []string{""}
	}
	return values
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func presentIn(c *Column, rows []bool) bool {
	for i, k := range rows {
		if k && !c.Missing[i] {
			return true
		}
	}
	return false
}
