// Package density implements the k-NN density estimator and the
// quantile/inverse-quantile/record-completion queries built on top of it.
// Grounded on original_source/src/density.h.
package density

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"

	"github.com/cran/ganGenerativeData/pkg/column"
	"github.com/cran/ganGenerativeData/pkg/datasource"
	"github.com/cran/ganGenerativeData/pkg/normalize"
	"github.com/cran/ganGenerativeData/pkg/vptree"
)

var (
	// ErrInvalidDensityValue is returned when a computed density is
	// infinite, which can only happen when the farthest neighbor distance
	// is zero (duplicate points exactly on top of the query).
	ErrInvalidDensityValue = errors.New("density: computed density is not finite")
	// ErrInvalidNearestNeighborsSize is returned when k is non-positive,
	// and by Complete when the search yields no nearest neighbor.
	ErrInvalidNearestNeighborsSize = errors.New("density: nearest neighbor count must be positive")
	// ErrDifferentListSizes is returned when a caller supplies parallel
	// slices (e.g. names and values for a partial record) of mismatched
	// length.
	ErrDifferentListSizes = errors.New("density: lists have different sizes")
)

// Progress receives one report per row processed.
type Progress interface {
	Report(done, total int)
}

// UnitSphereVolume is the volume of the unit ball in the given dimension:
// π^(dim/2) / Γ(dim/2+1).
func UnitSphereVolume(dim int) float32 {
	return float32(math.Pow(math.Pi, float64(dim)/2) / math.Gamma(float64(dim)/2+1))
}

// KNearestNeighborDensityEstimation computes ρ = (k/(N·V_d)) / r_k^d, where
// r_k is the distance to the farthest of the supplied neighbors (already
// sorted ascending by distance) and N is the total row count the index was
// built over.
func KNearestNeighborDensityEstimation(neighbors []vptree.Element, n int, dim int) float32 {
	if len(neighbors) == 0 {
		return 0
	}
	c := float32(len(neighbors)) / float32(n) / UnitSphereVolume(dim)
	farthest := neighbors[len(neighbors)-1].Distance
	return c / float32(math.Pow(float64(farthest), float64(dim)))
}

// CalculateDensityValues fills gd's density column with a k-NN density
// estimate for every normalised row, then normalises the density column
// itself (LOGARITHMIC scale) and drops its raw vector — the density
// column only ever needs to be queried in normalised form afterward.
func CalculateDensityValues(ctx context.Context, gd *datasource.GenerativeData, tree *vptree.Tree, k int, progress Progress) error {
	n := gd.NormalizedSize()
	raw := make([]float32, n)
	dim := gd.Dimension()

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if progress != nil {
			progress.Report(i, n)
		}
		vec := gd.NormalizedNumberVectorRef(i)
		neighbors, err := tree.Search(vec, k)
		if err != nil {
			return err
		}
		d := KNearestNeighborDensityEstimation(neighbors, n, dim)
		if math.IsInf(float64(d), 0) {
			return ErrInvalidDensityValue
		}
		raw[i] = d
	}

	dc := gd.DensityColumn()
	dc.SetRawValues(raw)
	if err := normalize.NormalizeColumn(dc, true); err != nil {
		return err
	}
	dc.ClearRaw()

	if progress != nil {
		progress.Report(n, n)
	}
	return nil
}

// CalculateDensityValue estimates the density of a single raw feature
// vector not already in the index: it is normalised against gd's columns,
// searched (tree search if built, else a brute-force linear search), and
// the resulting estimate is mapped into the density column's established
// normalised range.
func CalculateDensityValue(gd *datasource.GenerativeData, tree *vptree.Tree, k int, raw []float32) (float32, error) {
	normalized, err := normalize.NormalizedNumberVector(gd.Columns(), raw)
	if err != nil {
		return 0, err
	}

	var neighbors []vptree.Element
	if tree.IsBuilt() {
		neighbors, err = tree.Search(normalized, k)
	} else {
		neighbors, err = tree.LinearSearch(normalized, k)
	}
	if err != nil {
		return 0, err
	}

	dc := gd.DensityColumn()
	d := KNearestNeighborDensityEstimation(neighbors, dc.NormSize(), gd.Dimension())
	return normalize.NormalizedNumber(dc, d, true), nil
}

// Quantile returns the percent-th quantile of the normalised density
// distribution: rank = floor(percent/100 * n) - 1, clamped to [0, n-1].
// This resolves the floor-vs-ceiling ambiguity toward floor, per the
// ranking convention fixed for this engine.
func Quantile(gd *datasource.GenerativeData, percent float32) float32 {
	values := append([]float32(nil), gd.DensityColumn().NormalizedValues()...)
	if len(values) == 0 {
		return 0
	}
	n := int(math.Floor(float64(percent)/100*float64(len(values)))) - 1
	if n < 0 {
		n = 0
	}
	if n >= len(values) {
		n = len(values) - 1
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return values[n]
}

// InverseQuantile returns the percentage of rows whose density is
// less-or-equal to the given value.
func InverseQuantile(gd *datasource.GenerativeData, value float32) float32 {
	values := gd.DensityColumn().NormalizedValues()
	if len(values) == 0 {
		return 0
	}
	var k float32
	for _, v := range values {
		if v <= value {
			k++
		}
	}
	return k / float32(len(values)) * 100
}

// Record is a partial or complete row addressed by column name, for record
// completion/imputation. Values are raw text exactly as AddValueRow would
// accept them ("NA" for missing).
type Record struct {
	Names  []string
	Values []string
}

// NormalizeRecord parses record's present fields against gd's columns and
// assembles the full normalised feature vector, leaving NaN in every
// dimension of a column that record omits or holds "NA" for. The result
// doubles as the record_vector mask for L2DistanceNanIndexed: its NaN
// pattern is exactly the set of dimensions a search should skip and a
// completion should fill.
func NormalizeRecord(gd *datasource.GenerativeData, record Record) ([]float32, error) {
	if len(record.Names) != len(record.Values) {
		return nil, ErrDifferentListSizes
	}

	present := make(map[string]string, len(record.Names))
	for i, n := range record.Names {
		present[n] = record.Values[i]
	}

	raw := make([]float32, gd.Dimension())
	offset := 0
	for _, col := range gd.Columns() {
		if !col.Active() {
			continue
		}
		width := col.Dimension()
		val, known := present[col.Name()]
		if !known || val == column.NA {
			for i := 0; i < width; i++ {
				raw[offset+i] = float32(math.NaN())
			}
		} else {
			switch c := col.(type) {
			case *column.NumberColumn:
				f, err := gd.GetFloatValue(val)
				if err != nil {
					return nil, err
				}
				raw[offset] = f
			case *column.NumberArrayColumn:
				vec := c.GetNormalizedNumberVectorForValue(val)
				copy(raw[offset:offset+width], vec)
			}
		}
		offset += width
	}

	return normalize.NormalizedNumberVector(gd.Columns(), raw)
}

// activeColumnNames lists gd's active column names in feature-vector order.
func activeColumnNames(gd *datasource.GenerativeData) []string {
	names := make([]string, 0, len(gd.Columns()))
	for _, col := range gd.Columns() {
		if col.Active() {
			names = append(names, col.Name())
		}
	}
	return names
}

// KNearestNeighbors implements k_nearest_neighbors(record, k, use_tree):
// it parses and normalises record (steps 1-2), searches tree (step 4;
// step 3's mask-select/rebuild is the caller's responsibility — tree must
// already be built against an L2DistanceNanIndexed mask matching record's
// own NaN pattern), and denormalises each hit back into a full Record.
func KNearestNeighbors(gd *datasource.GenerativeData, tree *vptree.Tree, k int, record Record, useTree bool) ([]Record, error) {
	if k <= 0 {
		return nil, ErrInvalidNearestNeighborsSize
	}
	normalized, err := NormalizeRecord(gd, record)
	if err != nil {
		return nil, err
	}

	var neighbors []vptree.Element
	if useTree {
		neighbors, err = tree.Search(normalized, k)
	} else {
		neighbors, err = tree.LinearSearch(normalized, k)
	}
	if err != nil {
		return nil, err
	}

	names := activeColumnNames(gd)
	out := make([]Record, len(neighbors))
	for i, nb := range neighbors {
		values, err := denormalizeRow(gd, gd.NormalizedNumberVectorRef(nb.Index))
		if err != nil {
			return nil, err
		}
		out[i] = Record{Names: names, Values: values}
	}
	return out, nil
}

// Complete implements complete(record): it calls k_nearest_neighbors(record,
// 1, use_tree), then for every column missing from record (or "NA")
// substitutes that single nearest neighbor's value; columns record already
// supplies are returned unchanged, not round-tripped through normalisation.
func Complete(gd *datasource.GenerativeData, tree *vptree.Tree, record Record, useTree bool) ([]string, error) {
	if len(record.Names) != len(record.Values) {
		return nil, ErrDifferentListSizes
	}

	neighbors, err := KNearestNeighbors(gd, tree, 1, record, useTree)
	if err != nil {
		return nil, err
	}
	if len(neighbors) == 0 {
		return nil, ErrInvalidNearestNeighborsSize
	}
	nearest := neighbors[0]

	present := make(map[string]string, len(record.Names))
	for i, n := range record.Names {
		present[n] = record.Values[i]
	}

	names := activeColumnNames(gd)
	out := make([]string, len(names))
	for i, name := range names {
		if val, ok := present[name]; ok && val != column.NA {
			out[i] = val
			continue
		}
		out[i] = nearest.Values[i]
	}
	return out, nil
}

func denormalizeRow(gd *datasource.GenerativeData, normalized []float32) ([]string, error) {
	out := make([]string, 0, len(gd.Columns()))
	offset := 0
	for _, col := range gd.Columns() {
		if !col.Active() {
			continue
		}
		width := col.Dimension()
		switch c := col.(type) {
		case *column.NumberColumn:
			out = append(out, formatFloat(c.DenormalizeValue(normalized[offset])))
		case *column.NumberArrayColumn:
			out = append(out, c.GetMaxValueFromVector(normalized[offset:offset+width]))
		}
		offset += width
	}
	return out, nil
}

func formatFloat(f float32) string {
	if math.IsNaN(float64(f)) {
		return column.NA
	}
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}
