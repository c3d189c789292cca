package forecast

import (
	"math"

	"budget/internal/core"

	"gonum.org/v1/gonum/stat"
)

// sigmaBand is the outlier cutoff in sample standard deviations.
const sigmaBand = 3.0

// point is one regression observation.
type point struct {
	x []float64
	y float64
}

// column is the cleaned series of a single category.
type column struct {
	category string
	points   []point
	outliers int
	imputed  int
	omitted  bool
}

// withinBand reports whether v lies within the outlier band around mean.
func withinBand(v, mean, sd float64) bool {
	return math.Abs(v-mean) <= sigmaBand*sd
}

// buildColumn collects the values of one category, drops outliers and fills
// the gaps with the mean of what is left. predictors maps a record to its
// regression inputs.
func buildColumn(ds core.Dataset, category string, predictors func(core.ExpenseRecord) []float64) column {
	col := column{category: category}

	present := make([]bool, len(ds))
	values := make([]float64, len(ds))
	var sample []float64
	for i, rec := range ds {
		if amount, ok := rec.Amount(category); ok {
			present[i] = true
			values[i] = amount.InexactFloat64()
			sample = append(sample, values[i])
		}
	}

	keep := make([]bool, len(ds))
	copy(keep, present)
	if len(sample) >= 2 {
		mean, sd := stat.MeanStdDev(sample, nil)
		for i := range ds {
			if present[i] && !withinBand(values[i], mean, sd) {
				keep[i] = false
				col.outliers++
			}
		}
	}

	var retained []float64
	for i := range ds {
		if keep[i] {
			retained = append(retained, values[i])
		}
	}
	if len(retained) == 0 {
		col.omitted = true
		return col
	}
	fill := stat.Mean(retained, nil)

	for i, rec := range ds {
		switch {
		case keep[i]:
			col.points = append(col.points, point{x: predictors(rec), y: values[i]})
		case present[i]:
			// outlier, excluded from this column only
		default:
			col.points = append(col.points, point{x: predictors(rec), y: fill})
			col.imputed++
		}
	}
	return col
}

// distinct counts the distinct observations of the column.
func (c column) distinct() int {
	seen := make(map[string]struct{}, len(c.points))
	for _, p := range c.points {
		key := make([]byte, 0, 8*(len(p.x)+1))
		for _, v := range append(append([]float64(nil), p.x...), p.y) {
			bits := math.Float64bits(v)
			for s := 0; s < 64; s += 8 {
				key = append(key, byte(bits>>s))
			}
		}
		seen[string(key)] = struct{}{}
	}
	return len(seen)
}

func (c column) meanY() float64 {
	ys := make([]float64, len(c.points))
	for i, p := range c.points {
		ys[i] = p.y
	}
	return stat.Mean(ys, nil)
}
