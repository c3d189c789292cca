package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// model is an ordinary least squares fit with intercept.
type model struct {
	intercept float64
	coef      []float64
}

func (m model) predict(x []float64) float64 {
	return m.intercept + floats.Dot(m.coef, x)
}

// fitOLS fits y = b0 + b·x. Predictors are centered and the system is solved
// through a thin SVD, taking the minimum norm solution so that constant or
// collinear predictors reduce the rank instead of failing.
func fitOLS(points []point) (model, error) {
	n := len(points)
	if n == 0 {
		return model{}, fmt.Errorf("no observations")
	}
	p := len(points[0].x)

	ys := make([]float64, n)
	for i, pt := range points {
		if len(pt.x) != p {
			return model{}, fmt.Errorf("observation %d has %d predictors, want %d", i, len(pt.x), p)
		}
		ys[i] = pt.y
	}
	yMean := stat.Mean(ys, nil)
	if p == 0 {
		return model{intercept: yMean}, nil
	}

	xMean := make([]float64, p)
	for j := 0; j < p; j++ {
		col := make([]float64, n)
		for i, pt := range points {
			col[i] = pt.x[j]
		}
		xMean[j] = stat.Mean(col, nil)
	}

	a := mat.NewDense(n, p, nil)
	b := mat.NewVecDense(n, nil)
	for i, pt := range points {
		for j := 0; j < p; j++ {
			a.Set(i, j, pt.x[j]-xMean[j])
		}
		b.SetVec(i, ys[i]-yMean)
	}

	coef := make([]float64, p)
	if mat.Norm(a, 2) > 0 {
		var svd mat.SVD
		if ok := svd.Factorize(a, mat.SVDThin); !ok {
			return model{}, fmt.Errorf("svd factorization failed")
		}
		values := svd.Values(nil)
		var u, v mat.Dense
		svd.UTo(&u)
		svd.VTo(&v)

		tol := float64(max(n, p)) * values[0] * epsilon
		for k, s := range values {
			if s <= tol {
				break
			}
			w := mat.Dot(u.ColView(k), b) / s
			for j := 0; j < p; j++ {
				coef[j] += w * v.At(j, k)
			}
		}
	}

	return model{
		intercept: yMean - floats.Dot(coef, xMean),
		coef:      coef,
	}, nil
}

// epsilon is the float64 machine epsilon.
var epsilon = math.Nextafter(1, 2) - 1
