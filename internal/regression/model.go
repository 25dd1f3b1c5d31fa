// Package regression fits the linear and logistic models used to predict game
// outcomes. Both fits include an intercept and report R-style coefficient tables.
package regression

import (
	"fmt"
	"math"

	"bracketlab/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// InterceptTerm names the intercept in coefficient tables
const InterceptTerm = "(Intercept)"

// maxCondition bounds the condition number of the normal equations before a fit is
// treated as singular
const maxCondition = 1e14

// Kind identifies the model family
type Kind string

const (
	KindLinear   Kind = "linear"
	KindLogistic Kind = "logistic"
)

// Model is the part of a fitted model that selection needs
type Model interface {
	Kind() Kind
	Terms() []string
	NumObs() int
	NumParams() int
	// Criterion is the information criterion with penalty k per parameter
	// (k = 2 for AIC, k = ln n for BIC).
	Criterion(k float64) float64
}

// Fitter fits a model on rows of x (one column per name) against y
type Fitter func(x [][]float64, y []float64, names []string) (Model, error)

// Coefficient is one row of a coefficient table
type Coefficient struct {
	Term      string  `json:"term"`
	Estimate  float64 `json:"estimate"`
	StdError  float64 `json:"std_error"`
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
}

// designMatrix builds an n×(p+1) matrix with a leading column of ones
func designMatrix(x [][]float64, y []float64, names []string) (*mat.Dense, error) {
	n := len(x)
	if n != len(y) {
		return nil, errors.InvalidInput(fmt.Sprintf("row count mismatch: %d rows of x, %d of y", n, len(y)))
	}
	p := len(names) + 1
	if n <= p {
		return nil, errors.InsufficientData(fmt.Sprintf("need more observations (%d) than parameters (%d)", n, p))
	}
	X := mat.NewDense(n, p, nil)
	for i, row := range x {
		if len(row) != len(names) {
			return nil, errors.InvalidInput(fmt.Sprintf("row %d has %d values, expected %d", i, len(row), len(names)))
		}
		X.Set(i, 0, 1)
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.InvalidInput(fmt.Sprintf("row %d column %s is not finite", i, names[j]))
			}
			X.Set(i, j+1, v)
		}
	}
	return X, nil
}

// factorize computes the Cholesky factor of XᵀWX (W = diag(w), nil means identity)
func factorize(X *mat.Dense, w []float64) (*mat.Cholesky, error) {
	n, p := X.Dims()
	src := X
	if w != nil {
		src = mat.NewDense(n, p, nil)
		src.Apply(func(i, j int, v float64) float64 {
			return v * math.Sqrt(w[i])
		}, X)
	}
	var xtx mat.SymDense
	xtx.SymOuterK(1, src.T())

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, errors.ModelSingular("design matrix is not full rank")
	}
	if cond := chol.Cond(); cond > maxCondition || math.IsNaN(cond) {
		return nil, errors.ModelSingular(fmt.Sprintf("design matrix is ill-conditioned (condition number %.3g)", cond))
	}
	return &chol, nil
}

// withIntercept prepends 1 to a feature vector
func withIntercept(x []float64) *mat.VecDense {
	v := mat.NewVecDense(len(x)+1, nil)
	v.SetVec(0, 1)
	for i, xi := range x {
		v.SetVec(i+1, xi)
	}
	return v
}

// quadForm returns vᵀ A v
func quadForm(a mat.Symmetric, v *mat.VecDense) float64 {
	return mat.Inner(v, a, v)
}

func termsWithIntercept(names []string) []string {
	return append([]string{InterceptTerm}, names...)
}
