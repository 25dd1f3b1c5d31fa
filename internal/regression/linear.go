package regression

import (
	"fmt"
	"math"

	"bracketlab/internal/errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// LinearModel is an ordinary least squares fit
type LinearModel struct {
	Names        []string      `json:"features"`
	Coefficients []Coefficient `json:"coefficients"`
	N            int           `json:"n"`
	P            int           `json:"p"`
	DFResidual   int           `json:"df_residual"`
	RSS          float64       `json:"rss"`
	Sigma        float64       `json:"sigma"`
	RSquared     float64       `json:"r_squared"`
	AdjRSquared  float64       `json:"adj_r_squared"`
	FStatistic   float64       `json:"f_statistic"`

	beta   *mat.VecDense
	xtxInv *mat.SymDense
}

// Interval is a point prediction with lower and upper bounds
type Interval struct {
	Fit   float64 `json:"fit"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// FitLinear regresses y on x with an intercept
func FitLinear(x [][]float64, y []float64, names []string) (*LinearModel, error) {
	X, err := designMatrix(x, y, names)
	if err != nil {
		return nil, err
	}
	n, p := X.Dims()

	chol, err := factorize(X, nil)
	if err != nil {
		return nil, err
	}

	yVec := mat.NewVecDense(n, append([]float64(nil), y...))
	var xty mat.VecDense
	xty.MulVec(X.T(), yVec)

	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, errors.Wrap(errors.ModelSingular(err.Error()), "least squares solve failed")
	}

	var xtxInv mat.SymDense
	if err := chol.InverseTo(&xtxInv); err != nil {
		return nil, errors.Wrap(errors.ModelSingular(err.Error()), "inverting normal equations failed")
	}

	var fitted mat.VecDense
	fitted.MulVec(X, &beta)

	var rss, mean float64
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		rss += r * r
		mean += y[i]
	}
	mean /= float64(n)
	var tss float64
	for _, yi := range y {
		tss += (yi - mean) * (yi - mean)
	}

	df := n - p
	sigma2 := rss / float64(df)
	m := &LinearModel{
		Names:      append([]string(nil), names...),
		N:          n,
		P:          p,
		DFResidual: df,
		RSS:        rss,
		Sigma:      math.Sqrt(sigma2),
		beta:       &beta,
		xtxInv:     &xtxInv,
	}

	m.RSquared = math.NaN()
	m.AdjRSquared = math.NaN()
	m.FStatistic = math.NaN()
	if tss > 0 {
		m.RSquared = 1 - rss/tss
		m.AdjRSquared = 1 - (1-m.RSquared)*float64(n-1)/float64(df)
		if p > 1 && rss > 0 {
			m.FStatistic = ((tss - rss) / float64(p-1)) / sigma2
		}
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	for j, term := range termsWithIntercept(names) {
		est := beta.AtVec(j)
		se := math.Sqrt(sigma2 * xtxInv.At(j, j))
		c := Coefficient{Term: term, Estimate: est, StdError: se, Statistic: math.NaN(), PValue: math.NaN()}
		if se > 0 {
			c.Statistic = est / se
			c.PValue = 2 * tDist.Survival(math.Abs(c.Statistic))
		}
		m.Coefficients = append(m.Coefficients, c)
	}
	return m, nil
}

// FitLinearModel adapts FitLinear to the Fitter signature
func FitLinearModel(x [][]float64, y []float64, names []string) (Model, error) {
	return FitLinear(x, y, names)
}

func (m *LinearModel) Kind() Kind { return KindLinear }
func (m *LinearModel) Terms() []string { return m.Names }
func (m *LinearModel) NumObs() int { return m.N }
func (m *LinearModel) NumParams() int { return m.P }

// Criterion returns n·ln(RSS/n) + k·p, the form used to compare nested linear fits
func (m *LinearModel) Criterion(k float64) float64 {
	return float64(m.N)*math.Log(m.RSS/float64(m.N)) + k*float64(m.P)
}

// Predict returns the fitted value for one feature vector
func (m *LinearModel) Predict(x []float64) float64 {
	return mat.Dot(withIntercept(x), m.beta)
}

// PredictInterval returns the prediction with a level (e.g. 0.95) prediction interval
// for a new observation
func (m *LinearModel) PredictInterval(x []float64, level float64) (Interval, error) {
	if level <= 0 || level >= 1 {
		return Interval{}, errors.InvalidInput(fmt.Sprintf("interval level %v outside (0, 1)", level))
	}
	if len(x) != len(m.Names) {
		return Interval{}, errors.InvalidInput(fmt.Sprintf("expected %d features, got %d", len(m.Names), len(x)))
	}
	v := withIntercept(x)
	fit := mat.Dot(v, m.beta)
	leverage := quadForm(m.xtxInv, v)
	se := m.Sigma * math.Sqrt(1+leverage)
	tq := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(m.DFResidual)}.Quantile(1 - (1-level)/2)
	return Interval{Fit: fit, Lower: fit - tq*se, Upper: fit + tq*se}, nil
}

// Coefficient looks up a term's row in the coefficient table
func (m *LinearModel) Coefficient(term string) (Coefficient, bool) {
	for _, c := range m.Coefficients {
		if c.Term == term {
			return c, true
		}
	}
	return Coefficient{}, false
}
