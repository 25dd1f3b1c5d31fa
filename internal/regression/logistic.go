package regression

import (
	"fmt"
	"math"

	"bracketlab/internal/errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	maxIterations = 25
	devianceTol   = 1e-8
	probEpsilon   = 1e-10
)

// LogisticModel is a binomial GLM with logit link fitted by iteratively reweighted
// least squares
type LogisticModel struct {
	Names        []string      `json:"features"`
	Coefficients []Coefficient `json:"coefficients"`
	N            int           `json:"n"`
	P            int           `json:"p"`
	Deviance     float64       `json:"deviance"`
	NullDeviance float64       `json:"null_deviance"`
	Iterations   int           `json:"iterations"`
	Converged    bool          `json:"converged"`

	beta *mat.VecDense
}

// FitLogistic regresses binary y (0 or 1) on x with an intercept. A fit that fails to
// converge, as under complete separation, is returned with Converged false.
func FitLogistic(x [][]float64, y []float64, names []string) (*LogisticModel, error) {
	X, err := designMatrix(x, y, names)
	if err != nil {
		return nil, err
	}
	n, p := X.Dims()

	var positives int
	for i, yi := range y {
		switch yi {
		case 1:
			positives++
		case 0:
		default:
			return nil, errors.InvalidInput(fmt.Sprintf("response at row %d is %v, expected 0 or 1", i, yi))
		}
	}
	if positives == 0 || positives == n {
		return nil, errors.InsufficientData("response has a single class")
	}

	beta := mat.NewVecDense(p, nil)
	mu := make([]float64, n)
	eta := make([]float64, n)
	for i := range mu {
		mu[i] = 0.5
	}
	devOld := 2 * float64(n) * math.Ln2

	m := &LogisticModel{Names: append([]string(nil), names...), N: n, P: p}
	w := make([]float64, n)
	z := mat.NewVecDense(n, nil)

	for iter := 1; iter <= maxIterations; iter++ {
		for i := 0; i < n; i++ {
			w[i] = mu[i] * (1 - mu[i])
			z.SetVec(i, eta[i]+(y[i]-mu[i])/w[i])
		}
		chol, err := factorize(X, w)
		if err != nil {
			if iter == 1 {
				return nil, err
			}
			// weights collapsed; keep the last finite estimate
			break
		}

		wz := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			wz.SetVec(i, w[i]*z.AtVec(i))
		}
		var rhs, next mat.VecDense
		rhs.MulVec(X.T(), wz)
		if err := chol.SolveVecTo(&next, &rhs); err != nil {
			if iter == 1 {
				return nil, errors.Wrap(errors.ModelSingular(err.Error()), "weighted least squares solve failed")
			}
			break
		}
		if hasNaN(&next) {
			return nil, errors.ModelSingular("coefficients diverged")
		}
		beta.CopyVec(&next)
		m.Iterations = iter

		var etaVec mat.VecDense
		etaVec.MulVec(X, beta)
		for i := 0; i < n; i++ {
			eta[i] = etaVec.AtVec(i)
			mu[i] = clampProb(logistic(eta[i]))
		}
		dev := binomialDeviance(y, mu)
		m.Deviance = dev
		if math.Abs(dev-devOld)/(math.Abs(dev)+0.1) < devianceTol {
			m.Converged = true
			break
		}
		devOld = dev
	}
	m.beta = beta

	mean := float64(positives) / float64(n)
	null := make([]float64, n)
	for i := range null {
		null[i] = mean
	}
	m.NullDeviance = binomialDeviance(y, null)

	for i := 0; i < n; i++ {
		w[i] = mu[i] * (1 - mu[i])
	}
	var cov mat.SymDense
	haveCov := false
	if chol, err := factorize(X, w); err == nil {
		haveCov = chol.InverseTo(&cov) == nil
	}

	for j, term := range termsWithIntercept(names) {
		c := Coefficient{
			Term:      term,
			Estimate:  beta.AtVec(j),
			StdError:  math.NaN(),
			Statistic: math.NaN(),
			PValue:    math.NaN(),
		}
		if haveCov {
			c.StdError = math.Sqrt(cov.At(j, j))
			if c.StdError > 0 {
				c.Statistic = c.Estimate / c.StdError
				c.PValue = 2 * distuv.UnitNormal.Survival(math.Abs(c.Statistic))
			}
		}
		m.Coefficients = append(m.Coefficients, c)
	}
	return m, nil
}

// FitLogisticModel adapts FitLogistic to the Fitter signature
func FitLogisticModel(x [][]float64, y []float64, names []string) (Model, error) {
	return FitLogistic(x, y, names)
}

func (m *LogisticModel) Kind() Kind { return KindLogistic }
func (m *LogisticModel) Terms() []string { return m.Names }
func (m *LogisticModel) NumObs() int { return m.N }
func (m *LogisticModel) NumParams() int { return m.P }

// Criterion returns deviance + k·p
func (m *LogisticModel) Criterion(k float64) float64 {
	return m.Deviance + k*float64(m.P)
}

// PredictProba returns the fitted probability of a positive outcome
func (m *LogisticModel) PredictProba(x []float64) float64 {
	return logistic(mat.Dot(withIntercept(x), m.beta))
}

// Coefficient looks up a term's row in the coefficient table
func (m *LogisticModel) Coefficient(term string) (Coefficient, bool) {
	for _, c := range m.Coefficients {
		if c.Term == term {
			return c, true
		}
	}
	return Coefficient{}, false
}

func logistic(eta float64) float64 {
	if eta >= 0 {
		return 1 / (1 + math.Exp(-eta))
	}
	e := math.Exp(eta)
	return e / (1 + e)
}

func clampProb(p float64) float64 {
	return math.Min(math.Max(p, probEpsilon), 1-probEpsilon)
}

func binomialDeviance(y, mu []float64) float64 {
	var dev float64
	for i, yi := range y {
		p := clampProb(mu[i])
		if yi == 1 {
			dev -= 2 * math.Log(p)
		} else {
			dev -= 2 * math.Log(1-p)
		}
	}
	return dev
}

func hasNaN(v *mat.VecDense) bool {
	for i := 0; i < v.Len(); i++ {
		if math.IsNaN(v.AtVec(i)) || math.IsInf(v.AtVec(i), 0) {
			return true
		}
	}
	return false
}
