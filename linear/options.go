package linear

// params holds the hyperparameters shared by the linear estimators.
// Each estimator reads the subset it needs.
type params struct {
	fitIntercept bool
	alpha        float64
	l1Ratio      float64
	maxIter      int
	tol          float64
	positive     bool
}

func defaultParams() params {
	return params{
		fitIntercept: true,
		alpha:        1.0,
		l1Ratio:      0.5,
		maxIter:      1000,
		tol:          1e-4,
	}
}

// Option configures a linear estimator.
type Option func(*params)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(p *params) {
		p.fitIntercept = fit
	}
}

// WithAlpha sets the regularization strength (Ridge, Lasso, ElasticNet, LassoLars).
func WithAlpha(alpha float64) Option {
	return func(p *params) {
		p.alpha = alpha
	}
}

// WithL1Ratio sets the ElasticNet mixing parameter, 1 is pure lasso.
func WithL1Ratio(r float64) Option {
	return func(p *params) {
		p.l1Ratio = r
	}
}

// WithMaxIter bounds coordinate-descent sweeps or LARS steps.
func WithMaxIter(n int) Option {
	return func(p *params) {
		p.maxIter = n
	}
}

// WithTol sets the tolerance for the optimization
func WithTol(tol float64) Option {
	return func(p *params) {
		p.tol = tol
	}
}

// WithPositive constrains the coefficients to be positive (coordinate descent only).
func WithPositive(positive bool) Option {
	return func(p *params) {
		p.positive = positive
	}
}
