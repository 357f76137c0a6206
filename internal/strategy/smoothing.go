package strategy

import (
	"math"
	"sort"
	"time"

	fcerrors "tscast/internal/errors"
	"tscast/internal/series"
)

// smoothingVariant selects which state recursion the smoothing family runs.
type smoothingVariant int

const (
	variantSimple smoothingVariant = iota
	variantHolt
	variantDampedHolt
)

func (v smoothingVariant) name() string {
	switch v {
	case variantHolt:
		return "holt"
	case variantDampedHolt:
		return "damped_holt"
	default:
		return "ses"
	}
}

// Smoothing implements the exponential smoothing family: simple (level
// only), Holt (level + trend), and damped Holt (level + damped trend).
// Smoothing coefficients are fit by bounded numerical optimization of the
// one-step-ahead squared error over the training series.
type Smoothing struct {
	variant smoothingVariant
	opts    Options
}

// NewSimpleSmoothing creates a simple exponential smoothing strategy.
func NewSimpleSmoothing(opts Options) *Smoothing {
	return &Smoothing{variant: variantSimple, opts: opts.withDefaults()}
}

// NewHolt creates a Holt linear-trend smoothing strategy.
func NewHolt(opts Options) *Smoothing {
	return &Smoothing{variant: variantHolt, opts: opts.withDefaults()}
}

// NewDampedHolt creates a damped-trend Holt smoothing strategy.
func NewDampedHolt(opts Options) *Smoothing {
	return &Smoothing{variant: variantDampedHolt, opts: opts.withDefaults()}
}

// Name implements Strategy.
func (s *Smoothing) Name() string { return s.variant.name() }

// smoothingParams are the learned coefficients. phi is fixed to 1 for the
// non-damped variants.
type smoothingParams struct {
	alpha float64
	beta  float64
	phi   float64
}

// paramBounds keep coefficients strictly inside their admissible ranges so
// the recursions stay numerically stable.
const (
	coefLo = 0.01
	coefHi = 0.99
	phiLo  = 0.80
	phiHi  = 0.98
)

// Fit implements Strategy.
func (s *Smoothing) Fit(ts *series.TimeSeries) (FittedModel, error) {
	minLen := 2
	if s.variant != variantSimple {
		minLen = 3
	}
	if ts.Len() < minLen {
		return nil, fcerrors.InsufficientHistory(
			"%s requires at least %d observations, got %d",
			s.Name(), minLen, ts.Len()).WithStrategy(s.Name())
	}

	values := ts.Values()

	params, err := s.optimize(values)
	if err != nil {
		return nil, err
	}

	level, trend, residuals := s.run(values, params)

	nParams := 1 // alpha
	if s.variant != variantSimple {
		nParams = 2 // + beta
	}
	if s.variant == variantDampedHolt {
		nParams = 3 // + phi
	}

	return &smoothingModel{
		variant:   s.variant,
		params:    params,
		level:     level,
		trend:     trend,
		sd:        residualStd(residuals, nParams),
		residuals: residuals,
		intervals: s.opts.Intervals,
		train:     ts,
	}, nil
}

// run executes the state recursion with the given parameters and returns
// the final level, trend, and the one-step-ahead residuals.
func (s *Smoothing) run(values []float64, p smoothingParams) (level, trend float64, residuals []float64) {
	level = values[0]
	if s.variant != variantSimple {
		trend = values[1] - values[0]
	}

	residuals = make([]float64, 0, len(values)-1)
	for t := 1; t < len(values); t++ {
		pred := level
		if s.variant != variantSimple {
			pred = level + p.phi*trend
		}
		residuals = append(residuals, values[t]-pred)

		prevLevel := level
		if s.variant == variantSimple {
			level = p.alpha*values[t] + (1-p.alpha)*level
		} else {
			level = p.alpha*values[t] + (1-p.alpha)*(level+p.phi*trend)
			trend = p.beta*(level-prevLevel) + (1-p.beta)*p.phi*trend
		}
	}
	return level, trend, residuals
}

// sse is the optimization objective: sum of squared one-step errors.
func (s *Smoothing) sse(values []float64, p smoothingParams) float64 {
	_, _, residuals := s.run(values, p)
	sum := 0.0
	for _, r := range residuals {
		sum += r * r
	}
	return sum
}

// optimize fits the smoothing coefficients by coordinate descent, with a
// golden-section line search per coordinate. Both the line search and the
// sweep loop are bounded by MaxIterations; exhausting the sweep budget
// before the objective stabilizes fails with OptimizationDidNotConverge.
// A flat objective (constant series) stabilizes on the first sweep.
func (s *Smoothing) optimize(values []float64) (smoothingParams, error) {
	p := smoothingParams{alpha: 0.5, beta: 0.1, phi: 1.0}
	if s.variant == variantDampedHolt {
		p.phi = 0.9
	}

	prev := s.sse(values, p)
	for sweep := 0; sweep < s.opts.MaxIterations; sweep++ {
		p.alpha = s.lineSearch(values, p, coefLo, coefHi, func(q *smoothingParams, x float64) { q.alpha = x })
		if s.variant != variantSimple {
			p.beta = s.lineSearch(values, p, coefLo, coefHi, func(q *smoothingParams, x float64) { q.beta = x })
		}
		if s.variant == variantDampedHolt {
			p.phi = s.lineSearch(values, p, phiLo, phiHi, func(q *smoothingParams, x float64) { q.phi = x })
		}

		cur := s.sse(values, p)
		if math.Abs(prev-cur) <= s.opts.Tolerance*(1+math.Abs(prev)) {
			return p, nil
		}
		prev = cur
	}

	return p, fcerrors.OptimizationDidNotConverge(
		"%s coefficient fit did not stabilize within %d sweeps (tolerance %g)",
		s.Name(), s.opts.MaxIterations, s.opts.Tolerance).WithStrategy(s.Name())
}

// lineSearch minimizes the objective over one coordinate in [lo, hi] with
// golden-section search. The iteration count is bounded; the bracket
// shrinks geometrically so the bound is never the binding constraint in
// practice.
func (s *Smoothing) lineSearch(values []float64, p smoothingParams, lo, hi float64, set func(*smoothingParams, float64)) float64 {
	const invPhi = 0.6180339887498949

	eval := func(x float64) float64 {
		q := p
		set(&q, x)
		return s.sse(values, q)
	}

	a, b := lo, hi
	c := b - invPhi*(b-a)
	d := a + invPhi*(b-a)
	fc, fd := eval(c), eval(d)

	for i := 0; i < s.opts.MaxIterations && (b-a) > s.opts.Tolerance; i++ {
		if fc < fd {
			b, d, fd = d, c, fc
			c = b - invPhi*(b-a)
			fc = eval(c)
		} else {
			a, c, fc = c, d, fd
			d = a + invPhi*(b-a)
			fd = eval(d)
		}
	}

	return (a + b) / 2
}

type smoothingModel struct {
	variant   smoothingVariant
	params    smoothingParams
	level     float64
	trend     float64
	sd        float64
	residuals []float64
	intervals IntervalMethod
	train     *series.TimeSeries
}

func (m *smoothingModel) Strategy() string { return m.variant.name() }

// point extrapolates the fitted state h steps ahead.
func (m *smoothingModel) point(h int) float64 {
	switch m.variant {
	case variantSimple:
		return m.level
	case variantHolt:
		return m.level + float64(h)*m.trend
	default:
		// Damped trend: level + (phi + phi^2 + ... + phi^h) * trend.
		phi := m.params.phi
		return m.level + phi*(1-math.Pow(phi, float64(h)))/(1-phi)*m.trend
	}
}

// stepSDFactor returns the per-step error accumulation factor
// sqrt(1 + sum_{j=1}^{h-1} c_j^2) for the class of linear innovation
// state-space models underlying the smoothing family.
func (m *smoothingModel) stepSDFactor(h int) float64 {
	alpha, beta, phi := m.params.alpha, m.params.beta, m.params.phi
	sum := 1.0
	for j := 1; j < h; j++ {
		var c float64
		switch m.variant {
		case variantSimple:
			c = alpha
		case variantHolt:
			c = alpha * (1 + float64(j)*beta)
		default:
			c = alpha * (1 + beta*phi*(1-math.Pow(phi, float64(j)))/(1-phi))
		}
		sum += c * c
	}
	return math.Sqrt(sum)
}

// Forecast implements FittedModel.
func (m *smoothingModel) Forecast(horizon int, levels []float64) (*Forecast, error) {
	if err := validateHorizon(horizon); err != nil {
		return nil, err
	}
	levels, err := normalizeLevels(levels)
	if err != nil {
		return nil, err
	}

	future := m.train.FutureTimestamps(horizon)
	steps := make([]Step, horizon)
	for h := 1; h <= horizon; h++ {
		point := m.point(h)
		factor := m.stepSDFactor(h)
		if m.intervals == IntervalEmpirical {
			steps[h-1] = m.empiricalStep(future[h-1], point, factor, levels)
		} else {
			steps[h-1] = gaussianStep(future[h-1], point, m.sd*factor, levels)
		}
	}

	return &Forecast{Strategy: m.Strategy(), Levels: levels, Steps: steps}, nil
}

// empiricalStep derives bounds from the empirical quantiles of in-sample
// one-step residuals, widened by the same accumulation factor used for the
// Gaussian bounds. Offered because residuals of daily count data are often
// visibly non-Gaussian.
func (m *smoothingModel) empiricalStep(ts time.Time, point, factor float64, levels []float64) Step {
	sorted := append([]float64(nil), m.residuals...)
	sort.Float64s(sorted)

	bounds := make([]Interval, len(levels))
	for i, l := range levels {
		lower := empiricalQuantile(sorted, (1-l)/2)
		upper := empiricalQuantile(sorted, (1+l)/2)
		bounds[i] = Interval{Lower: point + factor*lower, Upper: point + factor*upper}
	}
	return Step{Timestamp: ts, Point: point, Bounds: bounds}
}

// empiricalQuantile returns the linearly interpolated q-quantile of a
// sorted sample.
func empiricalQuantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
