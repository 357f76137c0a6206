package strategy

import (
	"math"
	"math/rand"

	fcerrors "tscast/internal/errors"
	"tscast/internal/series"
)

// MLP is a nonlinear autoregressor: the training series is converted into
// lagged-feature/target pairs over a sliding window and a small
// feed-forward network (one tanh hidden layer, linear output) is fit by
// bounded gradient descent. Multi-step forecasts are produced recursively,
// feeding each prediction back as a lag for the next step.
type MLP struct {
	opts Options
}

// NewMLP creates an MLP strategy with the given options (lag order, hidden
// units, iteration bound).
func NewMLP(opts Options) *MLP {
	return &MLP{opts: opts.withDefaults()}
}

// Name implements Strategy.
func (*MLP) Name() string { return "mlp" }

// mlpSeed fixes weight initialization so repeated fits on identical input
// yield identical forecasts.
const mlpSeed = 1

// Fit implements Strategy.
func (m *MLP) Fit(ts *series.TimeSeries) (FittedModel, error) {
	p := m.opts.LagOrder

	features, targets := laggedPairs(ts.Values(), p)
	if len(targets) < 2 {
		return nil, fcerrors.InsufficientHistory(
			"mlp with lag order %d requires at least %d observations with complete lag windows, got %d usable pairs",
			p, p+2, len(targets)).WithStrategy(m.Name())
	}

	// Standardize on training statistics. A zero-variance target means a
	// constant series: skip training entirely and forecast the constant.
	mean, sd := meanStd(targets)
	if sd == 0 {
		return &mlpModel{
			constant: true,
			mean:     mean,
			lags:     lastLags(ts.Values(), p),
			train:    ts,
		}, nil
	}

	net := newNetwork(p, m.opts.HiddenUnits, rand.New(rand.NewSource(mlpSeed)))

	x := standardizeAll(features, mean, sd)
	y := standardize(targets, mean, sd)

	if err := net.train(x, y, m.opts.MaxIterations, m.opts.Tolerance); err != nil {
		return nil, err
	}

	// In-sample one-step residuals on the original scale.
	residuals := make([]float64, len(y))
	for i := range x {
		residuals[i] = (y[i] - net.forward(x[i])) * sd
	}

	return &mlpModel{
		net:   net,
		mean:  mean,
		sd:    sd,
		resSD: residualStd(residuals, 1),
		lags:  lastLags(ts.Values(), p),
		train: ts,
	}, nil
}

// laggedPairs builds (lag window, next value) pairs, dropping any pair
// whose window or target contains a missing value.
func laggedPairs(values []float64, p int) ([][]float64, []float64) {
	var features [][]float64
	var targets []float64

	for t := p; t < len(values); t++ {
		if math.IsNaN(values[t]) {
			continue
		}
		window := values[t-p : t]
		complete := true
		for _, v := range window {
			if math.IsNaN(v) {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		features = append(features, append([]float64(nil), window...))
		targets = append(targets, values[t])
	}
	return features, targets
}

// lastLags returns the final p values of the series as the seed lag buffer
// for recursive forecasting.
func lastLags(values []float64, p int) []float64 {
	if len(values) < p {
		return append([]float64(nil), values...)
	}
	return append([]float64(nil), values[len(values)-p:]...)
}

func meanStd(xs []float64) (mean, sd float64) {
	for _, v := range xs {
		mean += v
	}
	mean /= float64(len(xs))
	for _, v := range xs {
		d := v - mean
		sd += d * d
	}
	if len(xs) > 1 {
		sd = math.Sqrt(sd / float64(len(xs)-1))
	} else {
		sd = 0
	}
	return mean, sd
}

func standardize(xs []float64, mean, sd float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = (v - mean) / sd
	}
	return out
}

func standardizeAll(xs [][]float64, mean, sd float64) [][]float64 {
	out := make([][]float64, len(xs))
	for i, row := range xs {
		out[i] = standardize(row, mean, sd)
	}
	return out
}

// network is a single-hidden-layer feed-forward regressor.
type network struct {
	inputs int
	hidden int
	w1     [][]float64 // hidden x inputs
	b1     []float64
	w2     []float64 // hidden
	b2     float64
}

func newNetwork(inputs, hidden int, rng *rand.Rand) *network {
	n := &network{
		inputs: inputs,
		hidden: hidden,
		w1:     make([][]float64, hidden),
		b1:     make([]float64, hidden),
		w2:     make([]float64, hidden),
	}
	scale := 1 / math.Sqrt(float64(inputs))
	for h := 0; h < hidden; h++ {
		n.w1[h] = make([]float64, inputs)
		for i := 0; i < inputs; i++ {
			n.w1[h][i] = (rng.Float64()*2 - 1) * scale
		}
		n.w2[h] = (rng.Float64()*2 - 1) / math.Sqrt(float64(hidden))
	}
	return n
}

func (n *network) forward(x []float64) float64 {
	out := n.b2
	for h := 0; h < n.hidden; h++ {
		z := n.b1[h]
		for i := 0; i < n.inputs; i++ {
			z += n.w1[h][i] * x[i]
		}
		out += n.w2[h] * math.Tanh(z)
	}
	return out
}

// train runs full-batch gradient descent for at most maxEpochs epochs,
// stopping early once the loss improvement falls below tol. A diverging
// loss (NaN/Inf) fails with OptimizationDidNotConverge.
func (n *network) train(x [][]float64, y []float64, maxEpochs int, tol float64) error {
	const learningRate = 0.05
	m := float64(len(y))

	prevLoss := math.Inf(1)
	for epoch := 0; epoch < maxEpochs; epoch++ {
		gw1 := make([][]float64, n.hidden)
		gb1 := make([]float64, n.hidden)
		gw2 := make([]float64, n.hidden)
		gb2 := 0.0
		for h := range gw1 {
			gw1[h] = make([]float64, n.inputs)
		}

		loss := 0.0
		for s := range x {
			// Forward pass, keeping hidden activations for backprop.
			act := make([]float64, n.hidden)
			out := n.b2
			for h := 0; h < n.hidden; h++ {
				z := n.b1[h]
				for i := 0; i < n.inputs; i++ {
					z += n.w1[h][i] * x[s][i]
				}
				act[h] = math.Tanh(z)
				out += n.w2[h] * act[h]
			}

			err := out - y[s]
			loss += err * err

			gb2 += 2 * err / m
			for h := 0; h < n.hidden; h++ {
				gw2[h] += 2 * err * act[h] / m
				dHidden := 2 * err * n.w2[h] * (1 - act[h]*act[h]) / m
				gb1[h] += dHidden
				for i := 0; i < n.inputs; i++ {
					gw1[h][i] += dHidden * x[s][i]
				}
			}
		}
		loss /= m

		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return fcerrors.OptimizationDidNotConverge(
				"mlp training diverged at epoch %d", epoch).WithStrategy("mlp")
		}

		n.b2 -= learningRate * gb2
		for h := 0; h < n.hidden; h++ {
			n.w2[h] -= learningRate * gw2[h]
			n.b1[h] -= learningRate * gb1[h]
			for i := 0; i < n.inputs; i++ {
				n.w1[h][i] -= learningRate * gw1[h][i]
			}
		}

		if math.Abs(prevLoss-loss) <= tol*(1+loss) {
			return nil
		}
		prevLoss = loss
	}

	// The epoch budget is the training duration; stopping here is a
	// bounded, deterministic outcome, not a failure.
	return nil
}

type mlpModel struct {
	net      *network
	constant bool
	mean     float64
	sd       float64
	resSD    float64
	lags     []float64
	train    *series.TimeSeries
}

func (*mlpModel) Strategy() string { return "mlp" }

// Forecast implements FittedModel, producing multi-step forecasts
// recursively: each prediction becomes the newest lag of the next step.
func (m *mlpModel) Forecast(horizon int, levels []float64) (*Forecast, error) {
	if err := validateHorizon(horizon); err != nil {
		return nil, err
	}
	levels, err := normalizeLevels(levels)
	if err != nil {
		return nil, err
	}

	future := m.train.FutureTimestamps(horizon)
	lags := append([]float64(nil), m.lags...)
	steps := make([]Step, horizon)

	for h := 0; h < horizon; h++ {
		var point float64
		if m.constant {
			point = m.mean
		} else {
			x := standardize(lags, m.mean, m.sd)
			point = m.net.forward(x)*m.sd + m.mean
		}

		sd := m.resSD * math.Sqrt(float64(h+1))
		steps[h] = gaussianStep(future[h], point, sd, levels)

		lags = append(lags[1:], point)
	}

	return &Forecast{Strategy: "mlp", Levels: levels, Steps: steps}, nil
}
