// Package evaluate aggregates backtest error records into per-strategy
// accuracy summaries and ranks strategies across series. It is read-only
// over records; aggregation never mutates its inputs.
package evaluate

import (
	"math"
	"sort"

	"tscast/internal/backtest"
	fcerrors "tscast/internal/errors"
	"tscast/internal/series"
)

// Metric names an accuracy measure used for model selection.
type Metric string

const (
	// MetricMSE is the mean squared forecast error.
	MetricMSE Metric = "MSE"
	// MetricMAPE is the mean absolute percentage error over samples with
	// a non-zero actual value.
	MetricMAPE Metric = "MAPE"
)

// ParseMetric validates a metric name from configuration.
func ParseMetric(name string) (Metric, error) {
	switch Metric(name) {
	case MetricMSE, MetricMAPE:
		return Metric(name), nil
	default:
		return "", fcerrors.InvalidConfiguration("unknown selection metric %q, want MSE or MAPE", name)
	}
}

// Summary is the accuracy of one strategy over a set of error records.
type Summary struct {
	Strategy string `json:"strategy"`
	// MSE is the mean squared error over all samples. NaN when no
	// samples exist.
	MSE float64 `json:"mse"`
	// MAPE is the mean absolute percentage error, in percent, over
	// samples whose actual value is non-zero. NaN when every sample was
	// excluded or no samples exist.
	MAPE float64 `json:"mape"`
	// Samples is the total number of error records aggregated.
	Samples int `json:"samples"`
	// ZeroActualExcluded counts samples skipped by MAPE because the
	// actual value was exactly zero.
	ZeroActualExcluded int `json:"zero_actual_excluded"`
}

// Valid reports whether the summary aggregates at least one sample.
func (s Summary) Valid() bool {
	return s.Samples > 0
}

// Score returns the summary's value for the given metric.
func (s Summary) Score(metric Metric) float64 {
	if metric == MetricMAPE {
		return s.MAPE
	}
	return s.MSE
}

// Summarize aggregates error records for a single strategy. Records for
// other strategies must not be mixed into the input.
func Summarize(strategyName string, records []backtest.Record) Summary {
	s := Summary{Strategy: strategyName, MSE: math.NaN(), MAPE: math.NaN()}
	if len(records) == 0 {
		return s
	}

	var sse, sape float64
	mapeSamples := 0
	for _, r := range records {
		sse += r.Error * r.Error
		if r.Actual == 0 {
			s.ZeroActualExcluded++
			continue
		}
		sape += math.Abs(r.Error/r.Actual) * 100
		mapeSamples++
	}

	s.Samples = len(records)
	s.MSE = sse / float64(len(records))
	if mapeSamples > 0 {
		s.MAPE = sape / float64(mapeSamples)
	}
	return s
}

// SummarizeResult produces one summary per strategy from a single series'
// backtest result. Strategies that never produced a record yield an
// invalid summary, preserved so callers can report exhausted candidates.
func SummarizeResult(result *backtest.Result) map[string]Summary {
	out := make(map[string]Summary, len(result.Records))
	for name, records := range result.Records {
		out[name] = Summarize(name, records)
	}
	return out
}

// Best picks the strategy with the lowest score under the given metric
// among valid summaries, ties broken by the other metric and finally by
// name for determinism. Returns NoValidStrategy when nothing is valid.
func Best(seriesID series.ID, summaries map[string]Summary, metric Metric) (Summary, error) {
	var best Summary
	found := false
	for _, s := range summaries {
		if !s.Valid() || math.IsNaN(s.Score(metric)) {
			continue
		}
		if !found || lessByMetric(s, best, metric) {
			best = s
			found = true
		}
	}
	if !found {
		return Summary{}, fcerrors.NoValidStrategy(string(seriesID), nil)
	}
	return best, nil
}

// Ranking is one row of a cross-series strategy comparison.
type Ranking struct {
	Strategy string `json:"strategy"`
	// MeanMSE and MeanMAPE average the per-series summary values over
	// the series where the strategy produced samples.
	MeanMSE  float64 `json:"mean_mse"`
	MeanMAPE float64 `json:"mean_mape"`
	// Series counts the series contributing to the means.
	Series int `json:"series"`
}

// Compare ranks strategies across series by mean MSE, ties broken by
// lower mean MAPE and then by name. Strategies with no valid summary on
// any series are omitted.
func Compare(perSeries map[series.ID]map[string]Summary) []Ranking {
	type acc struct {
		mse, mape float64
		n, mapeN  int
	}
	byStrategy := make(map[string]*acc)
	for _, summaries := range perSeries {
		for name, s := range summaries {
			if !s.Valid() {
				continue
			}
			a := byStrategy[name]
			if a == nil {
				a = &acc{}
				byStrategy[name] = a
			}
			a.mse += s.MSE
			a.n++
			if !math.IsNaN(s.MAPE) {
				a.mape += s.MAPE
				a.mapeN++
			}
		}
	}

	rankings := make([]Ranking, 0, len(byStrategy))
	for name, a := range byStrategy {
		r := Ranking{Strategy: name, MeanMSE: a.mse / float64(a.n), MeanMAPE: math.NaN(), Series: a.n}
		if a.mapeN > 0 {
			r.MeanMAPE = a.mape / float64(a.mapeN)
		}
		rankings = append(rankings, r)
	}

	sort.Slice(rankings, func(i, j int) bool {
		a, b := rankings[i], rankings[j]
		if a.MeanMSE != b.MeanMSE {
			return a.MeanMSE < b.MeanMSE
		}
		if am, bm := orderable(a.MeanMAPE), orderable(b.MeanMAPE); am != bm {
			return am < bm
		}
		return a.Strategy < b.Strategy
	})
	return rankings
}

// lessByMetric orders two summaries for selection under the primary
// metric, falling back to the secondary metric and the strategy name.
func lessByMetric(a, b Summary, metric Metric) bool {
	secondary := MetricMAPE
	if metric == MetricMAPE {
		secondary = MetricMSE
	}
	ap, bp := a.Score(metric), b.Score(metric)
	if ap != bp {
		return ap < bp
	}
	if as, bs := orderable(a.Score(secondary)), orderable(b.Score(secondary)); as != bs {
		return as < bs
	}
	return a.Strategy < b.Strategy
}

// orderable maps NaN to +Inf so undefined metrics always sort last.
func orderable(v float64) float64 {
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}
