package evaluate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tscast/internal/backtest"
	fcerrors "tscast/internal/errors"
	"tscast/internal/series"
)

func record(actual, forecast float64) backtest.Record {
	return backtest.Record{Actual: actual, Forecast: forecast, Error: actual - forecast}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name         string
		records      []backtest.Record
		wantMSE      float64
		wantMAPE     float64
		wantSamples  int
		wantExcluded int
	}{
		{
			name:        "naive walkforward",
			records:     []backtest.Record{record(16, 14), record(18, 16), record(17, 18), record(19, 17)},
			wantMSE:     3.25,
			wantMAPE:    (2.0/16 + 2.0/18 + 1.0/17 + 2.0/19) / 4 * 100,
			wantSamples: 4,
		},
		{
			name:        "perfect forecast",
			records:     []backtest.Record{record(5, 5), record(6, 6)},
			wantMSE:     0,
			wantMAPE:    0,
			wantSamples: 2,
		},
		{
			name: "zero actual excluded from mape",
			// The zero-actual sample still contributes to MSE but is
			// skipped by MAPE, leaving only the 10% miss.
			records:      []backtest.Record{record(0, 1), record(10, 9)},
			wantMSE:      (1.0 + 1.0) / 2,
			wantMAPE:     10,
			wantSamples:  2,
			wantExcluded: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize("naive", tt.records)
			assert.Equal(t, "naive", s.Strategy)
			assert.InDelta(t, tt.wantMSE, s.MSE, 1e-12)
			assert.InDelta(t, tt.wantMAPE, s.MAPE, 1e-12)
			assert.Equal(t, tt.wantSamples, s.Samples)
			assert.Equal(t, tt.wantExcluded, s.ZeroActualExcluded)
			assert.True(t, s.Valid())
		})
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize("mean", nil)
	assert.False(t, s.Valid())
	assert.True(t, math.IsNaN(s.MSE))
	assert.True(t, math.IsNaN(s.MAPE))
	assert.Zero(t, s.Samples)
}

func TestSummarizeAllZeroActuals(t *testing.T) {
	s := Summarize("mean", []backtest.Record{record(0, 1), record(0, 2)})
	assert.True(t, s.Valid())
	assert.InDelta(t, 2.5, s.MSE, 1e-12)
	assert.True(t, math.IsNaN(s.MAPE))
	assert.Equal(t, 2, s.ZeroActualExcluded)
}

func TestSummarizeResult(t *testing.T) {
	result := &backtest.Result{
		Series: "s",
		Records: map[string][]backtest.Record{
			"naive": {record(10, 9)},
			"mean":  nil,
		},
	}
	summaries := SummarizeResult(result)
	assert.True(t, summaries["naive"].Valid())
	assert.False(t, summaries["mean"].Valid())
}

func TestBest(t *testing.T) {
	summaries := map[string]Summary{
		"naive": {Strategy: "naive", MSE: 3.25, MAPE: 9.0, Samples: 4},
		"mean":  {Strategy: "mean", MSE: 5.0, MAPE: 4.0, Samples: 4},
		"ses":   {Strategy: "ses", MSE: 3.25, MAPE: 8.0, Samples: 4},
	}

	t.Run("mse with mape tiebreak", func(t *testing.T) {
		best, err := Best("s", summaries, MetricMSE)
		require.NoError(t, err)
		assert.Equal(t, "ses", best.Strategy)
	})

	t.Run("mape metric", func(t *testing.T) {
		best, err := Best("s", summaries, MetricMAPE)
		require.NoError(t, err)
		assert.Equal(t, "mean", best.Strategy)
	})

	t.Run("invalid summaries skipped", func(t *testing.T) {
		withInvalid := map[string]Summary{
			"mlp":   {Strategy: "mlp", MSE: math.NaN(), MAPE: math.NaN()},
			"naive": summaries["naive"],
		}
		best, err := Best("s", withInvalid, MetricMSE)
		require.NoError(t, err)
		assert.Equal(t, "naive", best.Strategy)
	})

	t.Run("no valid strategy", func(t *testing.T) {
		_, err := Best("doomed", map[string]Summary{
			"mlp": {Strategy: "mlp", MSE: math.NaN(), MAPE: math.NaN()},
		}, MetricMSE)
		require.Error(t, err)
		assert.True(t, fcerrors.IsCode(err, fcerrors.CodeNoValidStrategy))

		var fe *fcerrors.Error
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "doomed", fe.Series)
	})
}

func TestCompare(t *testing.T) {
	perSeries := map[series.ID]map[string]Summary{
		"a": {
			"naive": {Strategy: "naive", MSE: 4, MAPE: 12, Samples: 5},
			"ses":   {Strategy: "ses", MSE: 2, MAPE: 8, Samples: 5},
			"mlp":   {Strategy: "mlp"}, // failed everywhere on this series
		},
		"b": {
			"naive": {Strategy: "naive", MSE: 6, MAPE: 10, Samples: 5},
			"ses":   {Strategy: "ses", MSE: 4, MAPE: 9, Samples: 5},
		},
	}

	rankings := Compare(perSeries)
	require.Len(t, rankings, 2)

	assert.Equal(t, "ses", rankings[0].Strategy)
	assert.InDelta(t, 3, rankings[0].MeanMSE, 1e-12)
	assert.Equal(t, 2, rankings[0].Series)

	assert.Equal(t, "naive", rankings[1].Strategy)
	assert.InDelta(t, 5, rankings[1].MeanMSE, 1e-12)
}

func TestCompareTiesBrokenByMAPE(t *testing.T) {
	perSeries := map[series.ID]map[string]Summary{
		"a": {
			"holt":  {Strategy: "holt", MSE: 3, MAPE: 7, Samples: 5},
			"naive": {Strategy: "naive", MSE: 3, MAPE: 9, Samples: 5},
		},
	}

	rankings := Compare(perSeries)
	require.Len(t, rankings, 2)
	assert.Equal(t, "holt", rankings[0].Strategy)
	assert.Equal(t, "naive", rankings[1].Strategy)
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("MSE")
	require.NoError(t, err)
	assert.Equal(t, MetricMSE, m)

	m, err = ParseMetric("MAPE")
	require.NoError(t, err)
	assert.Equal(t, MetricMAPE, m)

	_, err = ParseMetric("rmse")
	require.Error(t, err)
	assert.True(t, fcerrors.IsCode(err, fcerrors.CodeInvalidConfiguration))
}
