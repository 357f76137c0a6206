package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fcerrors "tscast/internal/errors"
)

func TestLaggedPairs(t *testing.T) {
	t.Run("complete windows", func(t *testing.T) {
		features, targets := laggedPairs([]float64{1, 2, 3, 4, 5}, 2)
		require.Len(t, targets, 3)
		assert.Equal(t, []float64{1, 2}, features[0])
		assert.Equal(t, 3.0, targets[0])
		assert.Equal(t, []float64{3, 4}, features[2])
		assert.Equal(t, 5.0, targets[2])
	})

	t.Run("drops incomplete windows", func(t *testing.T) {
		values := []float64{1, 2, math.NaN(), 4, 5, 6, 7}
		features, targets := laggedPairs(values, 2)

		// Windows touching the NaN at index 2 are dropped: targets at
		// indices 2, 3, and 4 are unusable; only 6 and 7 survive.
		require.Len(t, targets, 2)
		assert.Equal(t, []float64{4, 5}, features[0])
		assert.Equal(t, 6.0, targets[0])
		assert.Equal(t, 7.0, targets[1])
	})

	t.Run("too short", func(t *testing.T) {
		_, targets := laggedPairs([]float64{1, 2}, 4)
		assert.Empty(t, targets)
	})
}

func TestMLPInsufficientHistory(t *testing.T) {
	_, err := NewMLP(Options{LagOrder: 5}).Fit(newDaily(t, 1, 2, 3, 4, 5, 6))
	assert.True(t, fcerrors.IsCode(err, fcerrors.CodeInsufficientHistory))
}

func TestMLPConstantSeries(t *testing.T) {
	model, err := NewMLP(Options{LagOrder: 3}).Fit(constantSeries(t, 11.0, 20))
	require.NoError(t, err)

	fc, err := model.Forecast(5, []float64{0.95})
	require.NoError(t, err)
	for _, step := range fc.Steps {
		assert.Equal(t, 11.0, step.Point)
		assert.Equal(t, step.Point, step.Bounds[0].Lower)
		assert.Equal(t, step.Point, step.Bounds[0].Upper)
	}
}

func TestMLPDeterministic(t *testing.T) {
	values := []float64{10, 12, 11, 13, 15, 14, 16, 18, 17, 19, 21, 20, 22, 24, 23, 25}
	ts := newDaily(t, values...)
	opts := Options{LagOrder: 4, HiddenUnits: 6}

	m1, err := NewMLP(opts).Fit(ts)
	require.NoError(t, err)
	m2, err := NewMLP(opts).Fit(ts)
	require.NoError(t, err)

	fc1, err := m1.Forecast(5, []float64{0.95})
	require.NoError(t, err)
	fc2, err := m2.Forecast(5, []float64{0.95})
	require.NoError(t, err)

	assert.Equal(t, fc1.Points(), fc2.Points())
}

func TestMLPLearnsAutoregression(t *testing.T) {
	// A deterministic AR(1)-style signal; the network should forecast in
	// the neighborhood of the signal's range rather than exploding.
	values := make([]float64, 60)
	values[0] = 10
	for i := 1; i < len(values); i++ {
		values[i] = 5 + 0.8*values[i-1]
	}
	ts := newDaily(t, values...)

	model, err := NewMLP(Options{LagOrder: 4, HiddenUnits: 8}).Fit(ts)
	require.NoError(t, err)

	fc, err := model.Forecast(6, []float64{0.95})
	require.NoError(t, err)

	for _, step := range fc.Steps {
		assert.False(t, math.IsNaN(step.Point))
		assert.Greater(t, step.Point, 0.0)
		assert.Less(t, step.Point, 50.0)
	}
}

func TestMLPRecursiveForecastShiftsLags(t *testing.T) {
	values := []float64{10, 12, 11, 13, 15, 14, 16, 18, 17, 19}
	ts := newDaily(t, values...)

	model, err := NewMLP(Options{LagOrder: 3, HiddenUnits: 4}).Fit(ts)
	require.NoError(t, err)

	fc, err := model.Forecast(4, []float64{0.95})
	require.NoError(t, err)
	require.Len(t, fc.Steps, 4)

	// Interval widths grow with the horizon under recursive feedback.
	for h := 1; h < len(fc.Steps); h++ {
		wPrev := fc.Steps[h-1].Bounds[0].Upper - fc.Steps[h-1].Bounds[0].Lower
		wCur := fc.Steps[h].Bounds[0].Upper - fc.Steps[h].Bounds[0].Lower
		assert.GreaterOrEqual(t, wCur, wPrev)
	}
}
