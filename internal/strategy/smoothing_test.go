package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleSmoothingTracksLevel(t *testing.T) {
	// A noiseless level shift: SES should settle near the new level.
	values := []float64{10, 10, 10, 10, 20, 20, 20, 20, 20, 20, 20, 20}
	ts := newDaily(t, values...)

	model, err := NewSimpleSmoothing(Options{}).Fit(ts)
	require.NoError(t, err)

	fc, err := model.Forecast(3, []float64{0.95})
	require.NoError(t, err)

	for _, step := range fc.Steps {
		assert.InDelta(t, 20.0, step.Point, 1.0)
	}

	// SES forecasts are flat: every horizon step shares one point value.
	assert.Equal(t, fc.Steps[0].Point, fc.Steps[1].Point)
	assert.Equal(t, fc.Steps[1].Point, fc.Steps[2].Point)
}

func TestHoltExtrapolatesTrend(t *testing.T) {
	// Perfect linear trend: Holt should learn slope 2 almost exactly.
	values := make([]float64, 20)
	for i := range values {
		values[i] = 10 + 2*float64(i)
	}
	ts := newDaily(t, values...)

	model, err := NewHolt(Options{}).Fit(ts)
	require.NoError(t, err)

	fc, err := model.Forecast(4, []float64{0.95})
	require.NoError(t, err)

	last := values[len(values)-1]
	for h, step := range fc.Steps {
		assert.InDelta(t, last+2*float64(h+1), step.Point, 0.5, "step %d", h)
	}
}

func TestDampedHoltFlattens(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 10 + 2*float64(i)
	}
	ts := newDaily(t, values...)

	damped, err := NewDampedHolt(Options{}).Fit(ts)
	require.NoError(t, err)
	holt, err := NewHolt(Options{}).Fit(ts)
	require.NoError(t, err)

	const horizon = 20
	dfc, err := damped.Forecast(horizon, []float64{0.95})
	require.NoError(t, err)
	hfc, err := holt.Forecast(horizon, []float64{0.95})
	require.NoError(t, err)

	// The damped trend must extrapolate less far than the linear trend at
	// long horizons.
	assert.Less(t, dfc.Steps[horizon-1].Point, hfc.Steps[horizon-1].Point)

	// Damped trend increments shrink with the horizon.
	inc1 := dfc.Steps[1].Point - dfc.Steps[0].Point
	incLast := dfc.Steps[horizon-1].Point - dfc.Steps[horizon-2].Point
	assert.Less(t, incLast, inc1)
}

func TestSmoothingIntervalWidthGrows(t *testing.T) {
	values := []float64{12, 15, 11, 17, 14, 19, 13, 18, 16, 21, 15, 22, 18, 24, 19}
	ts := newDaily(t, values...)

	for _, s := range []Strategy{
		NewSimpleSmoothing(Options{}),
		NewHolt(Options{}),
		NewDampedHolt(Options{}),
	} {
		t.Run(s.Name(), func(t *testing.T) {
			model, err := s.Fit(ts)
			require.NoError(t, err)

			fc, err := model.Forecast(6, []float64{0.95})
			require.NoError(t, err)

			prev := 0.0
			for h, step := range fc.Steps {
				width := step.Bounds[0].Upper - step.Bounds[0].Lower
				assert.GreaterOrEqual(t, width, prev, "step %d", h)
				prev = width
			}
		})
	}
}

func TestSmoothingConstantSeriesNoNumericalErrors(t *testing.T) {
	ts := constantSeries(t, 7.5, 15)

	for _, s := range []Strategy{
		NewSimpleSmoothing(Options{}),
		NewHolt(Options{}),
		NewDampedHolt(Options{}),
	} {
		t.Run(s.Name(), func(t *testing.T) {
			model, err := s.Fit(ts)
			require.NoError(t, err)

			fc, err := model.Forecast(5, []float64{0.8})
			require.NoError(t, err)
			for _, step := range fc.Steps {
				assert.InDelta(t, 7.5, step.Point, 1e-9)
				assert.False(t, math.IsNaN(step.Bounds[0].Lower))
				assert.False(t, math.IsNaN(step.Bounds[0].Upper))
			}
		})
	}
}

func TestSmoothingDeterministic(t *testing.T) {
	values := []float64{12, 15, 11, 17, 14, 19, 13, 18, 16, 21}
	ts := newDaily(t, values...)

	first, err := NewHolt(Options{}).Fit(ts)
	require.NoError(t, err)
	second, err := NewHolt(Options{}).Fit(ts)
	require.NoError(t, err)

	fc1, err := first.Forecast(4, []float64{0.95})
	require.NoError(t, err)
	fc2, err := second.Forecast(4, []float64{0.95})
	require.NoError(t, err)

	assert.Equal(t, fc1.Points(), fc2.Points())
}

func TestEmpiricalIntervals(t *testing.T) {
	values := []float64{12, 15, 11, 17, 14, 19, 13, 18, 16, 21, 15, 22}
	ts := newDaily(t, values...)

	model, err := NewSimpleSmoothing(Options{Intervals: IntervalEmpirical}).Fit(ts)
	require.NoError(t, err)

	fc, err := model.Forecast(3, []float64{0.8})
	require.NoError(t, err)

	for _, step := range fc.Steps {
		b := step.Bounds[0]
		assert.LessOrEqual(t, b.Lower, step.Point)
		assert.GreaterOrEqual(t, b.Upper, step.Point)
	}
}

func TestEmpiricalQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	assert.Equal(t, 1.0, empiricalQuantile(sorted, 0))
	assert.Equal(t, 5.0, empiricalQuantile(sorted, 1))
	assert.Equal(t, 3.0, empiricalQuantile(sorted, 0.5))
	assert.InDelta(t, 1.4, empiricalQuantile(sorted, 0.1), 1e-12)

	assert.Equal(t, 0.0, empiricalQuantile(nil, 0.5))
	assert.Equal(t, 9.0, empiricalQuantile([]float64{9}, 0.5))
}
