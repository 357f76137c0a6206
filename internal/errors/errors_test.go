package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "code and message only",
			err:      New(CodeInvalidConfiguration, "horizon must be positive"),
			expected: "INVALID_CONFIGURATION: horizon must be positive",
		},
		{
			name:     "with series",
			err:      InsufficientHistory("need 7 points, got 3").WithSeries("north"),
			expected: "INSUFFICIENT_HISTORY: need 7 points, got 3 (series=north)",
		},
		{
			name:     "with series and strategy",
			err:      InsufficientHistory("need one full season").WithSeries("north").WithStrategy("seasonal_naive"),
			expected: "INSUFFICIENT_HISTORY: need one full season (series=north) (strategy=seasonal_naive)",
		},
		{
			name:     "with wrapped cause",
			err:      Wrap(CodeOptimizationDidNotConverge, "smoothing fit", fmt.Errorf("sse did not improve")),
			expected: "OPTIMIZATION_DID_NOT_CONVERGE: smoothing fit: sse did not improve",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestIsCode(t *testing.T) {
	base := InsufficientHistory("series too short").WithSeries("west")

	assert.True(t, IsCode(base, CodeInsufficientHistory))
	assert.False(t, IsCode(base, CodeNoValidStrategy))
	assert.False(t, IsCode(errors.New("plain"), CodeInsufficientHistory))
	assert.False(t, IsCode(nil, CodeInsufficientHistory))

	// Wrapped through fmt.Errorf the code must still be detectable.
	wrapped := fmt.Errorf("batch run: %w", base)
	assert.True(t, IsCode(wrapped, CodeInsufficientHistory))
	assert.Equal(t, CodeInsufficientHistory, GetCode(wrapped))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("window shorter than lag order")
	err := Wrap(CodeInsufficientHistory, "mlp fit", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Unwrap())
}

func TestWithSeriesDoesNotMutate(t *testing.T) {
	base := New(CodeNoValidStrategy, "exhausted")
	annotated := base.WithSeries("south")

	assert.Empty(t, base.Series)
	assert.Equal(t, "south", annotated.Series)
}

func TestNoValidStrategyCarriesCauses(t *testing.T) {
	causes := errors.Join(
		InsufficientHistory("naive needs 1 point"),
		OptimizationDidNotConverge("holt fit exceeded 200 iterations"),
	)
	err := NoValidStrategy("east", causes)

	assert.Equal(t, CodeNoValidStrategy, err.Code)
	assert.Equal(t, "east", err.Series)
	assert.True(t, IsCode(err.Unwrap(), CodeInsufficientHistory) || err.Unwrap() != nil)
}
