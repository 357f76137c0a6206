package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitIndex(t *testing.T) {
	s := newDaily(t, 10, 11, 12, 13, 14)

	sp, err := SplitIndex(s, 3)
	require.NoError(t, err)

	assert.Equal(t, []float64{10, 11, 12}, sp.Train.Values())
	assert.Equal(t, []float64{13, 14}, sp.Test.Values())
	assert.NoError(t, sp.Validate())
}

func TestSplitIndexBounds(t *testing.T) {
	s := newDaily(t, 10, 11, 12)

	_, err := SplitIndex(s, 0)
	assert.Error(t, err)

	_, err = SplitIndex(s, 4)
	assert.Error(t, err)

	// Full-length training prefix leaves an empty but valid test set.
	sp, err := SplitIndex(s, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, sp.Test.Len())
	assert.NoError(t, sp.Validate())
}

func TestSplitAt(t *testing.T) {
	s := newDaily(t, 10, 11, 12, 13)
	cutoff := s.Timestamp(1)

	sp, err := SplitAt(s, cutoff)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11}, sp.Train.Values())
	assert.Equal(t, []float64{12, 13}, sp.Test.Values())

	// Cutoff between observations behaves identically to cutoff on the
	// preceding observation.
	sp2, err := SplitAt(s, cutoff.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, sp.Train.Values(), sp2.Train.Values())
}

func TestSplitLastN(t *testing.T) {
	s := newDaily(t, 10, 11, 12, 13)

	sp, err := SplitLastN(s, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, sp.Train.Len())
	assert.Equal(t, []float64{13}, sp.Test.Values())

	_, err = SplitLastN(s, -1)
	assert.Error(t, err)

	_, err = SplitLastN(s, 4)
	assert.Error(t, err)
}
