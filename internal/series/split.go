package series

import (
	"fmt"
	"time"
)

// Split is an immutable partition of a TimeSeries into a training prefix
// and a testing suffix. The partition is contiguous: the first test
// observation is exactly one frequency step after the last training one.
type Split struct {
	Train *TimeSeries
	Test  *TimeSeries
}

// SplitAt partitions the series at the given cutoff timestamp. Observations
// at or before the cutoff form the training set, the rest the test set.
func SplitAt(s *TimeSeries, cutoff time.Time) (*Split, error) {
	n := 0
	for n < s.Len() && !s.Timestamp(n).After(cutoff) {
		n++
	}
	return SplitIndex(s, n)
}

// SplitLastN partitions the series so the last n observations form the
// test set.
func SplitLastN(s *TimeSeries, n int) (*Split, error) {
	if n < 0 {
		return nil, fmt.Errorf("holdout size must be non-negative, got %d", n)
	}
	return SplitIndex(s, s.Len()-n)
}

// SplitIndex partitions the series so the first trainLen observations form
// the training set.
func SplitIndex(s *TimeSeries, trainLen int) (*Split, error) {
	if trainLen <= 0 {
		return nil, fmt.Errorf("empty training partition (train length %d of %d)", trainLen, s.Len())
	}
	if trainLen > s.Len() {
		return nil, fmt.Errorf("training partition exceeds series length: %d > %d", trainLen, s.Len())
	}
	return &Split{
		Train: s.Slice(0, trainLen),
		Test:  s.Slice(trainLen, s.Len()),
	}, nil
}

// Validate checks the split invariants: non-empty training prefix,
// train end strictly before test start, and at most one frequency step
// between them.
func (sp *Split) Validate() error {
	if sp.Train == nil || sp.Train.Len() == 0 {
		return fmt.Errorf("split has empty training partition")
	}
	if sp.Test == nil || sp.Test.Len() == 0 {
		return nil // a trailing empty test set is allowed for full-history refits
	}
	if !sp.Train.End().Before(sp.Test.Start()) {
		return fmt.Errorf("training end %s not before test start %s",
			sp.Train.End().Format(time.RFC3339), sp.Test.Start().Format(time.RFC3339))
	}
	step := sp.Train.Frequency()
	if step > 0 && sp.Test.Start().Sub(sp.Train.End()) > step {
		return fmt.Errorf("gap between training end and test start exceeds one frequency step")
	}
	return nil
}
