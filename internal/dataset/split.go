package dataset

import (
	"fmt"
	"math"
)

// Partition is a chronological train/test split. Train precedes Test in time.
type Partition struct {
	Train []Observation
	Test  []Observation
}

// Split assigns the first round(fraction*N) observations to Train and the rest to Test.
// The order of obs is preserved and nothing is shuffled.
func Split(obs []Observation, fraction float64) (Partition, error) {
	if math.IsNaN(fraction) || fraction <= 0 || fraction >= 1 {
		return Partition{}, fmt.Errorf("%w: got %v", ErrInvalidSplitFraction, fraction)
	}

	n := len(obs)
	cut := int(math.Round(fraction * float64(n)))
	if cut == 0 || cut == n {
		return Partition{}, fmt.Errorf("%w: %d observations cannot be split at %.2f", ErrInsufficientData, n, fraction)
	}

	return Partition{Train: obs[:cut], Test: obs[cut:]}, nil
}
