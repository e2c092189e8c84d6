package study

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/trialmesh/trialmesh/pkg/types"
)

// Sampler draws a value for one named parameter of a trial, given its
// distribution. Implementations are free to consult the trial's existing
// params/attrs for conditional search (TPE, grid, etc.); the reference
// RandomSampler ignores them entirely.
type Sampler interface {
	SampleFloat(trial *TrialRecord, name string, dist types.Distribution) (float64, error)
	SampleInt(trial *TrialRecord, name string, dist types.Distribution) (int64, error)
	SampleCategorical(trial *TrialRecord, name string, dist types.Distribution) (any, error)
}

// RandomSampler draws uniformly (or log-uniformly) at random. It is the
// simplest possible Sampler and exists so the event loop and managers can
// be exercised end to end without a real search algorithm.
type RandomSampler struct {
	rng *rand.Rand
}

// NewRandomSampler builds a RandomSampler seeded with seed. A seed of 0
// seeds from a fixed constant so tests are reproducible; callers that want
// real randomness should pass time.Now().UnixNano().
func NewRandomSampler(seed int64) *RandomSampler {
	if seed == 0 {
		seed = 1
	}
	return &RandomSampler{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomSampler) SampleFloat(_ *TrialRecord, name string, dist types.Distribution) (float64, error) {
	if dist.Kind != types.DistributionFloat {
		return 0, fmt.Errorf("study: %q is not a float distribution", name)
	}
	low, high := dist.Low, dist.High
	if dist.Log {
		if low <= 0 || high <= 0 {
			return 0, fmt.Errorf("study: log distribution for %q requires positive bounds", name)
		}
		logLow, logHigh := math.Log(low), math.Log(high)
		return math.Exp(logLow + s.rng.Float64()*(logHigh-logLow)), nil
	}
	v := low + s.rng.Float64()*(high-low)
	if dist.Step > 0 {
		steps := math.Round((v - low) / dist.Step)
		v = low + steps*dist.Step
		if v > high {
			v = high
		}
	}
	return v, nil
}

func (s *RandomSampler) SampleInt(_ *TrialRecord, name string, dist types.Distribution) (int64, error) {
	if dist.Kind != types.DistributionInt {
		return 0, fmt.Errorf("study: %q is not an int distribution", name)
	}
	low, high := int64(dist.Low), int64(dist.High)
	if high < low {
		return 0, fmt.Errorf("study: invalid bounds for %q: high < low", name)
	}
	step := int64(dist.Step)
	if step <= 0 {
		step = 1
	}
	n := (high-low)/step + 1
	return low + step*int64(s.rng.Int63n(n)), nil
}

func (s *RandomSampler) SampleCategorical(_ *TrialRecord, name string, dist types.Distribution) (any, error) {
	if dist.Kind != types.DistributionCategorical || len(dist.Choices) == 0 {
		return nil, fmt.Errorf("study: %q is not a populated categorical distribution", name)
	}
	return dist.Choices[s.rng.Intn(len(dist.Choices))], nil
}
