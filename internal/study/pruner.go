package study

// Pruner decides whether a running trial's intermediate results justify
// cutting it short.
type Pruner interface {
	ShouldPrune(trial *TrialRecord) (bool, error)
}

// NopPruner never prunes. It is the default used when a Study is built
// without an explicit Pruner.
type NopPruner struct{}

func (NopPruner) ShouldPrune(*TrialRecord) (bool, error) { return false, nil }

// ThresholdPruner prunes a trial once any intermediate value crosses
// Bound, in the direction given by Greater (true: prune when value >
// Bound; false: prune when value < Bound). A small, literal reference
// pruner, real deployments would bind to a library implementation
// (median pruner, successive halving, ...).
type ThresholdPruner struct {
	Bound   float64
	Greater bool
}

func (p ThresholdPruner) ShouldPrune(trial *TrialRecord) (bool, error) {
	for _, v := range trial.IntermediateValues {
		if p.Greater && v > p.Bound {
			return true, nil
		}
		if !p.Greater && v < p.Bound {
			return true, nil
		}
	}
	return false, nil
}
