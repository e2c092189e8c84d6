// Package types defines the core domain model shared by every layer of the
// distributed trial dispatch core: trial identity, trial state, the
// suggestion-distribution union, and the closed enums used by the message
// taxonomy instead of stringly-typed field access.
package types

import "time"

// TrialID uniquely identifies a trial. It is issued exactly once by the
// study when a trial is created and never invented by a worker.
type TrialID int64

// TrialState is the manager-side lifecycle state of a trial.
type TrialState string

// Trial lifecycle states. Transitions are strictly Waiting -> Running ->
// Finished; no other order is valid.
const (
	TrialWaiting  TrialState = "waiting"
	TrialRunning  TrialState = "running"
	TrialFinished TrialState = "finished"
)

// DistributionKind selects which suggest method a Suggest message dispatches
// to. Modeled as a closed enum rather than a string so that an unknown
// variant is a compile-time/programming error, not a runtime string match.
type DistributionKind int

const (
	DistributionFloat DistributionKind = iota
	DistributionInt
	DistributionCategorical
)

// Distribution describes the bounds of a single suggested parameter. Only
// the fields relevant to Kind are populated; callers that build one by hand
// should use the NewFloatDistribution/NewIntDistribution/
// NewCategoricalDistribution constructors below.
type Distribution struct {
	Kind    DistributionKind
	Low     float64
	High    float64
	Step    float64 // 0 means continuous
	Log     bool
	Choices []any // only meaningful when Kind == DistributionCategorical
}

// NewFloatDistribution builds a Float distribution, optionally stepped
// and/or log-scaled.
func NewFloatDistribution(low, high, step float64, log bool) Distribution {
	return Distribution{Kind: DistributionFloat, Low: low, High: high, Step: step, Log: log}
}

// NewIntDistribution builds an Int distribution.
func NewIntDistribution(low, high int64, step int64, log bool) Distribution {
	return Distribution{Kind: DistributionInt, Low: float64(low), High: float64(high), Step: float64(step), Log: log}
}

// NewCategoricalDistribution builds a Categorical distribution over choices.
func NewCategoricalDistribution(choices []any) Distribution {
	return Distribution{Kind: DistributionCategorical, Choices: choices}
}

// PropertyTag is the closed enumeration of read-only trial properties the
// remote proxy may fetch. A tagged variant instead of reflecting over field
// names, per the wire protocol's dynamic-property design note.
type PropertyTag int

const (
	PropertyParams PropertyTag = iota
	PropertyDistributions
	PropertyUserAttrs
	PropertySystemAttrs
	PropertyDatetimeStart
	PropertyNumber
)

// AttributeKind selects the namespace a SetAttribute message writes into.
type AttributeKind int

const (
	AttributeUser AttributeKind = iota
	AttributeSystem
)

// TrialSummary is the serializable snapshot of a single trial's state. The
// in-memory reference study has a helper that builds one, but nothing
// calls it, and TrialProperty answers carry single fields rather than a
// whole TrialSummary.
type TrialSummary struct {
	Number        int64                  `json:"number"`
	Params        map[string]any         `json:"params"`
	Distributions map[string]Distribution `json:"distributions"`
	UserAttrs     map[string]any         `json:"user_attrs"`
	SystemAttrs   map[string]any         `json:"system_attrs"`
	DatetimeStart time.Time              `json:"datetime_start"`
}
