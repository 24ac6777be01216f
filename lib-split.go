package main

import "math/rand/v2"

// Split is the subset a generated sample is routed to.
type Split int

const (
	Train Split = iota
	Val
)

func (s Split) String() string {
	if s == Val {
		return "val"
	}
	return "train"
}

// SplitAssigner routes each sample to Val with probability ValRatio and to
// Train otherwise. Every call is an independent trial: the realized ratio of
// a class only matches ValRatio in expectation.
type SplitAssigner struct {
	ValRatio float64
	rng      *rand.Rand
}

func NewSplitAssigner(valRatio float64, rng *rand.Rand) *SplitAssigner {
	return &SplitAssigner{ValRatio: valRatio, rng: rng}
}

// Assign draws the split of the next sample.
func (s *SplitAssigner) Assign() Split {
	if s.rng.Float64() < s.ValRatio {
		return Val
	}
	return Train
}
