package search

import (
	"math"

	"github.com/pkg/errors"
)

type DistributionKind string

const (
	IntDistribution         DistributionKind = "int"
	UniformDistribution     DistributionKind = "uniform"
	LogUniformDistribution  DistributionKind = "log_uniform"
	CategoricalDistribution DistributionKind = "categorical"
)

// Distribution a parameter is suggested from. Int and uniform ranges are inclusive.
type Distribution struct {
	Kind    DistributionKind `json:"kind"`
	Low     float64          `json:"low"`
	High    float64          `json:"high"`
	Choices []float64        `json:"choices,omitempty"`
}

func (d Distribution) Validate() error {
	switch d.Kind {
	case IntDistribution, UniformDistribution:
		if d.Low > d.High {
			return errors.Errorf("%s distribution with low %v > high %v", d.Kind, d.Low, d.High)
		}
	case LogUniformDistribution:
		if d.Low <= 0 || d.Low > d.High {
			return errors.Errorf("log uniform distribution needs 0 < low <= high, got [%v, %v]", d.Low, d.High)
		}
	case CategoricalDistribution:
		if len(d.Choices) == 0 {
			return errors.New("categorical distribution without choices")
		}
	default:
		return errors.Errorf("unknown distribution kind %q", d.Kind)
	}
	return nil
}

// Contains reports whether v can be drawn from the distribution
func (d Distribution) Contains(v float64) bool {
	switch d.Kind {
	case IntDistribution:
		return v == math.Trunc(v) && v >= d.Low && v <= d.High
	case UniformDistribution, LogUniformDistribution:
		return v >= d.Low && v <= d.High
	case CategoricalDistribution:
		for _, c := range d.Choices {
			if c == v {
				return true
			}
		}
	}
	return false
}

func (d Distribution) equal(o Distribution) bool {
	if d.Kind != o.Kind || d.Low != o.Low || d.High != o.High || len(d.Choices) != len(o.Choices) {
		return false
	}
	for i := range d.Choices {
		if d.Choices[i] != o.Choices[i] {
			return false
		}
	}
	return true
}
