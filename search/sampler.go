package search

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Sampler draws parameter values for a trial
type Sampler interface {
	Sample(trial FrozenTrial, name string, dist Distribution) float64
}

// RandomSampler draws every parameter independently
type RandomSampler struct {
	src rand.Source
}

var _ Sampler = &RandomSampler{}

func NewRandomSampler(seed uint64) *RandomSampler {
	return &RandomSampler{
		src: rand.NewSource(seed),
	}
}

func (r *RandomSampler) Sample(_ FrozenTrial, _ string, dist Distribution) float64 {
	switch dist.Kind {
	case IntDistribution:
		v := math.Floor(distuv.Uniform{Min: dist.Low, Max: dist.High + 1, Src: r.src}.Rand())
		return math.Min(v, dist.High)
	case UniformDistribution:
		if dist.Low == dist.High {
			return dist.Low
		}
		return distuv.Uniform{Min: dist.Low, Max: dist.High, Src: r.src}.Rand()
	case LogUniformDistribution:
		if dist.Low == dist.High {
			return dist.Low
		}
		v := math.Exp(distuv.Uniform{Min: math.Log(dist.Low), Max: math.Log(dist.High), Src: r.src}.Rand())
		return math.Max(dist.Low, math.Min(dist.High, v))
	case CategoricalDistribution:
		weights := make([]float64, len(dist.Choices))
		for i := range weights {
			weights[i] = 1
		}
		i, ok := sampleuv.NewWeighted(weights, r.src).Take()
		if !ok {
			return dist.Choices[0]
		}
		return dist.Choices[i]
	}
	return math.NaN()
}
