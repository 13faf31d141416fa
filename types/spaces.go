package types

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Box is a bounded n-dimensional continuous space
type Box struct {
	Low  []float64
	High []float64
	rand rand.Source
}

// NewBox creates a box space with the given bounds
func NewBox(low, high []float64) *Box {
	return &Box{
		Low:  low,
		High: high,
	}
}

// NewUniformBox creates a box of size dims with the same bounds in every dimension
func NewUniformBox(low, high float64, dims int) *Box {
	l := make([]float64, dims)
	h := make([]float64, dims)
	for i := 0; i < dims; i++ {
		l[i] = low
		h[i] = high
	}
	return NewBox(l, h)
}

// Seed fixes the source used by Sample
func (b *Box) Seed(seed uint64) {
	b.rand = rand.NewSource(seed)
}

func (b *Box) Dims() int {
	return len(b.Low)
}

// Sample draws a uniformly distributed point from the box
func (b *Box) Sample() []float64 {
	out := make([]float64, len(b.Low))
	for i := range b.Low {
		out[i] = distuv.Uniform{Min: b.Low[i], Max: b.High[i], Src: b.rand}.Rand()
	}
	return out
}

// Contains checks the dimension and bounds of x
func (b *Box) Contains(x []float64) bool {
	if len(x) != len(b.Low) {
		return false
	}
	for i, v := range x {
		if math.IsNaN(v) || v < b.Low[i] || v > b.High[i] {
			return false
		}
	}
	return true
}

// Clip projects x into the box
func (b *Box) Clip(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Max(b.Low[i], math.Min(b.High[i], v))
	}
	return out
}

func (b *Box) String() string {
	return fmt.Sprintf("Box(%v, %v)", b.Low, b.High)
}

// DictSpace is a space made of named boxes
type DictSpace struct {
	Spaces map[string]*Box
}

func NewDictSpace(spaces map[string]*Box) *DictSpace {
	return &DictSpace{Spaces: spaces}
}

// Keys returns the sorted component names
func (d *DictSpace) Keys() []string {
	keys := make([]string, 0, len(d.Spaces))
	for k := range d.Spaces {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dims is the total number of values in an observation
func (d *DictSpace) Dims() int {
	total := 0
	for _, b := range d.Spaces {
		total += b.Dims()
	}
	return total
}

func (d *DictSpace) Sample() Observation {
	out := make(Observation, len(d.Spaces))
	for k, b := range d.Spaces {
		out[k] = b.Sample()
	}
	return out
}

// Contains checks that obs has exactly the space keys and every component is in bounds
func (d *DictSpace) Contains(obs Observation) bool {
	if len(obs) != len(d.Spaces) {
		return false
	}
	for k, b := range d.Spaces {
		v, ok := obs[k]
		if !ok || !b.Contains(v) {
			return false
		}
	}
	return true
}

// Flatten concatenates the observation components in key order
func (d *DictSpace) Flatten(obs Observation) []float64 {
	out := make([]float64, 0, d.Dims())
	for _, k := range d.Keys() {
		out = append(out, obs[k]...)
	}
	return out
}
