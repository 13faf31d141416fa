package policies

import "math"

type adam struct {
	m     []float64
	v     []float64
	t     int
	beta1 float64
	beta2 float64
	eps   float64
}

func newAdam(size int) *adam {
	return &adam{
		m:     make([]float64, size),
		v:     make([]float64, size),
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-5,
	}
}

// step moves theta against grad
func (a *adam) step(theta, grad []float64, lr float64) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for i, g := range grad {
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g
		theta[i] -= lr * (a.m[i] / c1) / (math.Sqrt(a.v[i]/c2) + a.eps)
	}
}
