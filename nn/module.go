// Package nn builds tiny fully connected networks out of engine values.
//
// Nothing here knows about gradients beyond collecting parameters and
// clearing them; all of the calculus lives in package engine.
package nn

import (
	"math/rand"

	"github.com/swarnim-j/micrograd/engine"
)

// Module is anything that owns trainable parameters.
type Module interface {
	Parameters() []*engine.Value
}

// ZeroGrad resets the gradient of every parameter of m.
func ZeroGrad(m Module) {
	for _, p := range m.Parameters() {
		p.ZeroGrad()
	}
}

// Initializer produces the starting value of one weight.
type Initializer func() float64

// Uniform samples weights from U(-1, 1) using r.
func Uniform(r *rand.Rand) Initializer {
	return func() float64 {
		return r.Float64()*2 - 1
	}
}

// Constant sets every weight to x. Handy for deterministic tests.
func Constant(x float64) Initializer {
	return func() float64 {
		return x
	}
}

// Values wraps plain inputs as leaf nodes.
func Values(xs []float64) []*engine.Value {
	out := make([]*engine.Value, len(xs))
	for i, x := range xs {
		out[i] = engine.NewValue(x)
	}
	return out
}

// Data reads the forward values of vs.
func Data(vs []*engine.Value) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = v.Data
	}
	return out
}
