package train

import (
	"errors"
	"fmt"
	"math"

	"github.com/swarnim-j/micrograd/engine"
)

// Names accepted by NewOptimizer.
const (
	OptimizerSGD  = "sgd"
	OptimizerAdam = "adam"
)

// ErrUnknownOptimizer is returned by NewOptimizer for unsupported names.
var ErrUnknownOptimizer = errors.New("unknown optimizer")

// Optimizer moves parameters against their accumulated gradients. It does
// not clear gradients; the caller does that before the next backward pass.
type Optimizer interface {
	Step(params []*engine.Value)
}

// NewOptimizer returns the optimizer called name with the given learning rate.
func NewOptimizer(name string, learningRate float64) (Optimizer, error) {
	switch name {
	case OptimizerSGD:
		return &SGD{LearningRate: learningRate}, nil
	case OptimizerAdam:
		return NewAdam(learningRate), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOptimizer, name)
}

// SGD is plain gradient descent: p -= lr * grad.
type SGD struct {
	LearningRate float64
}

func (o *SGD) Step(params []*engine.Value) {
	for _, p := range params {
		p.Data -= o.LearningRate * p.Grad
	}
}

// Adam keeps per-parameter moving averages of the gradient and its square.
// Moments are sized on the first Step and reset if the parameter count
// changes.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Eps          float64

	m     []float64
	v     []float64
	steps int
}

// NewAdam returns Adam with β1=0.85, β2=0.99 and ε=1e-8.
func NewAdam(learningRate float64) *Adam {
	return &Adam{LearningRate: learningRate, Beta1: 0.85, Beta2: 0.99, Eps: 1e-8}
}

func (o *Adam) Step(params []*engine.Value) {
	if len(o.m) != len(params) {
		o.m = make([]float64, len(params))
		o.v = make([]float64, len(params))
		o.steps = 0
	}
	o.steps++

	for i, p := range params {
		o.m[i] = o.Beta1*o.m[i] + (1-o.Beta1)*p.Grad
		o.v[i] = o.Beta2*o.v[i] + (1-o.Beta2)*p.Grad*p.Grad

		// Bias-corrected first and second moments.
		mHat := o.m[i] / (1 - math.Pow(o.Beta1, float64(o.steps)))
		vHat := o.v[i] / (1 - math.Pow(o.Beta2, float64(o.steps)))

		p.Data -= o.LearningRate * mHat / (math.Sqrt(vHat) + o.Eps)
	}
}
