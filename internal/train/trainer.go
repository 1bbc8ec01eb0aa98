// Package train fits an nn model to a fixed set of samples with squared
// error loss.
package train

import (
	"context"
	"errors"
	"fmt"

	"github.com/swarnim-j/micrograd/engine"
	"github.com/swarnim-j/micrograd/internal/ctxlog"
	"github.com/swarnim-j/micrograd/nn"
)

var (
	ErrNoSamples = errors.New("no training samples provided")
	ErrNoSteps   = errors.New("steps must be positive")
	ErrArity     = errors.New("arity mismatch")
)

// Sample is one input vector and its expected outputs.
type Sample struct {
	Inputs []float64 `json:"inputs"`
	Target []float64 `json:"target"`
}

// Model is the network a Trainer drives. *nn.MLP implements it.
type Model interface {
	nn.Module
	Forward(x []*engine.Value) []*engine.Value
	Inputs() int
	Outputs() int
}

// StepResult reports one optimizer step.
type StepResult struct {
	Step int     `json:"step"`
	Loss float64 `json:"loss"`
}

// Trainer owns a model, its samples and an optimizer. It is not safe for
// concurrent use.
type Trainer struct {
	Model     Model
	Samples   []Sample
	Optimizer Optimizer

	steps int
}

// New returns a trainer over a copy of samples.
func New(model Model, samples []Sample, opt Optimizer) *Trainer {
	return &Trainer{
		Model:     model,
		Samples:   append([]Sample(nil), samples...),
		Optimizer: opt,
	}
}

// Steps is the number of optimizer steps taken so far.
func (t *Trainer) Steps() int {
	return t.steps
}

// SquaredError builds sum((pred - target)^2).
func SquaredError(preds []*engine.Value, targets []float64) (*engine.Value, error) {
	if len(preds) != len(targets) {
		return nil, fmt.Errorf("%w: %d predictions, %d targets", ErrArity, len(preds), len(targets))
	}
	total := engine.NewValue(0)
	for i, p := range preds {
		total = total.Add(p.SubScalar(targets[i]).Pow(2))
	}
	return total, nil
}

// Check reports whether s fits the model's input and output widths.
func (t *Trainer) Check(s Sample) error {
	if len(s.Inputs) != t.Model.Inputs() {
		return fmt.Errorf("%w: sample has %d inputs, model expects %d", ErrArity, len(s.Inputs), t.Model.Inputs())
	}
	if len(s.Target) != t.Model.Outputs() {
		return fmt.Errorf("%w: sample has %d targets, model has %d outputs", ErrArity, len(s.Target), t.Model.Outputs())
	}
	return nil
}

// SampleLoss builds the loss graph of a single sample without running
// backward.
func (t *Trainer) SampleLoss(s Sample) (*engine.Value, error) {
	if err := t.Check(s); err != nil {
		return nil, err
	}
	return SquaredError(t.Model.Forward(nn.Values(s.Inputs)), s.Target)
}

// Loss builds the summed loss graph over every sample.
func (t *Trainer) Loss() (*engine.Value, error) {
	if len(t.Samples) == 0 {
		return nil, ErrNoSamples
	}
	total := engine.NewValue(0)
	for i, s := range t.Samples {
		l, err := t.SampleLoss(s)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		total = total.Add(l)
	}
	return total, nil
}

// Step clears gradients, backpropagates the full loss and applies one
// optimizer update. The reported loss is the value before the update.
func (t *Trainer) Step(ctx context.Context) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}

	// Ensure gradients are clean before accumulating over the samples.
	nn.ZeroGrad(t.Model)

	loss, err := t.Loss()
	if err != nil {
		return StepResult{}, err
	}
	loss.Backward()
	t.Optimizer.Step(t.Model.Parameters())
	t.steps++

	res := StepResult{Step: t.steps, Loss: loss.Data}
	ctxlog.FromContext(ctx).Debug("Optimizer step finished", "step", res.Step, "loss", res.Loss)
	return res, nil
}

// Run takes steps optimizer steps and returns the last result. It stops
// between steps when ctx is done. A progress line is logged every logEvery
// steps; 0 disables it.
func (t *Trainer) Run(ctx context.Context, steps, logEvery int) (StepResult, error) {
	if steps < 1 {
		return StepResult{}, ErrNoSteps
	}
	logger := ctxlog.FromContext(ctx)

	var last StepResult
	for i := 0; i < steps; i++ {
		res, err := t.Step(ctx)
		if err != nil {
			return last, err
		}
		last = res
		if logEvery > 0 && (i+1)%logEvery == 0 {
			logger.Info("Training progress", "step", res.Step, "loss", res.Loss)
		}
	}
	return last, nil
}

// Predict runs the model forward on inputs.
func (t *Trainer) Predict(inputs []float64) ([]float64, error) {
	if len(inputs) != t.Model.Inputs() {
		return nil, fmt.Errorf("%w: got %d inputs, model expects %d", ErrArity, len(inputs), t.Model.Inputs())
	}
	return nn.Data(t.Model.Forward(nn.Values(inputs))), nil
}
