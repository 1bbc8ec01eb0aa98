// Package config loads training configuration from HCL files.
//
// A file has one optional model block, one optional train block and any
// number of sample blocks:
//
//	model {
//	  inputs = 3
//	  layers = [4, 4, 1]
//	}
//	train {
//	  steps         = 100
//	  learning_rate = 0.05
//	  optimizer     = "sgd"
//	}
//	sample {
//	  inputs = [2.0, 3.0, -1.0]
//	  target = 1.0
//	}
//
// A sample target may be a single number or a list, one entry per network
// output.
package config

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/swarnim-j/micrograd/internal/ctxlog"
	"github.com/swarnim-j/micrograd/internal/train"
	"github.com/swarnim-j/micrograd/nn"
)

const (
	DefaultSeed         int64   = 1337
	DefaultSteps                = 100
	DefaultLearningRate float64 = 0.05
	DefaultOptimizer            = train.OptimizerSGD
	DefaultLogEvery             = 10
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is a fully defaulted and validated training setup.
type Config struct {
	Model   Model
	Train   Train
	Samples []train.Sample
}

// Model describes the network shape.
type Model struct {
	Inputs int
	Layers []int
	Seed   int64
}

// Train holds optimizer settings.
type Train struct {
	Steps        int
	LearningRate float64
	Optimizer    string
	LogEvery     int
}

type hclFile struct {
	Model   *hclModel    `hcl:"model,block"`
	Train   *hclTrain    `hcl:"train,block"`
	Samples []*hclSample `hcl:"sample,block"`
}

type hclModel struct {
	Inputs int   `hcl:"inputs"`
	Layers []int `hcl:"layers"`
	Seed   int64 `hcl:"seed,optional"`
}

type hclTrain struct {
	Steps        int     `hcl:"steps,optional"`
	LearningRate float64 `hcl:"learning_rate,optional"`
	Optimizer    string  `hcl:"optimizer,optional"`
	LogEvery     int     `hcl:"log_every,optional"`
}

type hclSample struct {
	Inputs []float64      `hcl:"inputs"`
	Target hcl.Expression `hcl:"target"`
}

// Default is the classic four-sample toy problem on a 3-4-4-1 network.
func Default() *Config {
	return &Config{
		Model: Model{Inputs: 3, Layers: []int{4, 4, 1}, Seed: DefaultSeed},
		Train: Train{
			Steps:        DefaultSteps,
			LearningRate: DefaultLearningRate,
			Optimizer:    DefaultOptimizer,
			LogEvery:     DefaultLogEvery,
		},
		Samples: []train.Sample{
			{Inputs: []float64{2, 3, -1}, Target: []float64{1}},
			{Inputs: []float64{3, -1, 0.5}, Target: []float64{-1}},
			{Inputs: []float64{0.5, 1, 1}, Target: []float64{-1}},
			{Inputs: []float64{1, 1, -1}, Target: []float64{1}},
		},
	}
}

// Load parses and validates the HCL file at path.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading config", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	cfg, err := decode(file)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	logger.Debug("Config loaded", "path", path, "samples", len(cfg.Samples), "layers", cfg.Model.Layers)
	return cfg, nil
}

// Parse is Load for in-memory source. filename is only used in diagnostics.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	return decode(file)
}

func decode(file *hcl.File) (*Config, error) {
	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode: %w", diags)
	}

	cfg := Default()
	if parsed.Model != nil {
		cfg.Model.Inputs = parsed.Model.Inputs
		cfg.Model.Layers = parsed.Model.Layers
		if parsed.Model.Seed != 0 {
			cfg.Model.Seed = parsed.Model.Seed
		}
	}
	if t := parsed.Train; t != nil {
		if t.Steps != 0 {
			cfg.Train.Steps = t.Steps
		}
		if t.LearningRate != 0 {
			cfg.Train.LearningRate = t.LearningRate
		}
		if t.Optimizer != "" {
			cfg.Train.Optimizer = t.Optimizer
		}
		if t.LogEvery != 0 {
			cfg.Train.LogEvery = t.LogEvery
		}
	}
	if len(parsed.Samples) > 0 {
		cfg.Samples = make([]train.Sample, 0, len(parsed.Samples))
		for i, s := range parsed.Samples {
			target, err := decodeTarget(s.Target)
			if err != nil {
				return nil, fmt.Errorf("sample %d: %w", i, err)
			}
			cfg.Samples = append(cfg.Samples, train.Sample{Inputs: s.Inputs, Target: target})
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeTarget accepts either a number or a list of numbers.
func decodeTarget(expr hcl.Expression) ([]float64, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, fmt.Errorf("%w: target is null", ErrInvalidConfig)
	}

	if val.Type() == cty.Number {
		var f float64
		if err := gocty.FromCtyValue(val, &f); err != nil {
			return nil, fmt.Errorf("%w: target: %w", ErrInvalidConfig, err)
		}
		return []float64{f}, nil
	}

	list, err := convert.Convert(val, cty.List(cty.Number))
	if err != nil {
		return nil, fmt.Errorf("%w: target must be a number or a list of numbers: %w", ErrInvalidConfig, err)
	}
	var out []float64
	if err := gocty.FromCtyValue(list, &out); err != nil {
		return nil, fmt.Errorf("%w: target: %w", ErrInvalidConfig, err)
	}
	return out, nil
}

// Validate checks the network shape, optimizer settings and sample arity.
func (c *Config) Validate() error {
	if c.Model.Inputs <= 0 {
		return fmt.Errorf("%w: model.inputs must be positive, got %d", ErrInvalidConfig, c.Model.Inputs)
	}
	if len(c.Model.Layers) == 0 {
		return fmt.Errorf("%w: model.layers must not be empty", ErrInvalidConfig)
	}
	for i, n := range c.Model.Layers {
		if n <= 0 {
			return fmt.Errorf("%w: model.layers[%d] must be positive, got %d", ErrInvalidConfig, i, n)
		}
	}
	if c.Train.Steps <= 0 {
		return fmt.Errorf("%w: train.steps must be positive, got %d", ErrInvalidConfig, c.Train.Steps)
	}
	if c.Train.LearningRate <= 0 {
		return fmt.Errorf("%w: train.learning_rate must be positive, got %v", ErrInvalidConfig, c.Train.LearningRate)
	}
	if c.Train.LogEvery < 0 {
		return fmt.Errorf("%w: train.log_every must not be negative", ErrInvalidConfig)
	}
	if _, err := train.NewOptimizer(c.Train.Optimizer, c.Train.LearningRate); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	outputs := c.Model.Layers[len(c.Model.Layers)-1]
	for i, s := range c.Samples {
		if len(s.Inputs) != c.Model.Inputs {
			return fmt.Errorf("%w: sample %d has %d inputs, model expects %d", ErrInvalidConfig, i, len(s.Inputs), c.Model.Inputs)
		}
		if len(s.Target) != outputs {
			return fmt.Errorf("%w: sample %d has %d targets, model has %d outputs", ErrInvalidConfig, i, len(s.Target), outputs)
		}
	}
	return nil
}

// NewTrainer builds the MLP described by c, seeded from c.Model.Seed, and a
// trainer over c.Samples.
func (c *Config) NewTrainer() (*train.Trainer, error) {
	opt, err := train.NewOptimizer(c.Train.Optimizer, c.Train.LearningRate)
	if err != nil {
		return nil, err
	}
	weights := nn.Uniform(rand.New(rand.NewSource(c.Model.Seed)))
	model := nn.NewMLP(c.Model.Inputs, c.Model.Layers, weights)
	return train.New(model, c.Samples, opt), nil
}
