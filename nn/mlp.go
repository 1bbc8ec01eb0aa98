package nn

import (
	"fmt"
	"strings"

	"github.com/swarnim-j/micrograd/engine"
)

// Neuron computes tanh(w·x + b), or just w·x + b when it is linear.
type Neuron struct {
	W      []*engine.Value
	B      *engine.Value
	Nonlin bool
}

// NewNeuron creates a neuron with nin weights drawn from weights and a zero bias.
func NewNeuron(nin int, nonlin bool, weights Initializer) *Neuron {
	w := make([]*engine.Value, nin)
	for i := range w {
		w[i] = engine.NewValue(weights())
	}
	return &Neuron{W: w, B: engine.NewValue(0), Nonlin: nonlin}
}

// Forward runs the neuron on x. It panics if len(x) does not match the number
// of weights.
func (n *Neuron) Forward(x []*engine.Value) *engine.Value {
	if len(x) != len(n.W) {
		panic(fmt.Sprintf("nn: neuron expects %d inputs, got %d", len(n.W), len(x)))
	}

	act := n.B
	for i, wi := range n.W {
		act = act.Add(wi.Mul(x[i]))
	}
	if n.Nonlin {
		return act.Tanh()
	}
	return act
}

// Parameters returns the weights followed by the bias.
func (n *Neuron) Parameters() []*engine.Value {
	params := make([]*engine.Value, 0, len(n.W)+1)
	params = append(params, n.W...)
	return append(params, n.B)
}

func (n *Neuron) String() string {
	kind := "Linear"
	if n.Nonlin {
		kind = "tanh"
	}
	return fmt.Sprintf("%sNeuron(%d)", kind, len(n.W))
}

// Layer is a row of independent neurons sharing the same input.
type Layer struct {
	Neurons []*Neuron
}

// NewLayer creates nout neurons with nin inputs each.
func NewLayer(nin, nout int, nonlin bool, weights Initializer) *Layer {
	neurons := make([]*Neuron, nout)
	for i := range neurons {
		neurons[i] = NewNeuron(nin, nonlin, weights)
	}
	return &Layer{Neurons: neurons}
}

// Forward returns one output per neuron.
func (l *Layer) Forward(x []*engine.Value) []*engine.Value {
	out := make([]*engine.Value, len(l.Neurons))
	for i, n := range l.Neurons {
		out[i] = n.Forward(x)
	}
	return out
}

func (l *Layer) Parameters() []*engine.Value {
	var params []*engine.Value
	for _, n := range l.Neurons {
		params = append(params, n.Parameters()...)
	}
	return params
}

func (l *Layer) String() string {
	parts := make([]string, len(l.Neurons))
	for i, n := range l.Neurons {
		parts[i] = n.String()
	}
	return "Layer of [" + strings.Join(parts, ", ") + "]"
}

// MLP is a stack of tanh layers.
type MLP struct {
	Layers []*Layer
}

// NewMLP builds layers of sizes nouts on top of nin inputs. Every layer,
// including the last, applies tanh, so outputs lie in (-1, 1).
func NewMLP(nin int, nouts []int, weights Initializer) *MLP {
	sizes := append([]int{nin}, nouts...)
	layers := make([]*Layer, len(nouts))
	for i := range layers {
		layers[i] = NewLayer(sizes[i], sizes[i+1], true, weights)
	}
	return &MLP{Layers: layers}
}

// Inputs is the number of inputs the first layer expects.
func (m *MLP) Inputs() int {
	if len(m.Layers) == 0 || len(m.Layers[0].Neurons) == 0 {
		return 0
	}
	return len(m.Layers[0].Neurons[0].W)
}

// Outputs is the width of the last layer.
func (m *MLP) Outputs() int {
	if len(m.Layers) == 0 {
		return 0
	}
	return len(m.Layers[len(m.Layers)-1].Neurons)
}

// Forward chains x through every layer.
func (m *MLP) Forward(x []*engine.Value) []*engine.Value {
	for _, l := range m.Layers {
		x = l.Forward(x)
	}
	return x
}

func (m *MLP) Parameters() []*engine.Value {
	var params []*engine.Value
	for _, l := range m.Layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

func (m *MLP) String() string {
	parts := make([]string, len(m.Layers))
	for i, l := range m.Layers {
		parts[i] = l.String()
	}
	return "MLP of [" + strings.Join(parts, ", ") + "]"
}
