// Package engine is a tiny reverse-mode automatic differentiation engine over
// scalar values.
//
// Every arithmetic call creates a new Value that remembers which Values
// produced it and which rule sends gradient back to them. Calling Backward on
// the final Value walks that graph in reverse topological order and fills Grad
// on every ancestor.
package engine

import (
	"fmt"
	"strconv"
)

// Op tags the operation that created a Value. Backward dispatches on it to
// pick the local derivative rule.
type Op uint8

const (
	OpLeaf Op = iota
	OpAdd
	OpMul
	OpPow
	OpTanh
)

func (o Op) String() string {
	switch o {
	case OpLeaf:
		return "leaf"
	case OpAdd:
		return "add"
	case OpMul:
		return "mul"
	case OpPow:
		return "pow"
	case OpTanh:
		return "tanh"
	}
	return "Op(" + strconv.Itoa(int(o)) + ")"
}

// Value is a "number with memory":
// - Data is the number used in calculations.
// - Grad is how much the root of the last backward pass changes if Data changes
//   a little.
// - prev points to the input nodes used to create this value.
// - op and exponent select the rule that sends Grad back to prev.
//
// Graphs are built during the forward pass and are not safe for concurrent use.
type Value struct {
	Data float64
	Grad float64

	prev     []*Value
	op       Op
	exponent float64
}

// NewValue creates a leaf node (a plain number with no producers).
func NewValue(data float64) *Value {
	return &Value{Data: data}
}

// Producers returns the nodes combined to produce v, in operand order. Leaves
// return nil.
func (v *Value) Producers() []*Value {
	if len(v.prev) == 0 {
		return nil
	}
	return append([]*Value(nil), v.prev...)
}

// Op reports the operation that created v.
func (v *Value) Op() Op {
	return v.op
}

// Label is the short diagnostic tag of the creating operation: "" for a leaf,
// "+", "*", "**<exponent>" or "tanh".
func (v *Value) Label() string {
	switch v.op {
	case OpAdd:
		return "+"
	case OpMul:
		return "*"
	case OpPow:
		return "**" + strconv.FormatFloat(v.exponent, 'g', -1, 64)
	case OpTanh:
		return "tanh"
	}
	return ""
}

// ZeroGrad clears any accumulated gradient. Backward never does this on its
// own, so callers reset between passes over overlapping graphs.
func (v *Value) ZeroGrad() {
	v.Grad = 0
}

func (v *Value) String() string {
	return fmt.Sprintf("Value(data=%v, grad=%v)", v.Data, v.Grad)
}
