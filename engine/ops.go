package engine

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidExponent is returned by Raise when the exponent is a node.
	// Only plain integer or floating point exponents are supported.
	ErrInvalidExponent = errors.New("engine: exponent must be an integer or floating point number")

	// ErrUnsupportedOperand is returned by Raise for non-numeric exponents.
	ErrUnsupportedOperand = errors.New("engine: unsupported operand type")
)

// Add creates node z = x + y.
// Local derivatives:
// dz/dx = 1
// dz/dy = 1
func (v *Value) Add(other *Value) *Value {
	return &Value{
		Data: v.Data + other.Data,
		prev: []*Value{v, other},
		op:   OpAdd,
	}
}

// Mul creates node z = x * y.
// Local derivatives:
// dz/dx = y
// dz/dy = x
func (v *Value) Mul(other *Value) *Value {
	return &Value{
		Data: v.Data * other.Data,
		prev: []*Value{v, other},
		op:   OpMul,
	}
}

// Pow creates node z = x^p for a plain real exponent p.
// Local derivative:
// dz/dx = p * x^(p-1)
//
// Unlike every other rule, Backward assigns this derivative into x.Grad
// instead of adding to it, so any earlier contribution to x is replaced.
func (v *Value) Pow(exponent float64) *Value {
	return &Value{
		Data:     math.Pow(v.Data, exponent),
		prev:     []*Value{v},
		op:       OpPow,
		exponent: exponent,
	}
}

// Raise is Pow for an exponent whose type is only known at run time. Any Go
// integer or float kind is accepted. A *Value exponent fails with
// ErrInvalidExponent and nothing is added to the graph.
func (v *Value) Raise(exponent any) (*Value, error) {
	var p float64
	switch e := exponent.(type) {
	case *Value, Value:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidExponent, exponent)
	case float64:
		p = e
	case float32:
		p = float64(e)
	case int:
		p = float64(e)
	case int8:
		p = float64(e)
	case int16:
		p = float64(e)
	case int32:
		p = float64(e)
	case int64:
		p = float64(e)
	case uint:
		p = float64(e)
	case uint8:
		p = float64(e)
	case uint16:
		p = float64(e)
	case uint32:
		p = float64(e)
	case uint64:
		p = float64(e)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedOperand, exponent)
	}
	return v.Pow(p), nil
}

// Neg returns -1 * v.Data as a bare number. It is not a graph node and is not
// differentiable on its own; Sub and RSub negate through Mul instead.
func (v *Value) Neg() float64 {
	return -1 * v.Data
}

// Sub creates x - y as x + (y * -1).
func (v *Value) Sub(other *Value) *Value {
	return v.Add(other.MulScalar(-1))
}

// Div creates x / y as x * y^-1. A zero-valued y yields non-finite data.
func (v *Value) Div(other *Value) *Value {
	return v.Mul(other.Pow(-1))
}

// Tanh applies the hyperbolic tangent.
// Local derivative:
// dz/dx = 1 - tanh(x)^2
func (v *Value) Tanh() *Value {
	return &Value{
		Data: math.Tanh(v.Data),
		prev: []*Value{v},
		op:   OpTanh,
	}
}

// AddScalar creates v + x with x promoted to a leaf.
func (v *Value) AddScalar(x float64) *Value {
	return v.Add(NewValue(x))
}

// MulScalar creates v * x with x promoted to a leaf.
func (v *Value) MulScalar(x float64) *Value {
	return v.Mul(NewValue(x))
}

// SubScalar creates v - x.
func (v *Value) SubScalar(x float64) *Value {
	return v.Sub(NewValue(x))
}

// DivScalar creates v / x.
func (v *Value) DivScalar(x float64) *Value {
	return v.Div(NewValue(x))
}

// RAdd creates x + v, with the literal as the left operand.
func RAdd(x float64, v *Value) *Value {
	return NewValue(x).Add(v)
}

// RMul creates x * v.
func RMul(x float64, v *Value) *Value {
	return NewValue(x).Mul(v)
}

// RSub creates x - v as x + (v * -1).
func RSub(x float64, v *Value) *Value {
	return NewValue(x).Add(v.MulScalar(-1))
}

// RDiv creates x / v as x * v^-1.
func RDiv(x float64, v *Value) *Value {
	return NewValue(x).Mul(v.Pow(-1))
}
