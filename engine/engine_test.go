package engine

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValue_IsLeaf(t *testing.T) {
	v := NewValue(4.5)

	assert.Equal(t, 4.5, v.Data)
	assert.Zero(t, v.Grad)
	assert.Nil(t, v.Producers())
	assert.Equal(t, OpLeaf, v.Op())
	assert.Empty(t, v.Label())
}

func TestAddMul_Data(t *testing.T) {
	a, b := NewValue(2), NewValue(-3)

	assert.Equal(t, -1.0, a.Add(b).Data)
	assert.Equal(t, -6.0, a.Mul(b).Data)
}

func TestBackward_Add(t *testing.T) {
	a, b := NewValue(2), NewValue(-3)
	c := a.Add(b)

	c.Backward()

	assert.Equal(t, 1.0, c.Grad)
	assert.Equal(t, 1.0, a.Grad)
	assert.Equal(t, 1.0, b.Grad)
}

func TestBackward_Mul(t *testing.T) {
	a, b := NewValue(2), NewValue(-3)
	c := a.Mul(b)

	c.Backward()

	assert.Equal(t, -3.0, a.Grad)
	assert.Equal(t, 2.0, b.Grad)
}

func TestBackward_SharedOperandAccumulates(t *testing.T) {
	a := NewValue(3)
	c := a.Add(a)
	c.Backward()
	assert.Equal(t, 2.0, a.Grad, "both paths into a must be summed")

	x := NewValue(3)
	sq := x.Mul(x)
	sq.Backward()
	assert.Equal(t, 6.0, x.Grad)
}

func TestBackward_Diamond(t *testing.T) {
	// w = (x + 1) + (x * 3), dw/dx = 4
	x := NewValue(2)
	w := x.AddScalar(1).Add(x.MulScalar(3))

	w.Backward()

	assert.Equal(t, 9.0, w.Data)
	assert.Equal(t, 4.0, x.Grad)
}

func TestPow_AssignsInsteadOfAccumulating(t *testing.T) {
	a := NewValue(3)
	a.Grad = 5
	b := a.Pow(2)

	b.Backward()

	assert.Equal(t, 9.0, b.Data)
	assert.Equal(t, 6.0, a.Grad, "a prior grad on the base is overwritten, not added to")
}

func TestPow_OverwritesSiblingContribution(t *testing.T) {
	// c = a^2 + 3a. The mul rule runs first and adds 3 into a.Grad, then the
	// pow rule replaces it with 2a, so the result is 4 instead of 7.
	a := NewValue(2)
	c := a.Pow(2).Add(a.MulScalar(3))

	c.Backward()

	assert.Equal(t, 10.0, c.Data)
	assert.Equal(t, 4.0, a.Grad)
}

func TestPow_Label(t *testing.T) {
	a := NewValue(2)

	assert.Equal(t, "**2", a.Pow(2).Label())
	assert.Equal(t, "**-1", a.Pow(-1).Label())
	assert.Equal(t, "**0.5", a.Pow(0.5).Label())
}

func TestRaise(t *testing.T) {
	a := NewValue(3)

	t.Run("integer exponent", func(t *testing.T) {
		out, err := a.Raise(2)
		require.NoError(t, err)
		assert.Equal(t, 9.0, out.Data)
		assert.Equal(t, OpPow, out.Op())
	})

	t.Run("float32 exponent", func(t *testing.T) {
		out, err := a.Raise(float32(0.5))
		require.NoError(t, err)
		assert.InDelta(t, math.Sqrt(3), out.Data, 1e-12)
	})

	t.Run("node exponent is rejected", func(t *testing.T) {
		out, err := a.Raise(NewValue(2))
		require.ErrorIs(t, err, ErrInvalidExponent)
		assert.Nil(t, out)
	})

	t.Run("non-numeric exponent is rejected", func(t *testing.T) {
		out, err := a.Raise("2")
		require.ErrorIs(t, err, ErrUnsupportedOperand)
		assert.Nil(t, out)
	})
}

func TestNeg_ReturnsBareNumber(t *testing.T) {
	a := NewValue(4)

	var n float64 = a.Neg()

	assert.Equal(t, -4.0, n)
	assert.Zero(t, a.Grad)
}

func TestSub(t *testing.T) {
	a, b := NewValue(5), NewValue(3)
	c := a.Sub(b)

	c.Backward()

	assert.Equal(t, 2.0, c.Data)
	assert.Equal(t, 1.0, a.Grad)
	assert.Equal(t, -1.0, b.Grad)
}

func TestDiv_QuotientRule(t *testing.T) {
	a, b := NewValue(7), NewValue(2)
	c := a.Div(b)

	c.Backward()

	assert.InDelta(t, 3.5, c.Data, 1e-12)
	assert.InDelta(t, 1/b.Data, a.Grad, 1e-12)
	assert.InDelta(t, -a.Data/(b.Data*b.Data), b.Grad, 1e-12)
}

func TestDiv_ByZeroIsNonFinite(t *testing.T) {
	c := NewValue(1).Div(NewValue(0))

	assert.True(t, math.IsInf(c.Data, 1))
}

func TestScalarForms(t *testing.T) {
	a := NewValue(4)

	assert.Equal(t, 6.0, a.AddScalar(2).Data)
	assert.Equal(t, 8.0, a.MulScalar(2).Data)
	assert.Equal(t, 1.0, a.SubScalar(3).Data)
	assert.Equal(t, 2.0, a.DivScalar(2).Data)
}

func TestReversedForms(t *testing.T) {
	t.Run("RAdd", func(t *testing.T) {
		v := NewValue(4)
		out := RAdd(1, v)
		out.Backward()
		assert.Equal(t, 5.0, out.Data)
		assert.Equal(t, 1.0, v.Grad)
	})

	t.Run("RMul", func(t *testing.T) {
		v := NewValue(4)
		out := RMul(3, v)
		out.Backward()
		assert.Equal(t, 12.0, out.Data)
		assert.Equal(t, 3.0, v.Grad)
	})

	t.Run("RSub", func(t *testing.T) {
		v := NewValue(3)
		out := RSub(10, v)
		out.Backward()
		assert.Equal(t, 7.0, out.Data)
		assert.Equal(t, -1.0, v.Grad)
	})

	t.Run("RDiv", func(t *testing.T) {
		v := NewValue(4)
		out := RDiv(1, v)
		out.Backward()
		assert.InDelta(t, 0.25, out.Data, 1e-12)
		assert.InDelta(t, -1.0/16, v.Grad, 1e-12)
	})
}

func TestTanh_Range(t *testing.T) {
	for _, x := range []float64{-5, -1, -0.1, 0.1, 1, 5} {
		out := NewValue(x).Tanh()
		assert.Greater(t, out.Data, -1.0, "x=%v", x)
		assert.Less(t, out.Data, 1.0, "x=%v", x)
	}

	assert.InDelta(t, 1.0, NewValue(20).Tanh().Data, 1e-12)
	assert.InDelta(t, -1.0, NewValue(-20).Tanh().Data, 1e-12)
}

func TestTanh_GradAtZero(t *testing.T) {
	x := NewValue(0)
	out := x.Tanh()

	out.Backward()

	assert.Equal(t, 0.0, out.Data)
	assert.Equal(t, 1.0, x.Grad)
	assert.Equal(t, "tanh", out.Label())
}

func TestBackward_EndToEnd(t *testing.T) {
	a, b := NewValue(2), NewValue(-3)
	f := a.Mul(b).Add(a).Tanh()

	f.Backward()

	assert.InDelta(t, -0.9993293, f.Data, 1e-6)

	th := math.Tanh(-4)
	want := []float64{
		(1 - th*th) * (b.Data + 1), // df/da
		(1 - th*th) * a.Data,       // df/db
	}
	got := []float64{a.Grad, b.Grad}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("gradients mismatch (-want +got):\n%s", diff)
	}
}

func TestBackward_LeafRootOnlySeeds(t *testing.T) {
	a := NewValue(7)

	a.Backward()

	assert.Equal(t, 1.0, a.Grad)
}

func TestBackward_RepeatedCallsAccumulate(t *testing.T) {
	a, b := NewValue(2), NewValue(-3)
	c := a.Mul(b)

	c.Backward()
	c.Backward()

	assert.Equal(t, 1.0, c.Grad, "root is re-seeded, not accumulated")
	assert.Equal(t, -6.0, a.Grad)
	assert.Equal(t, 4.0, b.Grad)

	for _, v := range TopoSort(c) {
		v.ZeroGrad()
	}
	c.Backward()

	assert.Equal(t, -3.0, a.Grad)
	assert.Equal(t, 2.0, b.Grad)
}

func TestTopoSort_Order(t *testing.T) {
	x := NewValue(2)
	y := x.AddScalar(1)
	z := x.MulScalar(3)
	w := y.Add(z)

	topo := TopoSort(w)

	require.Len(t, topo, 6)
	assert.Same(t, x, topo[0])
	assert.Same(t, y.prev[1], topo[1])
	assert.Same(t, y, topo[2])
	assert.Same(t, z.prev[1], topo[3])
	assert.Same(t, z, topo[4])
	assert.Same(t, w, topo[5])

	pos := make(map[*Value]int, len(topo))
	for i, v := range topo {
		pos[v] = i
	}
	for _, v := range topo {
		for _, p := range v.Producers() {
			assert.Less(t, pos[p], pos[v], "producer must precede its consumer")
		}
	}
}

func TestTopoSort_Leaf(t *testing.T) {
	a := NewValue(1)

	topo := TopoSort(a)

	require.Len(t, topo, 1)
	assert.Same(t, a, topo[0])
}

func TestProducers_ReturnsCopy(t *testing.T) {
	a, b := NewValue(1), NewValue(2)
	c := a.Add(b)

	prev := c.Producers()
	prev[0] = nil

	assert.Same(t, a, c.Producers()[0])
}

func TestString(t *testing.T) {
	a := NewValue(2)
	a.Grad = 0.5

	assert.Equal(t, "Value(data=2, grad=0.5)", a.String())
	assert.Equal(t, "mul", OpMul.String())
}
