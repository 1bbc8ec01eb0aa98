package engine

import "math"

// TopoSort returns every node reachable from root through producer edges, each
// exactly once, ordered so that a node always comes after all of its
// producers. Producers are visited in operand order, so the result is
// deterministic for a given graph. root is the last element.
func TopoSort(root *Value) []*Value {
	topo := []*Value{}
	visited := make(map[*Value]bool)

	var buildTopo func(*Value)
	buildTopo = func(node *Value) {
		if visited[node] {
			return
		}
		visited[node] = true
		for _, child := range node.prev {
			buildTopo(child)
		}
		topo = append(topo, node)
	}
	buildTopo(root)
	return topo
}

// Backward performs reverse-mode autodiff from this node to all ancestors.
//
// Process:
// 1) Build topological order so each node is visited only after its producers.
// 2) Seed output gradient with 1 (dOutput/dOutput = 1).
// 3) Traverse the order in reverse and apply each node's rule once.
//
// Gradients are not reset first. Calling Backward twice without ZeroGrad adds
// the second pass on top of the first.
func (v *Value) Backward() {
	topo := TopoSort(v)

	v.Grad = 1
	for i := len(topo) - 1; i >= 0; i-- {
		topo[i].propagate()
	}
}

// propagate pushes v.Grad into v's producers using the rule of v.op.
func (v *Value) propagate() {
	g := v.Grad
	switch v.op {
	case OpAdd:
		v.prev[0].Grad += g
		v.prev[1].Grad += g
	case OpMul:
		a, b := v.prev[0], v.prev[1]
		a.Grad += b.Data * g
		b.Grad += a.Data * g
	case OpPow:
		a := v.prev[0]
		a.Grad = v.exponent * math.Pow(a.Data, v.exponent-1) * g
	case OpTanh:
		v.prev[0].Grad += (1 - v.Data*v.Data) * g
	}
}
