package rbm

import (
	"github.com/gorgonia/boltzmann/unit"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

type maebe struct {
	err error
}

func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

// Fwd adds the forward pass of the layer to the expression graph of x, a
// batch × visible matrix. The weight and bias nodes share their backing
// memory with the layer's parameters, so a solver stepping the graph trains
// the layer.
func (l *RBM) Fwd(x *G.Node) (*G.Node, error) {
	shp := x.Shape()
	if shp.Dims() != 2 || shp[1] != l.Visible {
		return nil, configErrorf("graph input has shape %v, expected (n, %d)", shp, l.Visible)
	}
	g := x.Graph()
	w := G.NewMatrix(g, G.Float32, G.WithShape(l.Visible, l.Hidden), G.WithValue(l.W), G.WithName("rbm_w"))
	bv := tensor.New(tensor.WithShape(1, l.Hidden), tensor.WithBacking(l.B.Data()))
	b := G.NewMatrix(g, G.Float32, G.WithShape(1, l.Hidden), G.WithValue(bv), G.WithName("rbm_b"))

	var m maebe
	xw := m.do(func() (*G.Node, error) { return G.Mul(x, w) })
	pre := m.do(func() (*G.Node, error) { return G.BroadcastAdd(xw, b, nil, []byte{0}) })
	var out *G.Node
	switch l.HiddenUnit {
	case unit.Binary:
		out = m.do(func() (*G.Node, error) { return G.Sigmoid(pre) })
	case unit.ReLU:
		out = m.do(func() (*G.Node, error) { return G.Rectify(pre) })
	case unit.Softmax:
		out = m.do(func() (*G.Node, error) { return G.SoftMax(pre) })
	default:
		return nil, configErrorf("%v hidden units have no graph form", l.HiddenUnit)
	}
	if m.err != nil {
		return nil, m.err
	}
	return out, nil
}
