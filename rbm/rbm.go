// Package rbm implements a dense Restricted Boltzmann Machine: its
// parameters, Gibbs sampling, contrastive divergence training, and the
// adapter that lets it act as a layer in a network trained by
// backpropagation.
package rbm

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gorgonia/boltzmann/unit"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// RBM is a Restricted Boltzmann Machine layer.
type RBM struct {
	Config
	*Params

	visible unit.Activation
	hidden  unit.Activation
}

// New validates the configuration and returns an initialized layer.
func New(conf Config) (*RBM, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	l := &RBM{
		Config:  conf,
		Params:  NewParams(conf.Visible, conf.Hidden),
		visible: conf.VisibleUnit.Activation(),
		hidden:  conf.HiddenUnit.Activation(),
	}
	l.Params.Init()
	if conf.Sparsity != NoSparsity {
		// start the hidden units at the target activity
		p := conf.SparsityTarget
		if err := l.B.Memset(math32.Log(p / (1 - p))); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return l, nil
}

// InputSize returns the number of values fed into the layer.
func (l *RBM) InputSize() int { return l.Visible }

// OutputSize returns the number of values the layer outputs.
func (l *RBM) OutputSize() int { return l.Hidden }

// Parameters returns the number of weights of the layer.
func (l *RBM) Parameters() int { return l.Visible * l.Hidden }

func (l *RBM) String() string {
	return fmt.Sprintf("RBM: %d(%v) -> %d(%v)", l.Visible, l.VisibleUnit, l.Hidden, l.HiddenUnit)
}

// InitVisibleBiases sets the visible biases from the training data. Binary
// units get log(p/(1-p)) where p is the proportion of examples in which the
// unit is on; other units get the mean of the data.
func (l *RBM) InitVisibleBiases(data *tensor.Dense) error {
	shp := data.Shape()
	if len(shp) != 2 || shp[1] != l.Visible || shp[0] == 0 {
		return configErrorf("training data has shape %v, expected (n, %d)", shp, l.Visible)
	}
	mean := make([]float32, l.Visible)
	for _, row := range rows(data) {
		vecf32.Add(mean, row)
	}
	n := float32(shp[0])
	c := l.C.Data().([]float32)
	for i, s := range mean {
		p := s / n
		if l.VisibleUnit != unit.Binary {
			c[i] = p
			continue
		}
		switch {
		case p < 0.01:
			p = 0.01
		case p > 0.99:
			p = 0.99
		}
		c[i] = math32.Log(p / (1 - p))
	}
	return nil
}

// ForwardBatch computes the hidden activations of a batch,
// act(v·W + b), into a new matrix.
func (l *RBM) ForwardBatch(v *tensor.Dense) (*tensor.Dense, error) {
	shp := v.Shape()
	if len(shp) != 2 {
		return nil, configErrorf("input has shape %v, expected (n, %d)", shp, l.Visible)
	}
	if err := checkShape("input", v, shp[0], l.Visible); err != nil {
		return nil, err
	}
	out := tensor.New(tensor.Of(Float), tensor.WithShape(shp[0], l.Hidden))
	if err := l.forward(v, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *RBM) forward(v, out *tensor.Dense) error {
	if err := (DenseOp{Parallel: l.Parallel}).Up(v, l.W, l.B, out); err != nil {
		return err
	}
	for _, row := range rows(out) {
		l.hidden.Activate(row)
	}
	return nil
}

// Reconstruct computes the visible activations given hidden states.
func (l *RBM) Reconstruct(h *tensor.Dense) (*tensor.Dense, error) {
	shp := h.Shape()
	if len(shp) != 2 {
		return nil, configErrorf("hidden states have shape %v, expected (n, %d)", shp, l.Hidden)
	}
	if err := checkShape("hidden states", h, shp[0], l.Hidden); err != nil {
		return nil, err
	}
	out := tensor.New(tensor.Of(Float), tensor.WithShape(shp[0], l.Visible))
	if err := (DenseOp{Parallel: l.Parallel}).Down(h, l.W, l.C, out); err != nil {
		return nil, err
	}
	for _, row := range rows(out) {
		l.visible.Activate(row)
	}
	return out, nil
}

// FreeEnergy returns the mean free energy of the batch v.
//
// Binary visible units:   F(v) = -c·v - Σ_j softplus(x_j)
// Gaussian visible units: F(v) = Σ_i (v_i-c_i)²/2 - Σ_j softplus(x_j)
//
// where x = v·W + b. A softmax hidden layer contributes -log Σ_j e^x_j
// instead of the softplus sum.
func (l *RBM) FreeEnergy(v *tensor.Dense) (float32, error) {
	shp := v.Shape()
	if len(shp) != 2 || shp[0] == 0 {
		return 0, configErrorf("input has shape %v, expected (n, %d)", shp, l.Visible)
	}
	if err := checkShape("input", v, shp[0], l.Visible); err != nil {
		return 0, err
	}
	x := tensor.New(tensor.Of(Float), tensor.WithShape(shp[0], l.Hidden))
	if err := (DenseOp{Parallel: l.Parallel}).Up(v, l.W, l.B, x); err != nil {
		return 0, err
	}

	c := l.C.Data().([]float32)
	xs := rows(x)
	var total float32
	for i, vi := range rows(v) {
		var visibleTerm float32
		if l.VisibleUnit == unit.Gaussian {
			for k, val := range vi {
				d := val - c[k]
				visibleTerm += d * d / 2
			}
		} else {
			visibleTerm = -dot(c, vi)
		}
		total += visibleTerm - hiddenTerm(l.HiddenUnit, xs[i])
	}
	return total / float32(shp[0]), nil
}

func hiddenTerm(t unit.Type, x []float32) (retVal float32) {
	if t == unit.Softmax {
		max := x[0]
		for _, v := range x[1:] {
			if v > max {
				max = v
			}
		}
		var sum float32
		for _, v := range x {
			sum += math32.Exp(v - max)
		}
		return max + math32.Log(sum)
	}
	for _, v := range x {
		retVal += unit.Softplus(v)
	}
	return retVal
}

// ReconstructionError returns the mean squared difference between the data
// and its reconstruction in st.
func ReconstructionError(st *State) float32 {
	v1 := st.V1.Data().([]float32)
	v2 := st.V2A.Data().([]float32)
	if len(v1) == 0 {
		return 0
	}
	var sum float32
	for i, a := range v1 {
		d := a - v2[i]
		sum += d * d
	}
	return sum / float32(len(v1))
}

// Clone returns a deep copy of the layer, without the parameter backup.
func (l *RBM) Clone() *RBM {
	return &RBM{
		Config:  l.Config,
		Params:  l.Params.Clone(),
		visible: l.visible,
		hidden:  l.hidden,
	}
}

// SetParams copies the values of p into the parameters of the layer. The
// sizes must match. Samplers and trainers built on the layer keep sharing its
// parameters; the snapshot is dropped.
func (l *RBM) SetParams(p *Params) error {
	if p.VisibleSize() != l.Visible || p.HiddenSize() != l.Hidden {
		return errors.Wrapf(ErrConfiguration, "parameters are %d×%d, layer is %d×%d", p.VisibleSize(), p.HiddenSize(), l.Visible, l.Hidden)
	}
	copy(l.W.Data().([]float32), p.W.Data().([]float32))
	copy(l.B.Data().([]float32), p.B.Data().([]float32))
	copy(l.C.Data().([]float32), p.C.Data().([]float32))
	l.bak = nil
	return nil
}
