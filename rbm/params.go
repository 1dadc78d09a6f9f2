package rbm

import (
	"bytes"
	"encoding/gob"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// Float is the element type of every tensor of a layer.
var Float = tensor.Float32

// Params holds the weights and biases of a layer, and an optional backup of
// them.
type Params struct {
	W *tensor.Dense // weights, visible × hidden
	B *tensor.Dense // hidden biases
	C *tensor.Dense // visible biases

	bak *backup
}

type backup struct {
	w, b, c []float32
}

// NewParams allocates zeroed parameters for the given sizes.
func NewParams(visible, hidden int) *Params {
	return &Params{
		W: tensor.New(tensor.Of(Float), tensor.WithShape(visible, hidden)),
		B: tensor.New(tensor.Of(Float), tensor.WithShape(hidden)),
		C: tensor.New(tensor.Of(Float), tensor.WithShape(visible)),
	}
}

// VisibleSize returns the number of visible units.
func (p *Params) VisibleSize() int { return p.W.Shape()[0] }

// HiddenSize returns the number of hidden units.
func (p *Params) HiddenSize() int { return p.W.Shape()[1] }

// Init draws the weights from a zero-mean gaussian with a standard deviation
// of 0.1 and zeroes the biases.
func (p *Params) Init() {
	w := G.Gaussian(0, 0.1)(Float, p.VisibleSize(), p.HiddenSize()).([]float32)
	copy(p.W.Data().([]float32), w)
	p.B.Zero()
	p.C.Zero()
}

// Snapshot takes a backup of the current parameters, replacing any previous
// one.
func (p *Params) Snapshot() {
	if p.bak == nil {
		p.bak = &backup{
			w: make([]float32, p.W.Size()),
			b: make([]float32, p.B.Size()),
			c: make([]float32, p.C.Size()),
		}
	}
	copy(p.bak.w, p.W.Data().([]float32))
	copy(p.bak.b, p.B.Data().([]float32))
	copy(p.bak.c, p.C.Data().([]float32))
}

// HasSnapshot reports whether Restore has something to restore.
func (p *Params) HasSnapshot() bool { return p.bak != nil }

// Restore copies the last snapshot back into the parameters. The snapshot is
// kept, so Restore may be called more than once.
func (p *Params) Restore() error {
	if p.bak == nil {
		return errors.WithStack(ErrMissingSnapshot)
	}
	copy(p.W.Data().([]float32), p.bak.w)
	copy(p.B.Data().([]float32), p.bak.b)
	copy(p.C.Data().([]float32), p.bak.c)
	return nil
}

// Update adds the increments to the parameters. A nil increment leaves the
// corresponding parameter untouched.
func (p *Params) Update(dW, dB, dC *tensor.Dense) error {
	for _, pair := range [...]struct {
		name     string
		dst, inc *tensor.Dense
	}{
		{"W", p.W, dW},
		{"b", p.B, dB},
		{"c", p.C, dC},
	} {
		if pair.inc == nil {
			continue
		}
		if !pair.inc.Shape().Eq(pair.dst.Shape()) {
			return configErrorf("increment of %s has shape %v, expected %v", pair.name, pair.inc.Shape(), pair.dst.Shape())
		}
		vecf32.Add(pair.dst.Data().([]float32), pair.inc.Data().([]float32))
	}
	return nil
}

// CheckFinite returns ErrNumericDivergence if any parameter is NaN or Inf.
func (p *Params) CheckFinite() error {
	for _, t := range [...]*tensor.Dense{p.W, p.B, p.C} {
		for _, v := range t.Data().([]float32) {
			if math32.IsNaN(v) || math32.IsInf(v, 0) {
				return errors.Wrapf(ErrNumericDivergence, "found %v in parameters", v)
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the parameters, without the backup.
func (p *Params) Clone() *Params {
	return &Params{
		W: p.W.Clone().(*tensor.Dense),
		B: p.B.Clone().(*tensor.Dense),
		C: p.C.Clone().(*tensor.Dense),
	}
}

type gobParams struct {
	Visible, Hidden int
	W, B, C         []float32
}

// GobEncode implements gob.GobEncoder.
func (p *Params) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	err := enc.Encode(gobParams{
		Visible: p.VisibleSize(),
		Hidden:  p.HiddenSize(),
		W:       p.W.Data().([]float32),
		B:       p.B.Data().([]float32),
		C:       p.C.Data().([]float32),
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder. The receiver takes the sizes of the
// encoded parameters.
func (p *Params) GobDecode(data []byte) error {
	var gp gobParams
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&gp); err != nil {
		return errors.WithStack(err)
	}
	if len(gp.W) != gp.Visible*gp.Hidden || len(gp.B) != gp.Hidden || len(gp.C) != gp.Visible {
		return errors.Errorf("corrupted parameters: %d×%d weights with %d weights, %d hidden and %d visible biases",
			gp.Visible, gp.Hidden, len(gp.W), len(gp.B), len(gp.C))
	}
	p.W = tensor.New(tensor.WithShape(gp.Visible, gp.Hidden), tensor.WithBacking(gp.W))
	p.B = tensor.New(tensor.WithShape(gp.Hidden), tensor.WithBacking(gp.B))
	p.C = tensor.New(tensor.WithShape(gp.Visible), tensor.WithBacking(gp.C))
	p.bak = nil
	return nil
}
