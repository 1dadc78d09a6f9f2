package rbm

import (
	"math/rand"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// Stats describes one training step.
type Stats struct {
	Size                int     // number of examples in the batch
	ReconstructionError float32 // mean squared reconstruction error
	Sparsity            float32 // mean activation of the hidden units
	FreeEnergy          float32 // mean free energy of the batch, if configured
}

// Trainer trains a layer with contrastive divergence. The persistent variant
// keeps the negative chain across batches.
type Trainer struct {
	l       *RBM
	sampler *Sampler

	learningRate float32
	epoch        int

	wGrad, bGrad, cGrad *tensor.Dense
	wInc, bInc, cInc    *tensor.Dense
	wNeg                *tensor.Dense // negative phase of wGrad

	// sparsity moving averages
	qGlobal float32
	qLocal  []float32
	qInit   bool

	// persistent chain, hidden samples
	chain *tensor.Dense
}

// NewTrainer creates a contrastive divergence trainer for the layer. Random
// draws come from r.
func NewTrainer(l *RBM, r *rand.Rand) (*Trainer, error) {
	if l.DBNOnly {
		return nil, configErrorf("%v is a DBN-only layer and keeps no sampling state", l)
	}
	v, h := l.Visible, l.Hidden
	return &Trainer{
		l:            l,
		sampler:      NewSampler(l.Params, l.Config, r),
		learningRate: l.LearningRate,

		wGrad: tensor.New(tensor.Of(Float), tensor.WithShape(v, h)),
		bGrad: tensor.New(tensor.Of(Float), tensor.WithShape(h)),
		cGrad: tensor.New(tensor.Of(Float), tensor.WithShape(v)),
		wInc:  tensor.New(tensor.Of(Float), tensor.WithShape(v, h)),
		bInc:  tensor.New(tensor.Of(Float), tensor.WithShape(h)),
		cInc:  tensor.New(tensor.Of(Float), tensor.WithShape(v)),
		wNeg:  tensor.New(tensor.Of(Float), tensor.WithShape(v, h)),

		qLocal: make([]float32, h),
	}, nil
}

// Layer returns the layer being trained.
func (t *Trainer) Layer() *RBM { return t.l }

// LearningRate returns the current learning rate.
func (t *Trainer) LearningRate() float32 { return t.learningRate }

// SetLearningRate changes the learning rate used by subsequent steps.
func (t *Trainer) SetLearningRate(lr float32) { t.learningRate = lr }

// SetEpoch tells the trainer which epoch it is in, for the momentum schedule.
func (t *Trainer) SetEpoch(epoch int) { t.epoch = epoch }

// Gradients returns the gradients computed by the last step.
func (t *Trainer) Gradients() (w, b, c *tensor.Dense) { return t.wGrad, t.bGrad, t.cGrad }

// Restore rolls the layer back to its last snapshot and forgets the
// momentum, the sparsity averages and the persistent chain, which may hold
// values of the diverged run.
func (t *Trainer) Restore() error {
	if err := t.l.Restore(); err != nil {
		return err
	}
	for _, inc := range [...]*tensor.Dense{t.wInc, t.bInc, t.cInc} {
		inc.Zero()
	}
	t.qGlobal = 0
	for i := range t.qLocal {
		t.qLocal[i] = 0
	}
	t.qInit = false
	t.chain = nil
	return nil
}

// Train runs one CD-k step over the batch and updates the layer.
//
// The persistent chain has as many rows as the largest batch seen. A smaller
// batch continues its first rows; a larger one restarts the chain from the
// data.
func (t *Trainer) Train(batch *tensor.Dense) (Stats, error) {
	shp := batch.Shape()
	if len(shp) != 2 || shp[0] == 0 {
		return Stats{}, configErrorf("batch has shape %v, expected (n, %d)", shp, t.l.Visible)
	}
	n := shp[0]
	st := BorrowState(n, t.l.Visible, t.l.Hidden)
	defer ReturnState(st)

	persistent := t.l.Trainer == PCD && t.chain != nil && n <= t.chain.Shape()[0]
	var err error
	if persistent {
		err = t.sampler.SampleFrom(batch, rowBlock(t.chain, 0, n), t.l.K, st)
	} else {
		err = t.sampler.Sample(batch, t.l.K, st)
	}
	if err != nil {
		return Stats{}, err
	}
	switch {
	case persistent:
		copy(t.chain.Data().([]float32), st.H2S.Data().([]float32))
	case t.l.Trainer == PCD:
		t.chain = st.H2S.Clone().(*tensor.Dense)
	}

	if err = t.Apply(st); err != nil {
		return Stats{}, err
	}

	s := Stats{
		Size:                n,
		ReconstructionError: ReconstructionError(st),
		Sparsity:            mean(st.H1A.Data().([]float32)),
	}
	if t.l.ComputeFreeEnergy {
		if s.FreeEnergy, err = t.l.FreeEnergy(batch); err != nil {
			return s, err
		}
	}
	return s, nil
}

// Apply computes the gradients from the statistics of a chain and updates
// the layer's parameters.
func (t *Trainer) Apply(st *State) error {
	conf := t.l.Config
	if err := t.gradients(st); err != nil {
		return err
	}
	t.decay()
	t.sparsity(st)
	if conf.Clip != NoClip {
		for _, g := range [...]*tensor.Dense{t.wGrad, t.bGrad, t.cGrad} {
			clip(conf.Clip, conf.ClipBound, g.Data().([]float32))
		}
	}

	mu := conf.momentumAt(t.epoch)
	for _, p := range [...]struct{ inc, grad *tensor.Dense }{
		{t.wInc, t.wGrad},
		{t.bInc, t.bGrad},
		{t.cInc, t.cGrad},
	} {
		inc := p.inc.Data().([]float32)
		grad := p.grad.Data().([]float32)
		if mu > 0 {
			vecf32.Scale(inc, mu)
		} else {
			for i := range inc {
				inc[i] = 0
			}
		}
		vecf32.IncrScale(grad, t.learningRate, inc)
	}

	if err := t.l.Update(t.wInc, t.bInc, t.cInc); err != nil {
		return err
	}
	if err := t.l.CheckFinite(); err != nil {
		return errors.Wrapf(err, "epoch %d", t.epoch)
	}
	return nil
}

// gradients computes the positive minus negative statistics, averaged over
// the batch.
func (t *Trainer) gradients(st *State) error {
	neg := st.V2A
	if t.l.NegativePhase == NegativeSamples {
		neg = st.V2S
	}
	inv := 1 / float32(st.n)

	if err := matmulT(st.V1, st.H1A, t.wGrad); err != nil {
		return err
	}
	if err := matmulT(neg, st.H2A, t.wNeg); err != nil {
		return err
	}
	w := t.wGrad.Data().([]float32)
	vecf32.Sub(w, t.wNeg.Data().([]float32))
	vecf32.Scale(w, inv)

	b := t.bGrad.Data().([]float32)
	c := t.cGrad.Data().([]float32)
	colMeanDiff(rows(st.H1A), rows(st.H2A), inv, b)
	colMeanDiff(rows(st.V1), rows(neg), inv, c)
	return nil
}

func (t *Trainer) decay() {
	conf := t.l.Config
	if conf.DecayType == NoDecay || conf.Decay == 0 {
		return
	}
	pairs := []struct{ grad, param *tensor.Dense }{{t.wGrad, t.l.W}}
	if conf.DecayType == L1Full || conf.DecayType == L2Full {
		pairs = append(pairs,
			struct{ grad, param *tensor.Dense }{t.bGrad, t.l.B},
			struct{ grad, param *tensor.Dense }{t.cGrad, t.l.C})
	}
	l1 := conf.DecayType == L1 || conf.DecayType == L1Full
	for _, p := range pairs {
		grad := p.grad.Data().([]float32)
		for i, w := range p.param.Data().([]float32) {
			if l1 {
				grad[i] -= conf.Decay * sign(w)
			} else {
				grad[i] -= conf.Decay * w
			}
		}
	}
}

func (t *Trainer) sparsity(st *State) {
	conf := t.l.Config
	if conf.Sparsity == NoSparsity {
		return
	}
	h := conf.Hidden
	inv := 1 / float32(st.n)
	b := t.bGrad.Data().([]float32)
	w := rows(t.wGrad)
	p := conf.SparsityTarget
	cost := conf.SparsityCost

	switch conf.Sparsity {
	case GlobalTarget, LocalTarget:
		q := make([]float32, h)
		for _, row := range rows(st.H1A) {
			vecf32.IncrScale(row, inv, q)
		}
		lambda := conf.SparsityDecay
		if conf.Sparsity == GlobalTarget {
			qBatch := mean(q)
			if !t.qInit {
				t.qGlobal = qBatch
			} else {
				t.qGlobal = lambda*t.qGlobal + (1-lambda)*qBatch
			}
			for j := range q {
				q[j] = t.qGlobal
			}
		} else {
			for j, qj := range q {
				if !t.qInit {
					t.qLocal[j] = qj
				} else {
					t.qLocal[j] = lambda*t.qLocal[j] + (1-lambda)*qj
				}
			}
			copy(q, t.qLocal)
		}
		t.qInit = true

		for j, qj := range q {
			penalty := cost * (qj - p)
			b[j] -= penalty
			for i := range w {
				w[i][j] -= penalty
			}
		}
	case Lee:
		if conf.BiasMode != BiasSimple {
			return
		}
		q := make([]float32, h)
		for _, row := range rows(st.H2A) {
			vecf32.IncrScale(row, inv, q)
		}
		for j, qj := range q {
			b[j] += cost * (p - qj)
		}
	}
}

// clip bounds a gradient in place.
func clip(mode ClipMode, bound float32, g []float32) {
	switch mode {
	case ClipNorm:
		norm := math32.Sqrt(dot(g, g))
		if norm > bound {
			vecf32.Scale(g, bound/norm)
		}
	case ClipValue:
		for i, v := range g {
			switch {
			case v > bound:
				g[i] = bound
			case v < -bound:
				g[i] = -bound
			}
		}
	}
}

// colMeanDiff computes dst[j] = inv * Σ_n (a[n][j] - b[n][j]).
func colMeanDiff(a, b [][]float32, inv float32, dst []float32) {
	for j := range dst {
		dst[j] = 0
	}
	for n := range a {
		vecf32.IncrScale(a[n], inv, dst)
		vecf32.IncrScale(b[n], -inv, dst)
	}
}

func mean(a []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return vecf32.Sum(a) / float32(len(a))
}

func sign(x float32) float32 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
