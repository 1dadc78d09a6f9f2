package rbm

import (
	"math/rand"

	"github.com/gorgonia/boltzmann/unit"
	"gorgonia.org/tensor"
)

// Sampler runs alternating Gibbs sampling between the visible and the hidden
// units of a layer.
type Sampler struct {
	Op LinearOperator

	params     *Params
	visible    unit.Activation
	hidden     unit.Activation
	stochastic bool
	r          *rand.Rand
}

// NewSampler creates a sampler over the given parameters. The sampler reads
// the parameters but never writes them.
func NewSampler(p *Params, conf Config, r *rand.Rand) *Sampler {
	return &Sampler{
		Op:         DenseOp{Parallel: conf.Parallel},
		params:     p,
		visible:    conf.VisibleUnit.Activation(),
		hidden:     conf.HiddenUnit.Activation(),
		stochastic: conf.StochasticHidden,
		r:          r,
	}
}

// Sample runs k steps of Gibbs sampling starting at v0. On return, st holds
// the data (V1), the hidden statistics of the first step (H1A, H1S), and the
// visible and hidden statistics of the last step (V2A, V2S, H2A, H2S).
func (s *Sampler) Sample(v0 *tensor.Dense, k int, st *State) error {
	return s.sample(v0, nil, k, st)
}

// SampleFrom computes the positive phase from v0, but runs the negative
// chain from the hidden states in chain instead of from the data.
func (s *Sampler) SampleFrom(v0, chain *tensor.Dense, k int, st *State) error {
	if chain != nil {
		if err := checkShape("chain", chain, st.n, s.params.HiddenSize()); err != nil {
			return err
		}
	}
	return s.sample(v0, chain, k, st)
}

func (s *Sampler) sample(v0, chain *tensor.Dense, k int, st *State) error {
	if k < 1 {
		return configErrorf("at least one Gibbs step is necessary, got %d", k)
	}
	if st.visible != s.params.VisibleSize() || st.hidden != s.params.HiddenSize() {
		return configErrorf("state is %d×%d, layer is %d×%d", st.visible, st.hidden, s.params.VisibleSize(), s.params.HiddenSize())
	}
	if err := checkShape("input", v0, st.n, st.visible); err != nil {
		return err
	}
	copy(st.V1.Data().([]float32), v0.Data().([]float32))

	if err := s.hiddenStep(st.V1, st.H1A, st.H1S); err != nil {
		return err
	}
	start := st.H1S
	if chain != nil {
		start = chain
	}
	for i := 0; i < k; i++ {
		if i > 0 {
			start = st.H2S
		}
		if err := s.visibleStep(start, st.V2A, st.V2S); err != nil {
			return err
		}
		if err := s.hiddenStep(st.V2S, st.H2A, st.H2S); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sampler) hiddenStep(v, ha, hs *tensor.Dense) error {
	if err := s.Op.Up(v, s.params.W, s.params.B, ha); err != nil {
		return err
	}
	as, ss := rows(ha), rows(hs)
	for i, a := range as {
		s.hidden.Activate(a)
		s.hidden.Sample(s.r, a, ss[i], s.stochastic)
	}
	return nil
}

func (s *Sampler) visibleStep(h, va, vs *tensor.Dense) error {
	if err := s.Op.Down(h, s.params.W, s.params.C, va); err != nil {
		return err
	}
	as, ss := rows(va), rows(vs)
	for i, a := range as {
		s.visible.Activate(a)
		s.visible.Sample(s.r, a, ss[i], true)
	}
	return nil
}

func checkShape(name string, t *tensor.Dense, n, cols int) error {
	shp := t.Shape()
	if len(shp) != 2 || shp[0] != n || shp[1] != cols {
		return configErrorf("%s has shape %v, expected (%d, %d)", name, shp, n, cols)
	}
	if t.Dtype() != Float {
		return configErrorf("%s has dtype %v, expected %v", name, t.Dtype(), Float)
	}
	return nil
}
