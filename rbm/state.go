package rbm

import (
	"sync"

	"gorgonia.org/tensor"
)

// State holds the buffers of one Gibbs chain over a batch.
type State struct {
	V1       *tensor.Dense // visible input, batch × visible
	H1A, H1S *tensor.Dense // hidden activations and samples after the first step
	V2A, V2S *tensor.Dense // visible reconstruction after the last step
	H2A, H2S *tensor.Dense // hidden activations and samples after the last step

	n, visible, hidden int
}

// NewState allocates the buffers of a chain over n examples.
func NewState(n, visible, hidden int) *State {
	m := func(c int) *tensor.Dense { return tensor.New(tensor.Of(Float), tensor.WithShape(n, c)) }
	return &State{
		V1:  m(visible),
		H1A: m(hidden),
		H1S: m(hidden),
		V2A: m(visible),
		V2S: m(visible),
		H2A: m(hidden),
		H2S: m(hidden),

		n:       n,
		visible: visible,
		hidden:  hidden,
	}
}

// Size returns the number of examples the state holds.
func (s *State) Size() int { return s.n }

type stateKey struct{ n, visible, hidden int }

var statePool = struct {
	sync.Mutex
	m map[stateKey]*sync.Pool
}{m: make(map[stateKey]*sync.Pool)}

// BorrowState gets a chain state from the pool. The contents are whatever
// the previous user left; every sweep overwrites them.
func BorrowState(n, visible, hidden int) *State {
	k := stateKey{n, visible, hidden}
	statePool.Lock()
	p, ok := statePool.m[k]
	if !ok {
		p = &sync.Pool{
			New: func() interface{} { return NewState(n, visible, hidden) },
		}
		statePool.m[k] = p
	}
	statePool.Unlock()
	return p.Get().(*State)
}

// ReturnState gives a state borrowed with BorrowState back to the pool.
func ReturnState(s *State) {
	if s == nil {
		return
	}
	k := stateKey{s.n, s.visible, s.hidden}
	statePool.Lock()
	p, ok := statePool.m[k]
	statePool.Unlock()
	if ok {
		p.Put(s)
	}
}
