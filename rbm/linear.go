package rbm

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
	"gorgonia.org/vecf32"
)

// LinearOperator computes the two products of a Gibbs sweep. Dense layers
// use matrix products; other layouts (convolutions) plug in here.
type LinearOperator interface {
	// Up computes out = v·W + b for a batch of visible rows.
	Up(v, w, b, out *tensor.Dense) error

	// Down computes out = h·Wᵗ + c for a batch of hidden rows.
	Down(h, w, c, out *tensor.Dense) error
}

// DenseOp is the LinearOperator of a fully connected layer. With Parallel
// set, blocks of batch rows are multiplied in their own goroutines.
type DenseOp struct {
	Parallel bool
}

func (op DenseOp) Up(v, w, b, out *tensor.Dense) error {
	return op.affine(v, w, b, out)
}

func (op DenseOp) Down(h, w, c, out *tensor.Dense) error {
	wt, err := transposed(w)
	if err != nil {
		return err
	}
	return op.affine(h, wt, c, out)
}

// affine computes out = x·w + bias, one row block at a time.
func (op DenseOp) affine(x, w, bias, out *tensor.Dense) error {
	bs := bias.Data().([]float32)
	return op.blocks(x.Shape()[0], func(from, to int) error {
		ob := rowBlock(out, from, to)
		if err := matmul(rowBlock(x, from, to), w, ob); err != nil {
			return err
		}
		for _, row := range rows(ob) {
			vecf32.Add(row, bs)
		}
		return nil
	})
}

func (op DenseOp) blocks(n int, f func(from, to int) error) error {
	workers := runtime.NumCPU()
	if !op.Parallel || n < 2 || workers < 2 {
		return f(0, n)
	}
	chunk := (n + workers - 1) / workers
	errs := make([]error, (n+chunk-1)/chunk)
	var wg sync.WaitGroup
	for i, start := 0, 0; start < n; i, start = i+1, start+chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(i, s, e int) {
			defer wg.Done()
			errs[i] = f(s, e)
		}(i, start, end)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// matmul computes out = a·b into out.
func matmul(a, b, out *tensor.Dense) error {
	_, err := a.MatMul(b, tensor.WithReuse(out))
	return errors.WithStack(err)
}

// matmulT computes out = aᵗ·b into out.
func matmulT(a, b, out *tensor.Dense) error {
	at, err := transposed(a)
	if err != nil {
		return err
	}
	return matmul(at, b, out)
}

// transposed returns a transposed view of a matrix. The data is shared and
// not moved; the engine reads the view through the BLAS transpose flag.
func transposed(t *tensor.Dense) (*tensor.Dense, error) {
	v := t.ShallowClone()
	if err := v.T(); err != nil {
		return nil, errors.WithStack(err)
	}
	return v, nil
}

// rowBlock returns rows [from, to) of a row major matrix as a matrix sharing
// its backing.
func rowBlock(t *tensor.Dense, from, to int) *tensor.Dense {
	if from == 0 && to == t.Shape()[0] {
		return t
	}
	cols := t.Shape()[1]
	data := t.Data().([]float32)
	return tensor.New(tensor.WithShape(to-from, cols), tensor.WithBacking(data[from*cols:to*cols]))
}

// rows returns row views of a matrix. Shapes are validated before the
// numeric code runs, so a failure here is a bug.
func rows(t *tensor.Dense) [][]float32 {
	m, err := native.MatrixF32(t)
	if err != nil {
		panic(err)
	}
	return m
}

// dot returns a·b.
func dot(a, b []float32) float32 {
	ta := tensor.New(tensor.WithShape(len(a)), tensor.WithBacking(a))
	tb := tensor.New(tensor.WithShape(len(b)), tensor.WithBacking(b))
	r, err := ta.Inner(tb)
	if err != nil {
		panic(err)
	}
	return r.(float32)
}
