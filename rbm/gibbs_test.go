package rbm

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func zeroLayer(t *testing.T, conf Config) *RBM {
	l, err := New(conf)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	l.W.Zero()
	l.B.Zero()
	l.C.Zero()
	return l
}

func TestSampler_ZeroModel(t *testing.T) {
	l := zeroLayer(t, DefaultConf(4, 3))
	s := NewSampler(l.Params, l.Config, rand.New(rand.NewSource(1337)))
	v0 := tensor.New(tensor.Of(Float), tensor.WithShape(2, 4))
	st := NewState(2, 4, 3)

	require.NoError(t, s.Sample(v0, 2, st))
	for _, d := range []*tensor.Dense{st.H1A, st.V2A, st.H2A} {
		for _, v := range d.Data().([]float32) {
			assert.Equal(t, float32(0.5), v)
		}
	}
}

func TestSampler_EndToEnd(t *testing.T) {
	conf := DefaultConf(4, 2)
	l, err := New(conf)
	require.NoError(t, err)

	s := NewSampler(l.Params, l.Config, rand.New(rand.NewSource(1337)))
	v0 := tensor.New(tensor.WithShape(1, 4), tensor.WithBacking([]float32{1, 1, 1, 1}))
	st := BorrowState(1, 4, 2)
	defer ReturnState(st)

	require.NoError(t, s.Sample(v0, 3, st))
	assert.Equal(t, []float32{1, 1, 1, 1}, st.V1.Data())
	for _, d := range []*tensor.Dense{st.H1A, st.V2A, st.H2A} {
		for _, v := range d.Data().([]float32) {
			assert.True(t, v >= 0 && v <= 1, "activation %v out of [0, 1]", v)
		}
	}
	for _, d := range []*tensor.Dense{st.H1S, st.V2S, st.H2S} {
		for _, v := range d.Data().([]float32) {
			assert.True(t, v == 0 || v == 1, "binary sample %v", v)
		}
	}

	tr, err := NewTrainer(l, rand.New(rand.NewSource(1337)))
	require.NoError(t, err)
	require.NoError(t, tr.Apply(st))
	w, b, c := tr.Gradients()
	assert.Equal(t, tensor.Shape{4, 2}, w.Shape())
	assert.Equal(t, tensor.Shape{2}, b.Shape())
	assert.Equal(t, tensor.Shape{4}, c.Shape())
}

func TestSampler_Errors(t *testing.T) {
	l := zeroLayer(t, DefaultConf(4, 3))
	s := NewSampler(l.Params, l.Config, rand.New(rand.NewSource(1337)))
	v0 := tensor.New(tensor.Of(Float), tensor.WithShape(2, 4))

	tests := []struct {
		name string
		f    func() error
	}{
		{"no steps", func() error { return s.Sample(v0, 0, NewState(2, 4, 3)) }},
		{"state of another layer", func() error { return s.Sample(v0, 1, NewState(2, 5, 3)) }},
		{"batch size mismatch", func() error { return s.Sample(v0, 1, NewState(3, 4, 3)) }},
		{"wrong dtype", func() error {
			v := tensor.New(tensor.Of(tensor.Float64), tensor.WithShape(2, 4))
			return s.Sample(v, 1, NewState(2, 4, 3))
		}},
		{"chain shape", func() error {
			chain := tensor.New(tensor.Of(Float), tensor.WithShape(2, 2))
			return s.SampleFrom(v0, chain, 1, NewState(2, 4, 3))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, ErrConfiguration, errors.Cause(tt.f()))
		})
	}
}

func TestSampler_SampleFrom(t *testing.T) {
	l := zeroLayer(t, DefaultConf(3, 2))
	l.C.Data().([]float32)[0] = 20
	l.W.Data().([]float32)[2] = -40 // v1 <- h0

	s := NewSampler(l.Params, l.Config, rand.New(rand.NewSource(1337)))
	v0 := tensor.New(tensor.Of(Float), tensor.WithShape(1, 3))
	chain := tensor.New(tensor.WithShape(1, 2), tensor.WithBacking([]float32{1, 0}))
	st := NewState(1, 3, 2)

	require.NoError(t, s.SampleFrom(v0, chain, 1, st))
	va := st.V2A.Data().([]float32)
	assert.True(t, va[0] > 0.99)
	assert.True(t, va[1] < 0.01)
	assert.Equal(t, float32(0.5), va[2])
}

func TestDenseOp_Parallel(t *testing.T) {
	const n, v, h = 37, 11, 7
	vs := tensor.New(tensor.WithShape(n, v), tensor.WithBacking(tensor.Random(Float, n*v)))
	hs := tensor.New(tensor.WithShape(n, h), tensor.WithBacking(tensor.Random(Float, n*h)))
	w := tensor.New(tensor.WithShape(v, h), tensor.WithBacking(tensor.Random(Float, v*h)))
	b := tensor.New(tensor.WithShape(h), tensor.WithBacking(tensor.Random(Float, h)))
	c := tensor.New(tensor.WithShape(v), tensor.WithBacking(tensor.Random(Float, v)))

	up := func(op DenseOp) []float32 {
		out := tensor.New(tensor.Of(Float), tensor.WithShape(n, h))
		require.NoError(t, op.Up(vs, w, b, out))
		return out.Data().([]float32)
	}
	down := func(op DenseOp) []float32 {
		out := tensor.New(tensor.Of(Float), tensor.WithShape(n, v))
		require.NoError(t, op.Down(hs, w, c, out))
		return out.Data().([]float32)
	}
	assert.InDeltaSlice(t, up(DenseOp{}), up(DenseOp{Parallel: true}), 1e-5)
	assert.InDeltaSlice(t, down(DenseOp{}), down(DenseOp{Parallel: true}), 1e-5)

	vd, hd := vs.Data().([]float32), hs.Data().([]float32)
	wd, bd, cd := w.Data().([]float32), b.Data().([]float32), c.Data().([]float32)

	// row 3 of Up by hand
	gotUp := up(DenseOp{})
	for j := 0; j < h; j++ {
		want := bd[j]
		for i := 0; i < v; i++ {
			want += vd[3*v+i] * wd[i*h+j]
		}
		assert.InDelta(t, want, gotUp[3*h+j], 1e-5)
	}

	// row 5 of Down by hand, W is read transposed
	gotDown := down(DenseOp{})
	for i := 0; i < v; i++ {
		want := cd[i]
		for j := 0; j < h; j++ {
			want += hd[5*h+j] * wd[i*h+j]
		}
		assert.InDelta(t, want, gotDown[5*v+i], 1e-5)
	}

	// W itself is left untransposed
	assert.Equal(t, tensor.Shape{v, h}, w.Shape())
}

func TestMatmulT(t *testing.T) {
	a := tensor.New(tensor.WithShape(2, 3), tensor.WithBacking([]float32{
		1, 2, 3,
		4, 5, 6,
	}))
	b := tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float32{
		1, 0,
		0, 1,
	}))
	out := tensor.New(tensor.Of(Float), tensor.WithShape(3, 2))
	require.NoError(t, matmulT(a, b, out))
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, out.Data())
	assert.Equal(t, tensor.Shape{2, 3}, a.Shape())

	// single row batches are read transposed too
	row := tensor.New(tensor.WithShape(1, 3), tensor.WithBacking([]float32{1, 2, 3}))
	col := tensor.New(tensor.WithShape(1, 2), tensor.WithBacking([]float32{1, -1}))
	out = tensor.New(tensor.Of(Float), tensor.WithShape(3, 2))
	require.NoError(t, matmulT(row, col, out))
	assert.Equal(t, []float32{1, -1, 2, -2, 3, -3}, out.Data())

	bad := tensor.New(tensor.Of(Float), tensor.WithShape(2, 2))
	assert.Error(t, matmulT(a, b, bad))
}

func TestStatePool(t *testing.T) {
	st := BorrowState(5, 4, 3)
	assert.Equal(t, 5, st.Size())
	assert.Equal(t, tensor.Shape{5, 4}, st.V2S.Shape())
	assert.Equal(t, tensor.Shape{5, 3}, st.H2S.Shape())
	ReturnState(st)
	ReturnState(nil)

	other := BorrowState(2, 4, 3)
	assert.Equal(t, 2, other.Size())
	ReturnState(other)
}
