package rbm

import (
	"testing"

	"github.com/gorgonia/boltzmann/unit"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func backpropLayer(t *testing.T, hidden unit.Type) *RBM {
	conf := DefaultConf(5, 3)
	conf.HiddenUnit = hidden
	conf.Backprop = true
	conf.DBNOnly = true
	l, err := New(conf)
	require.NoError(t, err)
	return l
}

func TestBackprop_Forward(t *testing.T) {
	for _, u := range []unit.Type{unit.Binary, unit.ReLU, unit.Softmax} {
		t.Run(u.String(), func(t *testing.T) {
			l := backpropLayer(t, u)
			ctx := NewSGDContext(l, 4)
			copy(ctx.Input.Data().([]float32), tensor.Random(Float, 20).([]float32))
			require.NoError(t, l.Forward(ctx))

			want, err := l.ForwardBatch(ctx.Input)
			require.NoError(t, err)
			assert.Equal(t, want.Data(), ctx.Output.Data())

			if u == unit.Softmax {
				for _, row := range rows(ctx.Output) {
					var sum float32
					for _, v := range row {
						sum += v
					}
					assert.InDelta(t, 1, sum, 1e-5)
				}
			}
		})
	}
}

func TestBackprop_AdaptErrors(t *testing.T) {
	l := backpropLayer(t, unit.Binary)
	ctx := NewSGDContext(l, 2)
	copy(ctx.Output.Data().([]float32), []float32{0.5, 0.1, 0.9, 1, 0, 0.25})
	require.NoError(t, ctx.Errors.Memset(float32(1)))
	require.NoError(t, l.AdaptErrors(ctx))
	assert.InDeltaSlice(t, []float32{0.25, 0.09, 0.09, 0, 0, 0.1875}, ctx.Errors.Data(), 1e-6)

	l.HiddenUnit = unit.Gaussian
	assert.Equal(t, ErrConfiguration, errors.Cause(l.AdaptErrors(ctx)))
}

func TestBackprop_Backward(t *testing.T) {
	l := backpropLayer(t, unit.Binary)
	ctx := NewSGDContext(l, 3)
	errs := tensor.Random(Float, 9).([]float32)
	copy(ctx.Errors.Data().([]float32), errs)

	// the previous layer may be shaped differently
	out := tensor.New(tensor.Of(Float), tensor.WithShape(15))
	require.NoError(t, l.Backward(out, ctx))
	assert.Equal(t, tensor.Shape{15}, out.Shape())

	w := l.W.Data().([]float32)
	got := out.Data().([]float32)
	for n := 0; n < 3; n++ {
		for k := 0; k < 5; k++ {
			var want float32
			for j := 0; j < 3; j++ {
				want += w[k*3+j] * errs[n*3+j]
			}
			assert.InDelta(t, want, got[n*5+k], 1e-5, "out[%d][%d]", n, k)
		}
	}

	short := tensor.New(tensor.Of(Float), tensor.WithShape(14))
	assert.Equal(t, ErrConfiguration, errors.Cause(l.Backward(short, ctx)))
}

func TestBackprop_Gradients(t *testing.T) {
	conf := DefaultConf(2, 2)
	conf.Backprop = true
	l, err := New(conf)
	require.NoError(t, err)
	before := l.Params.Clone()

	ctx := NewSGDContext(l, 2)
	copy(ctx.Input.Data().([]float32), []float32{1, 2, 3, 4})
	copy(ctx.Errors.Data().([]float32), []float32{1, -1, 0.5, 0})
	require.NoError(t, l.ComputeGradients(ctx))
	// inputᵗ·errors
	assert.InDeltaSlice(t, []float32{2.5, -1, 4, -2}, ctx.WGrad.Data(), 1e-6)
	assert.InDeltaSlice(t, []float32{1.5, -1}, ctx.BGrad.Data(), 1e-6)

	require.NoError(t, l.ApplyGradients(ctx, 0.1, 0))
	// W -= lr/n * grad
	for i, v := range before.W.Data().([]float32) {
		assert.InDelta(t, v-0.05*ctx.WGrad.Data().([]float32)[i], l.W.Data().([]float32)[i], 1e-6)
	}
	assert.InDeltaSlice(t, []float32{-0.075, 0.05}, l.B.Data(), 1e-6)
	assert.Equal(t, before.C.Data(), l.C.Data())
}

func TestBackprop_Solver(t *testing.T) {
	l := backpropLayer(t, unit.Binary)
	ctx := NewSGDContext(l, 2)
	copy(ctx.WGrad.Data().([]float32), tensor.Random(Float, 15).([]float32))
	copy(ctx.BGrad.Data().([]float32), []float32{1, 2, 3})
	w := l.W.Clone().(*tensor.Dense)
	grad := ctx.WGrad.Clone().(*tensor.Dense)

	solver := G.NewVanillaSolver(G.WithLearnRate(0.1))
	require.NoError(t, solver.Step(l.SGDModel(ctx)))

	for i, v := range w.Data().([]float32) {
		assert.InDelta(t, v-0.1*grad.Data().([]float32)[i], l.W.Data().([]float32)[i], 1e-5)
	}
	assert.InDeltaSlice(t, []float32{-0.1, -0.2, -0.3}, l.B.Data(), 1e-5)
}
