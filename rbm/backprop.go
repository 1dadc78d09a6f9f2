package rbm

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// SGDContext holds the buffers a layer needs while it is trained by
// backpropagation. It is allocated and owned by the driver.
type SGDContext struct {
	WGrad *tensor.Dense // visible × hidden
	BGrad *tensor.Dense // hidden
	WInc  *tensor.Dense // visible × hidden
	BInc  *tensor.Dense // hidden

	Input  *tensor.Dense // batch × visible
	Output *tensor.Dense // batch × hidden
	Errors *tensor.Dense // batch × hidden
}

// NewSGDContext allocates a context for the layer and the given batch size.
func NewSGDContext(l *RBM, batchSize int) *SGDContext {
	v, h := l.Visible, l.Hidden
	m := func(s ...int) *tensor.Dense { return tensor.New(tensor.Of(Float), tensor.WithShape(s...)) }
	return &SGDContext{
		WGrad:  m(v, h),
		BGrad:  m(h),
		WInc:   m(v, h),
		BInc:   m(h),
		Input:  m(batchSize, v),
		Output: m(batchSize, h),
		Errors: m(batchSize, h),
	}
}

func (l *RBM) checkContext(ctx *SGDContext) error {
	n := ctx.Input.Shape()[0]
	if err := checkShape("context input", ctx.Input, n, l.Visible); err != nil {
		return err
	}
	if err := checkShape("context output", ctx.Output, n, l.Hidden); err != nil {
		return err
	}
	return checkShape("context errors", ctx.Errors, n, l.Hidden)
}

// Forward computes the output of the layer for ctx.Input into ctx.Output.
// ForwardBatch does the same into a new matrix.
func (l *RBM) Forward(ctx *SGDContext) error {
	if err := l.checkContext(ctx); err != nil {
		return err
	}
	return l.forward(ctx.Input, ctx.Output)
}

// AdaptErrors multiplies the errors by the derivative of the activation
// function of the hidden units, evaluated at the output. Layers whose loss
// already folds in the derivative (softmax with cross entropy) skip this.
func (l *RBM) AdaptErrors(ctx *SGDContext) error {
	if !l.HiddenUnit.Backprop() {
		return configErrorf("only binary, softmax or ReLU hidden units are supported by backpropagation, got %v", l.HiddenUnit)
	}
	if err := l.checkContext(ctx); err != nil {
		return err
	}
	errs := rows(ctx.Errors)
	for i, out := range rows(ctx.Output) {
		l.hidden.Derivative(out, errs[i])
	}
	return nil
}

// Backward propagates the errors to the previous layer: out = errors·Wᵗ.
// out may have any shape holding batch × visible values; it is filled as a
// batch × visible matrix and keeps its shape.
func (l *RBM) Backward(out *tensor.Dense, ctx *SGDContext) (err error) {
	if err = l.checkContext(ctx); err != nil {
		return err
	}
	n := ctx.Errors.Shape()[0]
	if out.Size() != n*l.Visible {
		return configErrorf("output of backward has %d values, expected %d×%d", out.Size(), n, l.Visible)
	}
	oshp := out.Shape().Clone()
	if err = out.Reshape(n, l.Visible); err != nil {
		return configErrorf("cannot reshape %v to (%d, %d): %v", oshp, n, l.Visible, err)
	}
	defer func() {
		if rerr := out.Reshape(oshp...); rerr != nil && err == nil {
			err = errors.Wrapf(rerr, "cannot reshape the output of backward back to %v", oshp)
		}
	}()

	wt, err := transposed(l.W)
	if err != nil {
		return err
	}
	return matmul(ctx.Errors, wt, out)
}

// ComputeGradients fills the gradients of the context from its input and
// errors: WGrad = Σ_batch input ⊗ errors and BGrad = Σ_batch errors.
func (l *RBM) ComputeGradients(ctx *SGDContext) error {
	if err := l.checkContext(ctx); err != nil {
		return err
	}
	if err := matmulT(ctx.Input, ctx.Errors, ctx.WGrad); err != nil {
		return err
	}
	ctx.BGrad.Zero()
	b := ctx.BGrad.Data().([]float32)
	for _, e := range rows(ctx.Errors) {
		vecf32.Add(b, e)
	}
	return nil
}

// ApplyGradients takes a gradient descent step with momentum using the
// increments of the context:
//
//	inc = momentum*inc - lr*grad/n
//	W += inc
func (l *RBM) ApplyGradients(ctx *SGDContext, lr, momentum float32) error {
	n := float32(ctx.Input.Shape()[0])
	for _, p := range [...]struct{ inc, grad *tensor.Dense }{
		{ctx.WInc, ctx.WGrad},
		{ctx.BInc, ctx.BGrad},
	} {
		inc := p.inc.Data().([]float32)
		vecf32.Scale(inc, momentum)
		vecf32.IncrScale(p.grad.Data().([]float32), -lr/n, inc)
	}
	return l.Update(ctx.WInc, ctx.BInc, nil)
}

// SGDModel returns the weights and hidden biases paired with the gradients
// of the context, for use with a gorgonia Solver.
func (l *RBM) SGDModel(ctx *SGDContext) []G.ValueGrad {
	return []G.ValueGrad{
		valueGrad{v: l.W, g: ctx.WGrad},
		valueGrad{v: l.B, g: ctx.BGrad},
	}
}

type valueGrad struct {
	v, g *tensor.Dense
}

func (vg valueGrad) Value() G.Value         { return vg.v }
func (vg valueGrad) Grad() (G.Value, error) { return vg.g, nil }
