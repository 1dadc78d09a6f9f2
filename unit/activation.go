package unit

import (
	"math/rand"

	"github.com/chewxy/math32"
)

// Sigmoid is the logistic function.
func Sigmoid(x float32) float32 { return 1 / (1 + math32.Exp(-x)) }

// Softplus is log(1 + e^x), computed without overflow for large x.
func Softplus(x float32) float32 {
	if x > 20 {
		return x
	}
	return math32.Log(1 + math32.Exp(x))
}

type binary struct{}

func (binary) Activate(row []float32) {
	for i, x := range row {
		row[i] = Sigmoid(x)
	}
}

func (binary) Derivative(out, err []float32) {
	for i, y := range out {
		err[i] *= y * (1 - y)
	}
}

func (binary) Sample(r *rand.Rand, act, dst []float32, _ bool) {
	for i, p := range act {
		if r.Float32() < p {
			dst[i] = 1
		} else {
			dst[i] = 0
		}
	}
}

func (binary) String() string { return Binary.String() }

type gaussian struct{}

func (gaussian) Activate(row []float32) {}

func (gaussian) Derivative(out, err []float32) {}

func (gaussian) Sample(r *rand.Rand, act, dst []float32, _ bool) {
	for i, mu := range act {
		dst[i] = mu + float32(r.NormFloat64())
	}
}

func (gaussian) String() string { return Gaussian.String() }

// relu is a rectified linear unit. A zero cap means uncapped.
type relu struct {
	cap float32
}

func (u relu) clamp(x float32) float32 {
	if x < 0 {
		return 0
	}
	if u.cap > 0 && x > u.cap {
		return u.cap
	}
	return x
}

func (u relu) Activate(row []float32) {
	for i, x := range row {
		row[i] = u.clamp(x)
	}
}

func (u relu) Derivative(out, err []float32) {
	for i, y := range out {
		if y <= 0 || (u.cap > 0 && y >= u.cap) {
			err[i] = 0
		}
	}
}

// Sample with stochastic set draws noisy rectified units:
// max(0, x + N(0, sigmoid(x))).
func (u relu) Sample(r *rand.Rand, act, dst []float32, stochastic bool) {
	if !stochastic {
		copy(dst, act)
		return
	}
	for i, x := range act {
		noise := float32(r.NormFloat64()) * math32.Sqrt(Sigmoid(x))
		dst[i] = u.clamp(x + noise)
	}
}

func (u relu) String() string {
	switch u.cap {
	case 0:
		return ReLU.String()
	case 1:
		return ReLU1.String()
	}
	return ReLU6.String()
}

type softmax struct{}

func (softmax) Activate(row []float32) {
	if len(row) == 0 {
		return
	}
	max := row[0]
	for _, x := range row[1:] {
		if x > max {
			max = x
		}
	}
	var sum float32
	for i, x := range row {
		row[i] = math32.Exp(x - max)
		sum += row[i]
	}
	for i := range row {
		row[i] /= sum
	}
}

// Derivative is the Jacobian-vector product of the softmax:
//
//	err_i = out_i * (err_i - Σ_k out_k*err_k)
func (softmax) Derivative(out, err []float32) {
	var dot float32
	for i, y := range out {
		dot += y * err[i]
	}
	for i, y := range out {
		err[i] = y * (err[i] - dot)
	}
}

// Sample with stochastic set draws a one-hot vector from the categorical
// distribution given by act.
func (softmax) Sample(r *rand.Rand, act, dst []float32, stochastic bool) {
	if !stochastic {
		copy(dst, act)
		return
	}
	u := r.Float32()
	chosen := len(act) - 1
	var acc float32
	for i, p := range act {
		acc += p
		if u < acc {
			chosen = i
			break
		}
	}
	for i := range dst {
		dst[i] = 0
	}
	if chosen >= 0 {
		dst[chosen] = 1
	}
}

func (softmax) String() string { return Softmax.String() }
