// Package unit describes the kinds of units a restricted Boltzmann machine
// can have on either side, and how each kind activates, differentiates and
// samples.
package unit

import (
	"fmt"
	"math/rand"
)

// Type is the type of a layer of units.
type Type byte

const (
	Binary   Type = iota // stochastic binary units, logistic activation
	Gaussian             // linear units with unit variance gaussian noise
	ReLU                 // rectified linear units
	ReLU1                // rectified linear units capped at 1
	ReLU6                // rectified linear units capped at 6
	Softmax              // a single softmax group over the whole layer

	MAXTYPE
)

var typeNames = [...]string{
	Binary:   "BINARY",
	Gaussian: "GAUSSIAN",
	ReLU:     "RELU",
	ReLU1:    "RELU1",
	ReLU6:    "RELU6",
	Softmax:  "SOFTMAX",
}

func (t Type) String() string {
	if t >= MAXTYPE {
		return fmt.Sprintf("UNKNOWN(%d)", byte(t))
	}
	return typeNames[t]
}

// IsValid returns true if t is one of the known types.
func (t Type) IsValid() bool { return t < MAXTYPE }

// ValidVisible returns true if t can be used for visible units.
func (t Type) ValidVisible() bool { return t.IsValid() }

// ValidHidden returns true if t can be used for hidden units.
// Gaussian hidden units have no meaningful reconstruction and are rejected.
func (t Type) ValidHidden() bool { return t.IsValid() && t != Gaussian }

// Backprop returns true if a layer with hidden units of type t can be used as
// a differentiable layer in a larger network.
func (t Type) Backprop() bool {
	switch t {
	case Binary, ReLU, ReLU1, ReLU6, Softmax:
		return true
	}
	return false
}

// Activation is the behaviour of a type of unit. All methods work on a single
// row (one example) and operate in place.
type Activation interface {
	// Activate maps pre-activations to activation probabilities (or means).
	Activate(row []float32)

	// Derivative multiplies err by the derivative of the activation function,
	// expressed in terms of the activation output.
	Derivative(out, err []float32)

	// Sample draws a state of the units given their activations. If
	// stochastic is false, unit types that are deterministic by default
	// (ReLU, Softmax) copy the activations.
	Sample(r *rand.Rand, act, dst []float32, stochastic bool)

	fmt.Stringer
}

// Activation returns the behaviour of the given type. It panics on unknown
// types; configurations are validated before they reach this point.
func (t Type) Activation() Activation {
	switch t {
	case Binary:
		return binary{}
	case Gaussian:
		return gaussian{}
	case ReLU:
		return relu{}
	case ReLU1:
		return relu{cap: 1}
	case ReLU6:
		return relu{cap: 6}
	case Softmax:
		return softmax{}
	}
	panic(fmt.Sprintf("unit: no activation for %v", t))
}
