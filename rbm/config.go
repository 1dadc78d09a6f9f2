package rbm

import (
	"github.com/chewxy/math32"
	"github.com/gorgonia/boltzmann/unit"
)

// TrainerKind selects how the negative phase chain is started.
type TrainerKind byte

const (
	CD  TrainerKind = iota // contrastive divergence, chain starts at the data
	PCD                    // persistent contrastive divergence, chain carried across batches
	MAXTRAINER
)

// DecayType is the kind of weight decay applied to the gradients.
type DecayType byte

const (
	NoDecay DecayType = iota
	L1                // decay the weights with sign(W)
	L2                // decay the weights with W
	L1Full            // L1 on the weights and the biases
	L2Full            // L2 on the weights and the biases
	MAXDECAY
)

// SparsityMethod is the method used to push hidden activity toward a target.
type SparsityMethod byte

const (
	NoSparsity   SparsityMethod = iota
	GlobalTarget                // one moving average over all hidden units
	LocalTarget                 // one moving average per hidden unit
	Lee                         // Lee et al. (2008), bias only
	MAXSPARSITY
)

// BiasMode selects whether the Lee sparsity correction is applied to the
// hidden biases.
type BiasMode byte

const (
	BiasNone BiasMode = iota
	BiasSimple
	MAXBIASMODE
)

// ClipMode is the kind of gradient clipping.
type ClipMode byte

const (
	NoClip    ClipMode = iota
	ClipNorm           // rescale a gradient tensor whose L2 norm exceeds the bound
	ClipValue          // clamp each gradient element into [-bound, bound]
	MAXCLIP
)

// NegativePhase selects which visible statistics feed the negative phase of
// the weight gradient.
type NegativePhase byte

const (
	NegativeProbabilities NegativePhase = iota // v2 activation probabilities
	NegativeSamples                            // v2 samples
	MAXNEGATIVE
)

// Config configures a layer. It is resolved once, at construction, and
// never changes afterwards.
type Config struct {
	Visible   int // number of visible units
	Hidden    int // number of hidden units
	BatchSize int // mini-batch size

	VisibleUnit unit.Type
	HiddenUnit  unit.Type

	K       int // number of Gibbs steps per CD update
	Trainer TrainerKind

	LearningRate       float32
	Momentum           float32 // 0 disables momentum
	FinalMomentum      float32 // momentum used from FinalMomentumEpoch on
	FinalMomentumEpoch int

	Decay     float32
	DecayType DecayType

	Sparsity       SparsityMethod
	SparsityTarget float32 // target mean activation of the hidden units
	SparsityCost   float32
	SparsityDecay  float32 // smoothing factor of the moving average
	BiasMode       BiasMode

	Clip      ClipMode
	ClipBound float32

	NegativePhase    NegativePhase
	StochasticHidden bool // sample ReLU and Softmax hidden units instead of using their activations

	Parallel          bool // dispatch batch rows across goroutines
	Shuffle           bool // shuffle the training set every epoch
	Verbose           bool
	DBNOnly           bool // the layer is only ever trained by backpropagation
	Backprop          bool // the layer will be used with the backprop adapter
	InitWeights       bool // initialise the visible biases from the training data
	ComputeFreeEnergy bool // compute the free energy of every batch
}

// DefaultConf returns a binary-binary CD-1 configuration following Hinton's
// practical guide.
func DefaultConf(visible, hidden int) Config {
	return Config{
		Visible:   visible,
		Hidden:    hidden,
		BatchSize: 10,

		VisibleUnit: unit.Binary,
		HiddenUnit:  unit.Binary,

		K:       1,
		Trainer: CD,

		LearningRate:       0.1,
		Momentum:           0.5,
		FinalMomentum:      0.9,
		FinalMomentumEpoch: 6,

		Decay:     0.0002,
		DecayType: NoDecay,

		SparsityTarget: 0.01,
		SparsityCost:   1,
		SparsityDecay:  0.9,
		BiasMode:       BiasSimple,

		ClipBound: 5,
	}
}

// IsValid returns true if Validate returns no error.
func (conf Config) IsValid() bool { return conf.Validate() == nil }

// Validate checks every option and option combination. The returned error
// has ErrConfiguration as its cause.
func (conf Config) Validate() error {
	for _, f := range [...]struct {
		name string
		v    float32
	}{
		{"learning rate", conf.LearningRate},
		{"momentum", conf.Momentum},
		{"final momentum", conf.FinalMomentum},
		{"weight decay", conf.Decay},
		{"sparsity target", conf.SparsityTarget},
		{"sparsity cost", conf.SparsityCost},
		{"sparsity decay", conf.SparsityDecay},
		{"clip bound", conf.ClipBound},
	} {
		if math32.IsNaN(f.v) || math32.IsInf(f.v, 0) {
			return configErrorf("%s must be finite, got %v", f.name, f.v)
		}
	}

	switch {
	case conf.Visible < 1:
		return configErrorf("at least one visible unit is necessary, got %d", conf.Visible)
	case conf.Hidden < 1:
		return configErrorf("at least one hidden unit is necessary, got %d", conf.Hidden)
	case conf.BatchSize < 1:
		return configErrorf("batch size must be at least 1, got %d", conf.BatchSize)
	case conf.K < 1:
		return configErrorf("at least one Gibbs step is necessary, got %d", conf.K)
	case !conf.VisibleUnit.ValidVisible():
		return configErrorf("%v is not a valid visible unit", conf.VisibleUnit)
	case !conf.HiddenUnit.ValidHidden():
		return configErrorf("%v is not a valid hidden unit", conf.HiddenUnit)
	case conf.Trainer >= MAXTRAINER:
		return configErrorf("unknown trainer %d", conf.Trainer)
	case conf.DecayType >= MAXDECAY:
		return configErrorf("unknown decay type %d", conf.DecayType)
	case conf.Sparsity >= MAXSPARSITY:
		return configErrorf("unknown sparsity method %d", conf.Sparsity)
	case conf.BiasMode >= MAXBIASMODE:
		return configErrorf("unknown bias mode %d", conf.BiasMode)
	case conf.Clip >= MAXCLIP:
		return configErrorf("unknown clip mode %d", conf.Clip)
	case conf.NegativePhase >= MAXNEGATIVE:
		return configErrorf("unknown negative phase policy %d", conf.NegativePhase)
	case conf.LearningRate < 0:
		return configErrorf("learning rate must not be negative, got %v", conf.LearningRate)
	case conf.Momentum < 0 || conf.Momentum >= 1:
		return configErrorf("momentum must be in [0, 1), got %v", conf.Momentum)
	case conf.FinalMomentum < 0 || conf.FinalMomentum >= 1:
		return configErrorf("final momentum must be in [0, 1), got %v", conf.FinalMomentum)
	case conf.Decay < 0:
		return configErrorf("weight decay must not be negative, got %v", conf.Decay)
	}

	if conf.Sparsity != NoSparsity {
		if conf.HiddenUnit != unit.Binary {
			return configErrorf("sparsity only works with binary hidden units, got %v", conf.HiddenUnit)
		}
		if conf.SparsityTarget <= 0 || conf.SparsityTarget >= 1 {
			return configErrorf("sparsity target must be in (0, 1), got %v", conf.SparsityTarget)
		}
		if conf.SparsityDecay < 0 || conf.SparsityDecay >= 1 {
			return configErrorf("sparsity decay must be in [0, 1), got %v", conf.SparsityDecay)
		}
		if conf.SparsityCost < 0 {
			return configErrorf("sparsity cost must not be negative, got %v", conf.SparsityCost)
		}
	}
	if conf.Clip != NoClip && conf.ClipBound <= 0 {
		return configErrorf("gradient clipping needs a positive bound, got %v", conf.ClipBound)
	}
	if conf.Backprop && !conf.HiddenUnit.Backprop() {
		return configErrorf("only binary, softmax or ReLU hidden units are supported by backpropagation, got %v", conf.HiddenUnit)
	}
	if conf.DBNOnly && conf.Trainer == PCD {
		return configErrorf("a DBN-only layer keeps no sampling state for a persistent chain")
	}
	return nil
}

// momentumAt returns the momentum to use at the given epoch.
func (conf Config) momentumAt(epoch int) float32 {
	if conf.Momentum == 0 {
		return 0
	}
	if conf.FinalMomentum > 0 && epoch >= conf.FinalMomentumEpoch {
		return conf.FinalMomentum
	}
	return conf.Momentum
}
