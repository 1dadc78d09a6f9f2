package boltzmann

import (
	"math/rand"
	"time"

	"github.com/gorgonia/boltzmann/rbm"
	"gorgonia.org/tensor"
)

// Trainer is anything that can run a training step of a layer over a batch.
// *rbm.Trainer is the canonical implementation.
type Trainer interface {
	Train(batch *tensor.Dense) (rbm.Stats, error)
	Layer() *rbm.RBM

	LearningRate() float32
	SetLearningRate(lr float32)
	SetEpoch(epoch int)

	// Restore rolls the layer back to its last snapshot.
	Restore() error
}

// Watcher is notified of the progress of Train.
//
// An example Watcher is the gif Encoder. Another example would be a logger.
type Watcher interface {
	TrainingBegin(l *rbm.RBM, epochs int)
	BatchEnd(l *rbm.RBM, s BatchStats)
	EpochEnd(l *rbm.RBM, s EpochStats)
	Diverged(l *rbm.RBM, epoch int, err error)
	TrainingEnd(l *rbm.RBM)
}

// BatchStats describes one training step.
type BatchStats struct {
	Epoch, Batch int
	rbm.Stats
}

// EpochStats describes one pass over the training set. Errors and
// activations are averaged over the examples.
type EpochStats struct {
	Epoch               int
	Examples            int
	ReconstructionError float32
	Sparsity            float32
	FreeEnergy          float32
	LearningRate        float32
	Duration            time.Duration
}

// TrainConfig configures Train. The layer's own Config supplies the batch
// size and the shuffle, verbose and init-weights options.
type TrainConfig struct {
	Epochs         int
	ErrorThreshold float32 // stop once the epoch reconstruction error is below; 0 disables
	MaxDivergences int     // give up after that many divergences; 0 means 10

	Watcher Watcher
	Rand    *rand.Rand // shuffles the data; nil uses a time seeded source
}

// DefaultTrainConfig returns a configuration that runs the given number of
// epochs.
func DefaultTrainConfig(epochs int) TrainConfig {
	return TrainConfig{
		Epochs:         epochs,
		MaxDivergences: 10,
	}
}
