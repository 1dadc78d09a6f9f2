// Package boltzmann drives the training of Restricted Boltzmann Machines:
// the epoch loop, its watchers, training statistics and persistence of the
// trained layers.
package boltzmann

import (
	"log"
	"math/rand"
	"time"

	"github.com/gorgonia/boltzmann/rbm"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
)

// Train trains the layer of t on data, a examples × visible matrix, for the
// configured number of epochs. Batches are views into data; when the layer
// shuffles, data is shuffled in place.
//
// When the layer asks for it, the visible biases are initialised from data
// before the first epoch. This happens once: InitWeights is cleared so that a
// later call, or a saved and reloaded layer, continues where training stopped.
//
// The parameters are snapshot at the start of every epoch. If a step
// diverges, the snapshot is restored, the learning rate halved and the
// epoch started again.
func Train(t Trainer, data *tensor.Dense, conf TrainConfig) error {
	l := t.Layer()
	shp := data.Shape()
	if len(shp) != 2 || shp[0] == 0 || shp[1] != l.Visible {
		return errors.Wrapf(rbm.ErrConfiguration, "training data has shape %v, expected (n, %d)", shp, l.Visible)
	}
	if data.Dtype() != rbm.Float {
		return errors.Wrapf(rbm.ErrConfiguration, "training data has dtype %v, expected %v", data.Dtype(), rbm.Float)
	}
	if conf.Epochs < 1 {
		return errors.Wrapf(rbm.ErrConfiguration, "at least one epoch is necessary, got %d", conf.Epochs)
	}
	watcher := conf.Watcher
	if watcher == nil {
		watcher = Watchers(nil)
	}
	maxDiv := conf.MaxDivergences
	if maxDiv <= 0 {
		maxDiv = 10
	}
	r := conf.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	if l.InitWeights {
		if err := l.InitVisibleBiases(data); err != nil {
			return err
		}
		// later calls continue training the layer
		l.InitWeights = false
	}

	watcher.TrainingBegin(l, conf.Epochs)
	defer watcher.TrainingEnd(l)

	var divergences int
	for epoch := 0; epoch < conf.Epochs; epoch++ {
		if l.Shuffle {
			if err := shuffleRows(r, data); err != nil {
				return err
			}
		}
		t.SetEpoch(epoch)
		l.Snapshot()

		es, err := trainEpoch(t, watcher, data, epoch)
		if errors.Cause(err) == rbm.ErrNumericDivergence {
			divergences++
			if err := t.Restore(); err != nil {
				return err
			}
			watcher.Diverged(l, epoch, err)
			if divergences >= maxDiv {
				return errors.Wrapf(err, "gave up after %d divergences", divergences)
			}
			t.SetLearningRate(t.LearningRate() / 2)
			if l.Verbose {
				log.Printf("Epoch %d diverged, restarting it with learning rate %v", epoch, t.LearningRate())
			}
			epoch--
			continue
		}
		if err != nil {
			return err
		}

		watcher.EpochEnd(l, es)
		if conf.ErrorThreshold > 0 && es.ReconstructionError < conf.ErrorThreshold {
			if l.Verbose {
				log.Printf("Epoch %d: reconstruction error %v is below %v, stopping", epoch, es.ReconstructionError, conf.ErrorThreshold)
			}
			break
		}
	}
	return nil
}

func trainEpoch(t Trainer, watcher Watcher, data *tensor.Dense, epoch int) (es EpochStats, err error) {
	l := t.Layer()
	start := time.Now()
	n, v := data.Shape()[0], data.Shape()[1]
	backing := data.Data().([]float32)
	bs := l.BatchSize

	es.Epoch = epoch
	es.LearningRate = t.LearningRate()
	for bat, from := 0, 0; from < n; bat, from = bat+1, from+bs {
		to := from + bs
		if to > n {
			to = n
		}
		batch := tensor.New(tensor.WithShape(to-from, v), tensor.WithBacking(backing[from*v:to*v]))
		var s rbm.Stats
		if s, err = t.Train(batch); err != nil {
			return es, errors.Wrapf(err, "batch %d", bat)
		}
		watcher.BatchEnd(l, BatchStats{Epoch: epoch, Batch: bat, Stats: s})

		w := float32(s.Size)
		es.Examples += s.Size
		es.ReconstructionError += w * s.ReconstructionError
		es.Sparsity += w * s.Sparsity
		es.FreeEnergy += w * s.FreeEnergy
	}
	inv := 1 / float32(es.Examples)
	es.ReconstructionError *= inv
	es.Sparsity *= inv
	es.FreeEnergy *= inv
	es.Duration = time.Since(start)
	return es, nil
}

// shuffleRows shuffles the rows of a matrix in place.
func shuffleRows(r *rand.Rand, data *tensor.Dense) error {
	mat, err := native.MatrixF32(data)
	if err != nil {
		return errors.Wrapf(err, "shuffle failed")
	}
	tmp := make([]float32, data.Shape()[1])
	for i := range mat {
		j := r.Intn(i + 1)

		rowI := mat[i]
		rowJ := mat[j]
		copy(tmp, rowI)
		copy(rowI, rowJ)
		copy(rowJ, tmp)
	}
	return nil
}
