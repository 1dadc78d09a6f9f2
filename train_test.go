package boltzmann

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/chewxy/math32"
	"github.com/gorgonia/boltzmann/rbm"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

var patterns = [][]float32{
	{1, 1, 1, 0, 0, 0},
	{0, 0, 0, 1, 1, 1},
}

func toyData(rows int) *tensor.Dense {
	backing := make([]float32, 0, rows*6)
	for i := 0; i < rows; i++ {
		backing = append(backing, patterns[i%2]...)
	}
	return tensor.New(tensor.WithShape(rows, 6), tensor.WithBacking(backing))
}

func toyTrainer(t *testing.T, mod func(c *rbm.Config)) *rbm.Trainer {
	conf := rbm.DefaultConf(6, 4)
	conf.BatchSize = 5
	if mod != nil {
		mod(&conf)
	}
	l, err := rbm.New(conf)
	require.NoError(t, err)
	tr, err := rbm.NewTrainer(l, rand.New(rand.NewSource(1337)))
	require.NoError(t, err)
	return tr
}

// poisoner injects a NaN into the weights before the steps it is told to.
type poisoner struct {
	*rbm.Trainer
	calls  int
	poison func(call int) bool
}

func (p *poisoner) Train(batch *tensor.Dense) (rbm.Stats, error) {
	p.calls++
	if p.poison(p.calls) {
		p.Layer().W.Data().([]float32)[0] = math32.NaN()
	}
	return p.Trainer.Train(batch)
}

func TestTrain(t *testing.T) {
	tr := toyTrainer(t, nil)
	stats := MakeStatistics()
	conf := DefaultTrainConfig(50)
	conf.Watcher = &stats
	conf.Rand = rand.New(rand.NewSource(1337))

	require.NoError(t, Train(tr, toyData(10), conf))
	require.Len(t, stats.Epochs, 50)
	assert.Equal(t, 49, stats.Epochs[49])
	first, last := stats.ReconstructionError[0], stats.ReconstructionError[49]
	assert.True(t, last < first, "reconstruction error went from %v to %v", first, last)
	assert.Empty(t, stats.Divergences)
}

func TestTrain_ErrorThreshold(t *testing.T) {
	tr := toyTrainer(t, nil)
	stats := MakeStatistics()
	conf := DefaultTrainConfig(50)
	conf.ErrorThreshold = 1
	conf.Watcher = &stats

	require.NoError(t, Train(tr, toyData(10), conf))
	assert.Len(t, stats.Epochs, 1)
}

func TestTrain_Divergence(t *testing.T) {
	p := &poisoner{
		Trainer: toyTrainer(t, nil),
		poison:  func(call int) bool { return call == 3 },
	}
	stats := MakeStatistics()
	conf := DefaultTrainConfig(3)
	conf.Watcher = &stats

	require.NoError(t, Train(p, toyData(10), conf))
	assert.Equal(t, []int{1}, stats.Divergences)
	assert.Equal(t, []int{0, 1, 2}, stats.Epochs)
	assert.Equal(t, []float32{0.1, 0.05, 0.05}, stats.LearningRate)
	assert.Equal(t, float32(0.05), p.LearningRate())
	assert.NoError(t, p.Layer().CheckFinite())
	// two batches per epoch, plus the batch that diverged
	assert.Equal(t, 7, p.calls)
}

func TestTrain_GivesUp(t *testing.T) {
	p := &poisoner{
		Trainer: toyTrainer(t, nil),
		poison:  func(int) bool { return true },
	}
	stats := MakeStatistics()
	conf := DefaultTrainConfig(3)
	conf.MaxDivergences = 2
	conf.Watcher = &stats

	err := Train(p, toyData(10), conf)
	assert.Equal(t, rbm.ErrNumericDivergence, errors.Cause(err))
	assert.Equal(t, []int{0, 0}, stats.Divergences)
	assert.Empty(t, stats.Epochs)
	assert.NoError(t, p.Layer().CheckFinite())
}

func TestTrain_BadInput(t *testing.T) {
	tr := toyTrainer(t, nil)
	tests := []struct {
		name string
		data *tensor.Dense
		conf TrainConfig
	}{
		{"wrong width", tensor.New(tensor.Of(rbm.Float), tensor.WithShape(10, 5)), DefaultTrainConfig(1)},
		{"vector", tensor.New(tensor.Of(rbm.Float), tensor.WithShape(6)), DefaultTrainConfig(1)},
		{"float64", tensor.New(tensor.Of(tensor.Float64), tensor.WithShape(10, 6)), DefaultTrainConfig(1)},
		{"no epochs", toyData(10), DefaultTrainConfig(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, rbm.ErrConfiguration, errors.Cause(Train(tr, tt.data, tt.conf)))
		})
	}
}

func TestTrain_Shuffle(t *testing.T) {
	tr := toyTrainer(t, func(c *rbm.Config) { c.Shuffle = true })
	data := toyData(20)
	conf := DefaultTrainConfig(3)
	conf.Rand = rand.New(rand.NewSource(1337))
	require.NoError(t, Train(tr, data, conf))

	mat := data.Data().([]float32)
	var firsts int
	for i := 0; i < 20; i++ {
		row := mat[i*6 : i*6+6]
		switch row[0] {
		case 1:
			assert.Equal(t, patterns[0], row)
			firsts++
		default:
			assert.Equal(t, patterns[1], row)
		}
	}
	assert.Equal(t, 10, firsts)
}

func TestTrain_InitWeights(t *testing.T) {
	tr := toyTrainer(t, func(c *rbm.Config) {
		c.InitWeights = true
		c.LearningRate = 0
	})
	l := tr.Layer()
	w := l.W.Clone().(*tensor.Dense)
	require.NoError(t, Train(tr, toyData(10), DefaultTrainConfig(1)))

	assert.Equal(t, w.Data(), l.W.Data())
	for _, c := range l.C.Data().([]float32) {
		assert.InDelta(t, 0, c, 1e-6)
	}
}

func TestTrain_Continue(t *testing.T) {
	tr := toyTrainer(t, func(c *rbm.Config) {
		c.InitWeights = true
		c.LearningRate = 0
	})
	l := tr.Layer()
	require.NoError(t, Train(tr, toyData(10), DefaultTrainConfig(1)))
	assert.False(t, l.InitWeights)

	require.NoError(t, l.C.Memset(float32(3)))
	require.NoError(t, Train(tr, toyData(10), DefaultTrainConfig(2)))
	for _, c := range l.C.Data().([]float32) {
		assert.Equal(t, float32(3), c)
	}
}

func TestTrain_LogWatcher(t *testing.T) {
	tr := toyTrainer(t, func(c *rbm.Config) {
		c.Verbose = true
		c.ComputeFreeEnergy = true
	})
	var buf bytes.Buffer
	stats := MakeStatistics()
	conf := DefaultTrainConfig(2)
	conf.Watcher = Watchers{NewLogWatcher(&buf), &stats}
	require.NoError(t, Train(tr, toyData(10), conf))

	out := buf.String()
	assert.True(t, strings.Contains(out, "Training RBM: 6(BINARY) -> 4(BINARY) for 2 epochs"), out)
	assert.True(t, strings.Contains(out, "Epoch 1 batch 1"), out)
	assert.True(t, strings.Contains(out, "Epoch 1: reconstruction error"), out)
	assert.True(t, strings.Contains(out, "free energy"), out)
	assert.True(t, strings.Contains(out, "Training of RBM"), out)
	assert.Len(t, stats.Epochs, 2)
}
