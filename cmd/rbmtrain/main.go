package main

import (
	"flag"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/gorgonia/boltzmann"
	"github.com/gorgonia/boltzmann/encoding/gif"
	"github.com/gorgonia/boltzmann/encoding/mjpeg"
	"github.com/gorgonia/boltzmann/rbm"
	"github.com/gorgonia/boltzmann/unit"
	"gorgonia.org/tensor"
)

var (
	side     = flag.Int("side", 4, "bars and stripes images are side × side")
	hidden   = flag.Int("hidden", 16, "number of hidden units")
	epochs   = flag.Int("epochs", 200, "number of epochs")
	batch    = flag.Int("batch", 10, "mini-batch size")
	lr       = flag.Float64("lr", 0.1, "learning rate")
	k        = flag.Int("k", 1, "Gibbs steps per update")
	pcd      = flag.Bool("pcd", false, "use persistent contrastive divergence")
	sparsity = flag.Float64("sparsity", 0, "target hidden activity; 0 disables sparsity")
	relu     = flag.Bool("relu", false, "use noisy ReLU hidden units")
	parallel = flag.Bool("parallel", false, "spread batch rows across goroutines")
	verbose  = flag.Bool("v", false, "log every batch")
	seed     = flag.Int64("seed", 0, "random seed; 0 uses the time")

	gifOut   = flag.String("gif", "", "write the filters of every epoch into this gif")
	mjpegOut = flag.String("mjpeg", "", "stream the filters on this address, e.g. :8080")
	statsOut = flag.String("stats", "", "write the epoch statistics into this CSV file")
	save     = flag.String("save", "", "save the trained layer into this file")
	load     = flag.String("load", "", "continue training the layer saved in this file")
)

// barsAndStripes returns every side × side image made of full rows or full
// columns.
func barsAndStripes(side int) *tensor.Dense {
	n := side * side
	var backing []float32
	for mask := 0; mask < 1<<uint(side); mask++ {
		bars := make([]float32, n)
		stripes := make([]float32, n)
		for i := 0; i < side; i++ {
			if mask&(1<<uint(i)) == 0 {
				continue
			}
			for j := 0; j < side; j++ {
				bars[j*side+i] = 1
				stripes[i*side+j] = 1
			}
		}
		backing = append(backing, bars...)
		// all on and all off are both bars and stripes
		if mask != 0 && mask != 1<<uint(side)-1 {
			backing = append(backing, stripes...)
		}
	}
	return tensor.New(tensor.WithShape(len(backing)/n, n), tensor.WithBacking(backing))
}

func main() {
	flag.Parse()
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rand.Seed(*seed)
	r := rand.New(rand.NewSource(*seed))

	data := barsAndStripes(*side)
	log.Printf("%d bars and stripes of %d×%d", data.Shape()[0], *side, *side)

	var l *rbm.RBM
	var err error
	if *load != "" {
		if l, err = boltzmann.Load(*load); err != nil {
			log.Fatalf("%+v", err)
		}
	} else {
		conf := rbm.DefaultConf(*side**side, *hidden)
		conf.BatchSize = *batch
		conf.LearningRate = float32(*lr)
		conf.K = *k
		conf.Shuffle = true
		conf.InitWeights = true
		conf.ComputeFreeEnergy = true
		conf.Parallel = *parallel
		conf.Verbose = *verbose
		if *pcd {
			conf.Trainer = rbm.PCD
		}
		if *sparsity > 0 {
			conf.Sparsity = rbm.LocalTarget
			conf.SparsityTarget = float32(*sparsity)
		}
		if *relu {
			conf.HiddenUnit = unit.ReLU
			conf.StochasticHidden = true
		}
		if l, err = rbm.New(conf); err != nil {
			log.Fatalf("%+v", err)
		}
	}

	trainer, err := rbm.NewTrainer(l, r)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	stats := boltzmann.MakeStatistics()
	watchers := boltzmann.Watchers{boltzmann.NewLogWatcher(os.Stderr), &stats}
	var gifEnc *gif.Encoder
	if *gifOut != "" {
		f, err := os.OpenFile(*gifOut, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		gifEnc = gif.NewGifEncoder(f, *side, *side, 8)
		watchers = append(watchers, gifEnc)
	}
	if *mjpegOut != "" {
		enc := mjpeg.NewEncoder(*side, *side, 8)
		watchers = append(watchers, enc)
		go func(h http.Handler) {
			mux := http.NewServeMux()
			mux.Handle("/filters", h)
			log.Printf("http://localhost%s/filters", *mjpegOut)
			log.Println(http.ListenAndServe(*mjpegOut, mux))
		}(enc)
	}

	tc := boltzmann.DefaultTrainConfig(*epochs)
	tc.Watcher = watchers
	tc.Rand = r
	if err = boltzmann.Train(trainer, data, tc); err != nil {
		log.Fatalf("%+v", err)
	}

	if gifEnc != nil {
		if err = gifEnc.Flush(); err != nil {
			log.Fatalf("%+v", err)
		}
	}
	if *statsOut != "" {
		if err = stats.Dump(*statsOut); err != nil {
			log.Fatal(err)
		}
	}
	if *save != "" {
		if err = boltzmann.Save(*save, l); err != nil {
			log.Fatalf("%+v", err)
		}
		log.Printf("Saved %v into %s", l, *save)
	}
}
