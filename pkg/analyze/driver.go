// Package analyze drives the mutual-information estimate over a compiled
// run program: one Sampler per worker, coordinated by a Driver that mirrors
// verify_mi.cpp's pthread-based main loop with idiomatic Go primitives.
package analyze

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/vedadux/quantile/pkg/checkpoint"
	"github.com/vedadux/quantile/pkg/simulate"
)

// Config is the subset of OptionsMI a Driver needs once pkg/config has
// resolved flags and defaults into concrete values.
type Config struct {
	Cycles             uint32
	NumThreads         int
	Delta              float64
	EarlyStop          bool
	NumSamplesFGivenD  uint64
	NumSamplesFGivenDS uint64
	NumSecrets         uint64
	NumData            uint64
	NumSamples         uint64
	Timeout            time.Duration
	PrintBest          int
	PrintInterval      time.Duration
}

// Driver owns every worker Sampler and the shared coordination state used
// to report progress and stop early, grounded on verify_mi.cpp's
// SamplerMI::mutex/cond_var/samplers_done statics generalized to an
// instance (so more than one Driver can run in a process, e.g. under test)
// plus an atomic.Bool stop flag in place of the source's `volatile bool
// not_stopped` (set from signal handlers and from early-stop detection).
type Driver struct {
	cfg      Config
	rp       *simulate.RunProgram
	samplers []*Sampler

	stop atomic.Bool

	mu           sync.Mutex
	cond         *sync.Cond
	samplersDone int
}

// NewDriver allocates cfg.NumThreads independent Samplers over rp.
func NewDriver(cfg Config, rp *simulate.RunProgram) *Driver {
	d := &Driver{cfg: cfg, rp: rp}
	d.cond = sync.NewCond(&d.mu)
	d.samplers = make([]*Sampler, cfg.NumThreads)
	for i := range d.samplers {
		d.samplers[i] = NewSampler(rp, cfg.NumSamplesFGivenD, cfg.NumSamplesFGivenDS, cfg.NumSecrets)
	}
	return d
}

// Resume seeds the first sampler's run counter and accumulated sums from a
// loaded checkpoint, exactly as analyze()'s "extra special handling for
// save_data" does for samplers[0].
func (d *Driver) Resume(data *checkpoint.Data) {
	if len(d.samplers) == 0 {
		return
	}
	s := d.samplers[0]
	s.RunID = data.NumRuns
	copy(s.SumOfMI, data.SumOfMIFSGivenD)
}

// MergedResult sums every sampler's accumulators into a checkpoint.Data
// ready for persistence, mirroring write_save's per-sampler fold.
func (d *Driver) MergedResult(buildHash [checkpoint.HashSize]byte, durationMS uint64) *checkpoint.Data {
	out := checkpoint.New(buildHash, d.cfg.Cycles, d.cfg.NumSamplesFGivenD, d.cfg.NumSamplesFGivenDS, d.cfg.NumSecrets, uint64(d.rp.RunLength()))
	out.DurationMS = durationMS
	for _, s := range d.samplers {
		out.NumRuns += s.RunID
		for p := range out.SumOfMIFSGivenD {
			out.SumOfMIFSGivenD[p] += s.SumOfMI[p]
		}
	}
	return out
}

func (d *Driver) runsPerThread() uint64 {
	samplesPerData := d.cfg.NumSamplesFGivenD + d.cfg.NumSecrets*d.cfg.NumSamplesFGivenDS
	samplesAtOnce := samplesPerData * uint64(len(d.samplers))
	if samplesAtOnce == 0 {
		return 0
	}
	n := d.cfg.NumSamples / samplesAtOnce
	if d.cfg.NumSamples%samplesAtOnce != 0 {
		n++
	}
	return n
}

// runMany drives one sampler through numRuns RunOnce calls (or until the
// stop flag is observed), then reports completion, ported from run_many.
func (d *Driver) runMany(s *Sampler, numRuns uint64) {
	end := s.RunID + numRuns
	for !d.stop.Load() && s.RunID != end {
		s.RunOnce()
	}
	d.mu.Lock()
	d.samplersDone++
	d.mu.Unlock()
	d.cond.Signal()
}

// Run starts every worker, reports progress on the configured interval
// (or only on completion, if PrintInterval is zero), and returns once every
// worker has finished or the process was asked to stop. It installs its own
// SIGINT/SIGTERM/SIGHUP handling and honors cfg.Timeout, restoring the
// previous signal disposition before returning exactly as analyze() does.
func (d *Driver) Run(out io.Writer) time.Duration {
	start := time.Now()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	sigDone := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			d.stop.Store(true)
		case <-sigDone:
		}
	}()
	defer close(sigDone)

	if d.cfg.Timeout > 0 {
		timer := time.AfterFunc(d.cfg.Timeout, func() { d.stop.Store(true) })
		defer timer.Stop()
	}

	fmt.Fprintf(out, "DELTA: %19.16f\n", d.cfg.Delta)
	numRunsPerThread := d.runsPerThread()
	fmt.Fprintf(out, "num_samples: %d\n", d.cfg.NumSamples)
	fmt.Fprintf(out, "runs_per_thread: %d\n", numRunsPerThread)

	var wg sync.WaitGroup
	for _, s := range d.samplers {
		wg.Add(1)
		go func(s *Sampler) {
			defer wg.Done()
			d.runMany(s, numRunsPerThread)
		}(s)
	}

	// wake is a periodic nudge to the driver's wait loop, standing in for
	// pthread_cond_timedwait's timeout path: sync.Cond has no native
	// deadline, so a ticker goroutine broadcasts on the same condition
	// variable every PrintInterval instead.
	wakeDone := make(chan struct{})
	if d.cfg.PrintInterval > 0 {
		go func() {
			ticker := time.NewTicker(d.cfg.PrintInterval)
			defer ticker.Stop()
			for {
				select {
				case <-wakeDone:
					return
				case <-ticker.C:
					d.mu.Lock()
					d.cond.Broadcast()
					d.mu.Unlock()
				}
			}
		}()
	}

	d.mu.Lock()
	for d.samplersDone < len(d.samplers) {
		d.cond.Wait()
		if d.samplersDone >= len(d.samplers) {
			break
		}
		d.showSuspicious(out, d.cfg.PrintBest)
	}
	d.mu.Unlock()
	close(wakeDone)

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Fprintf(out, "Finished analysis, writing results\n")
	d.showSuspicious(out, -1)
	return elapsed
}
