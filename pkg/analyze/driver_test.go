package analyze_test

import (
	"io"
	"testing"
	"time"

	"github.com/vedadux/quantile/pkg/analyze"
	"github.com/vedadux/quantile/pkg/bitvec"
	"github.com/vedadux/quantile/pkg/checkpoint"
	"github.com/vedadux/quantile/pkg/netlist"
	"github.com/vedadux/quantile/pkg/simulate"
)

func buildMaskingDemoProgram(t *testing.T) (*simulate.RunProgram, int, int) {
	t.Helper()
	n := loadMaskingDemo(t)
	sim := simulate.New(n)
	sim.PrepareCycle()
	if err := sim.AllocateSecrets(netlist.Range{Lo: 4, Hi: 4}, 1); err != nil {
		t.Fatalf("AllocateSecrets failed: %v", err)
	}
	if err := sim.AllocateMasks(netlist.Range{Lo: 5, Hi: 5}); err != nil {
		t.Fatalf("AllocateMasks failed: %v", err)
	}
	sim.StepCycle()

	leakPos := int(sim.Signal(netlist.SigId(4)).Pos)
	maskedPos := int(sim.Signal(netlist.SigId(6)).Pos)

	rp, err := simulate.Compile(sim)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return rp, leakPos, maskedPos
}

// TestDriverRunMergesSamplersAndDetectsLeak runs a small multi-worker Driver
// to completion and checks the merged result reproduces the same leak/no-
// leak distinction a single Sampler shows, plus that every configured
// sample quota across all workers was actually completed.
func TestDriverRunMergesSamplersAndDetectsLeak(t *testing.T) {
	rp, leakPos, maskedPos := buildMaskingDemoProgram(t)

	const perWorkerSamples = uint64(bitvec.LaneWidth) * 8
	const numThreads = 2
	const numRounds = 3
	samplesPerData := perWorkerSamples + perWorkerSamples // num_secrets(1) * given_ds + given_d
	cfg := analyze.Config{
		Cycles:             1,
		NumThreads:         numThreads,
		Delta:              0.00001,
		EarlyStop:          false,
		NumSamplesFGivenD:  perWorkerSamples,
		NumSamplesFGivenDS: perWorkerSamples,
		NumSecrets:         1,
		NumData:            uint64(numRounds * numThreads),
		NumSamples:         samplesPerData * uint64(numThreads) * uint64(numRounds),
		Timeout:            0,
		PrintBest:          5,
		PrintInterval:      0,
	}

	d := analyze.NewDriver(cfg, rp)
	elapsed := d.Run(io.Discard)
	if elapsed <= 0 {
		t.Fatalf("Run reported non-positive elapsed duration")
	}

	result := d.MergedResult(checkpoint.BuildHash([]byte("demo"), cfg.Cycles, cfg.NumSecrets), uint64(elapsed/time.Millisecond))
	if result.NumRuns != uint64(numRounds*numThreads) {
		t.Fatalf("NumRuns = %d, want %d", result.NumRuns, numRounds*numThreads)
	}

	leakMI := result.SumOfMIFSGivenD[leakPos] / float64(result.NumRuns)
	maskedMI := result.SumOfMIFSGivenD[maskedPos] / float64(result.NumRuns)
	if leakMI < 0.7 {
		t.Fatalf("merged leak MI = %v, want close to 1 bit", leakMI)
	}
	if maskedMI > 0.3 || maskedMI < -0.3 {
		t.Fatalf("merged masked MI = %v, want close to 0 bits", maskedMI)
	}
}
