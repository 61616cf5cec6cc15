package analyze_test

import (
	"testing"

	"github.com/vedadux/quantile/pkg/analyze"
	"github.com/vedadux/quantile/pkg/bitvec"
	"github.com/vedadux/quantile/pkg/netlist"
	"github.com/vedadux/quantile/pkg/simulate"
)

// loadMaskingDemo builds a one-cycle circuit exposing both a raw (unmasked,
// fully leaky) copy of a secret bit and a one-time-pad masked copy of the
// same bit, so a single RunOnce can be checked against both a "leaks
// everything" and a "leaks nothing" expectation.
func loadMaskingDemo(t *testing.T) *netlist.Netlist {
	t.Helper()
	doc := []byte(`{
		"modules": {
			"top": {
				"ports": {
					"secret_in": {"direction": "input", "bits": [4]},
					"mask_in": {"direction": "input", "bits": [5]},
					"leak": {"direction": "output", "bits": [4]},
					"masked": {"direction": "output", "bits": [6]}
				},
				"cells": {
					"xor1": {"type": "$xor", "connections": {"A": [4], "B": [5], "Y": [6]}}
				},
				"netnames": {}
			}
		}
	}`)
	n, err := netlist.Load(doc, "top")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return n
}

func buildMaskingDemoSampler(t *testing.T, numSamples uint64) (*analyze.Sampler, int, int) {
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

	leakPos := int(sim.Signal(netlist.SigId(4)).Pos)   // unmasked secret bit, directly exposed
	maskedPos := int(sim.Signal(netlist.SigId(6)).Pos) // secret xor mask, a one-time pad

	rp, err := simulate.Compile(sim)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	s := analyze.NewSampler(rp, numSamples, numSamples, 1)
	return s, leakPos, maskedPos
}

// TestRunOnceDetectsRawLeakage checks that a secret bit exposed unmasked
// accumulates close to one bit of leaked mutual information per run.
func TestRunOnceDetectsRawLeakage(t *testing.T) {
	const numSamples = uint64(bitvec.LaneWidth) * 16
	s, leakPos, maskedPos := buildMaskingDemoSampler(t, numSamples)

	const rounds = 4
	for i := 0; i < rounds; i++ {
		s.RunOnce()
	}

	leakMI := s.SumOfMI[leakPos] / float64(s.RunID)
	maskedMI := s.SumOfMI[maskedPos] / float64(s.RunID)

	if leakMI < 0.7 {
		t.Fatalf("raw leak slot MI = %v, want close to 1 bit", leakMI)
	}
	if maskedMI > 0.3 || maskedMI < -0.3 {
		t.Fatalf("masked slot MI = %v, want close to 0 bits", maskedMI)
	}
}

// loadShareMaskingDemo wires a single secret bit straight to an output on
// the same bit, with no cells in between: AllocateSecrets' own share-fold
// (rather than a second AllocateMasks call) is what must hide the bit.
func loadShareMaskingDemo(t *testing.T) *netlist.Netlist {
	t.Helper()
	doc := []byte(`{
		"modules": {
			"top": {
				"ports": {
					"secret_in": {"direction": "input", "bits": [4]},
					"masked": {"direction": "output", "bits": [4]}
				},
				"cells": {},
				"netnames": {}
			}
		}
	}`)
	n, err := netlist.Load(doc, "top")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return n
}

// TestRunOnceAveragesOverFreshMaskShares checks that a secret allocated with
// two masking shares reports close to zero leaked mutual information on its
// folded output. This specifically exercises AllocateSecrets' own share
// range rather than a separately-allocated mask signal: H(F|D,S=s) must
// redraw the masking share on every inner sample, or the folded output
// degenerates to a single fixed value per secret draw and the slot reads as
// fully leaky instead of fully masked.
func TestRunOnceAveragesOverFreshMaskShares(t *testing.T) {
	const numSamples = uint64(bitvec.LaneWidth) * 16
	n := loadShareMaskingDemo(t)
	sim := simulate.New(n)
	sim.PrepareCycle()
	if err := sim.AllocateSecrets(netlist.Range{Lo: 4, Hi: 4}, 2); err != nil {
		t.Fatalf("AllocateSecrets failed: %v", err)
	}
	sim.StepCycle()

	maskedPos := int(sim.Signal(netlist.SigId(4)).Pos)

	rp, err := simulate.Compile(sim)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	s := analyze.NewSampler(rp, numSamples, numSamples, 1)
	const rounds = 4
	for i := 0; i < rounds; i++ {
		s.RunOnce()
	}

	maskedMI := s.SumOfMI[maskedPos] / float64(s.RunID)
	if maskedMI > 0.3 || maskedMI < -0.3 {
		t.Fatalf("two-share masked slot MI = %v, want close to 0 bits", maskedMI)
	}
}
