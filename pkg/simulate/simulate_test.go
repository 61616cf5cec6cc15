package simulate_test

import (
	"math/rand/v2"
	"testing"

	"github.com/vedadux/quantile/pkg/bitvec"
	"github.com/vedadux/quantile/pkg/netlist"
	"github.com/vedadux/quantile/pkg/simulate"
)

func loadXor(t *testing.T) *netlist.Netlist {
	t.Helper()
	doc := []byte(`{
		"modules": {
			"top": {
				"ports": {
					"a": {"direction": "input", "bits": [4]},
					"b": {"direction": "input", "bits": [5]},
					"y": {"direction": "output", "bits": [6]}
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

// TestXorCircuitRunProgram builds a one-cycle XOR circuit's symbolic trace,
// compiles it, and checks the compiled program reproduces a^b for a
// representative input.
func TestXorCircuitRunProgram(t *testing.T) {
	n := loadXor(t)
	sim := simulate.New(n)
	sim.PrepareCycle()
	symA := sim.DriveInput(netlist.SigId(4), "a @0")
	symB := sim.DriveInput(netlist.SigId(5), "b @0")
	sim.StepCycle()

	rp, err := simulate.Compile(sim)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	ySym := sim.Signal(netlist.SigId(6))

	cases := []struct{ a, b, want bool }{
		{false, false, false},
		{false, true, true},
		{true, false, true},
		{true, true, false},
	}
	for _, c := range cases {
		s := rp.NewStorage()
		s[symA.Pos] = bitvec.Const(c.a)
		s[symB.Pos] = bitvec.Const(c.b)
		rp.RunCircuit(s)
		got := bitvec.PopCount(s[ySym.Pos]) == bitvec.LaneWidth
		if got != c.want {
			t.Fatalf("a=%v b=%v: got y=%v, want %v", c.a, c.b, got, c.want)
		}
	}
}

// TestXorCircuitRandomLanes exercises RunCircuit across independently
// random lanes packed into a single Word, verifying every lane agrees with
// its own scalar a^b.
func TestXorCircuitRandomLanes(t *testing.T) {
	n := loadXor(t)
	sim := simulate.New(n)
	sim.PrepareCycle()
	symA := sim.DriveInput(netlist.SigId(4), "a @0")
	symB := sim.DriveInput(netlist.SigId(5), "b @0")
	sim.StepCycle()

	rp, err := simulate.Compile(sim)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	ySym := sim.Signal(netlist.SigId(6))

	gen := rand.New(rand.NewPCG(1, 2))
	s := rp.NewStorage()
	s[symA.Pos] = bitvec.RandWord(gen)
	s[symB.Pos] = bitvec.RandWord(gen)
	rp.RunCircuit(s)

	wantLimbs := bitvec.Xor(s[symA.Pos], s[symB.Pos])
	if s[ySym.Pos] != wantLimbs {
		t.Fatalf("lane-wise xor mismatch")
	}
}

func loadSecretPassthrough(t *testing.T) *netlist.Netlist {
	t.Helper()
	doc := []byte(`{
		"modules": {
			"top": {
				"ports": {
					"secret_in": {"direction": "input", "bits": [4, 5]},
					"y": {"direction": "output", "bits": [4, 5]}
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

// TestAllocateSecretsSharing verifies the share-count bookkeeping and that
// randomizing then running produces the expected storage spans.
func TestAllocateSecretsSharing(t *testing.T) {
	n := loadSecretPassthrough(t)
	sim := simulate.New(n)
	sim.PrepareCycle()
	if err := sim.AllocateSecrets(netlist.Range{Lo: 4, Hi: 5}, 3); err != nil {
		t.Fatalf("AllocateSecrets failed: %v", err)
	}
	sim.StepCycle()

	allocs := sim.SecretAllocs()
	if len(allocs) != 1 {
		t.Fatalf("expected 1 secret allocation, got %d", len(allocs))
	}
	a := allocs[0]
	if a.NumShares != 3 {
		t.Fatalf("NumShares = %d, want 3", a.NumShares)
	}
	if a.Unmasked.Len() != 2 {
		t.Fatalf("Unmasked span = %d, want 2", a.Unmasked.Len())
	}
	if !a.HasShares || a.Shares.Len() != 4 {
		t.Fatalf("Shares span = %v (HasShares=%v), want 4 slots", a.Shares, a.HasShares)
	}
	if a.Final.Len() != 2 {
		t.Fatalf("Final span = %d, want 2", a.Final.Len())
	}

	found := false
	for _, r := range sim.MaskRanges() {
		if r == a.Shares {
			found = true
		}
	}
	if !found {
		t.Fatalf("MaskRanges() = %v, want it to include the share range %v", sim.MaskRanges(), a.Shares)
	}

	rp, err := simulate.Compile(sim)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	gen := rand.New(rand.NewPCG(7, 8))
	s := rp.NewStorage()
	rp.RandomizeSecrets(s, gen)
	rp.RandomizeMasks(s, gen)
	rp.RunCircuit(s)

	// Share 0, XORed with every masking share, must reconstruct the
	// original unmasked bit (the share-XOR-to-share0 invariant).
	for i := 0; i < 2; i++ {
		unmasked := s[int(a.Unmasked.Lo)+i]
		recombined := unmasked
		for sh := 0; sh < 2; sh++ {
			recombined = bitvec.Xor(recombined, s[int(a.Shares.Lo)+sh*2+i])
		}
		final := s[int(a.Final.Lo)+i]
		if recombined != final {
			t.Fatalf("bit %d: XOR of unmasked+shares does not reconstruct final share", i)
		}
	}
}

// TestFixRandomSecretsConstantAcrossLanes verifies that FixRandomSecrets
// pins every lane of each unmasked slot to the same bit.
func TestFixRandomSecretsConstantAcrossLanes(t *testing.T) {
	n := loadSecretPassthrough(t)
	sim := simulate.New(n)
	sim.PrepareCycle()
	if err := sim.AllocateSecrets(netlist.Range{Lo: 4, Hi: 5}, 2); err != nil {
		t.Fatalf("AllocateSecrets failed: %v", err)
	}
	sim.StepCycle()

	rp, err := simulate.Compile(sim)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	gen := rand.New(rand.NewPCG(3, 4))
	s := rp.NewStorage()
	rp.FixRandomSecrets(s, gen)

	a := sim.SecretAllocs()[0]
	for i := a.Unmasked.Lo; i <= a.Unmasked.Hi; i++ {
		n := bitvec.PopCount(s[i])
		if n != 0 && n != bitvec.LaneWidth {
			t.Fatalf("slot %d is not lane-uniform after FixRandomSecrets: popcount=%d", i, n)
		}
	}
}

// TestDuplicateSecretAllocationRejected verifies that allocating the same
// bit twice is an error rather than silently clobbering storage.
func TestDuplicateSecretAllocationRejected(t *testing.T) {
	n := loadSecretPassthrough(t)
	sim := simulate.New(n)
	sim.PrepareCycle()
	if err := sim.AllocateSecrets(netlist.Range{Lo: 4, Hi: 4}, 1); err != nil {
		t.Fatalf("first AllocateSecrets failed: %v", err)
	}
	if err := sim.AllocateSecrets(netlist.Range{Lo: 4, Hi: 4}, 1); err == nil {
		t.Fatalf("expected an error re-allocating bit 4")
	}
}
