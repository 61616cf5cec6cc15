package simulate

import (
	"fmt"
	"math/rand/v2"

	"github.com/vedadux/quantile/pkg/bitvec"
	"github.com/vedadux/quantile/pkg/expr"
)

// argSrc identifies where a compiled operation's operand comes from: a
// fixed constant, or a run-storage slot written by an earlier operation
// (or supplied externally by the testbench driver).
type argSrc struct {
	constant bool
	value    bool // meaningful only if constant
	slot     int
}

func constArg(v bool) argSrc  { return argSrc{constant: true, value: v} }
func slotArg(p expr.Pos) argSrc { return argSrc{slot: int(p)} }

// compiledOp is one replayable gate evaluation, keyed by the storage slot
// it writes.
type compiledOp struct {
	kind    expr.OpKind
	a, b, c argSrc
}

// RunProgram is the in-process replacement for the original tool's emitted
// and separately compiled C++ translation unit: an ordered list of gate
// evaluations over a flat buffer of bitvec.Word lanes, plus the bulk
// helpers (randomize, fix-random, copy, count, xor) the original emits as
// sibling functions.
type RunProgram struct {
	runLength int
	ops       []compiledOp // len == runLength; ops[p].kind == expr.OpNone for free slots

	secretAllocs []ShareAlloc
	dataAllocs   []ShareAlloc
	maskRanges   []PosRange

	debugInfo []string
}

// Compile walks every run-storage slot of sim's trace and records how to
// reevaluate it: derived slots (NOT/AND/OR/XOR/MUX) store their operation
// and operand slots; free slots (secret/data/mask bits, allocated via
// Manager.NewVar) are left for the bulk helpers to fill directly.
func Compile(sim *Simulator) (*RunProgram, error) {
	n := sim.RunLength()
	rp := &RunProgram{
		runLength:    n,
		ops:          make([]compiledOp, n),
		secretAllocs: append([]ShareAlloc(nil), sim.secretAllocs...),
		dataAllocs:   append([]ShareAlloc(nil), sim.dataAllocs...),
		maskRanges:   append([]PosRange(nil), sim.maskRanges...),
		debugInfo:    append([]string(nil), sim.debugInfo...),
	}
	for p := 0; p < n; p++ {
		v, ok := sim.mgr.VarAt(expr.Pos(p))
		if !ok {
			return nil, fmt.Errorf("simulate: no variable recorded for slot %d", p)
		}
		op, ok := sim.mgr.Op(v)
		if !ok {
			rp.ops[p] = compiledOp{kind: expr.OpNone}
			continue
		}
		rp.ops[p] = compiledOp{kind: op.Kind, a: argOf(sim, op.Args[0])}
		switch op.Kind {
		case expr.OpAnd, expr.OpOr, expr.OpXor:
			rp.ops[p].b = argOf(sim, op.Args[1])
		case expr.OpMux:
			rp.ops[p].b = argOf(sim, op.Args[1])
			rp.ops[p].c = argOf(sim, op.Args[2])
		}
	}
	return rp, nil
}

func argOf(sim *Simulator, v expr.VarId) argSrc {
	switch v {
	case expr.VarZero:
		return constArg(false)
	case expr.VarOne:
		return constArg(true)
	}
	pos := sim.mgr.EmissionSlot(v)
	if pos == expr.PosInvalid {
		panic("simulate: operand variable has no storage slot; Compile invariant violated")
	}
	return slotArg(pos)
}

// RunLength returns the number of bitvec.Word lanes a storage buffer needs.
func (rp *RunProgram) RunLength() int { return rp.runLength }

// DebugInfo returns the per-slot debug label table.
func (rp *RunProgram) DebugInfo() []string { return rp.debugInfo }

// NewStorage allocates a zeroed buffer of the size this program requires.
func (rp *RunProgram) NewStorage() []bitvec.Word {
	return make([]bitvec.Word, rp.runLength)
}

func (rp *RunProgram) read(s []bitvec.Word, a argSrc) bitvec.Word {
	if a.constant {
		return bitvec.Const(a.value)
	}
	return s[a.slot]
}

// RunCircuit evaluates every compiled operation, in storage order, into s.
// Free slots (secret/data/mask bits) are assumed already populated by the
// caller via RandomizeSecrets/FixRandomSecrets/CopySecrets or equivalent.
func (rp *RunProgram) RunCircuit(s []bitvec.Word) {
	for p, op := range rp.ops {
		switch op.kind {
		case expr.OpNone:
			continue
		case expr.OpNot:
			s[p] = bitvec.Not(rp.read(s, op.a))
		case expr.OpAnd:
			s[p] = bitvec.And(rp.read(s, op.a), rp.read(s, op.b))
		case expr.OpOr:
			s[p] = bitvec.Or(rp.read(s, op.a), rp.read(s, op.b))
		case expr.OpXor:
			s[p] = bitvec.Xor(rp.read(s, op.a), rp.read(s, op.b))
		case expr.OpMux:
			s[p] = bitvec.Mux(rp.read(s, op.a), rp.read(s, op.b), rp.read(s, op.c))
		}
	}
}

// CountRunRange runs the circuit and returns, for every slot in [lo,hi],
// the number of set lanes (popcount) across the W-lane word.
func (rp *RunProgram) CountRunRange(s []bitvec.Word, lo, hi int) []int {
	rp.RunCircuit(s)
	counts := make([]int, hi-lo+1)
	for i := lo; i <= hi; i++ {
		counts[i-lo] = bitvec.PopCount(s[i])
	}
	return counts
}

// CountRun is CountRunRange over the program's full storage.
func (rp *RunProgram) CountRun(s []bitvec.Word) []int {
	return rp.CountRunRange(s, 0, rp.runLength-1)
}

// RunAndCountCircuit runs the circuit and returns the popcount of every
// slot listed in positions, in the order given.
func (rp *RunProgram) RunAndCountCircuit(s []bitvec.Word, positions []int) []int {
	rp.RunCircuit(s)
	counts := make([]int, len(positions))
	for i, p := range positions {
		counts[i] = bitvec.PopCount(s[p])
	}
	return counts
}

// XorRuns folds src into dst lane-wise across every storage slot, used to
// combine two independent trial buffers (e.g. for leakage-detection
// distinguishers that need the XOR of two traces).
func (rp *RunProgram) XorRuns(dst, src []bitvec.Word) {
	for i := range dst {
		dst[i] = bitvec.Xor(dst[i], src[i])
	}
}

func fillRange(s []bitvec.Word, r PosRange, gen func() bitvec.Word) {
	for i := r.Lo; i <= r.Hi; i++ {
		s[i] = gen()
	}
}

// RandomizeSecrets draws fresh random lanes for every secret's unmasked
// slot, across every AllocateSecrets call recorded. Masking shares live in
// the mask ranges instead (see RandomizeMasks), so they are untouched
// here: they must keep refreshing on every sampling draw, not just once
// per secret assignment.
func (rp *RunProgram) RandomizeSecrets(s []bitvec.Word, gen *rand.Rand) {
	for _, a := range rp.secretAllocs {
		fillRange(s, a.Unmasked, func() bitvec.Word { return bitvec.RandWord(gen) })
	}
}

// RandomizeData is RandomizeSecrets for the data (public-input) class.
func (rp *RunProgram) RandomizeData(s []bitvec.Word, gen *rand.Rand) {
	for _, a := range rp.dataAllocs {
		fillRange(s, a.Unmasked, func() bitvec.Word { return bitvec.RandWord(gen) })
	}
}

// RandomizeMasks draws fresh random lanes for every AllocateMasks slot.
func (rp *RunProgram) RandomizeMasks(s []bitvec.Word, gen *rand.Rand) {
	for _, r := range rp.maskRanges {
		fillRange(s, r, func() bitvec.Word { return bitvec.RandWord(gen) })
	}
}

// bitPool draws single bits out of one uintmax-sized draw at a time,
// refilling from gen when exhausted; ported from the original's
// emit_fix_random routines, which pack many single-bit draws into one
// machine word rather than calling the RNG per bit.
type bitPool struct {
	gen  *rand.Rand
	word uint64
	left int
}

func (p *bitPool) next() bool {
	if p.left == 0 {
		p.word = p.gen.Uint64()
		p.left = 64
	}
	bit := p.word&1 != 0
	p.word >>= 1
	p.left--
	return bit
}

// FixRandomSecrets fixes every secret bit's unmasked slot to a single
// independently-drawn constant lane (all lanes equal, one bit per secret
// bit). Masking shares are not touched here; RandomizeMasks must still be
// called per draw so the masking shares keep refreshing even while the
// unmasked secret stays fixed. This produces a "fixed" test vector for a
// fixed-vs-random leakage assessment.
func (rp *RunProgram) FixRandomSecrets(s []bitvec.Word, gen *rand.Rand) {
	pool := &bitPool{gen: gen}
	for _, a := range rp.secretAllocs {
		for i := a.Unmasked.Lo; i <= a.Unmasked.Hi; i++ {
			s[i] = bitvec.Const(pool.next())
		}
	}
}

// FixRandomData is FixRandomSecrets for the data class.
func (rp *RunProgram) FixRandomData(s []bitvec.Word, gen *rand.Rand) {
	pool := &bitPool{gen: gen}
	for _, a := range rp.dataAllocs {
		for i := a.Unmasked.Lo; i <= a.Unmasked.Hi; i++ {
			s[i] = bitvec.Const(pool.next())
		}
	}
}

// CopySecrets copies every secret's unmasked slot from src into dst, used
// to replay an identical secret assignment across two independently-masked
// trials (masking shares are deliberately left out of the copy, so each
// trial keeps its own fresh mask draw; see RandomizeMasks).
func (rp *RunProgram) CopySecrets(dst, src []bitvec.Word) {
	for _, a := range rp.secretAllocs {
		copyRange(dst, src, a.Unmasked)
	}
}

// CopyData is CopySecrets for the data class.
func (rp *RunProgram) CopyData(dst, src []bitvec.Word) {
	for _, a := range rp.dataAllocs {
		copyRange(dst, src, a.Unmasked)
	}
}

func copyRange(dst, src []bitvec.Word, r PosRange) {
	for i := r.Lo; i <= r.Hi; i++ {
		dst[i] = src[i]
	}
}
