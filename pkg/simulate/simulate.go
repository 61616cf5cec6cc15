// Package simulate unrolls a netlist cycle by cycle into a symbolic trace
// over pkg/expr, and compiles that trace into an in-process RunProgram:
// a flat list of gate records, one per run-storage slot, that it evaluates
// in storage order over bitvec.Word buffers to replay the same gate
// evaluations concretely. This replaces the original tool's step of
// emitting a textual C++ translation unit and compiling it into a second
// binary; Go has no in-process compile-and-link step, so the "program" is
// instead a data structure this package interprets directly (spec.md Q3).
package simulate

import (
	"fmt"

	"github.com/vedadux/quantile/pkg/expr"
	"github.com/vedadux/quantile/pkg/netlist"
)

// PosRange is a closed interval over run-storage slots.
type PosRange struct {
	Lo, Hi expr.Pos
}

// Len reports the number of slots spanned by r.
func (r PosRange) Len() int { return int(r.Hi-r.Lo) + 1 }

// CycleRange records the storage slots emitted while stepping one cycle,
// mirroring Circuit's per-cycle emit bookkeeping used by debug dumps.
type CycleRange struct {
	Cycle      int
	Start, End expr.Pos
}

// ShareAlloc records the three storage spans produced by one call to
// AllocateSecrets or AllocateData over a contiguous run of bits:
//
//   - Unmasked: where the true (pre-share) bit value is written by the
//     testbench driver (Randomize/FixRandom/Copy).
//   - Shares: where the independent masking shares 1..NumShares-1 live.
//     This range is also folded into the Simulator's mask-range list, so
//     RunProgram.RandomizeMasks refreshes it on every draw rather than
//     only once per secret/data assignment; empty when NumShares == 1.
//   - Final: where the running XOR-fold of all shares ends up; this is
//     the value the circuit itself reads as the driven signal.
type ShareAlloc struct {
	Cycle     int
	NumShares int
	Unmasked  PosRange
	Shares    PosRange
	HasShares bool
	Final     PosRange
}

// Simulator unrolls net cycle by cycle, building a symbolic trace of
// pkg/expr variables and recording which get a run-storage slot.
type Simulator struct {
	net *netlist.Netlist
	mgr *expr.Manager

	// trace[0] is a dummy bootstrap cycle (all inputs and register
	// outputs held at false) that supplies a well-defined "previous
	// cycle" for the first real PrepareCycle call, mirroring the
	// original Simulator constructor's dummy pre-cycle seeding.
	trace []map[netlist.SigId]expr.Symbol

	debugInfo []string

	secrets map[uint32][]expr.Symbol
	data    map[uint32][]expr.Symbol
	masks   map[uint32]expr.Symbol

	secretAllocs []ShareAlloc
	dataAllocs   []ShareAlloc
	maskRanges   []PosRange

	cycleEmits []CycleRange
}

// New returns a Simulator ready to unroll net, with the bootstrap cycle
// already seeded.
func New(net *netlist.Netlist) *Simulator {
	s := &Simulator{
		net:     net,
		mgr:     expr.New(),
		secrets: make(map[uint32][]expr.Symbol),
		data:    make(map[uint32][]expr.Symbol),
		masks:   make(map[uint32]expr.Symbol),
	}
	boot := s.constMap()
	for sig := range net.InPorts {
		boot[sig] = expr.Symbol{Var: expr.VarZero, Pos: expr.PosInvalid}
	}
	for sig := range net.RegOuts {
		boot[sig] = expr.Symbol{Var: expr.VarZero, Pos: expr.PosInvalid}
	}
	s.trace = append(s.trace, boot)
	return s
}

func (s *Simulator) constMap() map[netlist.SigId]expr.Symbol {
	return map[netlist.SigId]expr.Symbol{
		netlist.SigZero: {Var: expr.VarZero, Pos: expr.PosInvalid},
		netlist.SigOne:  {Var: expr.VarOne, Pos: expr.PosInvalid},
		netlist.SigX:    {Var: expr.VarZero, Pos: expr.PosInvalid},
		netlist.SigZ:    {Var: expr.VarZero, Pos: expr.PosInvalid},
	}
}

// Manager returns the underlying expression manager.
func (s *Simulator) Manager() *expr.Manager { return s.mgr }

// Netlist returns the circuit being unrolled.
func (s *Simulator) Netlist() *netlist.Netlist { return s.net }

// NumCycles returns the number of cycles stepped so far (excluding the
// bootstrap cycle).
func (s *Simulator) NumCycles() int { return len(s.trace) - 1 }

// RunLength returns the number of run-storage slots allocated so far.
func (s *Simulator) RunLength() int { return int(s.mgr.NumEmitted()) }

// DebugInfo returns the per-slot debug label table, indexed by Pos.
func (s *Simulator) DebugInfo() []string { return s.debugInfo }

// CycleEmits returns the [start,end) emission range recorded for every
// cycle stepped so far.
func (s *Simulator) CycleEmits() []CycleRange { return s.cycleEmits }

// SetSignal drives sym onto sig in the current (most recently prepared)
// cycle. Call after PrepareCycle and before StepCycle to supply the
// testbench's primary-input values for this cycle.
func (s *Simulator) SetSignal(sig netlist.SigId, sym expr.Symbol) {
	s.trace[len(s.trace)-1][sig] = sym
}

// Signal returns the current value bound to sig in the most recently
// prepared cycle.
func (s *Simulator) Signal(sig netlist.SigId) expr.Symbol {
	return s.trace[len(s.trace)-1][sig]
}

// DriveInput allocates a fresh, externally-settable storage slot for sig
// and binds it as the signal's current value in the current cycle. Used
// for primary inputs outside the secret/data/mask accounting (plain
// testbench vectors, clocks): AllocateSecrets/Data/Masks cover the
// masking-aware input classes, this covers everything else.
func (s *Simulator) DriveInput(sig netlist.SigId, label string) expr.Symbol {
	v := s.mgr.NewVar()
	pos := s.mgr.NewEmission(v)
	s.growDebugInfo(pos)
	s.debugInfo[pos] = label
	sym := expr.Symbol{Var: v, Pos: pos}
	s.SetSignal(sig, sym)
	return sym
}

func (s *Simulator) growDebugInfo(pos expr.Pos) {
	for expr.Pos(len(s.debugInfo)) <= pos {
		s.debugInfo = append(s.debugInfo, "")
	}
}

// emitIfNeeded assigns v a storage slot unless it is a constant, in which
// case no storage is needed. info labels a newly created slot only; an
// already-emitted slot keeps its first label, matching the original's
// "emit, labeling only the first sighting" behavior. Operands of v that
// have no slot yet (the inner AND/OR/XOR of a NAND/NOR/XNOR, or a NOT that
// a Mux simplification introduces) are emitted first, labeled "intern",
// so every operand Compile looks up has a slot below v's.
func (s *Simulator) emitIfNeeded(v expr.VarId, info string) expr.Pos {
	if v == expr.VarZero || v == expr.VarOne {
		return expr.PosInvalid
	}
	already := s.mgr.EmissionSlot(v) != expr.PosInvalid
	if op, ok := s.mgr.Op(v); ok && !already {
		for _, a := range op.Args {
			s.emitIfNeeded(a, "intern "+info)
		}
	}
	pos := s.mgr.NewEmission(v)
	if !already {
		s.growDebugInfo(pos)
		s.debugInfo[pos] = info
	}
	return pos
}

// PrepareCycle opens a new cycle: primary inputs carry over their previous
// value (the testbench may then overwrite them via SetSignal before
// StepCycle), and every register's next state is evaluated against the
// previous cycle's map.
//
// Unlike the original, which leaves an unreferenced register value as an
// unemitted macro expansion, every non-constant register output here is
// given a storage slot: RunProgram has no macro layer to lazily re-expand
// a register's formula, so its value must be materialized in storage to
// carry state from one cycle's gate records to the next (spec.md Q3
// redesign).
func (s *Simulator) PrepareCycle() {
	prev := s.trace[len(s.trace)-1]
	cur := s.constMap()
	for sig := range s.net.InPorts {
		cur[sig] = prev[sig]
	}
	cycle := len(s.trace)
	for _, c := range s.net.Cells {
		if !c.IsRegister() {
			continue
		}
		q := s.evalRegister(c, prev)
		q.Pos = s.emitIfNeeded(q.Var, fmt.Sprintf("%s @%d", s.net.DisplayName(c.Output()), cycle))
		cur[c.Output()] = q
	}
	s.trace = append(s.trace, cur)
}

func (s *Simulator) evalRegister(c *netlist.Cell, prev map[netlist.SigId]expr.Symbol) expr.Symbol {
	d := prev[c.D].Var
	switch c.Kind {
	case netlist.KindDFF:
		return expr.Symbol{Var: d, Pos: expr.PosInvalid}
	case netlist.KindDFFR:
		active := activeLevel(prev[c.Reset].Var, c.ResetPol, s.mgr)
		return expr.Symbol{Var: s.mgr.Mux(active, expr.VarZero, d), Pos: expr.PosInvalid}
	case netlist.KindDFFE:
		active := activeLevel(prev[c.Enable].Var, c.EnPol, s.mgr)
		held := prev[c.Q].Var
		return expr.Symbol{Var: s.mgr.Mux(active, d, held), Pos: expr.PosInvalid}
	case netlist.KindDFFER:
		activeEn := activeLevel(prev[c.Enable].Var, c.EnPol, s.mgr)
		held := prev[c.Q].Var
		enabled := s.mgr.Mux(activeEn, d, held)
		activeR := activeLevel(prev[c.Reset].Var, c.ResetPol, s.mgr)
		return expr.Symbol{Var: s.mgr.Mux(activeR, expr.VarZero, enabled), Pos: expr.PosInvalid}
	}
	panic("simulate: unreachable register cell kind")
}

// activeLevel converts a PosEdge/NegEdge-tagged control signal into its
// active-high form, so every register variant can share a single Mux
// formula regardless of the declared polarity.
func activeLevel(v expr.VarId, pol netlist.ClockPolarity, mgr *expr.Manager) expr.VarId {
	if pol == netlist.NegEdge {
		return mgr.Not(v)
	}
	return v
}

// StepCycle evaluates every combinational cell, in topological order,
// against the current cycle's map, and records the [start,end) run-storage
// range emitted while doing so.
func (s *Simulator) StepCycle() {
	cur := s.trace[len(s.trace)-1]
	cycle := len(s.trace) - 1
	start := expr.Pos(s.mgr.NumEmitted())
	for _, c := range s.net.Cells {
		if c.IsRegister() {
			continue
		}
		v := s.evalCombinational(c, cur)
		pos := s.emitIfNeeded(v, fmt.Sprintf("%s @%d", s.net.DisplayName(c.Output()), cycle))
		cur[c.Output()] = expr.Symbol{Var: v, Pos: pos}
	}
	end := expr.Pos(s.mgr.NumEmitted())
	s.cycleEmits = append(s.cycleEmits, CycleRange{Cycle: cycle, Start: start, End: end})
}

func (s *Simulator) evalCombinational(c *netlist.Cell, vals map[netlist.SigId]expr.Symbol) expr.VarId {
	switch c.Kind {
	case netlist.KindNot:
		return s.mgr.Not(vals[c.A].Var)
	case netlist.KindBuf:
		return vals[c.A].Var
	case netlist.KindAnd:
		return s.mgr.And(vals[c.A].Var, vals[c.B].Var)
	case netlist.KindOr:
		return s.mgr.Or(vals[c.A].Var, vals[c.B].Var)
	case netlist.KindXor:
		return s.mgr.Xor(vals[c.A].Var, vals[c.B].Var)
	case netlist.KindNand:
		return s.mgr.Not(s.mgr.And(vals[c.A].Var, vals[c.B].Var))
	case netlist.KindNor:
		return s.mgr.Not(s.mgr.Or(vals[c.A].Var, vals[c.B].Var))
	case netlist.KindXnor:
		return s.mgr.Not(s.mgr.Xor(vals[c.A].Var, vals[c.B].Var))
	case netlist.KindMux:
		return s.mgr.Mux(vals[c.S].Var, vals[c.T].Var, vals[c.A].Var)
	}
	panic("simulate: unreachable combinational cell kind")
}

func sortedLoHi(r netlist.Range) (uint32, uint32) {
	if r.Lo <= r.Hi {
		return r.Lo, r.Hi
	}
	return r.Hi, r.Lo
}

// AllocateSecrets allocates numShares storage shares for every signal bit
// in sigs, folds them into share 0 via a running XOR, and drives the
// folded result onto each signal in the current cycle: downstream cells
// read the masked value. Unmasked is filled by RunProgram.RandomizeSecrets
// / FixRandomSecrets; Shares is registered as a mask range and so is
// instead refreshed by RunProgram.RandomizeMasks on every sampling draw.
func (s *Simulator) AllocateSecrets(sigs netlist.Range, numShares int) error {
	alloc, err := s.allocateShared(s.secrets, sigs, numShares, "secret")
	if err != nil {
		return err
	}
	s.secretAllocs = append(s.secretAllocs, alloc)
	return nil
}

// AllocateData is AllocateSecrets for the public/known-data input class.
func (s *Simulator) AllocateData(sigs netlist.Range, numShares int) error {
	alloc, err := s.allocateShared(s.data, sigs, numShares, "data")
	if err != nil {
		return err
	}
	s.dataAllocs = append(s.dataAllocs, alloc)
	return nil
}

func (s *Simulator) allocateShared(dest map[uint32][]expr.Symbol, sigs netlist.Range, numShares int, label string) (ShareAlloc, error) {
	if numShares < 1 {
		return ShareAlloc{}, fmt.Errorf("simulate: %s allocation requires at least 1 share, got %d", label, numShares)
	}
	low, high := sortedLoHi(sigs)
	for i := low; i <= high; i++ {
		if _, exists := dest[i]; exists {
			return ShareAlloc{}, fmt.Errorf("simulate: %s bit %d already allocated", label, i)
		}
	}
	cycle := len(s.trace) - 1
	cur := s.trace[len(s.trace)-1]

	for i := low; i <= high; i++ {
		v := s.mgr.NewVar()
		pos := s.mgr.NewEmission(v)
		s.growDebugInfo(pos)
		s.debugInfo[pos] = fmt.Sprintf("%s %d unmasked", label, i)
		dest[i] = []expr.Symbol{{Var: v, Pos: pos}}
	}
	unmasked := PosRange{Lo: dest[low][0].Pos, Hi: dest[high][0].Pos}

	var shareRange PosRange
	hasShares := numShares > 1
	for sh := 1; sh < numShares; sh++ {
		for i := low; i <= high; i++ {
			v := s.mgr.NewVar()
			pos := s.mgr.NewEmission(v)
			s.growDebugInfo(pos)
			s.debugInfo[pos] = fmt.Sprintf("%s %d share %d", label, i, sh)
			dest[i] = append(dest[i], expr.Symbol{Var: v, Pos: pos})
			if sh == 1 && i == low {
				shareRange.Lo = pos
			}
			if i == high {
				shareRange.Hi = pos
			}
		}
	}

	// Fold every bit's shares into share 0 one round at a time (all bits'
	// round sh before any bit's round sh+1), so the final round's slots
	// land in one contiguous block: this is what Final reports, rather
	// than interleaving each bit's full xor chain and scattering its
	// final slot among other bits' intermediate ones.
	accs := make([]expr.Symbol, high-low+1)
	for i := low; i <= high; i++ {
		accs[i-low] = dest[i][0]
	}
	for sh := 1; sh < numShares; sh++ {
		for i := low; i <= high; i++ {
			idx := i - low
			v := s.mgr.Xor(accs[idx].Var, dest[i][sh].Var)
			pos := s.mgr.NewEmission(v)
			s.growDebugInfo(pos)
			if sh == numShares-1 {
				s.debugInfo[pos] = fmt.Sprintf("%s %d share 0", label, i)
			} else {
				s.debugInfo[pos] = fmt.Sprintf("intern %s %d share xor", label, i)
			}
			accs[idx] = expr.Symbol{Var: v, Pos: pos}
		}
	}
	for i := low; i <= high; i++ {
		dest[i][0] = accs[i-low]
		cur[netlist.SigId(i)] = accs[i-low]
	}
	final := PosRange{Lo: accs[0].Pos, Hi: accs[len(accs)-1].Pos}

	if hasShares {
		s.maskRanges = append(s.maskRanges, shareRange)
	}

	return ShareAlloc{
		Cycle:     cycle,
		NumShares: numShares,
		Unmasked:  unmasked,
		Shares:    shareRange,
		HasShares: hasShares,
		Final:     final,
	}, nil
}

// AllocateMasks allocates one free storage slot per signal bit in sigs,
// for auxiliary random values the circuit consumes directly (not folded
// into any secret/data share).
func (s *Simulator) AllocateMasks(sigs netlist.Range) error {
	low, high := sortedLoHi(sigs)
	for i := low; i <= high; i++ {
		if _, exists := s.masks[i]; exists {
			return fmt.Errorf("simulate: mask bit %d already allocated", i)
		}
	}
	cur := s.trace[len(s.trace)-1]
	for i := low; i <= high; i++ {
		v := s.mgr.NewVar()
		pos := s.mgr.NewEmission(v)
		s.growDebugInfo(pos)
		s.debugInfo[pos] = fmt.Sprintf("mask %d", i)
		sym := expr.Symbol{Var: v, Pos: pos}
		s.masks[i] = sym
		cur[netlist.SigId(i)] = sym
	}
	s.maskRanges = append(s.maskRanges, PosRange{Lo: s.masks[low].Pos, Hi: s.masks[high].Pos})
	return nil
}

// SecretAllocs returns every AllocateSecrets call recorded so far.
func (s *Simulator) SecretAllocs() []ShareAlloc { return s.secretAllocs }

// DataAllocs returns every AllocateData call recorded so far.
func (s *Simulator) DataAllocs() []ShareAlloc { return s.dataAllocs }

// MaskRanges returns every AllocateMasks call's storage span.
func (s *Simulator) MaskRanges() []PosRange { return s.maskRanges }

// ShareOf returns the numShares storage shares allocated for bit i in the
// named class ("secret" or "data"), or nil if bit i was never allocated.
func (s *Simulator) ShareOf(label string, i uint32) []expr.Symbol {
	switch label {
	case "secret":
		return s.secrets[i]
	case "data":
		return s.data[i]
	}
	return nil
}
