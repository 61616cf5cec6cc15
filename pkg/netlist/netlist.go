// Package netlist implements the in-memory gate-level circuit model: the
// Yosys-style JSON loader, topological cell ordering, clock discovery, and
// canonical per-signal display-name selection.
package netlist

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Netlist owns every cell of the selected top module (exclusive ownership;
// nothing else holds a *Cell across a Netlist's lifetime) plus the derived
// sets and maps described in spec.md §3.
type Netlist struct {
	ModuleName string
	Clock      SigId
	ClockPol   ClockPolarity

	InPorts  map[SigId]bool
	OutPorts map[SigId]bool
	RegOuts  map[SigId]bool
	Signals  map[SigId]bool

	// Cells in topological order: for every cell, all non-register inputs
	// were produced by an earlier cell in this slice (register outputs are
	// treated as produced before any combinational cell).
	Cells []*Cell

	NameBits map[string][]SigId
	BitName  map[SigId]VerilogId
}

// Has reports whether name is a known bus name.
func (n *Netlist) Has(name string) bool {
	_, ok := n.NameBits[name]
	return ok
}

// Bits returns the signal ids of the named bus, or nil if unknown.
func (n *Netlist) Bits(name string) []SigId {
	return n.NameBits[name]
}

// DisplayName returns the canonical human-readable name for sig, or a
// synthetic "sig<N>" fallback if no netname covers it.
func (n *Netlist) DisplayName(sig SigId) string {
	if v, ok := n.BitName[sig]; ok {
		return v.Display()
	}
	return fmt.Sprintf("sig%d", uint32(sig))
}

// Load parses a Yosys-style netlist JSON document and builds the Netlist
// for topModule, performing every validation step of spec.md §4.c.
func Load(data []byte, topModule string) (*Netlist, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing netlist JSON: %w", err)
	}
	mod, ok := doc.Modules[topModule]
	if !ok {
		return nil, fmt.Errorf("module %q not found in netlist", topModule)
	}
	return build(topModule, mod)
}

func build(moduleName string, mod rawModule) (*Netlist, error) {
	n := &Netlist{
		ModuleName: moduleName,
		InPorts:    make(map[SigId]bool),
		OutPorts:   make(map[SigId]bool),
		RegOuts:    make(map[SigId]bool),
		Signals:    make(map[SigId]bool),
		NameBits:   make(map[string][]SigId),
		BitName:    make(map[SigId]VerilogId),
	}
	n.Signals[SigZero] = true
	n.Signals[SigOne] = true
	n.Signals[SigX] = true
	n.Signals[SigZ] = true

	known := map[SigId]bool{SigZero: true, SigOne: true, SigX: true, SigZ: true}
	missing := make(map[SigId]bool)

	// Step 2: ports.
	declaredNames := make(map[string]bool)
	for name, p := range mod.Ports {
		if declaredNames[name] {
			return nil, errNameRedeclaration(name)
		}
		declaredNames[name] = true

		var bits []SigId
		for _, raw := range p.Bits {
			sig, err := bitToSig(raw)
			if err != nil {
				return nil, err
			}
			bits = append(bits, sig)
			n.Signals[sig] = true
		}
		if len(bits) == 0 {
			return nil, errSignalList("port " + name)
		}
		n.NameBits[name] = bits

		switch p.Direction {
		case "input":
			for _, sig := range bits {
				n.InPorts[sig] = true
				known[sig] = true
			}
		case "output":
			for _, sig := range bits {
				n.OutPorts[sig] = true
			}
		default:
			return nil, errPortDirection(name, p.Direction)
		}
	}

	// Step 3: cells.
	// Cells are taken in sorted name order, not Go map order, so the
	// topological order and the run-storage layout built from it are the
	// same in every process.
	var cells []*Cell
	cellNames := make([]string, 0, len(mod.Cells))
	for name := range mod.Cells {
		cellNames = append(cellNames, name)
	}
	sort.Strings(cellNames)
	for _, name := range cellNames {
		raw := mod.Cells[name]
		if raw.Type == "$assert" {
			continue // Q2: silently dropped, not propagated.
		}
		cell, err := parseCell(name, raw)
		if err != nil {
			return nil, err
		}

		out := cell.Output()
		if known[out] {
			return nil, errNameRedeclaration(fmt.Sprintf("signal produced by cell %q", name))
		}
		for _, in := range cell.Inputs() {
			if in == out {
				return nil, errCellCycle(name)
			}
		}
		if clk, hasClk := cell.ClockSig(); hasClk {
			if clk == out {
				return nil, errCellCycle(name)
			}
		}

		n.Signals[out] = true
		known[out] = true
		delete(missing, out)
		for _, in := range cell.Inputs() {
			n.Signals[in] = true
			if !known[in] {
				missing[in] = true
			}
		}
		if clk, hasClk := cell.ClockSig(); hasClk {
			n.Signals[clk] = true
			if !known[clk] {
				missing[clk] = true
			}
		}
		if cell.IsRegister() {
			n.RegOuts[out] = true
		}

		cells = append(cells, cell)
	}

	// Step 4: missing signals / undriven output ports.
	if len(missing) > 0 {
		return nil, errMissingSignals(len(missing))
	}
	undriven := 0
	for out := range n.OutPorts {
		if !known[out] {
			undriven++
		}
	}
	if undriven > 0 {
		return nil, errMissingSignals(undriven)
	}

	// Step 5: clock discovery.
	clockSet := false
	for _, c := range cells {
		if !c.IsRegister() {
			continue
		}
		if c.Clock.IsConst() {
			return nil, errClockSignal()
		}
		if !clockSet {
			n.Clock = c.Clock
			n.ClockPol = c.ClockPol
			clockSet = true
			continue
		}
		if c.Clock != n.Clock {
			return nil, errMultipleClocks()
		}
		if c.ClockPol != n.ClockPol {
			return nil, errClockEdge()
		}
	}

	// Step 6: topological order (explicit cycle-detection pass, not an
	// unbounded rescan; see spec.md Q1).
	ordered, err := topoSort(cells, n.InPorts, n.RegOuts)
	if err != nil {
		return nil, err
	}
	n.Cells = ordered

	// Step 7: netnames augment the name map and derive display names.
	if err := n.addNetnames(mod.Netnames); err != nil {
		return nil, err
	}

	return n, nil
}

func parseCell(name string, raw rawCell) (*Cell, error) {
	conn := func(port string) (SigId, bool, error) {
		bits, ok := conn1(raw, port)
		if !ok {
			return 0, false, nil
		}
		sig, err := bitToSig(bits)
		if err != nil {
			return 0, false, err
		}
		return sig, true, nil
	}
	must := func(port string) (SigId, error) {
		sig, ok, err := conn(port)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, errSignalList(fmt.Sprintf("cell %q missing port %q", name, port))
		}
		return sig, nil
	}

	polarityOf := func(key string) ClockPolarity {
		if raw.Parameters[key] == "NEG" {
			return NegEdge
		}
		return PosEdge
	}

	switch raw.Type {
	case "$not":
		a, err := must("A")
		if err != nil {
			return nil, err
		}
		y, err := must("Y")
		if err != nil {
			return nil, err
		}
		return &Cell{Name: name, Kind: KindNot, A: a, Y: y}, nil
	case "$buf":
		a, err := must("A")
		if err != nil {
			return nil, err
		}
		y, err := must("Y")
		if err != nil {
			return nil, err
		}
		return &Cell{Name: name, Kind: KindBuf, A: a, Y: y}, nil
	case "$and", "$or", "$xor", "$nand", "$nor", "$xnor":
		a, err := must("A")
		if err != nil {
			return nil, err
		}
		b, err := must("B")
		if err != nil {
			return nil, err
		}
		y, err := must("Y")
		if err != nil {
			return nil, err
		}
		kind := map[string]CellKind{
			"$and": KindAnd, "$or": KindOr, "$xor": KindXor,
			"$nand": KindNand, "$nor": KindNor, "$xnor": KindXnor,
		}[raw.Type]
		return &Cell{Name: name, Kind: kind, A: a, B: b, Y: y}, nil
	case "$mux":
		a, err := must("A")
		if err != nil {
			return nil, err
		}
		b, err := must("B")
		if err != nil {
			return nil, err
		}
		s, err := must("S")
		if err != nil {
			return nil, err
		}
		y, err := must("Y")
		if err != nil {
			return nil, err
		}
		return &Cell{Name: name, Kind: KindMux, A: a, T: b, S: s, Y: y}, nil
	case "$dff":
		c, err := must("C")
		if err != nil {
			return nil, err
		}
		d, err := must("D")
		if err != nil {
			return nil, err
		}
		q, err := must("Q")
		if err != nil {
			return nil, err
		}
		return &Cell{Name: name, Kind: KindDFF, Clock: c, ClockPol: polarityOf("CLK_POLARITY"), D: d, Q: q}, nil
	case "$dffr":
		c, err := must("C")
		if err != nil {
			return nil, err
		}
		d, err := must("D")
		if err != nil {
			return nil, err
		}
		q, err := must("Q")
		if err != nil {
			return nil, err
		}
		r, err := must("R")
		if err != nil {
			return nil, err
		}
		return &Cell{Name: name, Kind: KindDFFR, Clock: c, ClockPol: polarityOf("CLK_POLARITY"),
			D: d, Q: q, HasReset: true, Reset: r, ResetPol: polarityOf("ARST_POLARITY")}, nil
	case "$dffe":
		c, err := must("C")
		if err != nil {
			return nil, err
		}
		d, err := must("D")
		if err != nil {
			return nil, err
		}
		q, err := must("Q")
		if err != nil {
			return nil, err
		}
		e, err := must("E")
		if err != nil {
			return nil, err
		}
		return &Cell{Name: name, Kind: KindDFFE, Clock: c, ClockPol: polarityOf("CLK_POLARITY"),
			D: d, Q: q, HasEn: true, Enable: e, EnPol: polarityOf("EN_POLARITY")}, nil
	case "$dffer":
		c, err := must("C")
		if err != nil {
			return nil, err
		}
		d, err := must("D")
		if err != nil {
			return nil, err
		}
		q, err := must("Q")
		if err != nil {
			return nil, err
		}
		r, err := must("R")
		if err != nil {
			return nil, err
		}
		e, err := must("E")
		if err != nil {
			return nil, err
		}
		return &Cell{Name: name, Kind: KindDFFER, Clock: c, ClockPol: polarityOf("CLK_POLARITY"),
			D: d, Q: q,
			HasReset: true, Reset: r, ResetPol: polarityOf("ARST_POLARITY"),
			HasEn: true, Enable: e, EnPol: polarityOf("EN_POLARITY")}, nil
	default:
		return nil, errCellType(raw.Type)
	}
}

func conn1(raw rawCell, port string) (json.RawMessage, bool) {
	bits, ok := raw.Connections[port]
	if !ok || len(bits) == 0 {
		return nil, false
	}
	return bits[0], true
}
