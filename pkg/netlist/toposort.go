package netlist

// topoSort orders cells so that every cell's non-register inputs are
// produced by an earlier cell (or are inputs/constants). Register outputs
// are treated as already produced, since they hold the previous cycle's
// value throughout the current cycle's combinational evaluation.
//
// Like the original implementation (spec.md §9 Q1), it rescans the cells
// still unordered until all are placed, but each pass must place at least
// one cell: a pass that places none means the remaining cells sit on or
// behind a combinational cycle, reported as ILLEGAL_CELL_CYCLE (naming the
// first remaining cell) instead of looping forever.
func topoSort(cells []*Cell, inPorts map[SigId]bool, regOuts map[SigId]bool) ([]*Cell, error) {
	produced := make(map[SigId]bool, len(cells)+len(inPorts))
	produced[SigZero] = true
	produced[SigOne] = true
	produced[SigX] = true
	produced[SigZ] = true
	for sig := range inPorts {
		produced[sig] = true
	}
	for sig := range regOuts {
		produced[sig] = true
	}

	remaining := make([]*Cell, len(cells))
	copy(remaining, cells)

	var ordered []*Cell
	for len(remaining) > 0 {
		var next []*Cell
		progressed := false
		for _, c := range remaining {
			if combinationalInputsReady(c, produced) {
				ordered = append(ordered, c)
				produced[c.Output()] = true
				progressed = true
			} else {
				next = append(next, c)
			}
		}
		if !progressed {
			return nil, errCellCycle(next[0].Name)
		}
		remaining = next
	}
	return ordered, nil
}

// combinationalInputsReady reports whether every non-register input of c
// has already been produced. Register cells' D/R/E inputs are evaluated
// against the previous cycle's map by the simulator, not scheduled here;
// register cells are always schedulable once their output slot exists,
// which topoSort guarantees by seeding produced with regOuts up front.
func combinationalInputsReady(c *Cell, produced map[SigId]bool) bool {
	if c.IsRegister() {
		return true
	}
	for _, in := range c.Inputs() {
		if !produced[in] {
			return false
		}
	}
	return true
}
