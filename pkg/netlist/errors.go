package netlist

import "github.com/vedadux/quantile/pkg/neterr"

func errPortDirection(name, dir string) error {
	return neterr.Newf(neterr.IllegalPortDirection, "port %q has unrecognized direction %q", name, dir)
}

func errSignalList(where string) error {
	return neterr.Newf(neterr.IllegalSignalList, "malformed bit list in %s", where)
}

func errNameRedeclaration(name string) error {
	return neterr.Newf(neterr.IllegalNameRedeclaration, "name %q declared more than once", name)
}

func errCellType(cellType string) error {
	return neterr.Newf(neterr.IllegalCellType, "unrecognized cell type %q", cellType)
}

func errCellCycle(cellName string) error {
	return neterr.Newf(neterr.IllegalCellCycle, "cell %q reads its own output or depends on a combinational cycle", cellName)
}

func errMissingSignals(count int) error {
	return neterr.Newf(neterr.IllegalMissingSignals, "%d signal(s) referenced but never produced, or an output port is undriven", count)
}

func errClockSignal() error {
	return neterr.New(neterr.IllegalClockSignal, "register clock is a constant signal")
}

func errMultipleClocks() error {
	return neterr.New(neterr.IllegalMultipleClocks, "registers disagree on their clock signal")
}

func errClockEdge() error {
	return neterr.New(neterr.IllegalClockEdge, "registers disagree on clock polarity")
}

func errSignalType(value string) error {
	return neterr.Newf(neterr.IllegalSignalType, "bit value %q is neither an unsigned integer nor a recognized constant", value)
}
