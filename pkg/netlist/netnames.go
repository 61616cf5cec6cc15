package netlist

// addNetnames folds the JSON "netnames" section into NameBits and derives,
// for every signal touched by at least one netname, the canonical display
// name: the minimal (name, bit) reference under VerilogId order, ported
// from Circuit::add_bit_names.
func (n *Netlist) addNetnames(nets map[string]rawNetname) error {
	for name, entry := range nets {
		// A netname re-stating a port's own name (the common Yosys pattern of
		// emitting a netname for every port) is not a redeclaration: its bits
		// replace the port's NameBits entry. A netname whose bits differ from
		// the port's is not detected.
		var bits []SigId
		for _, raw := range entry.Bits {
			sig, err := bitToSig(raw)
			if err != nil {
				return err
			}
			bits = append(bits, sig)
		}
		if len(bits) == 0 {
			return errSignalList("netname " + name)
		}
		n.NameBits[name] = bits

		for pos, sig := range bits {
			if sig.IsConst() {
				continue
			}
			candidate := NewVerilogId(name, uint32(pos))
			if existing, ok := n.BitName[sig]; !ok || lessVerilogId(candidate, existing) {
				n.BitName[sig] = candidate
			}
		}
	}
	return nil
}
