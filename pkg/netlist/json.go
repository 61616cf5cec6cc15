package netlist

import "encoding/json"

// rawDocument mirrors the top level of a Yosys-style netlist JSON file.
type rawDocument struct {
	Modules map[string]rawModule `json:"modules"`
}

type rawModule struct {
	Ports    map[string]rawPort    `json:"ports"`
	Cells    map[string]rawCell    `json:"cells"`
	Netnames map[string]rawNetname `json:"netnames"`
}

type rawPort struct {
	Direction string            `json:"direction"`
	Bits      []json.RawMessage `json:"bits"`
}

type rawCell struct {
	Type        string                       `json:"type"`
	Parameters  map[string]string             `json:"parameters"`
	Connections map[string][]json.RawMessage `json:"connections"`
}

type rawNetname struct {
	Bits []json.RawMessage `json:"bits"`
}

// bitToSig converts one element of a "bits" array to a SigId. Elements are
// either non-negative JSON numbers (ordinary wires) or one of the strings
// "0", "1", "x", "z" (constants).
func bitToSig(raw json.RawMessage) (SigId, error) {
	var asNum uint32
	if err := json.Unmarshal(raw, &asNum); err == nil {
		return SigId(firstSignal) + SigId(asNum), nil
	}
	var asStr string
	if err := json.Unmarshal(raw, &asStr); err == nil {
		switch asStr {
		case "0":
			return SigZero, nil
		case "1":
			return SigOne, nil
		case "x":
			return SigX, nil
		case "z":
			return SigZ, nil
		}
		return 0, errSignalType(asStr)
	}
	return 0, errSignalType(string(raw))
}
