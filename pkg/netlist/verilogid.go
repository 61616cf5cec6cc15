package netlist

import "strings"

// VerilogId is a candidate display name for a signal: a dotted hierarchical
// name plus a bit position within that name's bus. Depth is the number of
// dot-separated path components, computed once at construction.
type VerilogId struct {
	Name  string
	Pos   uint32
	depth uint32
}

// NewVerilogId constructs a VerilogId, computing its dotted-path depth.
func NewVerilogId(name string, pos uint32) VerilogId {
	depth := uint32(1)
	depth += uint32(strings.Count(name, "."))
	return VerilogId{Name: name, Pos: pos, depth: depth}
}

// Depth returns the number of dot-separated path components in Name.
func (v VerilogId) Depth() uint32 { return v.depth }

// Display renders the canonical "name [pos]" form.
func (v VerilogId) Display() string {
	return v.Name + " [" + itoa(v.Pos) + "]"
}

func itoa(u uint32) string {
	if u == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	return string(buf[i:])
}

// lessVerilogId orders two VerilogIds so the minimal one is the preferred
// display name: names starting with '_' sort after names that don't;
// shallower dotted paths sort first; shorter names sort first. Ported from
// VerilogId.h's operator<.
func lessVerilogId(a, b VerilogId) bool {
	aUnderscore := strings.HasPrefix(a.Name, "_")
	bUnderscore := strings.HasPrefix(b.Name, "_")
	if bUnderscore && !aUnderscore {
		return true
	}
	if !bUnderscore && aUnderscore {
		return false
	}

	if a.depth != b.depth {
		return a.depth < b.depth
	}

	return len(a.Name) < len(b.Name)
}
