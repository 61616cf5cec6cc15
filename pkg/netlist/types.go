package netlist

// SigId identifies a single wire. Four values are reserved constants; all
// other values denote ordinary signals introduced by ports or cell outputs.
type SigId uint32

const (
	SigZero SigId = 0
	SigOne  SigId = 1
	SigX    SigId = 2
	SigZ    SigId = 3
)

const firstSignal SigId = 4

// IsConst reports whether s is one of the four reserved constant signals.
func (s SigId) IsConst() bool { return s <= SigZ }

// Range is a closed interval over either signal bit-positions or storage
// slots. Lo > Hi is legal and preserves MSB-first directionality for bus
// assignments; callers that need bit count use Len.
type Range struct {
	Lo, Hi uint32
}

// Len returns the number of positions spanned by r, regardless of direction.
func (r Range) Len() int {
	if r.Lo <= r.Hi {
		return int(r.Hi-r.Lo) + 1
	}
	return int(r.Lo-r.Hi) + 1
}

// At returns the i-th position of r in traversal order (0 is the first
// element in the direction Lo->Hi or Hi->Lo as recorded).
func (r Range) At(i int) uint32 {
	if r.Lo <= r.Hi {
		return r.Lo + uint32(i)
	}
	return r.Lo - uint32(i)
}

// CellKind tags the variant a Cell holds.
type CellKind int

const (
	KindNot CellKind = iota
	KindBuf
	KindAnd
	KindOr
	KindXor
	KindNand
	KindNor
	KindXnor
	KindMux
	KindDFF
	KindDFFR
	KindDFFE
	KindDFFER
)

// ClockPolarity distinguishes positive-edge from negative-edge register
// variants.
type ClockPolarity int

const (
	PosEdge ClockPolarity = iota
	NegEdge
)

// Cell is an immutable gate or register. Exactly one of the field groups
// below is populated, selected by Kind; common accessors (ClockSig, Output)
// switch on Kind rather than relying on layout aliasing, per spec.md §9.
type Cell struct {
	Name string
	Kind CellKind

	// Unary (KindNot, KindBuf): Y = op(A)
	A SigId
	// Binary (KindAnd/Or/Xor/Nand/Nor/Xnor): Y = op(A, B)
	B SigId
	// Mux (KindMux): Y = S ? T : A  (A is the "else" input, T the "then" input)
	T SigId
	S SigId

	Y SigId // output, all kinds

	// Register fields (KindDFF/DFFR/DFFE/DFFER)
	Clock    SigId
	ClockPol ClockPolarity
	D        SigId
	Q        SigId
	HasReset bool
	Reset    SigId
	ResetPol ClockPolarity // active level: PosEdge == active-high
	HasEn    bool
	Enable   SigId
	EnPol    ClockPolarity // active level: PosEdge == active-high
}

// IsRegister reports whether c is one of the DFF variants.
func (c *Cell) IsRegister() bool {
	switch c.Kind {
	case KindDFF, KindDFFR, KindDFFE, KindDFFER:
		return true
	}
	return false
}

// Output returns the cell's output signal, uniformly across variants.
func (c *Cell) Output() SigId {
	if c.IsRegister() {
		return c.Q
	}
	return c.Y
}

// ClockSig returns the cell's clock signal and whether it has one (only
// register variants do).
func (c *Cell) ClockSig() (SigId, bool) {
	if c.IsRegister() {
		return c.Clock, true
	}
	return 0, false
}

// Inputs returns every signal this cell reads, excluding its own output.
// For register cells this excludes the clock, which is handled separately
// by clock-domain discovery rather than ordinary topological dependency.
func (c *Cell) Inputs() []SigId {
	switch c.Kind {
	case KindNot, KindBuf:
		return []SigId{c.A}
	case KindAnd, KindOr, KindXor, KindNand, KindNor, KindXnor:
		return []SigId{c.A, c.B}
	case KindMux:
		return []SigId{c.A, c.T, c.S}
	case KindDFF:
		return []SigId{c.D}
	case KindDFFR:
		ins := []SigId{c.D}
		if c.HasReset {
			ins = append(ins, c.Reset)
		}
		return ins
	case KindDFFE:
		ins := []SigId{c.D}
		if c.HasEn {
			ins = append(ins, c.Enable)
		}
		return ins
	case KindDFFER:
		ins := []SigId{c.D}
		if c.HasReset {
			ins = append(ins, c.Reset)
		}
		if c.HasEn {
			ins = append(ins, c.Enable)
		}
		return ins
	}
	return nil
}
