// Package expr implements the hash-consing Boolean expression manager: it
// allocates variables for NOT/AND/OR/XOR/MUX operations, applies algebraic
// simplification so that semantically identical expressions collapse to a
// single VarId, and assigns each distinct emitted variable a slot (Pos) in
// the run-storage array.
package expr

// VarId identifies a node of the Boolean DAG. VarZero and VarOne are
// reserved constants; all other values are allocated monotonically by a
// Manager.
type VarId uint32

const (
	VarZero VarId = 0
	VarOne  VarId = 1
)

const firstAllocatable VarId = 2

// Pos is an index into the run-storage array. PosInvalid marks "not
// emitted".
type Pos uint32

// PosInvalid is the reserved value meaning "no emission slot assigned".
const PosInvalid Pos = ^Pos(0)

// Symbol pairs a Boolean DAG node with its (optional) storage binding.
type Symbol struct {
	Var VarId
	Pos Pos
}

// OpKind names the operation that produced a derived variable. A variable
// allocated directly via NewVar (used for secret/data/mask bits) has no
// recorded Op: its value is supplied externally at run time rather than
// computed from operands.
type OpKind int

const (
	OpNone OpKind = iota
	OpNot
	OpAnd
	OpOr
	OpXor
	OpMux
)

// Op records how a derived variable was built, so that a consumer (the
// simulator's run-program compiler) can replay the same operation over
// concrete bit-vector buffers instead of reconstructing it from source
// text, per spec.md Q3.
type Op struct {
	Kind OpKind
	Args [3]VarId // Not: Args[0]; And/Or/Xor: Args[0],Args[1]; Mux: s,t,e
}

type binaryKey [2]VarId
type ternaryKey [3]VarId

func canonPair(a, b VarId) binaryKey {
	if a < b {
		return binaryKey{a, b}
	}
	return binaryKey{b, a}
}

// Manager is the hash-consing expression builder. The zero value is not
// ready to use; call New.
type Manager struct {
	nextVar VarId

	notCache map[VarId]VarId
	andCache map[binaryKey]VarId
	orCache  map[binaryKey]VarId
	xorCache map[binaryKey]VarId
	muxCache map[ternaryKey]VarId

	emission map[VarId]Pos
	posToVar []VarId
	numEmit  uint32

	ops map[VarId]Op
}

// New returns a ready-to-use Manager with no variables allocated yet.
func New() *Manager {
	return &Manager{
		nextVar:  firstAllocatable,
		notCache: make(map[VarId]VarId),
		andCache: make(map[binaryKey]VarId),
		orCache:  make(map[binaryKey]VarId),
		xorCache: make(map[binaryKey]VarId),
		muxCache: make(map[ternaryKey]VarId),
		emission: make(map[VarId]Pos),
		ops:      make(map[VarId]Op),
	}
}

// NewVar allocates a fresh variable with no recorded Op: its value is
// supplied externally at run time rather than computed from operands. Used
// for secret, data, and mask bit allocation.
func (m *Manager) NewVar() VarId { return m.newVar() }

// Op returns how v was built, or (Op{}, false) if v is a constant or was
// allocated via NewVar.
func (m *Manager) Op(v VarId) (Op, bool) {
	op, ok := m.ops[v]
	return op, ok
}

// NumVars returns the number of currently allocated non-constant variables.
func (m *Manager) NumVars() uint32 { return uint32(m.nextVar - firstAllocatable) }

// NumEmitted returns the number of currently emitted storage slots.
func (m *Manager) NumEmitted() uint32 { return m.numEmit }

// IsKnown reports whether a is a constant or an already-allocated variable.
func (m *Manager) IsKnown(a VarId) bool {
	return a == VarZero || a == VarOne || a < m.nextVar
}

func (m *Manager) newVar() VarId {
	v := m.nextVar
	m.nextVar++
	return v
}

// NewEmission assigns var its storage slot, allocating one on first sight.
// Repeated calls for the same var return the same slot (idempotent
// emission, per spec: "each VarId is emitted at most once").
func (m *Manager) NewEmission(v VarId) Pos {
	if p, ok := m.emission[v]; ok {
		return p
	}
	p := Pos(m.numEmit)
	m.numEmit++
	m.emission[v] = p
	m.posToVar = append(m.posToVar, v)
	return p
}

// VarAt returns the variable occupying storage slot p, or (0, false) if p
// is out of range. Used by the run-program compiler to walk every emitted
// slot in order and look up how it was computed.
func (m *Manager) VarAt(p Pos) (VarId, bool) {
	if int(p) < 0 || int(p) >= len(m.posToVar) {
		return 0, false
	}
	return m.posToVar[p], true
}

// EmissionSlot returns the slot assigned to v, or PosInvalid if v has not
// been emitted.
func (m *Manager) EmissionSlot(v VarId) Pos {
	if p, ok := m.emission[v]; ok {
		return p
	}
	return PosInvalid
}

// Not returns a variable representing ¬a.
func (m *Manager) Not(a VarId) VarId {
	switch a {
	case VarZero:
		return VarOne
	case VarOne:
		return VarZero
	}
	if c, ok := m.notCache[a]; ok {
		return c
	}
	c := m.newVar()
	m.notCache[a] = c
	m.notCache[c] = a
	m.ops[c] = Op{Kind: OpNot, Args: [3]VarId{a}}
	return c
}

// complementOf returns (¬a, true) if ¬a has already been allocated, else
// (0, false). Used by the simplification cascades to detect a == ¬b
// without forcing allocation.
func (m *Manager) complementOf(a VarId) (VarId, bool) {
	switch a {
	case VarZero:
		return VarOne, true
	case VarOne:
		return VarZero, true
	}
	c, ok := m.notCache[a]
	return c, ok
}

// And returns a variable representing a ∧ b.
func (m *Manager) And(a, b VarId) VarId {
	if a == VarZero || b == VarZero {
		return VarZero
	}
	if a == VarOne {
		return b
	}
	if b == VarOne {
		return a
	}
	if a == b {
		return a
	}
	if c, ok := m.complementOf(a); ok && c == b {
		return VarZero
	}
	key := canonPair(a, b)
	if v, ok := m.andCache[key]; ok {
		return v
	}
	v := m.newVar()
	m.andCache[key] = v
	m.ops[v] = Op{Kind: OpAnd, Args: [3]VarId{key[0], key[1]}}
	return v
}

// Or returns a variable representing a ∨ b.
func (m *Manager) Or(a, b VarId) VarId {
	if a == VarOne || b == VarOne {
		return VarOne
	}
	if a == VarZero {
		return b
	}
	if b == VarZero {
		return a
	}
	if a == b {
		return a
	}
	if c, ok := m.complementOf(a); ok && c == b {
		return VarOne
	}
	key := canonPair(a, b)
	if v, ok := m.orCache[key]; ok {
		return v
	}
	v := m.newVar()
	m.orCache[key] = v
	m.ops[v] = Op{Kind: OpOr, Args: [3]VarId{key[0], key[1]}}
	return v
}

// Xor returns a variable representing a ⊕ b.
func (m *Manager) Xor(a, b VarId) VarId {
	if a == VarZero {
		return b
	}
	if b == VarZero {
		return a
	}
	if a == VarOne {
		return m.Not(b)
	}
	if b == VarOne {
		return m.Not(a)
	}
	if a == b {
		return VarZero
	}
	if c, ok := m.complementOf(a); ok && c == b {
		return VarOne
	}
	key := canonPair(a, b)
	if v, ok := m.xorCache[key]; ok {
		return v
	}
	v := m.newVar()
	m.xorCache[key] = v
	m.ops[v] = Op{Kind: OpXor, Args: [3]VarId{key[0], key[1]}}
	return v
}

// Mux returns a variable representing s ? t : e, i.e. (s ∧ t) ∨ (¬s ∧ e).
func (m *Manager) Mux(s, t, e VarId) VarId {
	switch s {
	case VarOne:
		return t
	case VarZero:
		return e
	}
	if t == e {
		return t
	}
	if t == VarOne {
		return m.Or(s, e)
	}
	if t == VarZero {
		// s ? 0 : e == ¬s ∧ e
		return m.And(m.Not(s), e)
	}
	if e == VarOne {
		return m.Or(m.Not(s), t)
	}
	if e == VarZero {
		return m.And(s, t)
	}
	if c, ok := m.complementOf(t); ok && c == e {
		return m.Xor(s, e)
	}
	if t == s {
		return m.Or(s, e)
	}
	if c, ok := m.complementOf(s); ok && c == t {
		return m.And(c, e)
	}
	if e == s {
		return m.And(s, t)
	}
	if c, ok := m.complementOf(s); ok && c == e {
		return m.Or(c, t)
	}
	key := ternaryKey{s, t, e}
	if v, ok := m.muxCache[key]; ok {
		return v
	}
	v := m.newVar()
	m.muxCache[key] = v
	m.ops[v] = Op{Kind: OpMux, Args: [3]VarId{s, t, e}}
	return v
}
