// Package bitvec implements the abstract bit-sliced machine word used by
// the run program: a fixed number of lanes (independent trial runs) packed
// into one value, with bitwise AND/OR/XOR/NOT/MUX, a population count, and
// a random-fill helper.
package bitvec

import (
	"math/bits"
	"math/rand/v2"
)

// LaneWidth is the number of parallel lanes packed into one Word. It must be
// a power of two and at least 32; the run program is re-sliced to this width
// whenever buffers are sized.
const LaneWidth = 256

// limbs is the number of uint64 limbs needed to hold LaneWidth bits.
const limbs = LaneWidth / 64

// Word holds LaneWidth independent one-bit lanes.
type Word [limbs]uint64

// Zero is the all-0 word (every lane false).
var Zero = Word{}

// Ones is the all-1 word (every lane true).
var Ones = onesWord()

func onesWord() Word {
	var w Word
	for i := range w {
		w[i] = ^uint64(0)
	}
	return w
}

// And returns the bitwise AND of a and b.
func And(a, b Word) Word {
	var r Word
	for i := range r {
		r[i] = a[i] & b[i]
	}
	return r
}

// Or returns the bitwise OR of a and b.
func Or(a, b Word) Word {
	var r Word
	for i := range r {
		r[i] = a[i] | b[i]
	}
	return r
}

// Xor returns the bitwise XOR of a and b.
func Xor(a, b Word) Word {
	var r Word
	for i := range r {
		r[i] = a[i] ^ b[i]
	}
	return r
}

// Not returns the bitwise complement of a.
func Not(a Word) Word {
	var r Word
	for i := range r {
		r[i] = ^a[i]
	}
	return r
}

// Mux performs a lane-wise select: result lane i is t's lane i where s's
// lane i is 1, else e's lane i.
func Mux(s, t, e Word) Word {
	return Or(And(Not(s), e), And(s, t))
}

// PopCount returns the number of 1-bits across all lanes of a.
func PopCount(a Word) int {
	n := 0
	for _, limb := range a {
		n += bits.OnesCount64(limb)
	}
	return n
}

// RandWord fills a word with LaneWidth independent uniform random bits
// drawn from gen.
func RandWord(gen *rand.Rand) Word {
	var w Word
	for i := range w {
		w[i] = gen.Uint64()
	}
	return w
}

// Const returns Ones if bit is true, else Zero. Used by FixRandom* helpers
// to fix a slot to one random boolean value across all lanes.
func Const(bit bool) Word {
	if bit {
		return Ones
	}
	return Zero
}
