package analyze

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"

	"github.com/vedadux/quantile/pkg/bitvec"
	"github.com/vedadux/quantile/pkg/simulate"
)

// Sampler is one worker's private estimation state: its own run-program
// storage buffer, RNG stream, and per-slot accumulators. Workers never
// share these buffers, so RunOnce needs no locking of its own; only the
// run-completion bookkeeping in Driver touches shared state.
//
// Grounded on verify_mi.cpp's SamplerMI.
type Sampler struct {
	rp *simulate.RunProgram

	numSamplesFGivenD  uint64
	numSamplesFGivenDS uint64
	numSecrets         uint64

	lookupFGivenD  []float64
	lookupFGivenDS []float64

	gen *rand.Rand

	runData         []bitvec.Word
	valueCount      []uint64
	entropyFGivenD  []float64
	entropyFGivenDS []float64

	// SumOfMI is the running accumulator sumof_mi_f_s_given_d, exported so
	// the driver can fold it into a checkpoint and read it for reporting.
	SumOfMI []float64
	// RunID is the number of completed RunOnce calls, exported for the
	// same reason (it is the per-sampler sample count in SaveDataMI).
	RunID uint64
}

// NewSampler builds a worker sized for rp's storage, with independent Hbin
// lookup tables for the fix-data and fix-secret-and-data sample counts.
func NewSampler(rp *simulate.RunProgram, numSamplesFGivenD, numSamplesFGivenDS, numSecrets uint64) *Sampler {
	n := rp.RunLength()
	return &Sampler{
		rp:                 rp,
		numSamplesFGivenD:  numSamplesFGivenD,
		numSamplesFGivenDS: numSamplesFGivenDS,
		numSecrets:         numSecrets,
		lookupFGivenD:      binaryEntropyTable(numSamplesFGivenD),
		lookupFGivenDS:     binaryEntropyTable(numSamplesFGivenDS),
		gen:                newWorkerRand(),
		runData:            rp.NewStorage(),
		valueCount:         make([]uint64, n),
		entropyFGivenD:     make([]float64, n),
		entropyFGivenDS:    make([]float64, n),
		SumOfMI:            make([]float64, n),
	}
}

// newWorkerRand seeds a PCG stream from one 16-byte crypto/rand draw split
// into two seed words, generalizing the teacher's mcmc.go NewChain seeding convention (one seed
// per chain) to the two-word seed math/rand/v2's PCG requires, so that
// concurrently-running samplers never share RNG state or a derivable seed
// relationship.
func newWorkerRand() *rand.Rand {
	var seedBytes [16]byte
	if _, err := crand.Read(seedBytes[:]); err != nil {
		panic("analyze: failed to read crypto/rand seed: " + err.Error())
	}
	seed1 := binary.LittleEndian.Uint64(seedBytes[0:8])
	seed2 := binary.LittleEndian.Uint64(seedBytes[8:16])
	return rand.New(rand.NewPCG(seed1, seed2))
}

// RunOnce performs one full nested-sampling round: fix the data to one
// random draw, sample H(F|D=d) over num_samples_f_given_d random secret/mask
// draws, then for each secret sample H(F|D=d,S=s) over
// num_samples_f_given_ds random mask draws, averaging over secrets, and
// accumulates the per-slot H(F|D=d) - avg_s H(F|D=d,S=s) estimate of the
// leaked mutual information into SumOfMI.
func (s *Sampler) RunOnce() {
	s.rp.FixRandomData(s.runData, s.gen)

	for i := range s.valueCount {
		s.valueCount[i] = 0
	}
	for i := uint64(0); i < s.numSamplesFGivenD; i += uint64(bitvec.LaneWidth) {
		s.rp.RandomizeSecrets(s.runData, s.gen)
		s.rp.RandomizeMasks(s.runData, s.gen)
		counts := s.rp.CountRun(s.runData)
		for p, c := range counts {
			s.valueCount[p] += uint64(c)
		}
	}
	for p := range s.entropyFGivenD {
		s.entropyFGivenD[p] = s.lookupFGivenD[s.valueCount[p]]
	}

	for p := range s.entropyFGivenDS {
		s.entropyFGivenDS[p] = 0
	}
	for secretNum := uint64(0); secretNum < s.numSecrets; secretNum++ {
		s.rp.FixRandomSecrets(s.runData, s.gen)

		for i := range s.valueCount {
			s.valueCount[i] = 0
		}
		for i := uint64(0); i < s.numSamplesFGivenDS; i += uint64(bitvec.LaneWidth) {
			s.rp.RandomizeMasks(s.runData, s.gen)
			counts := s.rp.CountRun(s.runData)
			for p, c := range counts {
				s.valueCount[p] += uint64(c)
			}
		}
		for p := range s.entropyFGivenDS {
			s.entropyFGivenDS[p] += s.lookupFGivenDS[s.valueCount[p]]
		}
	}
	if s.numSecrets != 1 {
		for p := range s.entropyFGivenDS {
			s.entropyFGivenDS[p] /= float64(s.numSecrets)
		}
	}

	for p := range s.SumOfMI {
		s.SumOfMI[p] += s.entropyFGivenD[p] - s.entropyFGivenDS[p]
	}
	s.RunID++
}
