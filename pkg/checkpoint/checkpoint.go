// Package checkpoint implements the analysis run's persisted accumulator:
// a fixed little-endian binary layout shared between the verify-mi and
// merge-savedata binaries, so either can read what the other wrote
// regardless of which machine produced it.
//
// The original tool persists this same struct via a raw memory dump
// (ifstream/ofstream bytewise read/write over the struct's in-memory
// layout), which only round-trips on hosts sharing endianness, alignment,
// and struct padding. encoding/gob (used elsewhere in this module's
// lineage for ad-hoc Go serialization) is self-describing and does not
// give two independently-built binaries a byte-stable contract either;
// only a fixed field-by-field binary.Write/Read layout does, so that is
// what this package implements instead.
package checkpoint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HashSize is the length, in bytes, of the build-identity hash every
// checkpoint embeds: a checkpoint written by one build of the analysis
// binary must not be silently accepted by a differently-configured build.
const HashSize = 64

// ErrHashMismatch is returned by Load when the checkpoint's embedded hash
// does not match the hash of the running build.
var ErrHashMismatch = errors.New("checkpoint: build hash mismatch")

// Data is the persisted state of one mutual-information estimation run:
// the run's configuration fingerprint, its progress counters, and the
// per-slot accumulated sum used to compute the final estimate.
type Data struct {
	Hash                [HashSize]byte
	Cycles              uint32
	NumSamplesFGivenD   uint64
	NumSamplesFGivenDS  uint64
	NumSecrets          uint64
	NumRuns             uint64
	DurationMS          uint64
	RunLength           uint64
	SumOfMIFSGivenD     []float64
}

// New returns a fresh accumulator stamped with buildHash and sized for
// runLength slots.
func New(buildHash [HashSize]byte, cycles uint32, numSamplesFGivenD, numSamplesFGivenDS, numSecrets, runLength uint64) *Data {
	return &Data{
		Hash:               buildHash,
		Cycles:             cycles,
		NumSamplesFGivenD:  numSamplesFGivenD,
		NumSamplesFGivenDS: numSamplesFGivenDS,
		NumSecrets:         numSecrets,
		RunLength:          runLength,
		SumOfMIFSGivenD:    make([]float64, runLength),
	}
}

// AssertIntegrity verifies that d was produced by a run configured the
// same way as (cycles, numSamplesFGivenD, numSamplesFGivenDS, numSecrets,
// runLength); a mismatch means the checkpoint belongs to a different
// analysis and must not be resumed into this one.
func (d *Data) AssertIntegrity(cycles uint32, numSamplesFGivenD, numSamplesFGivenDS, numSecrets, runLength uint64) error {
	switch {
	case d.Cycles != cycles:
		return errors.New("checkpoint: cycles mismatch")
	case d.NumSamplesFGivenD != numSamplesFGivenD:
		return errors.New("checkpoint: num_samples_f_given_d mismatch")
	case d.NumSamplesFGivenDS != numSamplesFGivenDS:
		return errors.New("checkpoint: num_samples_f_given_ds mismatch")
	case d.NumSecrets != numSecrets:
		return errors.New("checkpoint: num_secrets mismatch")
	case d.RunLength != runLength:
		return errors.New("checkpoint: run_length mismatch")
	}
	return nil
}

// Add folds other's run counters and per-slot sums into d, after checking
// the two accumulators describe the same analysis configuration. This is
// the += used to merge independently-run workers' checkpoints.
func (d *Data) Add(other *Data) error {
	switch {
	case d.Cycles != other.Cycles:
		return errors.New("checkpoint: cycles mismatch")
	case d.NumSamplesFGivenD != other.NumSamplesFGivenD:
		return errors.New("checkpoint: num_samples_f_given_d mismatch")
	case d.NumSamplesFGivenDS != other.NumSamplesFGivenDS:
		return errors.New("checkpoint: num_samples_f_given_ds mismatch")
	case d.NumSecrets != other.NumSecrets:
		return errors.New("checkpoint: num_secrets mismatch")
	case d.RunLength != other.RunLength:
		return errors.New("checkpoint: run_length mismatch")
	}
	d.NumRuns += other.NumRuns
	d.DurationMS += other.DurationMS
	if d.RunLength != 0 {
		if other.SumOfMIFSGivenD == nil {
			return errors.New("checkpoint: other has no per-slot sums")
		}
		for i := range d.SumOfMIFSGivenD {
			d.SumOfMIFSGivenD[i] += other.SumOfMIFSGivenD[i]
		}
	}
	return nil
}

// SaveTo writes d's fixed little-endian layout to w: hash, cycles, the
// five uint64 counters (N_fd, N_fds, N_s, runs, duration), run length, then run_length float64 sums.
func (d *Data) SaveTo(w io.Writer) error {
	if _, err := w.Write(d.Hash[:]); err != nil {
		return fmt.Errorf("checkpoint: writing hash: %w", err)
	}
	fields := []any{
		d.Cycles,
		d.NumSamplesFGivenD,
		d.NumSamplesFGivenDS,
		d.NumSecrets,
		d.NumRuns,
		d.DurationMS,
		d.RunLength,
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("checkpoint: writing field: %w", err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, d.SumOfMIFSGivenD); err != nil {
		return fmt.Errorf("checkpoint: writing per-slot sums: %w", err)
	}
	return nil
}

// Load reads the fixed layout written by SaveTo from r, rejecting it if
// the embedded hash does not equal buildHash.
func Load(r io.Reader, buildHash [HashSize]byte) (*Data, error) {
	d := &Data{}
	if _, err := io.ReadFull(r, d.Hash[:]); err != nil {
		return nil, fmt.Errorf("checkpoint: reading hash: %w", err)
	}
	if d.Hash != buildHash {
		return nil, ErrHashMismatch
	}
	fields := []any{
		&d.Cycles,
		&d.NumSamplesFGivenD,
		&d.NumSamplesFGivenDS,
		&d.NumSecrets,
		&d.NumRuns,
		&d.DurationMS,
		&d.RunLength,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return nil, fmt.Errorf("checkpoint: reading field: %w", err)
		}
	}
	d.SumOfMIFSGivenD = make([]float64, d.RunLength)
	if d.RunLength > 0 {
		if err := binary.Read(r, binary.LittleEndian, d.SumOfMIFSGivenD); err != nil {
			return nil, fmt.Errorf("checkpoint: reading per-slot sums: %w", err)
		}
	}
	return d, nil
}
