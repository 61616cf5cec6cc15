// Package config resolves the verify-mi and merge-savedata command lines
// into validated, defaulted option structs, mirroring OptionsMI's
// constructor (default derivation via the sample-budget solver and
// cross-flag consistency checks; the flags themselves are parsed by the
// commands) but returning a neterr-kinded
// error instead of throwing OptionsException.
package config

import (
	"time"

	"github.com/vedadux/quantile/pkg/analyze"
	"github.com/vedadux/quantile/pkg/bitvec"
	"github.com/vedadux/quantile/pkg/budget"
	"github.com/vedadux/quantile/pkg/neterr"
)

// defaultEpsilon/defaultDelta mirror OptionsMI::DEFAULT_EPSILON/DELTA: a
// 0.1%-wide confidence interval at 99.999% certainty.
const (
	defaultEpsilon = 0.001
	defaultDelta   = 0.00001
)

// RawMI is everything a verify-mi invocation's flags can set, before
// defaulting and validation. SetNumData/SetNumSamples record whether the
// corresponding flag was explicitly passed (cobra's Flags().Changed),
// since the --num-data/--num-samples consistency rule only applies when
// both were given explicitly.
type RawMI struct {
	Cycles             uint32
	NumThreads         int
	Epsilon            float64
	Delta              float64
	EarlyStop          bool
	NumSamplesFGivenD  uint64
	NumSamplesFGivenDS uint64
	NumSecrets         uint64
	NumData            uint64
	NumSamples         uint64
	SetNumData         bool
	SetNumSamples      bool
	TimeoutSeconds     uint32
	PrintBest          int
	PrintIntervalSecs  uint32
	LoadFile           string
	StoreFile          string
	ReportFile         string
}

// MI is the fully resolved, validated configuration for one verify-mi run:
// an analyze.Config (the sampling/driver parameters) plus the file paths
// the CLI layer itself consumes.
type MI struct {
	analyze.Config
	Epsilon    float64
	LoadFile   string
	StoreFile  string
	ReportFile string
}

// roundUpToLane rounds n up to the nearest positive multiple of
// bitvec.LaneWidth, printing a warning via warn when rounding changed the
// value (warn is nil in tests that don't care about the message).
func roundUpToLane(n uint64, name string, warn func(string)) uint64 {
	w := uint64(bitvec.LaneWidth)
	if n%w == 0 {
		return n
	}
	rounded := ((n / w) + 1) * w
	if warn != nil {
		warn(name)
	}
	return rounded
}

// ResolveMI defaults and validates raw into an MI, or returns a
// neterr.OptionsErr-kinded error describing the first violated
// constraint. warn receives one message per sample count silently rounded
// up to a multiple of W; pass nil to discard them.
func ResolveMI(raw RawMI, warn func(msg string)) (*MI, error) {
	epsilon := raw.Epsilon
	if epsilon == 0 {
		epsilon = defaultEpsilon
	}
	delta := raw.Delta
	if delta == 0 {
		delta = defaultDelta
	}

	numSecrets := raw.NumSecrets
	if numSecrets == 0 {
		numSecrets = 1
	}

	uHist := budget.ComputeUHist(epsilon, delta, uint64(bitvec.LaneWidth))

	numSamplesFGivenD := raw.NumSamplesFGivenD
	if numSamplesFGivenD == 0 {
		numSamplesFGivenD = uHist
	}
	numSamplesFGivenDS := raw.NumSamplesFGivenDS
	if numSamplesFGivenDS == 0 {
		numSamplesFGivenDS = uHist
	}
	if numSamplesFGivenD == 0 || numSamplesFGivenDS == 0 || numSecrets == 0 {
		return nil, neterr.New(neterr.OptionsErr, "sample counts must be nonzero")
	}

	warnf := func(msg string) {
		if warn != nil {
			warn(msg)
		}
	}
	numSamplesFGivenD = roundUpToLane(numSamplesFGivenD, "num-samples-f-given-d", warnf)
	numSamplesFGivenDS = roundUpToLane(numSamplesFGivenDS, "num-samples-f-given-ds", warnf)

	numData := raw.NumData
	if numData == 0 {
		numData = budget.ComputeNData(epsilon, delta, uHist)
	}
	if numData == 0 {
		return nil, neterr.New(neterr.OptionsErr, "num-data must be nonzero")
	}

	perData := numSamplesFGivenD + numSecrets*numSamplesFGivenDS
	numSamples := raw.NumSamples
	if numSamples == 0 {
		numSamples = numData * perData
	}
	if raw.SetNumData && raw.SetNumSamples {
		if raw.NumSamples != raw.NumData*perData {
			return nil, neterr.Newf(neterr.OptionsErr,
				"--num-samples (%d) is inconsistent with --num-data * per-data-sample-count (%d * %d = %d)",
				raw.NumSamples, raw.NumData, perData, raw.NumData*perData)
		}
	}

	if raw.StoreFile != "" && raw.StoreFile != raw.LoadFile {
		if fileExists(raw.StoreFile) {
			return nil, neterr.Newf(neterr.OptionsErr, "--store-file %q already exists", raw.StoreFile)
		}
	}
	if raw.ReportFile != "" && (raw.ReportFile == raw.LoadFile || raw.ReportFile == raw.StoreFile) {
		return nil, neterr.New(neterr.OptionsErr, "--report-file must differ from --load-file and --store-file")
	}

	numThreads := raw.NumThreads
	if numThreads <= 0 {
		numThreads = 1
	}

	return &MI{
		Config: analyze.Config{
			Cycles:             raw.Cycles,
			NumThreads:         numThreads,
			Delta:              delta,
			EarlyStop:          raw.EarlyStop,
			NumSamplesFGivenD:  numSamplesFGivenD,
			NumSamplesFGivenDS: numSamplesFGivenDS,
			NumSecrets:         numSecrets,
			NumData:            numData,
			NumSamples:         numSamples,
			Timeout:            time.Duration(raw.TimeoutSeconds) * time.Second,
			PrintBest:          raw.PrintBest,
			PrintInterval:      time.Duration(raw.PrintIntervalSecs) * time.Second,
		},
		Epsilon:    epsilon,
		LoadFile:   raw.LoadFile,
		StoreFile:  raw.StoreFile,
		ReportFile: raw.ReportFile,
	}, nil
}
