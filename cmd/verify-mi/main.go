// Command verify-mi loads a gate-level netlist, compiles it into a run
// program, and estimates the mutual information every emitted wire leaks
// about its secret inputs, conditioned on the public data inputs.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vedadux/quantile/pkg/analyze"
	"github.com/vedadux/quantile/pkg/checkpoint"
	"github.com/vedadux/quantile/pkg/config"
	"github.com/vedadux/quantile/pkg/neterr"
	"github.com/vedadux/quantile/pkg/netlist"
	"github.com/vedadux/quantile/pkg/simulate"
)

// Default flag values mirror OptionsMI::DEFAULT_PRINT_BEST/PRINT_INTERVAL/
// TIMEOUT/EARLY_STOP/NUM_THREADS.
const (
	defaultPrintBest     = 10
	defaultPrintInterval = 60
	defaultTimeout       = 0
	defaultEarlyStop     = true
	defaultNumThreads    = 1
)

func main() {
	var raw config.RawMI
	var noEarlyStop bool

	rootCmd := &cobra.Command{
		Use:   "verify-mi <netlist.json> <top-module>",
		Short: "Estimate per-signal secret-data mutual information leakage of a circuit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw.SetNumData = cmd.Flags().Changed("num-data")
			raw.SetNumSamples = cmd.Flags().Changed("num-samples")
			if cmd.Flags().Changed("no-early-stop") {
				raw.EarlyStop = !noEarlyStop
			}
			return run(args[0], args[1], raw)
		},
		SilenceUsage: true,
	}

	flags := rootCmd.Flags()
	flags.Uint32Var(&raw.Cycles, "cycles", 1, "number of cycles to simulate")
	flags.Float64Var(&raw.Epsilon, "epsilon", 0, "target leakage resolution (0 = solver default)")
	flags.Float64Var(&raw.Delta, "delta", 0, "confidence parameter (0 = solver default)")
	flags.BoolVar(&raw.EarlyStop, "early-stop", defaultEarlyStop, "stop as soon as a slot's estimate is overwhelmingly leaky")
	flags.BoolVar(&noEarlyStop, "no-early-stop", false, "disable early stopping (overrides --early-stop)")
	flags.Uint64Var(&raw.NumSamplesFGivenD, "num-samples-f-given-d", 0, "draws for H(F|D) (0 = solver default)")
	flags.Uint64Var(&raw.NumSamplesFGivenDS, "num-samples-f-given-ds", 0, "draws for H(F|D,S=s) (0 = solver default)")
	flags.Uint64Var(&raw.NumSecrets, "num-secrets", 0, "secret samples per data draw (0 = 1)")
	flags.Uint64Var(&raw.NumData, "num-data", 0, "data draws (0 = solver default)")
	flags.Uint64Var(&raw.NumSamples, "num-samples", 0, "total inner draws; must agree with --num-data if both given")
	flags.IntVar(&raw.NumThreads, "num-threads", defaultNumThreads, "worker count")
	flags.Uint32Var(&raw.TimeoutSeconds, "timeout", defaultTimeout, "wall-clock budget in seconds (0 = unbounded)")
	flags.IntVar(&raw.PrintBest, "print-best", defaultPrintBest, "rank this many suspicious slots per report (0 = report none periodically)")
	flags.Uint32Var(&raw.PrintIntervalSecs, "print-interval", defaultPrintInterval, "seconds between progress reports (0 = only at completion)")
	flags.StringVar(&raw.LoadFile, "load-file", "", "checkpoint to resume from")
	flags.StringVar(&raw.StoreFile, "store-file", "", "checkpoint to write on completion")
	flags.StringVar(&raw.ReportFile, "report-file", "", "file to write the final report to (default: stdout)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeOf(err))
	}
}

// exitCodeOf maps a returned error to spec.md §6's exit code table,
// falling back to 1 for flag-parsing errors cobra itself raises before
// RunE is ever reached.
func exitCodeOf(err error) int {
	if nerr, ok := err.(*neterr.Error); ok {
		return nerr.Kind.ExitCode()
	}
	if ce, ok := err.(*codeError); ok {
		return ce.code
	}
	return 1
}

// codeError tags a plain error with one of spec.md §6's exit codes, for
// failures (I/O, checkpoint inconsistency) that don't originate as a
// neterr.Error.
type codeError struct {
	code int
	err  error
}

func (e *codeError) Error() string { return e.err.Error() }
func (e *codeError) Unwrap() error { return e.err }

func wrapCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &codeError{code: code, err: err}
}

func run(netlistPath, topModule string, raw config.RawMI) error {
	netlistBytes, err := os.ReadFile(netlistPath)
	if err != nil {
		return wrapCode(2, fmt.Errorf("reading netlist: %w", err))
	}

	net, err := netlist.Load(netlistBytes, topModule)
	if err != nil {
		// Validation failures are *neterr.Error values (code 3 by Kind);
		// malformed JSON and a missing top module are plain errors, also
		// reported as code 3.
		if _, ok := err.(*neterr.Error); ok {
			return err
		}
		return wrapCode(3, err)
	}

	sim := simulate.New(net)
	sim.PrepareCycle()
	if err := allocateInputs(sim, net); err != nil {
		return wrapCode(3, err)
	}
	sim.StepCycle()
	for cycle := uint32(1); cycle < maxUint32(raw.Cycles, 1); cycle++ {
		sim.PrepareCycle()
		sim.StepCycle()
	}

	rp, err := simulate.Compile(sim)
	if err != nil {
		return wrapCode(3, fmt.Errorf("compiling run program: %w", err))
	}

	mi, err := config.ResolveMI(raw, func(msg string) {
		fmt.Fprintf(os.Stderr, "warning: %s rounded up to a multiple of the lane width\n", msg)
	})
	if err != nil {
		return err
	}

	buildHash := checkpoint.BuildHash(netlistBytes, mi.Cycles, mi.NumSecrets)

	driver := analyze.NewDriver(mi.Config, rp)

	if mi.LoadFile != "" {
		loaded, err := loadCheckpoint(mi.LoadFile, buildHash)
		if err != nil {
			return err
		}
		if err := loaded.AssertIntegrity(mi.Cycles, mi.NumSamplesFGivenD, mi.NumSamplesFGivenDS, mi.NumSecrets, uint64(rp.RunLength())); err != nil {
			return wrapCode(4, err)
		}
		driver.Resume(loaded)
	}

	reportOut := os.Stdout
	if mi.ReportFile != "" {
		f, err := os.Create(mi.ReportFile)
		if err != nil {
			return wrapCode(5, fmt.Errorf("creating report file: %w", err))
		}
		defer f.Close()
		reportOut = f
	}

	elapsed := driver.Run(reportOut)

	if mi.StoreFile != "" {
		result := driver.MergedResult(buildHash, uint64(elapsed.Milliseconds()))
		if err := saveCheckpoint(mi.StoreFile, result); err != nil {
			return wrapCode(5, err)
		}
	}

	return nil
}

func maxUint32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func loadCheckpoint(path string, buildHash [checkpoint.HashSize]byte) (*checkpoint.Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapCode(2, fmt.Errorf("opening load-file: %w", err))
	}
	defer f.Close()
	data, err := checkpoint.Load(f, buildHash)
	if err != nil {
		return nil, wrapCode(4, err)
	}
	return data, nil
}

func saveCheckpoint(path string, data *checkpoint.Data) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating store-file: %w", err)
	}
	defer f.Close()
	return data.SaveTo(f)
}

// allocateInputs binds every primary input bus to one of the three
// masking-aware classes by a case-insensitive name-prefix convention
// ("secret"/"data"/"mask"), falling back to one testbench slot per bit,
// which no bulk helper fills and so stays 0 for the life of the run, for
// anything else
// (resets, enables, and other plain control signals). See DESIGN.md's Q5
// entry: spec.md's flag surface has no way to name secret/data/mask ports
// or per-signal share counts, so every masked input is allocated with
// exactly one share.
//
// net.NameBits is a Go map, so its iteration order is randomized per
// process; names are sorted before binding to keep the emitted slot
// layout identical across runs of the same netlist, which a resumed
// checkpoint's per-slot accumulators depend on.
func allocateInputs(sim *simulate.Simulator, net *netlist.Netlist) error {
	names := make([]string, 0, len(net.NameBits))
	for name := range net.NameBits {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		bits := net.NameBits[name]
		if len(bits) == 0 || !net.InPorts[bits[0]] {
			continue
		}
		lower := strings.ToLower(name)
		rng := netlist.Range{Lo: uint32(bits[0]), Hi: uint32(bits[len(bits)-1])}
		switch {
		case strings.HasPrefix(lower, "secret"):
			if err := sim.AllocateSecrets(rng, 1); err != nil {
				return err
			}
		case strings.HasPrefix(lower, "data"):
			if err := sim.AllocateData(rng, 1); err != nil {
				return err
			}
		case strings.HasPrefix(lower, "mask"):
			if err := sim.AllocateMasks(rng); err != nil {
				return err
			}
		default:
			for _, bit := range bits {
				sim.DriveInput(bit, fmt.Sprintf("%s @0", name))
			}
		}
	}
	return nil
}
