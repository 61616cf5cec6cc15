// Command merge-savedata sums two or more mutual-information checkpoints
// produced by separate verify-mi runs (or resumed runs of the same one)
// into a single accumulator.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vedadux/quantile/pkg/checkpoint"
	"github.com/vedadux/quantile/pkg/config"
	"github.com/vedadux/quantile/pkg/neterr"
)

func main() {
	var output string

	rootCmd := &cobra.Command{
		Use:   "merge-savedata <input...> --output <merged>",
		Short: "Sum two or more verify-mi checkpoints into one",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(config.RawMerge{Inputs: args, Output: output})
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVar(&output, "output", "", "path to write the merged checkpoint to")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeOf(err))
	}
}

func exitCodeOf(err error) int {
	if nerr, ok := err.(*neterr.Error); ok {
		return nerr.Kind.ExitCode()
	}
	if ce, ok := err.(*codeError); ok {
		return ce.code
	}
	return 1
}

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

func run(raw config.RawMerge) error {
	merge, err := config.ResolveMerge(raw)
	if err != nil {
		return err
	}

	var sum *checkpoint.Data
	var buildHash [checkpoint.HashSize]byte
	for i, path := range merge.Inputs {
		f, err := os.Open(path)
		if err != nil {
			return wrapCode(2, fmt.Errorf("opening %s: %w", path, err))
		}
		data, err := loadAny(f)
		f.Close()
		if err != nil {
			return wrapCode(4, fmt.Errorf("reading %s: %w", path, err))
		}
		if i == 0 {
			buildHash = data.Hash
			sum = data
			continue
		}
		if data.Hash != buildHash {
			return wrapCode(4, fmt.Errorf("%s was produced by a different build than %s", path, merge.Inputs[0]))
		}
		if err := sum.Add(data); err != nil {
			return wrapCode(4, fmt.Errorf("merging %s: %w", path, err))
		}
	}

	out, err := os.Create(merge.Output)
	if err != nil {
		return wrapCode(5, fmt.Errorf("creating %s: %w", merge.Output, err))
	}
	defer out.Close()
	if err := sum.SaveTo(out); err != nil {
		return wrapCode(5, err)
	}
	fmt.Printf("merged %d checkpoints (%d runs total) into %s\n", len(merge.Inputs), sum.NumRuns, merge.Output)
	return nil
}

// loadAny reads a checkpoint without first knowing its build hash, to
// discover the hash the remaining inputs must then be checked against.
// It passes the file's own embedded hash (peekHash) to checkpoint.Load, so
// Load's hash check always passes here — the mismatch comparison here is done against the first input read, not a
// compiled-in expectation, since merge-savedata runs independently of any
// particular verify-mi build.
func loadAny(f *os.File) (*checkpoint.Data, error) {
	return checkpoint.Load(f, peekHash(f))
}

func peekHash(f *os.File) [checkpoint.HashSize]byte {
	var h [checkpoint.HashSize]byte
	if _, err := io.ReadFull(f, h[:]); err != nil {
		return h
	}
	if _, err := f.Seek(0, 0); err != nil {
		return h
	}
	return h
}
