package config

import "github.com/vedadux/quantile/pkg/neterr"

// RawMerge is merge-savedata's command line before validation: the
// checkpoint files to sum and the path to write the result to.
type RawMerge struct {
	Inputs []string
	Output string
}

// Merge is a validated merge-savedata invocation.
type Merge struct {
	Inputs []string
	Output string
}

// ResolveMerge validates raw against merge_savedata's documented
// constraints (at least two inputs, refuses to overwrite an existing
// output file).
func ResolveMerge(raw RawMerge) (*Merge, error) {
	if len(raw.Inputs) < 2 {
		return nil, neterr.Newf(neterr.OptionsErr, "merge-savedata requires at least 2 input files, got %d", len(raw.Inputs))
	}
	if raw.Output == "" {
		return nil, neterr.New(neterr.OptionsErr, "--output is required")
	}
	if fileExists(raw.Output) {
		return nil, neterr.Newf(neterr.OptionsErr, "--output %q already exists", raw.Output)
	}
	return &Merge{Inputs: raw.Inputs, Output: raw.Output}, nil
}
