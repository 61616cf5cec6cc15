package analyze

import (
	"fmt"
	"io"
	"strings"
)

// showInfo formats one reported slot exactly as verify_mi.cpp's show_info,
// minus the ANSI highlight escapes (those are a terminal-only affordance
// the teacher's pkg/search progress reporter also skips for non-tty output).
func showInfo(out io.Writer, mi float64, n int64, downSub float64, name string) {
	fmt.Fprintf(out, "%19.16f (N=%d) (DS=%19.16f) %s \n", mi, n, downSub, name)
}

// showSuspicious prints the current and final error bars and reports the
// numBest run-storage slots with the largest mutual-information estimate
// among those clearing the down_sub confidence threshold (numBest < 0
// reports every such slot individually instead of ranking; numBest == 0
// reports nothing).
//
// Ported from verify_mi.cpp's show_suspicious, with one deliberate
// omission: the source's final-vs-current error bar comparison is guarded
// by `assert(final_log_up = curr_log_up)` (assignment, not comparison) and
// so never actually checks anything in a release build. This function
// prints both figures for the operator to compare by eye but does not
// resurrect the broken assertion as a real check.
func (d *Driver) showSuspicious(out io.Writer, numBest int) {
	if numBest == 0 {
		return
	}

	var n int64
	for _, s := range d.samplers {
		n += int64(s.RunID)
	}

	curr := ComputeErrors(uint64(n), d.cfg.NumSecrets, d.cfg.NumSamplesFGivenD, d.cfg.NumSamplesFGivenDS, d.cfg.Delta)
	upAdd := curr.LogUp + curr.Sqrt
	downSub := curr.LogDown + curr.Sqrt

	final := ComputeErrors(d.cfg.NumData, d.cfg.NumSecrets, d.cfg.NumSamplesFGivenD, d.cfg.NumSamplesFGivenDS, d.cfg.Delta)
	finalUpAdd := final.LogUp + final.Sqrt
	finalDownSub := final.LogDown + final.Sqrt

	fmt.Fprintf(out, "N:        %d\n", n)
	fmt.Fprintf(out, "log_up:   %19.16f\n", curr.LogUp)
	fmt.Fprintf(out, "log_down: %19.16f\n", curr.LogDown)
	fmt.Fprintf(out, "sqrt:     %19.16f\n", curr.Sqrt)
	fmt.Fprintf(out, "up_add:   %19.16f\n", upAdd)
	fmt.Fprintf(out, "down_sub: %19.16f\n", downSub)
	fmt.Fprintf(out, "final sqrt:     %19.16f\n", final.Sqrt)
	fmt.Fprintf(out, "final up_add:   %19.16f\n", finalUpAdd)
	fmt.Fprintf(out, "final down_sub: %19.16f\n", finalDownSub)

	debugInfo := d.rp.DebugInfo()

	var bestMI []float64
	var bestPos []int
	if numBest > 0 {
		bestMI = make([]float64, numBest)
		bestPos = make([]int, numBest)
	}

	maxMI := -2.0
	numGood := 0

	for pos := 0; pos < len(debugInfo); pos++ {
		var mi float64
		for _, s := range d.samplers {
			mi += s.SumOfMI[pos]
		}
		mi /= float64(n)

		info := debugInfo[pos]
		if strings.Contains(info, "unmasked") && strings.Contains(info, "secret") {
			continue
		}

		if mi > maxMI {
			maxMI = mi
		}

		if mi-downSub <= 0 {
			continue
		}

		if numBest > 0 {
			if bestMI[numBest-1] > mi {
				continue
			}
			numGood++
			miVal, miPos := mi, pos
			for i := 0; i < numBest; i++ {
				if miVal > bestMI[i] {
					bestMI[i], miVal = miVal, bestMI[i]
					bestPos[i], miPos = miPos, bestPos[i]
				}
			}
		} else {
			showInfo(out, mi, n, downSub, info)
		}
	}

	if numBest > 0 && numGood != 0 {
		fmt.Fprintf(out, "Best MI:\n")
		limit := numGood
		if limit > numBest {
			limit = numBest
		}
		for i := 0; i < limit; i++ {
			showInfo(out, bestMI[i], n, downSub, debugInfo[bestPos[i]])
		}
	} else {
		fmt.Fprintf(out, "max_mi:   %19.16f\n", maxMI)
	}

	if d.cfg.EarlyStop && maxMI > 10*downSub {
		fmt.Fprintf(out, "Max MI substantially exceeds threshold, stopping ...")
		d.stop.Store(true)
	}
	fmt.Fprintln(out)
}
