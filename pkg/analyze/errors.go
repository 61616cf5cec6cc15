package analyze

import "math"

// ErrorBars is the confidence-bound triple compute_errors derives for a
// given number of completed data samples ND, secret samples NS, and
// fix/random trial counts NF_D, NF_DS at confidence level 1-delta.
type ErrorBars struct {
	LogUp   float64
	LogDown float64
	Sqrt    float64
}

// ComputeErrors ports verify_mi.cpp's compute_errors formula exactly.
func ComputeErrors(nd, ns, nfD, nfDS uint64, delta float64) ErrorBars {
	sigma2T1 := 1.0 / (4 * float64(nd))

	log2FD := math.Log2(float64(nfD))
	sigma2T2 := (log2FD * log2FD) / (float64(nd) * float64(nfD))

	log2FDS := math.Log2(float64(nfDS))
	sigma2T3 := (log2FDS * log2FDS) / (float64(nd) * float64(ns) * float64(nfDS))

	sigma2T4 := 1.0 / (4 * float64(nd) * float64(ns))

	sigma2 := (sigma2T1 + sigma2T4) + (sigma2T2 + sigma2T3)

	return ErrorBars{
		Sqrt:    math.Sqrt(2 * sigma2 * (-math.Log(delta))),
		LogUp:   math.Log2(1 + 1.0/float64(nfD)),
		LogDown: math.Log2(1 + 1.0/float64(nfDS)),
	}
}
