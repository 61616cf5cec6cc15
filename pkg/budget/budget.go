package budget

// ComputeNData returns the number of per-bucket trials (n_d) needed so
// that a histogram of uHist buckets, each estimated from ComputeNData
// samples, achieves the given (epsilon, delta) confidence bound on the
// overall mutual-information estimate. Ported from constexpr_helpers.h's
// compute_ndata.
func ComputeNData(epsilon, delta float64, uHist uint64) uint64 {
	epsPartLog := Log2(1.0 + 1.0/float64(uHist))
	epsPartSqrt := epsilon - epsPartLog

	l2UHist := Log2(float64(uHist))
	sigmaDivN := (2*(0.25*float64(uHist)) + 2*(l2UHist*l2UHist)) / float64(uHist)
	return uint64((sigmaDivN * (-2.0 * Log(delta))) / (epsPartSqrt * epsPartSqrt))
}

// ComputeUHist returns the smallest multiple of parallelSize histogram
// bucket count (u_hist) for which increasing the bucket count further no
// longer reduces the total sample budget (u_hist * ComputeNData), given the
// requested (epsilon, delta) bound. Ported from constexpr_helpers.h's
// compute_uhist.
func ComputeUHist(epsilon, delta float64, parallelSize uint64) uint64 {
	epsPartLog := epsilon / 3
	dHist := 1.0 / (Pow(2.0, epsPartLog) - 1.0)
	uHist := uint64(dHist)
	if uHist/parallelSize < 1 {
		uHist = parallelSize
	} else {
		uHist = (uHist / parallelSize) * parallelSize
	}
	for uHist*ComputeNData(epsilon, delta, uHist) >
		(uHist+parallelSize)*ComputeNData(epsilon, delta, uHist+parallelSize) {
		uHist += parallelSize
	}
	return uHist
}
