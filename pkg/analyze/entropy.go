package analyze

import "math"

// binaryEntropyTable precomputes H2(count/n) in bits for every count in
// [0,n], so the sampling hot loop is a table lookup rather than a log2
// call per observed count. Ported from SamplerMI's constructor in
// verify_mi.cpp, which builds the identical table (using std::log2, not
// the portable pkg/budget approximations: the original reserves those for
// compile-time budget sizing only, and calls the platform log2 here).
func binaryEntropyTable(n uint64) []float64 {
	table := make([]float64, n+1)
	for cnt := uint64(1); cnt < n; cnt++ {
		p := float64(cnt) / float64(n)
		table[cnt] = -(p*math.Log2(p) + (1-p)*math.Log2(1-p))
	}
	table[0] = 0
	table[n] = 0
	return table
}
