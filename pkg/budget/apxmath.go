// Package budget computes the sample counts an analysis run needs to hit a
// target (epsilon, delta) confidence bound, using the same portable
// floating-point approximations as the original tool rather than the
// platform math library, so the computed budget is reproducible across
// build toolchains.
package budget

// eConst is Euler's number, the series-reduction base used by Log/Exp
// below (apxmath.h's DIV_CONST).
const eConst = 2.71828182845904523536028747135266249775724709369995957

// Log returns the natural logarithm of x via repeated division by e
// followed by an atanh-based series, avoiding any libm call.
func Log(x float64) float64 {
	if x <= 0 {
		panic("budget: Log of a non-positive number")
	}
	sign := 1.0
	if x < 1.0 {
		sign = -1.0
		x = 1.0 / x
	}
	var n uint32
	for x/eConst >= 1.0 {
		n++
		x /= eConst
	}
	y := (x - 1.0) / (x + 1.0)

	res := 0.0
	yPowK := 1.0
	for k := 0; ; k++ {
		numerator := yPowK * yPowK * y
		denominator := float64(k + k + 1)
		increase := numerator / denominator
		if increase == 0.0 {
			break
		}
		res += increase
		yPowK *= y
	}
	return sign * (float64(n) + 2.0*res)
}

// Exp returns e^x via a Taylor series after range-reducing x into [0,1]
// by repeated halving, then squaring the result back up.
func Exp(x float64) float64 {
	neg := x < 0.0
	if neg {
		x = -x
	}
	var n uint32
	for x > 1.0 {
		n++
		x /= 2
	}

	res := 0.0
	numerator := 1.0
	denominator := 1.0
	for k := 0; ; k++ {
		increase := numerator / denominator
		if increase == 0.0 {
			break
		}
		res += increase
		k1 := float64(k + 1)
		denominator *= k1
		numerator *= x
	}
	for i := uint32(0); i < n; i++ {
		res *= res
	}
	if neg {
		return 1.0 / res
	}
	return res
}

// Pow returns base^x for base > 0, via exp(x * log(base)).
func Pow(base, x float64) float64 {
	if base <= 0 {
		panic("budget: Pow of a non-positive base")
	}
	return Exp(x * Log(base))
}

// Log2 returns the base-2 logarithm of x.
func Log2(x float64) float64 {
	return Log(x) / Log(2.0)
}
