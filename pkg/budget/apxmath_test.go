package budget

import (
	"math"
	"testing"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestLogMatchesMathLog(t *testing.T) {
	cases := []float64{0.1, 0.5, 1.0, 2.0, 7.5, 100.0, 1e6}
	for _, x := range cases {
		got := Log(x)
		want := math.Log(x)
		if !approxEqual(got, want, 1e-6*math.Max(1.0, math.Abs(want))) {
			t.Errorf("Log(%v) = %v, want %v", x, got, want)
		}
	}
}

func TestExpMatchesMathExp(t *testing.T) {
	cases := []float64{-5.0, -1.0, 0.0, 0.5, 1.0, 3.0, 10.0}
	for _, x := range cases {
		got := Exp(x)
		want := math.Exp(x)
		if !approxEqual(got, want, 1e-6*math.Max(1.0, math.Abs(want))) {
			t.Errorf("Exp(%v) = %v, want %v", x, got, want)
		}
	}
}

func TestLog2MatchesMathLog2(t *testing.T) {
	cases := []float64{0.25, 1.0, 2.0, 8.0, 1000.0}
	for _, x := range cases {
		got := Log2(x)
		want := math.Log2(x)
		if !approxEqual(got, want, 1e-6*math.Max(1.0, math.Abs(want))) {
			t.Errorf("Log2(%v) = %v, want %v", x, got, want)
		}
	}
}

func TestPowMatchesMathPow(t *testing.T) {
	cases := []struct{ base, x float64 }{
		{2.0, 10.0}, {2.0, 0.5}, {10.0, 3.0}, {1.5, 4.0},
	}
	for _, c := range cases {
		got := Pow(c.base, c.x)
		want := math.Pow(c.base, c.x)
		if !approxEqual(got, want, 1e-5*math.Max(1.0, math.Abs(want))) {
			t.Errorf("Pow(%v, %v) = %v, want %v", c.base, c.x, got, want)
		}
	}
}

func TestExpLogRoundTrip(t *testing.T) {
	for _, x := range []float64{0.01, 1.0, 2.5, 50.0} {
		got := Exp(Log(x))
		if !approxEqual(got, x, 1e-5*x) {
			t.Errorf("Exp(Log(%v)) = %v, want %v", x, got, x)
		}
	}
}
