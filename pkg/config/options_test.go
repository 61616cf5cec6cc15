package config

import (
	"testing"

	"github.com/vedadux/quantile/pkg/bitvec"
)

func TestResolveMIAppliesDefaults(t *testing.T) {
	mi, err := ResolveMI(RawMI{Cycles: 1, NumThreads: 2}, nil)
	if err != nil {
		t.Fatalf("ResolveMI failed: %v", err)
	}
	if mi.NumSecrets != 1 {
		t.Fatalf("NumSecrets = %d, want 1", mi.NumSecrets)
	}
	if mi.Delta != defaultDelta || mi.Epsilon != defaultEpsilon {
		t.Fatalf("delta/epsilon not defaulted: %+v", mi)
	}
	if mi.NumSamplesFGivenD == 0 || mi.NumSamplesFGivenDS == 0 || mi.NumData == 0 || mi.NumSamples == 0 {
		t.Fatalf("expected every sample count to be derived, got %+v", mi.Config)
	}
	if mi.NumSamplesFGivenD%uint64(bitvec.LaneWidth) != 0 {
		t.Fatalf("NumSamplesFGivenD not a multiple of LaneWidth: %d", mi.NumSamplesFGivenD)
	}
}

func TestResolveMIRoundsSampleCountsUp(t *testing.T) {
	var warned []string
	mi, err := ResolveMI(RawMI{
		Cycles:             1,
		NumThreads:         1,
		NumSamplesFGivenD:  uint64(bitvec.LaneWidth) + 1,
		NumSamplesFGivenDS: uint64(bitvec.LaneWidth) * 2,
		NumData:            10,
	}, func(msg string) { warned = append(warned, msg) })
	if err != nil {
		t.Fatalf("ResolveMI failed: %v", err)
	}
	if mi.NumSamplesFGivenD != uint64(bitvec.LaneWidth)*2 {
		t.Fatalf("NumSamplesFGivenD = %d, want rounded up to %d", mi.NumSamplesFGivenD, uint64(bitvec.LaneWidth)*2)
	}
	if len(warned) != 1 {
		t.Fatalf("expected exactly one rounding warning, got %v", warned)
	}
}

func TestResolveMIRejectsInconsistentNumSamples(t *testing.T) {
	_, err := ResolveMI(RawMI{
		Cycles:             1,
		NumThreads:         1,
		NumSamplesFGivenD:  uint64(bitvec.LaneWidth),
		NumSamplesFGivenDS: uint64(bitvec.LaneWidth),
		NumSecrets:         1,
		NumData:            10,
		NumSamples:         999,
		SetNumData:         true,
		SetNumSamples:      true,
	}, nil)
	if err == nil {
		t.Fatalf("expected an inconsistency error")
	}
}

func TestResolveMIRejectsExistingStoreFile(t *testing.T) {
	_, err := ResolveMI(RawMI{Cycles: 1, NumThreads: 1, StoreFile: "options_test.go"}, nil)
	if err == nil {
		t.Fatalf("expected an error for a pre-existing store file")
	}
}

func TestResolveMIRejectsReportFileCollidingWithStoreFile(t *testing.T) {
	_, err := ResolveMI(RawMI{
		Cycles:     1,
		NumThreads: 1,
		StoreFile:  "/tmp/does-not-exist-quantile-store.bin",
		ReportFile: "/tmp/does-not-exist-quantile-store.bin",
	}, nil)
	if err == nil {
		t.Fatalf("expected an error for report-file colliding with store-file")
	}
}
