package main

import (
	"context"
	"os"
	"testing"

	"github.com/swarmguard/setrecon/ibf"
	"github.com/swarmguard/setrecon/peerstore"
)

func TestEnvOrFallsBackWhenUnset(t *testing.T) {
	const key = "SETRECON_TEST_ENV_VAR_UNSET"
	os.Unsetenv(key)
	if got := envOr(key, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestEnvOrUsesSetValue(t *testing.T) {
	const key = "SETRECON_TEST_ENV_VAR_SET"
	os.Setenv(key, "explicit")
	defer os.Unsetenv(key)
	if got := envOr(key, "fallback"); got != "explicit" {
		t.Fatalf("expected explicit value, got %q", got)
	}
}

func openTempStore(t *testing.T) *peerstore.Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "reconciled-test-*")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	s, err := peerstore.Open(dir)
	if err != nil {
		t.Fatalf("open peerstore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIbfSizeFromEstimateScalesWithSafetyFactor(t *testing.T) {
	got := ibfSizeFromEstimate(100)
	want := int(100 * ibfSizeMultiplier)
	if got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestIbfSizeFromEstimateFloorsSmallEstimates(t *testing.T) {
	if got := ibfSizeFromEstimate(1); got != ibfSizeMinimum {
		t.Fatalf("expected floor of %d, got %d", ibfSizeMinimum, got)
	}
	if got := ibfSizeFromEstimate(0); got != ibfSizeMinimum {
		t.Fatalf("expected floor of %d, got %d", ibfSizeMinimum, got)
	}
}

func TestIbfSizeFromEstimateHandlesSaturation(t *testing.T) {
	got := ibfSizeFromEstimate(ibf.SaturatedEstimate)
	if got <= ibfSizeMinimum {
		t.Fatalf("expected a generously sized fallback IBF, got %d", got)
	}
}

func TestEstimateMetricValueClampsSaturation(t *testing.T) {
	if got := estimateMetricValue(ibf.SaturatedEstimate); got < 0 {
		t.Fatalf("saturation sentinel must not wrap to a negative metric value, got %d", got)
	}
}

func TestEstimateMetricValuePassesThroughSmallCounts(t *testing.T) {
	if got := estimateMetricValue(42); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestBuildStrataEstimatorAndIBFAgree(t *testing.T) {
	ctx := context.Background()
	s := openTempStore(t)
	for i := uint64(0); i < 50; i++ {
		if err := s.Put(ctx, ibf.ElementFromUint64(i)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	se, err := buildStrataEstimator(ctx, s)
	if err != nil {
		t.Fatalf("build strata estimator: %v", err)
	}
	diff, err := se.EstimateDifferences(se)
	if err != nil {
		t.Fatalf("estimate differences against self: %v", err)
	}
	if diff != 0 {
		t.Fatalf("expected 0 differences against self, got %d", diff)
	}

	f, err := buildIBF(ctx, s, 200)
	if err != nil {
		t.Fatalf("build ibf: %v", err)
	}
	if f.M() != 200 {
		t.Fatalf("expected m=200, got %d", f.M())
	}
}
