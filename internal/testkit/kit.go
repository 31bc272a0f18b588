package testkit

import (
	"testing"

	"metaboqc/domain/dataset"
)

// MSDataset generates an MS dataset or fails the test.
func MSDataset(tb testing.TB, opts MSOptions) *dataset.Dataset {
	tb.Helper()
	d, err := NewMS(opts)
	if err != nil {
		tb.Fatalf("generate MS dataset: %v", err)
	}
	return d
}

// TargetedDataset generates a targeted dataset or fails the test.
func TargetedDataset(tb testing.TB, opts TargetedOptions) *dataset.Dataset {
	tb.Helper()
	d, err := NewTargeted(opts)
	if err != nil {
		tb.Fatalf("generate targeted dataset: %v", err)
	}
	return d
}

// NMRDataset generates an NMR dataset or fails the test.
func NMRDataset(tb testing.TB, opts NMROptions) *dataset.Dataset {
	tb.Helper()
	d, err := NewNMR(opts)
	if err != nil {
		tb.Fatalf("generate NMR dataset: %v", err)
	}
	return d
}
