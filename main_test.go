package main

import (
	"strings"
	"testing"
)

func TestIsHashDir(t *testing.T) {
	if !isHashDir("0a1b2c3d") {
		t.Fatalf("expected 8-char hex to be a hash dir")
	}
	if isHashDir("0a1b2c3") {
		t.Fatalf("short name must not be a hash dir")
	}
	if isHashDir("0a1b2c3z") {
		t.Fatalf("non-hex name must not be a hash dir")
	}
}

func TestReportInfoDeterministic(t *testing.T) {
	d := demos()[0]
	s1, f1 := reportInfo(d, 8)
	s2, f2 := reportInfo(d, 8)
	if s1 != s2 || f1 != f2 {
		t.Fatalf("report hash must be stable for the same input")
	}
	if _, f3 := reportInfo(d, 4); f3 == f1 {
		t.Fatalf("the budget must participate in the report hash")
	}
	if !isHashDir(s1) {
		t.Fatalf("short hash %q must match the hash dir format", s1)
	}
}

func TestCachedReportRoundtrip(t *testing.T) {
	dir := t.TempDir()
	d := demos()[0]

	report, cached, err := cachedReport(dir, d, 8, false)
	if err != nil {
		t.Fatal(err)
	}
	if cached {
		t.Fatalf("first run cannot be cached")
	}
	if !strings.Contains(report, "-- before:") || !strings.Contains(report, "-- after:") {
		t.Fatalf("report missing sections:\n%s", report)
	}

	again, cached, err := cachedReport(dir, d, 8, false)
	if err != nil {
		t.Fatal(err)
	}
	if !cached {
		t.Fatalf("second run must hit the cache")
	}
	if again != report {
		t.Fatalf("cached report must match the original")
	}

	_, cached, err = cachedReport(dir, d, 8, true)
	if err != nil {
		t.Fatal(err)
	}
	if cached {
		t.Fatalf("force must bypass the cache")
	}
}

func TestDemosTransform(t *testing.T) {
	for _, d := range demos() {
		report := renderReport(d.name, d.build(), 8)
		switch d.name {
		case "stencil3", "two_stencils", "consumed_intermediate":
			if !strings.Contains(report, "allocate") {
				t.Errorf("%s: expected a scratch allocation in the report", d.name)
			}
		case "stencil3_parallel", "nonlinear":
			if strings.Contains(report, "allocate") {
				t.Errorf("%s: expected no transformation", d.name)
			}
		}
	}
}
