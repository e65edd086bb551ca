package domain_test

import (
	"errors"
	"testing"

	"go.trai.ch/mox/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestParseEnvName_RoundTrip(t *testing.T) {
	inputs := []string{
		"py27",
		"py27-requests",
		"py27-requests-cachecontrol-coverage",
		"pypy-subprocess",
		"lint",
	}
	for _, raw := range inputs {
		name, err := domain.ParseEnvName(raw)
		if err != nil {
			t.Fatalf("ParseEnvName(%q): unexpected error: %v", raw, err)
		}
		if got := name.String(); got != raw {
			t.Errorf("round trip broken: parsed %q, recomposed %q", raw, got)
		}
	}
}

func TestParseEnvName_FactorOrder(t *testing.T) {
	name, err := domain.ParseEnvName("py27-requests-coverage")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	factors := name.Factors()
	want := []domain.Factor{"py27", "requests", "coverage"}
	if len(factors) != len(want) {
		t.Fatalf("expected %d factors, got %d", len(want), len(factors))
	}
	for i := range want {
		if factors[i] != want[i] {
			t.Errorf("factor %d: expected %q, got %q", i, want[i], factors[i])
		}
	}
}

func TestParseEnvName_Malformed(t *testing.T) {
	inputs := []string{"", "-py27", "py27-", "py27--requests"}
	for _, raw := range inputs {
		_, err := domain.ParseEnvName(raw)
		if err == nil {
			t.Errorf("ParseEnvName(%q): expected error, got nil", raw)
			continue
		}
		if !errors.Is(err, domain.ErrMalformedName) {
			t.Errorf("ParseEnvName(%q): expected ErrMalformedName, got %v", raw, err)
		}
	}
}

func TestParseEnvName_MalformedMetadata(t *testing.T) {
	_, err := domain.ParseEnvName("py27--requests")
	var zErr *zerr.Error
	if !errors.As(err, &zErr) {
		t.Fatalf("expected *zerr.Error, got %T", err)
	}
	meta := zErr.Metadata()
	if name, ok := meta["name"].(string); !ok || name != "py27--requests" {
		t.Errorf("expected metadata name=py27--requests, got %v", meta["name"])
	}
}

func TestEnvName_HasFactor(t *testing.T) {
	name, err := domain.ParseEnvName("py27-requests-coverage")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !name.HasFactor("requests") {
		t.Error("expected HasFactor(requests) to be true")
	}
	if name.HasFactor("py38") {
		t.Error("expected HasFactor(py38) to be false")
	}
}

func TestEnvName_SameShape(t *testing.T) {
	a, _ := domain.ParseEnvName("py27-requests-coverage")
	b, _ := domain.ParseEnvName("coverage-py27-requests")
	c, _ := domain.ParseEnvName("py27-requests")

	if !a.SameShape(b) {
		t.Error("expected names with reordered factors to share a shape")
	}
	if a.SameShape(c) {
		t.Error("expected names with different factor sets to differ")
	}
}

func TestRuntimeForFactor(t *testing.T) {
	cases := map[domain.Factor]string{
		"py27":     "python2.7",
		"py34":     "python3.4",
		"py312":    "python3.12",
		"py2":      "python2",
		"py3":      "python3",
		"py":       "python",
		"pypy":     "pypy",
		"pypy3":    "pypy3",
		"requests": "",
		"lint":     "",
		"pyxx":     "",
	}
	for factor, want := range cases {
		if got := domain.RuntimeForFactor(factor); got != want {
			t.Errorf("RuntimeForFactor(%q): expected %q, got %q", factor, want, got)
		}
	}
}

func TestEnvName_DeriveRuntime(t *testing.T) {
	name, _ := domain.ParseEnvName("coverage-py27-requests")
	if got := name.DeriveRuntime(); got != "python2.7" {
		t.Errorf("expected python2.7, got %q", got)
	}
	name, _ = domain.ParseEnvName("lint-docs")
	if got := name.DeriveRuntime(); got != "" {
		t.Errorf("expected empty runtime, got %q", got)
	}
}
