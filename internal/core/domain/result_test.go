package domain_test

import (
	"testing"

	"go.trai.ch/mox/internal/core/domain"
)

func TestRunStatus_IsTerminal(t *testing.T) {
	terminal := []domain.RunStatus{domain.StatusSucceeded, domain.StatusFailed, domain.StatusSkipped}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	live := []domain.RunStatus{domain.StatusPending, domain.StatusProvisioning, domain.StatusRunning}
	for _, s := range live {
		if s.IsTerminal() {
			t.Errorf("expected %s to not be terminal", s)
		}
	}
}

func TestRunStatus_TerminalStatesAbsorb(t *testing.T) {
	all := []domain.RunStatus{
		domain.StatusPending, domain.StatusProvisioning, domain.StatusRunning,
		domain.StatusSucceeded, domain.StatusFailed, domain.StatusSkipped,
	}
	for _, from := range all {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range all {
			if from.CanTransition(to) {
				t.Errorf("terminal state %s must not transition to %s", from, to)
			}
		}
	}
}

func TestRunStatus_ForwardTransitions(t *testing.T) {
	allowed := [][2]domain.RunStatus{
		{domain.StatusPending, domain.StatusProvisioning},
		{domain.StatusPending, domain.StatusSucceeded},
		{domain.StatusPending, domain.StatusSkipped},
		{domain.StatusPending, domain.StatusFailed},
		{domain.StatusProvisioning, domain.StatusRunning},
		{domain.StatusProvisioning, domain.StatusFailed},
		{domain.StatusProvisioning, domain.StatusSkipped},
		{domain.StatusRunning, domain.StatusSucceeded},
		{domain.StatusRunning, domain.StatusFailed},
	}
	for _, pair := range allowed {
		if !pair[0].CanTransition(pair[1]) {
			t.Errorf("expected %s -> %s to be allowed", pair[0], pair[1])
		}
	}

	denied := [][2]domain.RunStatus{
		{domain.StatusRunning, domain.StatusPending},
		{domain.StatusRunning, domain.StatusProvisioning},
		{domain.StatusRunning, domain.StatusSkipped},
		{domain.StatusProvisioning, domain.StatusSucceeded},
		{domain.StatusProvisioning, domain.StatusPending},
	}
	for _, pair := range denied {
		if pair[0].CanTransition(pair[1]) {
			t.Errorf("expected %s -> %s to be denied", pair[0], pair[1])
		}
	}
}

func TestRunResult_Failed(t *testing.T) {
	failed := domain.RunResult{Status: domain.StatusFailed}
	if !failed.Failed() {
		t.Error("expected failed result to fail the run")
	}
	skipped := domain.RunResult{Status: domain.StatusSkipped}
	if skipped.Failed() {
		t.Error("expected skipped result to not fail the run")
	}
	succeeded := domain.RunResult{Status: domain.StatusSucceeded}
	if succeeded.Failed() {
		t.Error("expected succeeded result to not fail the run")
	}
}
