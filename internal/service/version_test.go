package service_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/jaescalo/property-deployer/internal/domain"
	"github.com/jaescalo/property-deployer/internal/service"
)

func TestEnsureWorkingVersionIsIdempotent(t *testing.T) {
	shim := newShim(t)
	shim.AddProperty("www-property", "prp_1", 399)

	m := service.NewVersionManager(shim, service.RetryPolicy{Attempts: 1, Base: time.Millisecond})
	ruleTree := []byte(`{"rules":{"name":"default"}}`)

	first, err := m.EnsureWorkingVersion(context.Background(), "prp_1", 399, ruleTree, "notes")
	if err != nil {
		t.Fatalf("First call failed: %v", err)
	}
	if first.Version != 400 {
		t.Errorf("Expected version 400, got %d", first.Version)
	}
	if !first.Created {
		t.Error("Expected the first call to create a version")
	}

	// Same inputs, no intervening activation: must land on the same
	// version instead of creating another one.
	second, err := m.EnsureWorkingVersion(context.Background(), "prp_1", 399, ruleTree, "notes")
	if err != nil {
		t.Fatalf("Second call failed: %v", err)
	}
	if second.Version != first.Version {
		t.Errorf("Expected version %d to be reused, got %d", first.Version, second.Version)
	}
	if second.Created {
		t.Error("Expected the second call to reuse, not create")
	}
}

func TestEnsureWorkingVersionSkipsNetworkActiveVersion(t *testing.T) {
	shim := newShim(t)
	shim.AddProperty("www-property", "prp_1", 399)

	m := service.NewVersionManager(shim, service.RetryPolicy{Attempts: 1, Base: time.Millisecond})
	ruleTree := []byte(`{"rules":{}}`)

	wv, err := m.EnsureWorkingVersion(context.Background(), "prp_1", 399, ruleTree, "notes")
	if err != nil {
		t.Fatalf("EnsureWorkingVersion failed: %v", err)
	}

	// Activate the working version on staging only.
	c := service.NewActivationController(shim, time.Millisecond, 5*time.Second, service.RetryPolicy{Attempts: 1, Base: time.Millisecond})
	if _, err := c.Activate(context.Background(), "prp_1", wv.Version, domain.NetworkStaging, "notes"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	// A version active on one network is not reusable; the next run
	// must create a fresh version.
	next, err := m.EnsureWorkingVersion(context.Background(), "prp_1", 399, ruleTree, "notes")
	if err != nil {
		t.Fatalf("EnsureWorkingVersion after activation failed: %v", err)
	}
	if next.Version != wv.Version+1 {
		t.Errorf("Expected fresh version %d, got %d", wv.Version+1, next.Version)
	}
	if !next.Created {
		t.Error("Expected a fresh version to be created")
	}
}

func TestNewVersionIsMonotonic(t *testing.T) {
	shim := newShim(t)
	shim.AddProperty("www-property", "prp_1", 42)

	orch := service.NewOrchestrator(shim, fastOptions())
	result, err := orch.Run(context.Background(), &domain.DeploymentRequest{
		PropertyName: "www-property",
		RuleTree:     []byte(`{"rules":{}}`),
		VersionNotes: "notes",
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	newVersion, err := strconv.Atoi(result.NewVersion)
	if err != nil {
		t.Fatalf("New version %q is not a number", result.NewVersion)
	}
	if newVersion <= result.CurrentVersion {
		t.Errorf("Expected new version > current version, got %d <= %d", newVersion, result.CurrentVersion)
	}
}
