package papi

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaescalo/property-deployer/internal/domain"
)

func TestNewShimFromSeedFile(t *testing.T) {
	seedPath := filepath.Join(t.TempDir(), "properties.json")
	seed := `{
		"properties": [
			{"propertyName": "www-property", "propertyId": "prp_1", "productionVersion": 399},
			{"propertyName": "api-property", "propertyId": "prp_2", "productionVersion": 0}
		]
	}`
	if err := os.WriteFile(seedPath, []byte(seed), 0644); err != nil {
		t.Fatalf("Failed to write seed file: %v", err)
	}

	shim, err := NewShim(seedPath)
	if err != nil {
		t.Fatalf("NewShim failed: %v", err)
	}

	summary, err := shim.FindProperty(context.Background(), "www-property")
	if err != nil {
		t.Fatalf("FindProperty failed: %v", err)
	}
	if summary.PropertyID != "prp_1" {
		t.Errorf("Expected property ID prp_1, got %q", summary.PropertyID)
	}
	if !summary.HasProduction || summary.ProductionVersion != 399 {
		t.Errorf("Expected production version 399, got %d (has=%v)", summary.ProductionVersion, summary.HasProduction)
	}

	// A seeded property without a production version resolves but has no
	// versions yet.
	summary, err = shim.FindProperty(context.Background(), "api-property")
	if err != nil {
		t.Fatalf("FindProperty failed for api-property: %v", err)
	}
	if summary.HasProduction {
		t.Error("Expected api-property to have no production version")
	}
	if _, err := shim.GetLatestVersion(context.Background(), "prp_2"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a property with no versions, got %v", err)
	}
}

func TestNewShimMissingFileIsEmpty(t *testing.T) {
	shim, err := NewShim(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("NewShim failed: %v", err)
	}
	if _, err := shim.FindProperty(context.Background(), "anything"); !errors.Is(err, domain.ErrPropertyNotFound) {
		t.Errorf("Expected ErrPropertyNotFound, got %v", err)
	}
}

func TestNewShimRejectsMalformedSeed(t *testing.T) {
	seedPath := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(seedPath, []byte(`{"properties": [`), 0644); err != nil {
		t.Fatalf("Failed to write seed file: %v", err)
	}
	if _, err := NewShim(seedPath); err == nil {
		t.Error("Expected an error for a malformed seed file")
	}
}

func TestShimActivationLifecycle(t *testing.T) {
	shim, _ := NewShim("")
	shim.AddProperty("www-property", "prp_1", 1)

	version, _, err := shim.CreateVersion(context.Background(), "prp_1", 1)
	if err != nil {
		t.Fatalf("CreateVersion failed: %v", err)
	}

	handle, err := shim.CreateActivation(context.Background(), "prp_1", version, domain.NetworkStaging, "notes")
	if err != nil {
		t.Fatalf("CreateActivation failed: %v", err)
	}

	want := []domain.ActivationStatus{
		domain.StatusZone1, domain.StatusZone2, domain.StatusZone3, domain.StatusActive,
	}
	for i, expected := range want {
		state, err := shim.GetActivationStatus(context.Background(), "prp_1", handle.ActivationID)
		if err != nil {
			t.Fatalf("Poll %d failed: %v", i+1, err)
		}
		if state.Status != expected {
			t.Fatalf("Poll %d: expected %s, got %s", i+1, expected, state.Status)
		}
	}

	// The previously active version is superseded on staging only.
	old, err := shim.GetVersion(context.Background(), "prp_1", 1)
	if err != nil {
		t.Fatalf("GetVersion failed: %v", err)
	}
	if old.StagingStatus != domain.StatusDeactivated {
		t.Errorf("Expected version 1 deactivated on staging, got %s", old.StagingStatus)
	}
	if old.ProductionStatus != domain.StatusActive {
		t.Errorf("Expected version 1 still active on production, got %s", old.ProductionStatus)
	}
}
