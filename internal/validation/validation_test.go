package validation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jaescalo/property-deployer/internal/domain"
)

func TestValidateDeploymentRequest(t *testing.T) {
	tests := []struct {
		name       string
		req        domain.DeploymentRequest
		wantErrs   int
		wantFields []string
	}{
		{
			name: "valid request",
			req: domain.DeploymentRequest{
				PropertyName: "www-property",
				RuleTree:     json.RawMessage(`{"rules":{}}`),
				VersionNotes: "release notes",
			},
			wantErrs: 0,
		},
		{
			name: "missing name",
			req: domain.DeploymentRequest{
				RuleTree:     json.RawMessage(`{"rules":{}}`),
				VersionNotes: "notes",
			},
			wantErrs:   1,
			wantFields: []string{"name"},
		},
		{
			name: "missing notes",
			req: domain.DeploymentRequest{
				PropertyName: "www-property",
				RuleTree:     json.RawMessage(`{"rules":{}}`),
			},
			wantErrs:   1,
			wantFields: []string{"versionNotes"},
		},
		{
			name: "notes too long",
			req: domain.DeploymentRequest{
				PropertyName: "www-property",
				RuleTree:     json.RawMessage(`{"rules":{}}`),
				VersionNotes: strings.Repeat("x", MaxNotesLength+1),
			},
			wantErrs:   1,
			wantFields: []string{"versionNotes"},
		},
		{
			name: "missing rule tree",
			req: domain.DeploymentRequest{
				PropertyName: "www-property",
				VersionNotes: "notes",
			},
			wantErrs:   1,
			wantFields: []string{"ruleTree"},
		},
		{
			name: "rule tree is an array",
			req: domain.DeploymentRequest{
				PropertyName: "www-property",
				RuleTree:     json.RawMessage(`[1, 2, 3]`),
				VersionNotes: "notes",
			},
			wantErrs:   1,
			wantFields: []string{"ruleTree"},
		},
		{
			name: "rule tree is malformed",
			req: domain.DeploymentRequest{
				PropertyName: "www-property",
				RuleTree:     json.RawMessage(`{"rules":`),
				VersionNotes: "notes",
			},
			wantErrs:   1,
			wantFields: []string{"ruleTree"},
		},
		{
			name:       "everything missing",
			req:        domain.DeploymentRequest{},
			wantErrs:   3,
			wantFields: []string{"name", "versionNotes", "ruleTree"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateDeploymentRequest(&tt.req)
			if len(errs) != tt.wantErrs {
				t.Fatalf("Expected %d errors, got %d: %v", tt.wantErrs, len(errs), errs)
			}
			for _, field := range tt.wantFields {
				found := false
				for _, e := range errs {
					if e.Field == field {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("Expected an error on field %q, got %v", field, errs)
				}
			}
		})
	}
}
