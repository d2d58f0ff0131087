package validation

import (
	"encoding/json"

	"github.com/jaescalo/property-deployer/internal/domain"
)

// MaxNotesLength bounds the version notes; the remote system truncates
// longer comments silently, which hides audit information.
const MaxNotesLength = 4000

// ValidateDeploymentRequest checks a deployment request before any remote
// call is made. The rule-tree body itself is not schema-validated here;
// the remote system is the source of truth for rule semantics.
func ValidateDeploymentRequest(req *domain.DeploymentRequest) ValidationErrors {
	var errs ValidationErrors

	if req.PropertyName == "" {
		errs.Add("name", "", "property name is required")
	}
	if req.VersionNotes == "" {
		errs.Add("versionNotes", "", "version notes are required")
	} else if len(req.VersionNotes) > MaxNotesLength {
		errs.Add("versionNotes", "", "version notes are too long")
	}

	if len(req.RuleTree) == 0 {
		errs.Add("ruleTree", "", "rule tree is required")
	} else if !isJSONObject(req.RuleTree) {
		errs.Add("ruleTree", "", "rule tree must be a JSON object")
	}

	return errs
}

func isJSONObject(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil
}
