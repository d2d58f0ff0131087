package domain

import (
	"encoding/json"
	"time"
)

// Deployment statuses. A deployment is "partial" when the version update
// succeeded but a requested activation did not.
const (
	DeploymentPending   = "pending"
	DeploymentRunning   = "running"
	DeploymentSucceeded = "succeeded"
	DeploymentPartial   = "partial"
	DeploymentFailed    = "failed"
)

// Activation outcome kinds for a single network within a deployment.
const (
	OutcomeActive       = "ACTIVE"
	OutcomeFailed       = "FAILED"
	OutcomeTimedOut     = "TIMED_OUT"
	OutcomeNotRequested = "NOT_REQUESTED"
	OutcomeNotAttempted = "NOT_ATTEMPTED"
)

// NetworkOutcome records how a single network's activation ended.
type NetworkOutcome struct {
	Network      Network          `json:"network"`
	Outcome      string           `json:"outcome"`
	Status       ActivationStatus `json:"status,omitempty"`
	ActivationID string           `json:"activationId,omitempty"`
	// AlreadyActive is set when the version was active on the network
	// before this run, so no activation request was issued.
	AlreadyActive bool   `json:"alreadyActive,omitempty"`
	Error         string `json:"error,omitempty"`
}

// DeploymentRequest is the caller-supplied input for one orchestration run.
type DeploymentRequest struct {
	PropertyName       string          `json:"name"`
	RuleTree           json.RawMessage `json:"ruleTree"`
	VersionNotes       string          `json:"versionNotes"`
	ActivateStaging    bool            `json:"activateStaging"`
	ActivateProduction bool            `json:"activateProduction"`
}

// DeploymentResult is the aggregate outcome of one orchestration run.
// PropertyID, CurrentVersion and NewVersion are populated as soon as they
// are known, so callers can identify what was created even on failure.
type DeploymentResult struct {
	PropertyID string `json:"propertyId"`
	// CurrentVersion is the production version observed at the start of
	// the run, 0 if the property had never been activated to production.
	CurrentVersion int `json:"current_version"`
	// NewVersion is the version now carrying the update, as the remote
	// system reported it (decimal string, matching the version link).
	NewVersion string `json:"new_version"`
	// Changed is true once the run created a version or mutated its body.
	Changed    bool                       `json:"changed"`
	Staging    NetworkOutcome             `json:"staging"`
	Production NetworkOutcome             `json:"production"`
	// APIResponses holds the raw remote responses observed during the
	// run, keyed by call, for audit.
	APIResponses map[string]json.RawMessage `json:"api_responses,omitempty"`
	Error        string                     `json:"error,omitempty"`
}

// Deployment is the persisted record of one orchestration run.
type Deployment struct {
	ID                 string     `json:"id" db:"id"`
	PropertyName       string     `json:"propertyName" db:"property_name"`
	PropertyID         string     `json:"propertyId" db:"property_id"`
	CurrentVersion     int        `json:"currentVersion" db:"current_version"`
	NewVersion         string     `json:"newVersion" db:"new_version"`
	VersionNotes       string     `json:"versionNotes" db:"version_notes"`
	ActivateStaging    bool       `json:"activateStaging" db:"activate_staging"`
	ActivateProduction bool       `json:"activateProduction" db:"activate_production"`
	Status             string     `json:"status" db:"status"`
	StagingOutcome     string     `json:"stagingOutcome" db:"staging_outcome"`
	StagingError       string     `json:"stagingError,omitempty" db:"staging_error"`
	ProductionOutcome  string     `json:"productionOutcome" db:"production_outcome"`
	ProductionError    string     `json:"productionError,omitempty" db:"production_error"`
	APIResponses       string     `json:"apiResponses,omitempty" db:"api_responses"` // JSON object
	Error              string     `json:"error,omitempty" db:"error"`
	CreatedAt          time.Time  `json:"createdAt" db:"created_at"`
	StartedAt          *time.Time `json:"startedAt,omitempty" db:"started_at"`
	FinishedAt         *time.Time `json:"finishedAt,omitempty" db:"finished_at"`
}

// ApplyResult copies an orchestration result onto the persisted record.
func (d *Deployment) ApplyResult(res *DeploymentResult) {
	d.PropertyID = res.PropertyID
	d.CurrentVersion = res.CurrentVersion
	d.NewVersion = res.NewVersion
	d.StagingOutcome = res.Staging.Outcome
	d.StagingError = res.Staging.Error
	d.ProductionOutcome = res.Production.Outcome
	d.ProductionError = res.Production.Error
	d.Error = res.Error
	if len(res.APIResponses) > 0 {
		if data, err := json.Marshal(res.APIResponses); err == nil {
			d.APIResponses = string(data)
		}
	}
}
