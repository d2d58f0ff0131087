package domain

import (
	"encoding/json"
	"fmt"
)

// Network is a deployment target on the remote system.
type Network string

const (
	NetworkStaging    Network = "STAGING"
	NetworkProduction Network = "PRODUCTION"
)

// Networks lists all deployment targets in activation order.
// Staging before production is a safety policy, not an API requirement.
var Networks = []Network{NetworkStaging, NetworkProduction}

// ParseNetwork parses a network name.
func ParseNetwork(s string) (Network, error) {
	switch Network(s) {
	case NetworkStaging, NetworkProduction:
		return Network(s), nil
	}
	return "", fmt.Errorf("%w: unknown network %q", ErrInvalidInput, s)
}

// ActivationStatus is the remote system's activation lifecycle state.
// The progression on success is PENDING -> ZONE_1 -> ZONE_2 -> ZONE_3 ->
// ACTIVE; FAILED, ABORTED and DEACTIVATED are the non-success terminals.
type ActivationStatus string

const (
	StatusNew         ActivationStatus = "NEW"
	StatusPending     ActivationStatus = "PENDING"
	StatusZone1       ActivationStatus = "ZONE_1"
	StatusZone2       ActivationStatus = "ZONE_2"
	StatusZone3       ActivationStatus = "ZONE_3"
	StatusActive      ActivationStatus = "ACTIVE"
	StatusFailed      ActivationStatus = "FAILED"
	StatusAborted     ActivationStatus = "ABORTED"
	StatusDeactivated ActivationStatus = "DEACTIVATED"
	StatusInactive    ActivationStatus = "INACTIVE"
)

// Terminal reports whether the status is one the remote system will not
// transition out of for this activation.
func (s ActivationStatus) Terminal() bool {
	switch s {
	case StatusActive, StatusFailed, StatusAborted, StatusDeactivated:
		return true
	default:
		return false
	}
}

// Success reports whether the status is the successful terminal.
func (s ActivationStatus) Success() bool {
	return s == StatusActive
}

// ParseActivationStatus validates a status string reported by the remote
// system. Unknown values are rejected rather than treated as in-progress.
func ParseActivationStatus(s string) (ActivationStatus, error) {
	switch ActivationStatus(s) {
	case StatusNew, StatusPending, StatusZone1, StatusZone2, StatusZone3,
		StatusActive, StatusFailed, StatusAborted, StatusDeactivated, StatusInactive:
		return ActivationStatus(s), nil
	}
	return "", fmt.Errorf("unknown activation status %q", s)
}

// PropertySummary is the result of resolving a property by name.
type PropertySummary struct {
	PropertyID string `json:"propertyId"`
	Name       string `json:"propertyName"`
	// ProductionVersion is the version currently active on production.
	// Zero with HasProduction false means the property has never been
	// activated there; that is "no base version", not version 0.
	ProductionVersion int             `json:"productionVersion"`
	HasProduction     bool            `json:"hasProductionVersion"`
	Raw               json.RawMessage `json:"-"`
}

// VersionSummary describes one property version and its activation status
// on each network.
type VersionSummary struct {
	PropertyID        string           `json:"propertyId"`
	Version           int              `json:"propertyVersion"`
	StagingStatus     ActivationStatus `json:"stagingStatus"`
	ProductionStatus  ActivationStatus `json:"productionStatus"`
	Raw               json.RawMessage  `json:"-"`
}

// StatusOn returns the version's activation status on the given network.
func (v *VersionSummary) StatusOn(network Network) ActivationStatus {
	if network == NetworkProduction {
		return v.ProductionStatus
	}
	return v.StagingStatus
}

// ActiveAnywhere reports whether the version is active or activating on
// any network. Only a version inactive everywhere may be reused as the
// working version.
func (v *VersionSummary) ActiveAnywhere() bool {
	return !inactive(v.StagingStatus) || !inactive(v.ProductionStatus)
}

func inactive(s ActivationStatus) bool {
	return s == StatusInactive || s == "" || s == StatusDeactivated
}

// ActivationHandle identifies an activation request accepted by the
// remote system.
type ActivationHandle struct {
	ActivationID string          `json:"activationId"`
	Link         string          `json:"activationLink"`
	Raw          json.RawMessage `json:"-"`
}

// ActivationState is one observation of an activation's status.
type ActivationState struct {
	ActivationID string           `json:"activationId"`
	Status       ActivationStatus `json:"status"`
	// Reason carries the remote system's explanation for non-success
	// terminal states, when it provides one.
	Reason string          `json:"reason,omitempty"`
	Raw    json.RawMessage `json:"-"`
}
