package papi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/jaescalo/property-deployer/internal/domain"
)

// Shim is a testing implementation of PropertyClient backed by in-process
// state, optionally seeded from a JSON file. Activations advance one
// lifecycle step per status poll, so a full deployment can be exercised
// without credentials or a real remote system.
type Shim struct {
	mu         sync.Mutex
	properties map[string]*shimProperty // key: property name
	byID       map[string]*shimProperty
	nextActID  int

	// FailOn makes every activation on the given network end FAILED.
	FailOn map[domain.Network]string // network -> reason

	// StuckOn makes activations on the given network never leave PENDING,
	// for exercising the timeout path.
	StuckOn map[domain.Network]bool
}

// Ensure Shim implements PropertyClient.
var _ PropertyClient = (*Shim)(nil)

type shimProperty struct {
	name        string
	id          string
	versions    map[int]*shimVersion
	latest      int
	activations map[string]*shimActivation
}

type shimVersion struct {
	number     int
	ruleTree   json.RawMessage
	notes      string
	staging    domain.ActivationStatus
	production domain.ActivationStatus
}

type shimActivation struct {
	id      string
	version int
	network domain.Network
	status  domain.ActivationStatus
	reason  string
	stuck   bool
}

type shimSeed struct {
	Properties []struct {
		PropertyName      string `json:"propertyName"`
		PropertyID        string `json:"propertyId"`
		ProductionVersion int    `json:"productionVersion"`
	} `json:"properties"`
}

// NewShim creates a shim, seeding properties from filePath when the file
// exists.
func NewShim(filePath string) (*Shim, error) {
	s := &Shim{
		properties: make(map[string]*shimProperty),
		byID:       make(map[string]*shimProperty),
		FailOn:     make(map[domain.Network]string),
		StuckOn:    make(map[domain.Network]bool),
	}

	if filePath == "" {
		return s, nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading shim seed file: %w", err)
	}

	var seed shimSeed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing shim seed file: %w", err)
	}
	for _, p := range seed.Properties {
		s.AddProperty(p.PropertyName, p.PropertyID, p.ProductionVersion)
	}
	log.Printf("[Shim] Seeded %d properties from %s", len(seed.Properties), filePath)

	return s, nil
}

// AddProperty registers a property. A non-zero productionVersion is
// recorded as active on production (and staging, mirroring a promoted
// version).
func (s *Shim) AddProperty(name, id string, productionVersion int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prop := &shimProperty{
		name:        name,
		id:          id,
		versions:    make(map[int]*shimVersion),
		activations: make(map[string]*shimActivation),
	}
	if productionVersion > 0 {
		prop.versions[productionVersion] = &shimVersion{
			number:     productionVersion,
			staging:    domain.StatusActive,
			production: domain.StatusActive,
		}
		prop.latest = productionVersion
	}
	s.properties[name] = prop
	s.byID[id] = prop
}

// FindProperty implements PropertyClient.
func (s *Shim) FindProperty(ctx context.Context, name string) (*domain.PropertySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prop, ok := s.properties[name]
	if !ok {
		return nil, domain.ErrPropertyNotFound
	}

	summary := &domain.PropertySummary{PropertyID: prop.id, Name: name}
	for _, v := range prop.versions {
		if v.production == domain.StatusActive {
			summary.ProductionVersion = v.number
			summary.HasProduction = true
		}
	}
	summary.Raw, _ = json.Marshal(summary)
	return summary, nil
}

// GetLatestVersion implements PropertyClient.
func (s *Shim) GetLatestVersion(ctx context.Context, propertyID string) (*domain.VersionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prop, ok := s.byID[propertyID]
	if !ok || prop.latest == 0 {
		return nil, domain.ErrNotFound
	}
	return s.versionSummary(prop, prop.latest)
}

// GetVersion implements PropertyClient.
func (s *Shim) GetVersion(ctx context.Context, propertyID string, version int) (*domain.VersionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prop, ok := s.byID[propertyID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if _, ok := prop.versions[version]; !ok {
		return nil, domain.ErrNotFound
	}
	return s.versionSummary(prop, version)
}

func (s *Shim) versionSummary(prop *shimProperty, number int) (*domain.VersionSummary, error) {
	v := prop.versions[number]
	summary := &domain.VersionSummary{
		PropertyID:       prop.id,
		Version:          v.number,
		StagingStatus:    orInactive(v.staging),
		ProductionStatus: orInactive(v.production),
	}
	summary.Raw, _ = json.Marshal(summary)
	return summary, nil
}

func orInactive(s domain.ActivationStatus) domain.ActivationStatus {
	if s == "" {
		return domain.StatusInactive
	}
	return s
}

// CreateVersion implements PropertyClient.
func (s *Shim) CreateVersion(ctx context.Context, propertyID string, baseVersion int) (int, json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prop, ok := s.byID[propertyID]
	if !ok {
		return 0, nil, domain.ErrNotFound
	}

	next := prop.latest + 1
	nv := &shimVersion{number: next}
	if base, ok := prop.versions[baseVersion]; ok {
		nv.ruleTree = base.ruleTree
	}
	prop.versions[next] = nv
	prop.latest = next

	raw, _ := json.Marshal(map[string]string{
		"versionLink": fmt.Sprintf("/papi/v1/properties/%s/versions/%d?contractId=ctr_1", propertyID, next),
	})
	return next, raw, nil
}

// UpdateRuleTree implements PropertyClient.
func (s *Shim) UpdateRuleTree(ctx context.Context, propertyID string, version int, ruleTree json.RawMessage, notes string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prop, ok := s.byID[propertyID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	v, ok := prop.versions[version]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !json.Valid(ruleTree) {
		return nil, fmt.Errorf("%w: invalid rule tree", domain.ErrVersionConflict)
	}

	v.ruleTree = ruleTree
	v.notes = notes

	raw, _ := json.Marshal(map[string]any{"propertyVersion": version, "comments": notes})
	return raw, nil
}

// RuleTree returns the stored rule tree of a version, for assertions.
func (s *Shim) RuleTree(propertyID string, version int) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prop, ok := s.byID[propertyID]; ok {
		if v, ok := prop.versions[version]; ok {
			return v.ruleTree
		}
	}
	return nil
}

// ActivationCount returns how many activation requests were submitted for
// the network, for idempotency assertions.
func (s *Shim) ActivationCount(network domain.Network) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, p := range s.properties {
		for _, a := range p.activations {
			if a.network == network {
				count++
			}
		}
	}
	return count
}

// CreateActivation implements PropertyClient.
func (s *Shim) CreateActivation(ctx context.Context, propertyID string, version int, network domain.Network, notes string) (*domain.ActivationHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prop, ok := s.byID[propertyID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if _, ok := prop.versions[version]; !ok {
		return nil, domain.ErrNotFound
	}

	s.nextActID++
	act := &shimActivation{
		id:      fmt.Sprintf("atv_%d", s.nextActID),
		version: version,
		network: network,
		status:  domain.StatusPending,
		stuck:   s.StuckOn[network],
	}
	if reason, ok := s.FailOn[network]; ok {
		act.reason = reason
	}
	prop.activations[act.id] = act

	handle := &domain.ActivationHandle{
		ActivationID: act.id,
		Link:         fmt.Sprintf("/papi/v1/properties/%s/activations/%s", propertyID, act.id),
	}
	handle.Raw, _ = json.Marshal(map[string]string{"activationLink": handle.Link})
	return handle, nil
}

// GetActivationStatus implements PropertyClient. Each call advances the
// activation one lifecycle step until it reaches a terminal status.
func (s *Shim) GetActivationStatus(ctx context.Context, propertyID, activationID string) (*domain.ActivationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prop, ok := s.byID[propertyID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	act, ok := prop.activations[activationID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	if !act.stuck && !act.status.Terminal() {
		act.status = s.advance(prop, act)
	}

	state := &domain.ActivationState{
		ActivationID: act.id,
		Status:       act.status,
	}
	if act.status == domain.StatusFailed {
		state.Reason = act.reason
	}
	state.Raw, _ = json.Marshal(state)
	return state, nil
}

func (s *Shim) advance(prop *shimProperty, act *shimActivation) domain.ActivationStatus {
	if act.reason != "" {
		return domain.StatusFailed
	}

	switch act.status {
	case domain.StatusPending:
		return domain.StatusZone1
	case domain.StatusZone1:
		return domain.StatusZone2
	case domain.StatusZone2:
		return domain.StatusZone3
	case domain.StatusZone3:
		// Going ACTIVE supersedes whatever was active on this network.
		for _, v := range prop.versions {
			if act.network == domain.NetworkStaging && v.staging == domain.StatusActive {
				v.staging = domain.StatusDeactivated
			}
			if act.network == domain.NetworkProduction && v.production == domain.StatusActive {
				v.production = domain.StatusDeactivated
			}
		}
		v := prop.versions[act.version]
		if act.network == domain.NetworkStaging {
			v.staging = domain.StatusActive
		} else {
			v.production = domain.StatusActive
		}
		return domain.StatusActive
	default:
		return act.status
	}
}
