package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jaescalo/property-deployer/internal/domain"
	"github.com/jaescalo/property-deployer/internal/papi"
)

// VersionManager decides whether a fresh version is needed, creates it
// from a base version, and applies the new rule-tree body.
type VersionManager struct {
	client papi.PropertyClient
	retry  RetryPolicy
}

// NewVersionManager creates a new VersionManager.
func NewVersionManager(client papi.PropertyClient, retry RetryPolicy) *VersionManager {
	return &VersionManager{client: client, retry: retry}
}

// WorkingVersion is the version now carrying the caller's update.
type WorkingVersion struct {
	Version int
	// Created is false when an existing unactivated version was reused.
	Created   bool
	Responses map[string]json.RawMessage
}

// EnsureWorkingVersion returns a version carrying ruleTree and notes.
//
// The latest version is reused only when it is inactive on every network;
// a version active (or activating) anywhere is immutable to this system
// and a new one is created from baseVersion instead. Reuse is what makes
// repeated runs with no intervening activation idempotent: they land on
// the same version number instead of accumulating unused versions.
//
// baseVersion 0 means the property has never been activated to
// production; the latest version then serves as the template.
func (m *VersionManager) EnsureWorkingVersion(ctx context.Context, propertyID string, baseVersion int, ruleTree json.RawMessage, notes string) (*WorkingVersion, error) {
	wv := &WorkingVersion{Responses: make(map[string]json.RawMessage)}

	var latest *domain.VersionSummary
	err := m.retry.Do(ctx, func(ctx context.Context) error {
		v, err := m.client.GetLatestVersion(ctx, propertyID)
		if err != nil {
			return err
		}
		latest = v
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if latest != nil {
		wv.Responses["latest_version"] = latest.Raw
	}

	switch {
	case latest != nil && !latest.ActiveAnywhere():
		// Fresh version from a previous run; reuse it instead of
		// stacking up unactivated versions.
		wv.Version = latest.Version
		log.Printf("Reusing unactivated version %d of %s", wv.Version, propertyID)
	default:
		base := baseVersion
		if base == 0 {
			if latest == nil {
				return nil, fmt.Errorf("%w: property %s has no version to build on", domain.ErrInvalidInput, propertyID)
			}
			base = latest.Version
		}

		// Creation is a write: not retried, since the error may have
		// arrived after the remote system applied it.
		version, raw, err := m.client.CreateVersion(ctx, propertyID, base)
		if err != nil {
			return nil, err
		}
		wv.Version = version
		wv.Created = true
		wv.Responses["create_version"] = raw
		log.Printf("Created version %d of %s from version %d", version, propertyID, base)
	}

	raw, err := m.client.UpdateRuleTree(ctx, propertyID, wv.Version, ruleTree, notes)
	if err != nil {
		return wv, err
	}
	wv.Responses["update_rules"] = raw

	return wv, nil
}
