package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jaescalo/property-deployer/internal/domain"
	"github.com/jaescalo/property-deployer/internal/papi"
)

// ActivationController submits an activation for one network and drives
// it to a terminal state via bounded polling. Invocations for different
// networks are independent of each other; any ordering between them is
// the orchestrator's policy.
type ActivationController struct {
	client       papi.PropertyClient
	pollInterval time.Duration
	timeout      time.Duration
	retry        RetryPolicy
}

// NewActivationController creates a new ActivationController.
func NewActivationController(client papi.PropertyClient, pollInterval, timeout time.Duration, retry RetryPolicy) *ActivationController {
	return &ActivationController{
		client:       client,
		pollInterval: pollInterval,
		timeout:      timeout,
		retry:        retry,
	}
}

// ActivationResult carries the per-network outcome plus the raw remote
// responses observed on the way, for audit.
type ActivationResult struct {
	Outcome   domain.NetworkOutcome
	Responses map[string]json.RawMessage
}

// Activate makes the version live on the network.
//
// If the remote system already reports the version active there, Activate
// short-circuits to success without issuing a duplicate activation
// request. Otherwise it submits a request and polls at a fixed interval
// until the status is terminal or the wall-clock deadline passes. On
// timeout the activation is NOT cancelled (the remote system owns it and
// it may still complete); the outcome is reported distinctly so callers
// know it is potentially in flight.
func (c *ActivationController) Activate(ctx context.Context, propertyID string, version int, network domain.Network, notes string) (*ActivationResult, error) {
	res := &ActivationResult{
		Outcome:   domain.NetworkOutcome{Network: network, Outcome: domain.OutcomeNotAttempted},
		Responses: make(map[string]json.RawMessage),
	}
	key := "activation_" + networkKey(network)

	var current *domain.VersionSummary
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		v, err := c.client.GetVersion(ctx, propertyID, version)
		if err != nil {
			return err
		}
		current = v
		return nil
	})
	if err != nil {
		res.Outcome.Outcome = domain.OutcomeFailed
		res.Outcome.Error = err.Error()
		return res, err
	}
	if current.StatusOn(network) == domain.StatusActive {
		log.Printf("Version %d of %s already active on %s, skipping activation", version, propertyID, network)
		res.Outcome.Outcome = domain.OutcomeActive
		res.Outcome.Status = domain.StatusActive
		res.Outcome.AlreadyActive = true
		return res, nil
	}

	// Submitting the activation is a write; a failure here is surfaced
	// rather than retried so we never race a request that did land.
	handle, err := c.client.CreateActivation(ctx, propertyID, version, network, notes)
	if err != nil {
		res.Outcome.Outcome = domain.OutcomeFailed
		res.Outcome.Error = err.Error()
		return res, err
	}
	res.Outcome.ActivationID = handle.ActivationID
	res.Responses[key] = handle.Raw
	log.Printf("Activation %s submitted for version %d of %s on %s", handle.ActivationID, version, propertyID, network)

	deadline := time.Now().Add(c.timeout)
	for {
		state, err := c.getStatus(ctx, propertyID, handle.ActivationID)
		if err != nil {
			res.Outcome.Outcome = domain.OutcomeFailed
			res.Outcome.Error = err.Error()
			return res, err
		}
		res.Responses[key+"_status"] = state.Raw
		res.Outcome.Status = state.Status

		if state.Status.Terminal() {
			if state.Status.Success() {
				log.Printf("Activation %s on %s is ACTIVE", handle.ActivationID, network)
				res.Outcome.Outcome = domain.OutcomeActive
				return res, nil
			}
			actErr := &domain.ActivationError{Network: network, Status: state.Status, Reason: state.Reason}
			res.Outcome.Outcome = domain.OutcomeFailed
			res.Outcome.Error = actErr.Error()
			return res, actErr
		}

		if time.Now().After(deadline) {
			err := fmt.Errorf("%w: activation %s on %s still %s after %s (it may yet complete on the remote system)",
				domain.ErrActivationTimeout, handle.ActivationID, network, state.Status, c.timeout)
			res.Outcome.Outcome = domain.OutcomeTimedOut
			res.Outcome.Error = err.Error()
			return res, err
		}

		select {
		case <-ctx.Done():
			res.Outcome.Outcome = domain.OutcomeFailed
			res.Outcome.Error = ctx.Err().Error()
			return res, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// getStatus polls once, absorbing transient transport errors with
// bounded backoff.
func (c *ActivationController) getStatus(ctx context.Context, propertyID, activationID string) (*domain.ActivationState, error) {
	var state *domain.ActivationState
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		st, err := c.client.GetActivationStatus(ctx, propertyID, activationID)
		if err != nil {
			return err
		}
		state = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func networkKey(network domain.Network) string {
	if network == domain.NetworkProduction {
		return "production"
	}
	return "staging"
}
