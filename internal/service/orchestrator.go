package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jaescalo/property-deployer/internal/domain"
	"github.com/jaescalo/property-deployer/internal/papi"
)

// Options tunes the orchestration engine.
type Options struct {
	PollInterval      time.Duration
	ActivationTimeout time.Duration
	Retry             RetryPolicy
}

// Orchestrator composes resolution, version management and activation
// into the end-to-end deployment workflow.
type Orchestrator struct {
	resolver    *Resolver
	versions    *VersionManager
	activations *ActivationController
}

// NewOrchestrator creates an Orchestrator over the given remote client.
func NewOrchestrator(client papi.PropertyClient, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.ActivationTimeout <= 0 {
		opts.ActivationTimeout = 45 * time.Minute
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = DefaultRetryPolicy
	}

	return &Orchestrator{
		resolver:    NewResolver(client, opts.Retry),
		versions:    NewVersionManager(client, opts.Retry),
		activations: NewActivationController(client, opts.PollInterval, opts.ActivationTimeout, opts.Retry),
	}
}

// Resolver exposes the property resolver for read-only lookups.
func (o *Orchestrator) Resolver() *Resolver {
	return o.resolver
}

// Run executes one deployment: resolve the property, land the rule tree
// on a working version, then activate per network in staging-first order.
//
// Staging gates production: if staging was requested and did not reach
// ACTIVE, production is reported NOT_ATTEMPTED for this run, so a version
// known broken on staging is never promoted. A run with neither flag set
// finishes after the version update and is a valid success.
//
// The returned result is always populated as far as the run got, even
// when err is non-nil, so callers can identify what was created.
func (o *Orchestrator) Run(ctx context.Context, req *domain.DeploymentRequest) (*domain.DeploymentResult, error) {
	res := &domain.DeploymentResult{
		Staging:      domain.NetworkOutcome{Network: domain.NetworkStaging, Outcome: domain.OutcomeNotRequested},
		Production:   domain.NetworkOutcome{Network: domain.NetworkProduction, Outcome: domain.OutcomeNotRequested},
		APIResponses: make(map[string]json.RawMessage),
	}
	if req.ActivateStaging {
		res.Staging.Outcome = domain.OutcomeNotAttempted
	}
	if req.ActivateProduction {
		res.Production.Outcome = domain.OutcomeNotAttempted
	}

	prop, err := o.resolver.Resolve(ctx, req.PropertyName)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	res.PropertyID = prop.PropertyID
	res.CurrentVersion = prop.ProductionVersion
	res.APIResponses["search"] = prop.Raw

	baseVersion := 0
	if prop.HasProduction {
		baseVersion = prop.ProductionVersion
	}

	wv, err := o.versions.EnsureWorkingVersion(ctx, prop.PropertyID, baseVersion, req.RuleTree, req.VersionNotes)
	if wv != nil {
		for k, v := range wv.Responses {
			res.APIResponses[k] = v
		}
		if wv.Version > 0 {
			res.NewVersion = strconv.Itoa(wv.Version)
		}
		res.Changed = wv.Created
	}
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	res.Changed = true

	if req.ActivateStaging {
		actRes, err := o.activations.Activate(ctx, prop.PropertyID, wv.Version, domain.NetworkStaging, req.VersionNotes)
		o.mergeActivation(res, actRes, domain.NetworkStaging)
		if err != nil {
			// Staging gates production for this run.
			res.Error = err.Error()
			return res, err
		}
	}

	if req.ActivateProduction {
		actRes, err := o.activations.Activate(ctx, prop.PropertyID, wv.Version, domain.NetworkProduction, req.VersionNotes)
		o.mergeActivation(res, actRes, domain.NetworkProduction)
		if err != nil {
			res.Error = err.Error()
			return res, err
		}
	}

	return res, nil
}

func (o *Orchestrator) mergeActivation(res *domain.DeploymentResult, actRes *ActivationResult, network domain.Network) {
	if actRes == nil {
		return
	}
	if network == domain.NetworkProduction {
		res.Production = actRes.Outcome
	} else {
		res.Staging = actRes.Outcome
	}
	for k, v := range actRes.Responses {
		res.APIResponses[k] = v
	}
}
