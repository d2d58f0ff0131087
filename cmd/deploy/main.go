// Command deploy runs a single property deployment and prints the result
// as JSON, for invocation from automation frameworks. The rule tree is
// read from ruletree/<name>.ruletree.json unless -rules overrides it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jaescalo/property-deployer/internal/config"
	"github.com/jaescalo/property-deployer/internal/domain"
	"github.com/jaescalo/property-deployer/internal/papi"
	"github.com/jaescalo/property-deployer/internal/service"
	"github.com/jaescalo/property-deployer/internal/validation"
)

// moduleResult mirrors the result contract of the automation module this
// command replaces: all fields present regardless of outcome.
type moduleResult struct {
	Changed        bool                       `json:"changed"`
	Failed         bool                       `json:"failed"`
	Msg            string                     `json:"msg,omitempty"`
	PropertyID     string                     `json:"propertyId"`
	CurrentVersion int                        `json:"current_version"`
	NewVersion     string                     `json:"new_version"`
	Staging        domain.NetworkOutcome      `json:"staging"`
	Production     domain.NetworkOutcome      `json:"production"`
	APIResponses   map[string]json.RawMessage `json:"api_responses,omitempty"`
}

func main() {
	var (
		name       = flag.String("name", "", "property name to update (required)")
		notes      = flag.String("notes", "", "version notes (required)")
		rulesPath  = flag.String("rules", "", "path to the rule tree JSON (default ruletree/<name>.ruletree.json)")
		staging    = flag.Bool("staging", false, "activate on the STAGING network")
		production = flag.Bool("production", false, "activate on the PRODUCTION network")
		check      = flag.Bool("check", false, "resolve only, make no changes")
	)
	flag.Parse()
	log.SetFlags(0)
	log.SetOutput(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		fail(fmt.Sprintf("loading configuration: %v", err), nil)
	}
	if err := cfg.Validate(); err != nil {
		fail(fmt.Sprintf("invalid configuration: %v", err), nil)
	}

	req := &domain.DeploymentRequest{
		PropertyName:       *name,
		VersionNotes:       *notes,
		ActivateStaging:    *staging,
		ActivateProduction: *production,
	}

	path := *rulesPath
	if path == "" && *name != "" {
		path = filepath.Join("ruletree", *name+".ruletree.json")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			fail(fmt.Sprintf("reading rule tree: %v", err), nil)
		}
		req.RuleTree = data
	}

	if errs := validation.ValidateDeploymentRequest(req); errs.HasErrors() {
		fail(errs.Error(), nil)
	}

	var client papi.PropertyClient
	if cfg.UseFileShim() {
		client, err = papi.NewShim(cfg.Edgegrid.FileShim)
	} else {
		client, err = papi.New(cfg.Edgegrid.EdgercPath, cfg.Edgegrid.EdgercSection, papi.Options{
			AccountKey:   cfg.Edgegrid.AccountKey,
			NotifyEmails: cfg.Deploy.GetNotifyEmails(),
			AckWarnings:  cfg.Deploy.AckWarnings,
		})
	}
	if err != nil {
		fail(fmt.Sprintf("initializing property API client: %v", err), nil)
	}

	orch := service.NewOrchestrator(client, service.Options{
		PollInterval:      cfg.Deploy.PollInterval,
		ActivationTimeout: cfg.Deploy.ActivationTimeout,
		Retry: service.RetryPolicy{
			Attempts: cfg.Deploy.RetryAttempts,
			Base:     cfg.Deploy.RetryBase,
		},
	})

	ctx := context.Background()

	if *check {
		// Check mode: report current state without touching the remote system.
		summary, err := orch.Resolver().Resolve(ctx, req.PropertyName)
		if err != nil {
			fail(err.Error(), nil)
		}
		emit(&moduleResult{
			PropertyID:     summary.PropertyID,
			CurrentVersion: summary.ProductionVersion,
			Staging:        domain.NetworkOutcome{Network: domain.NetworkStaging, Outcome: domain.OutcomeNotAttempted},
			Production:     domain.NetworkOutcome{Network: domain.NetworkProduction, Outcome: domain.OutcomeNotAttempted},
		})
		return
	}

	result, runErr := orch.Run(ctx, req)
	if runErr != nil {
		fail(runErr.Error(), result)
	}
	emit(resultToModule(result, false, ""))
}

func resultToModule(res *domain.DeploymentResult, failed bool, msg string) *moduleResult {
	out := &moduleResult{Failed: failed, Msg: msg}
	if res != nil {
		out.Changed = res.Changed
		out.PropertyID = res.PropertyID
		out.CurrentVersion = res.CurrentVersion
		out.NewVersion = res.NewVersion
		out.Staging = res.Staging
		out.Production = res.Production
		out.APIResponses = res.APIResponses
	}
	return out
}

func emit(out *moduleResult) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encoding result: %v", err)
	}
}

func fail(msg string, res *domain.DeploymentResult) {
	emit(resultToModule(res, true, msg))
	os.Exit(1)
}
