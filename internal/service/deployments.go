package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jaescalo/property-deployer/internal/domain"
	"github.com/jaescalo/property-deployer/internal/storage"
)

// DeploymentService persists deployment runs and executes them through
// the orchestrator. Runs are long (activations poll for up to an hour),
// so submission is asynchronous and callers poll the stored record.
type DeploymentService struct {
	store storage.Storage
	orch  *Orchestrator
	// runTimeout bounds one whole run; generous enough for two polled
	// activations back to back.
	runTimeout time.Duration
}

// NewDeploymentService creates a new DeploymentService.
func NewDeploymentService(store storage.Storage, orch *Orchestrator, runTimeout time.Duration) *DeploymentService {
	if runTimeout <= 0 {
		runTimeout = 2 * time.Hour
	}
	return &DeploymentService{store: store, orch: orch, runTimeout: runTimeout}
}

// Submit records the deployment and starts executing it in the
// background. The returned record is in pending status.
func (s *DeploymentService) Submit(ctx context.Context, req *domain.DeploymentRequest) (*domain.Deployment, error) {
	dep := &domain.Deployment{
		ID:                 uuid.New().String(),
		PropertyName:       req.PropertyName,
		VersionNotes:       req.VersionNotes,
		ActivateStaging:    req.ActivateStaging,
		ActivateProduction: req.ActivateProduction,
		Status:             domain.DeploymentPending,
		StagingOutcome:     outcomeForRequest(req.ActivateStaging),
		ProductionOutcome:  outcomeForRequest(req.ActivateProduction),
		CreatedAt:          time.Now(),
	}
	if err := s.store.CreateDeployment(ctx, dep); err != nil {
		return nil, err
	}

	// The run outlives the HTTP request that submitted it.
	go s.run(dep.ID, req)

	return dep, nil
}

// Run executes the deployment synchronously and returns the finished
// record. Used by callers that want to block, like the CLI.
func (s *DeploymentService) Run(ctx context.Context, req *domain.DeploymentRequest) (*domain.Deployment, *domain.DeploymentResult, error) {
	dep := &domain.Deployment{
		ID:                 uuid.New().String(),
		PropertyName:       req.PropertyName,
		VersionNotes:       req.VersionNotes,
		ActivateStaging:    req.ActivateStaging,
		ActivateProduction: req.ActivateProduction,
		Status:             domain.DeploymentPending,
		StagingOutcome:     outcomeForRequest(req.ActivateStaging),
		ProductionOutcome:  outcomeForRequest(req.ActivateProduction),
		CreatedAt:          time.Now(),
	}
	if err := s.store.CreateDeployment(ctx, dep); err != nil {
		return nil, nil, err
	}

	result, err := s.execute(ctx, dep, req)
	return dep, result, err
}

// Get returns one deployment record.
func (s *DeploymentService) Get(ctx context.Context, id string) (*domain.Deployment, error) {
	return s.store.GetDeployment(ctx, id)
}

// List returns deployment records, newest first.
func (s *DeploymentService) List(ctx context.Context, limit, offset int) ([]*domain.Deployment, error) {
	return s.store.ListDeployments(ctx, limit, offset)
}

func (s *DeploymentService) run(id string, req *domain.DeploymentRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	dep, err := s.store.GetDeployment(ctx, id)
	if err != nil {
		log.Printf("Deployment %s: loading record failed: %v", id, err)
		return
	}
	if _, err := s.execute(ctx, dep, req); err != nil {
		log.Printf("Deployment %s: %v", id, err)
	}
}

func (s *DeploymentService) execute(ctx context.Context, dep *domain.Deployment, req *domain.DeploymentRequest) (*domain.DeploymentResult, error) {
	now := time.Now()
	dep.Status = domain.DeploymentRunning
	dep.StartedAt = &now
	if err := s.store.UpdateDeployment(ctx, dep); err != nil {
		log.Printf("Deployment %s: marking running failed: %v", dep.ID, err)
	}

	result, runErr := s.orch.Run(ctx, req)

	dep.ApplyResult(result)
	dep.Status = deploymentStatus(result, runErr)
	finished := time.Now()
	dep.FinishedAt = &finished
	if err := s.store.UpdateDeployment(ctx, dep); err != nil {
		log.Printf("Deployment %s: recording result failed: %v", dep.ID, err)
	}

	return result, runErr
}

// deploymentStatus classifies the run: partial when the version update
// landed but the run still failed (a requested activation did not reach
// ACTIVE), failed when not even a version carries the update.
func deploymentStatus(result *domain.DeploymentResult, runErr error) string {
	if runErr == nil {
		return domain.DeploymentSucceeded
	}
	if result != nil && result.NewVersion != "" && result.Changed {
		return domain.DeploymentPartial
	}
	return domain.DeploymentFailed
}

func outcomeForRequest(requested bool) string {
	if requested {
		return domain.OutcomeNotAttempted
	}
	return domain.OutcomeNotRequested
}
