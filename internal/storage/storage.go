package storage

import (
	"context"

	"github.com/jaescalo/property-deployer/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// API Keys
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error)
	DeleteAPIKey(ctx context.Context, id string) error
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
	CountAPIKeys(ctx context.Context) (int, error)

	// Deployments
	CreateDeployment(ctx context.Context, dep *domain.Deployment) error
	GetDeployment(ctx context.Context, id string) (*domain.Deployment, error)
	ListDeployments(ctx context.Context, limit, offset int) ([]*domain.Deployment, error)
	ListDeploymentsForProperty(ctx context.Context, propertyName string, limit, offset int) ([]*domain.Deployment, error)
	UpdateDeployment(ctx context.Context, dep *domain.Deployment) error
}
