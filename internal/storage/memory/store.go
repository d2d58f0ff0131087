package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jaescalo/property-deployer/internal/domain"
)

// Store is an in-memory implementation of the storage interface for testing.
type Store struct {
	mu sync.RWMutex

	apiKeys     map[string]*domain.APIKey     // key: id
	deployments map[string]*domain.Deployment // key: id
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		apiKeys:     make(map[string]*domain.APIKey),
		deployments: make(map[string]*domain.Deployment),
	}
}

func (s *Store) Close() error { return nil }

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.apiKeys[key.ID]; exists {
		return domain.ErrAlreadyExists
	}
	for _, existing := range s.apiKeys {
		if existing.KeyHash == key.KeyHash {
			return domain.ErrAlreadyExists
		}
	}

	clone := *key
	s.apiKeys[key.ID] = &clone
	return nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, key := range s.apiKeys {
		if key.KeyHash == keyHash {
			clone := *key
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]*domain.APIKey, 0, len(s.apiKeys))
	for _, key := range s.apiKeys {
		clone := *key
		keys = append(keys, &clone)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].CreatedAt.Before(keys[j].CreatedAt)
	})
	return keys, nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.apiKeys[id]; !exists {
		return domain.ErrNotFound
	}
	delete(s.apiKeys, id)
	return nil
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, exists := s.apiKeys[id]
	if !exists {
		return domain.ErrNotFound
	}
	now := time.Now()
	key.LastUsedAt = &now
	return nil
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.apiKeys), nil
}

// ============================================
// Deployments
// ============================================

func (s *Store) CreateDeployment(ctx context.Context, dep *domain.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.deployments[dep.ID]; exists {
		return domain.ErrAlreadyExists
	}
	clone := *dep
	s.deployments[dep.ID] = &clone
	return nil
}

func (s *Store) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dep, exists := s.deployments[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	clone := *dep
	return &clone, nil
}

func (s *Store) ListDeployments(ctx context.Context, limit, offset int) ([]*domain.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(*domain.Deployment) bool { return true }, limit, offset), nil
}

func (s *Store) ListDeploymentsForProperty(ctx context.Context, propertyName string, limit, offset int) ([]*domain.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(func(d *domain.Deployment) bool {
		return d.PropertyName == propertyName
	}, limit, offset), nil
}

func (s *Store) listLocked(match func(*domain.Deployment) bool, limit, offset int) []*domain.Deployment {
	all := make([]*domain.Deployment, 0, len(s.deployments))
	for _, dep := range s.deployments {
		if match(dep) {
			clone := *dep
			all = append(all, &clone)
		}
	}
	// Newest first
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []*domain.Deployment{}
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

func (s *Store) UpdateDeployment(ctx context.Context, dep *domain.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.deployments[dep.ID]; !exists {
		return domain.ErrNotFound
	}
	clone := *dep
	s.deployments[dep.ID] = &clone
	return nil
}
