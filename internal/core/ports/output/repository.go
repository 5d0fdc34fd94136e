package ports

import (
	"context"

	"llm-engine-service/internal/core/domain"
)

// ============================================================================
// Paging
// ============================================================================

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizePage applies the default and maximum page size and drops negative offsets
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ============================================================================
// Fine-Tune Repository
// ============================================================================

// FineTuneFilter defines filters for listing fine-tunes
type FineTuneFilter struct {
	Owner     string
	Status    string
	BaseModel string
	SortBy    string
	Order     string
	Limit     int
	Offset    int
}

// FineTuneRepository defines the contract for fine-tune persistence
type FineTuneRepository interface {
	// Create stores a new fine-tune
	Create(ctx context.Context, ft *domain.FineTune) error

	// GetByID retrieves a fine-tune owned by owner
	GetByID(ctx context.Context, owner, id string) (*domain.FineTune, error)

	// GetByIDAny retrieves a fine-tune regardless of owner (workers only)
	GetByIDAny(ctx context.Context, id string) (*domain.FineTune, error)

	// Update persists status and result fields. When expected is non-empty the
	// row is only updated if its stored status still equals expected.
	Update(ctx context.Context, ft *domain.FineTune, expected domain.FineTuneStatus) error

	// List lists fine-tunes with filtering
	List(ctx context.Context, filter FineTuneFilter) ([]*domain.FineTune, int, error)

	// ListByStatus returns up to limit fine-tunes in any of the given statuses, oldest first
	ListByStatus(ctx context.Context, statuses []domain.FineTuneStatus, limit int) ([]*domain.FineTune, error)

	// ListUnregistered returns up to limit successful fine-tunes whose model has no endpoint yet
	ListUnregistered(ctx context.Context, limit int) ([]*domain.FineTune, error)
}

// ============================================================================
// Model Endpoint Repository
// ============================================================================

// ModelEndpointFilter defines filters for listing model endpoints
type ModelEndpointFilter struct {
	Owner         string
	IncludePublic bool
	ModelName     string
	Status        string
	SortBy        string
	Order         string
	Limit         int
	Offset        int
}

// ModelEndpointRepository defines the contract for model endpoint persistence
type ModelEndpointRepository interface {
	// Create stores a new model endpoint
	Create(ctx context.Context, endpoint *domain.ModelEndpoint) error

	// GetByID retrieves a model endpoint by ID regardless of owner
	GetByID(ctx context.Context, id string) (*domain.ModelEndpoint, error)

	// GetByName retrieves an endpoint owned by owner, falling back to a public
	// endpoint of the same name
	GetByName(ctx context.Context, owner, name string) (*domain.ModelEndpoint, error)

	// Update persists a model endpoint
	Update(ctx context.Context, endpoint *domain.ModelEndpoint) error

	// Delete removes a model endpoint
	Delete(ctx context.Context, id string) error

	// List lists model endpoints with filtering
	List(ctx context.Context, filter ModelEndpointFilter) ([]*domain.ModelEndpoint, int, error)
}
