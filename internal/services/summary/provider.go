package summary

import (
	"context"
	"errors"

	"SignalForge/internal/domain/models"
)

var (
	ErrProviderUnavailable = errors.New("llm provider unavailable")
	ErrEmptyCompletion     = errors.New("llm returned empty text")
)

// Provider is one LLM backend.
type Provider interface {
	Name() string
	Model() string
	Available() bool
	Complete(ctx context.Context, prompt string) (string, error)
}

// Backend names a provider slot in the router.
type Backend string

const (
	BackendRemote   Backend = "remote"
	BackendEmbedded Backend = "embedded"
)

// RouteFor is the routing policy: stocks go to the hosted model, every other
// category to the embedded one.
func RouteFor(category models.Category) Backend {
	if category == models.CategoryStocks {
		return BackendRemote
	}
	return BackendEmbedded
}

// Router resolves the provider for a category.
type Router struct {
	providers map[Backend]Provider
	policy    func(models.Category) Backend
}

func NewRouter(remote, embedded Provider) *Router {
	r := &Router{providers: make(map[Backend]Provider), policy: RouteFor}
	if remote != nil {
		r.providers[BackendRemote] = remote
	}
	if embedded != nil {
		r.providers[BackendEmbedded] = embedded
	}
	return r
}

// Select returns the routed provider, or nil when none is registered.
func (r *Router) Select(category models.Category) Provider {
	return r.providers[r.policy(category)]
}
