package auth

import (
	"slices"

	"github.com/danielkropka/social-flow-sub001/internal/models"
)

// Registry holds the exchangers of the configured providers.
type Registry struct {
	exchangers map[models.Provider]Exchanger
}

// NewRegistry indexes exchangers by provider. A later exchanger for the
// same provider replaces an earlier one.
func NewRegistry(exchangers ...Exchanger) *Registry {
	r := &Registry{exchangers: make(map[models.Provider]Exchanger, len(exchangers))}
	for _, ex := range exchangers {
		r.exchangers[ex.Provider()] = ex
	}
	return r
}

// Get returns the exchanger for p, if configured.
func (r *Registry) Get(p models.Provider) (Exchanger, bool) {
	ex, ok := r.exchangers[p]
	return ex, ok
}

// Providers lists the configured providers in a stable order.
func (r *Registry) Providers() []models.Provider {
	out := make([]models.Provider, 0, len(r.exchangers))
	for p := range r.exchangers {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
