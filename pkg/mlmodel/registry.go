package mlmodel

import (
	"fmt"
	"sort"
	"sync"

	"github.com/modelsite/modelsite-go/pkg/models"
)

// Registry maps model families to their runners
type Registry struct {
	mu      sync.RWMutex
	runners map[models.ModelFamily]Runner
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{runners: make(map[models.ModelFamily]Runner)}
}

// Register adds a runner. Registering a family twice is an error.
func (r *Registry) Register(runner Runner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	family := runner.Family()
	if family == "" {
		return fmt.Errorf("runner has no model family")
	}
	if _, exists := r.runners[family]; exists {
		return fmt.Errorf("model family %s is already registered", family)
	}
	r.runners[family] = runner
	return nil
}

// Get returns the runner for family
func (r *Registry) Get(family models.ModelFamily) (Runner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runner, ok := r.runners[family]
	if !ok {
		return nil, &models.Error{
			Code: models.ENotFound,
			Msg:  fmt.Sprintf("Unknown model family: %s", family),
		}
	}
	return runner, nil
}

// Families lists the registered families in sorted order
func (r *Registry) Families() []models.ModelFamily {
	r.mu.RLock()
	defer r.mu.RUnlock()

	families := make([]models.ModelFamily, 0, len(r.runners))
	for family := range r.runners {
		families = append(families, family)
	}
	sort.Slice(families, func(i, j int) bool { return families[i] < families[j] })
	return families
}

// DefaultRegistry returns a registry holding every built-in model family
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, runner := range []Runner{
		&LinearRegressionRunner{},
		&LogisticRegressionRunner{},
		&DecisionTreeRunner{},
		&RandomForestRunner{},
		&BaggingRunner{},
		&SVMRunner{},
		&NeuralNetworkRunner{},
	} {
		if err := r.Register(runner); err != nil {
			panic(err)
		}
	}
	return r
}
