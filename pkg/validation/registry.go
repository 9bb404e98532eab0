package validation

import (
	"log/slog"
	"sync"

	"github.com/jwebster45206/story-arbiter/pkg/character"
	"github.com/jwebster45206/story-arbiter/pkg/intent"
)

// Registry maps each intent to at most one validator. It is safe for
// concurrent use and validators may be replaced at runtime.
type Registry struct {
	mu         sync.RWMutex
	validators map[intent.Intent]Validator
}

func NewRegistry() *Registry {
	return &Registry{validators: make(map[intent.Intent]Validator)}
}

// NewDefaultRegistry wires the combat and action validators against gateway
func NewDefaultRegistry(gateway character.Gateway, logger *slog.Logger) *Registry {
	r := NewRegistry()
	r.Register(intent.Combat, NewCombatValidator(gateway, logger))
	r.Register(intent.Action, NewActionValidator(gateway, logger))
	return r
}

// Register sets the validator for i, replacing any existing one.
// A nil validator removes the registration.
func (r *Registry) Register(i intent.Intent, v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v == nil {
		delete(r.validators, i)
		return
	}
	r.validators[i] = v
}

// Unregister removes the validator for i
func (r *Registry) Unregister(i intent.Intent) {
	r.Register(i, nil)
}

// Get returns the validator for i, if any
func (r *Registry) Get(i intent.Intent) (Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[i]
	return v, ok
}
