package types

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrAlreadyRegistered = errors.New("environment id already registered")
	ErrUnknownEnv        = errors.New("environment id not registered")
)

// ConflictPolicy decides what happens when an id is registered twice
type ConflictPolicy int

const (
	// ConflictReject returns ErrAlreadyRegistered
	ConflictReject ConflictPolicy = iota
	// ConflictOverwrite replaces the previous spec
	ConflictOverwrite
)

// EnvSpec describes how to build a registered environment
type EnvSpec struct {
	ID         string
	EntryPoint EnvConstructor
	// MaxEpisodeSteps caps the episode length, 0 means no cap
	MaxEpisodeSteps int
}

// Registry maps environment ids to their spec
type Registry struct {
	policy ConflictPolicy
	lock   *sync.Mutex
	specs  map[string]EnvSpec
}

func NewRegistry(policy ConflictPolicy) *Registry {
	return &Registry{
		policy: policy,
		lock:   new(sync.Mutex),
		specs:  make(map[string]EnvSpec),
	}
}

// Register adds the spec under its id, honouring the conflict policy
func (r *Registry) Register(spec EnvSpec) error {
	if spec.ID == "" {
		return errors.New("environment id cannot be empty")
	}
	if spec.EntryPoint == nil {
		return errors.Errorf("environment %s has no entry point", spec.ID)
	}
	if spec.MaxEpisodeSteps < 0 {
		return errors.Errorf("environment %s: negative max episode steps", spec.ID)
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.specs[spec.ID]; ok && r.policy == ConflictReject {
		return errors.Wrap(ErrAlreadyRegistered, spec.ID)
	}
	r.specs[spec.ID] = spec
	return nil
}

func (r *Registry) Spec(id string) (EnvSpec, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	spec, ok := r.specs[id]
	return spec, ok
}

// Make constructs the environment registered under id, wrapped in a
// TimeLimit when the spec caps the episode length
func (r *Registry) Make(id string) (Environment, error) {
	spec, ok := r.Spec(id)
	if !ok {
		return nil, errors.Wrap(ErrUnknownEnv, id)
	}
	env, err := spec.EntryPoint()
	if err != nil {
		return nil, errors.Wrapf(err, "constructing %s", id)
	}
	if spec.MaxEpisodeSteps > 0 {
		env = NewTimeLimit(env, spec.MaxEpisodeSteps)
	}
	return env, nil
}
