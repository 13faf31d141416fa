package types

// Observation of the environment, one vector per named component
// (e.g. "agent" and "laser" for the hospital robot)
type Observation map[string][]float64

// Copy returns a deep copy of the observation
func (o Observation) Copy() Observation {
	out := make(Observation, len(o))
	for k, v := range o {
		c := make([]float64, len(v))
		copy(c, v)
		out[k] = c
	}
	return out
}

// Action taken by the agent, one value per action dimension
type Action []float64

// Info carries auxiliary diagnostic values returned by Step
type Info map[string]interface{}

// Transition is the outcome of a single environment step
type Transition struct {
	Observation Observation
	Reward      float64
	Done        bool
	Info        Info
}

// Environment that RL models interact with
type Environment interface {
	// Reset called at the start of each episode
	Reset() (Observation, error)
	// Step applies the action and returns the resulting transition
	Step(Action) (*Transition, error)
	// ObservationSpace describes the valid observations
	ObservationSpace() *DictSpace
	// ActionSpace describes the valid actions
	ActionSpace() *Box
	// Close releases the resources held by the environment
	Close() error
}

// Wrapper is an environment that decorates another one
type Wrapper interface {
	Environment
	Unwrap() Environment
}

// EnvConstructor builds a fresh environment instance
type EnvConstructor func() (Environment, error)

// Unwrapped returns the innermost environment
func Unwrapped(env Environment) Environment {
	for {
		w, ok := env.(Wrapper)
		if !ok {
			return env
		}
		env = w.Unwrap()
	}
}
