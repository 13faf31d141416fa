package training

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/zeu5/hospitalbot-rl/types"
)

type envCounters struct {
	lock           sync.Mutex
	made           int
	resets         int
	steps          int
	stepsAfterDone int
}

func (c *envCounters) snapshot() (int, int, int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.resets, c.steps, c.stepsAfterDone
}

// corridorEnv walks five steps to the end of a corridor, one reward per step
type corridorEnv struct {
	counters *envCounters
	pos      int
	done     bool
}

const corridorLength = 5

func corridorConstructor(counters *envCounters) types.EnvConstructor {
	return func() (types.Environment, error) {
		counters.lock.Lock()
		counters.made++
		counters.lock.Unlock()
		return &corridorEnv{counters: counters, done: true}, nil
	}
}

func (c *corridorEnv) obs() types.Observation {
	return types.Observation{"agent": {float64(c.pos), 0}}
}

func (c *corridorEnv) Reset() (types.Observation, error) {
	c.counters.lock.Lock()
	c.counters.resets++
	c.counters.lock.Unlock()
	c.pos, c.done = 0, false
	return c.obs(), nil
}

func (c *corridorEnv) Step(types.Action) (*types.Transition, error) {
	c.counters.lock.Lock()
	defer c.counters.lock.Unlock()
	if c.done {
		c.counters.stepsAfterDone++
		return nil, errors.New("step on a finished episode")
	}
	c.counters.steps++
	c.pos++
	c.done = c.pos >= corridorLength
	return &types.Transition{Observation: c.obs(), Reward: 1, Done: c.done, Info: types.Info{}}, nil
}

func (c *corridorEnv) ObservationSpace() *types.DictSpace {
	return types.NewDictSpace(map[string]*types.Box{"agent": types.NewUniformBox(0, 10, 2)})
}
func (c *corridorEnv) ActionSpace() *types.Box { return types.NewUniformBox(-1, 1, 2) }
func (c *corridorEnv) Close() error            { return nil }
