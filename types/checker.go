package types

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

var ErrCheckFailed = errors.New("environment check failed")

// CheckError lists every problem found by CheckEnv
type CheckError struct {
	Problems []string
}

func (c *CheckError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCheckFailed.Error(), strings.Join(c.Problems, "; "))
}

func (c *CheckError) Unwrap() error {
	return ErrCheckFailed
}

type envChecker struct {
	problems []string
}

func (c *envChecker) fail(format string, args ...interface{}) {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
}

// CheckEnv validates that env follows the Environment contract: well formed
// spaces, observations inside the observation space after Reset and Step,
// finite rewards. Non fatal findings are logged as warnings.
// The environment is reset at the end of the check.
func CheckEnv(env Environment, logger log.Logger) error {
	c := &envChecker{problems: make([]string, 0)}

	obsSpace := env.ObservationSpace()
	actSpace := env.ActionSpace()
	if obsSpace == nil || len(obsSpace.Spaces) == 0 {
		c.fail("observation space is empty")
	} else {
		for _, k := range obsSpace.Keys() {
			c.checkBox("observation space "+k, obsSpace.Spaces[k])
		}
	}
	if actSpace == nil {
		c.fail("action space is nil")
	} else {
		before := len(c.problems)
		c.checkBox("action space", actSpace)
		if len(c.problems) == before && !c.symmetric(actSpace) {
			level.Warn(logger).Log("msg", "action space is not symmetric and normalized, rescale it to [-1, 1]", "space", actSpace.String())
		}
	}
	if len(c.problems) > 0 {
		return &CheckError{Problems: c.problems}
	}

	obs, err := env.Reset()
	if err != nil {
		return errors.Wrap(err, "reset during check")
	}
	c.checkObservation("reset", obsSpace, obs)

	tr, err := env.Step(actSpace.Sample())
	if err != nil {
		return errors.Wrap(err, "step during check")
	}
	if tr == nil {
		c.fail("step returned no transition")
	} else {
		c.checkObservation("step", obsSpace, tr.Observation)
		if math.IsNaN(tr.Reward) || math.IsInf(tr.Reward, 0) {
			c.fail("step reward is not finite: %v", tr.Reward)
		}
	}

	if _, err := env.Reset(); err != nil {
		return errors.Wrap(err, "reset after check")
	}
	if len(c.problems) > 0 {
		return &CheckError{Problems: c.problems}
	}
	return nil
}

func (c *envChecker) checkBox(name string, b *Box) {
	if b == nil {
		c.fail("%s is nil", name)
		return
	}
	if len(b.Low) == 0 || len(b.Low) != len(b.High) {
		c.fail("%s has mismatched bounds (%d low, %d high)", name, len(b.Low), len(b.High))
		return
	}
	for i := range b.Low {
		if math.IsNaN(b.Low[i]) || math.IsNaN(b.High[i]) {
			c.fail("%s has NaN bounds at %d", name, i)
		} else if b.Low[i] > b.High[i] {
			c.fail("%s low > high at %d", name, i)
		}
	}
}

func (c *envChecker) symmetric(b *Box) bool {
	for i := range b.Low {
		if b.Low[i] != -b.High[i] || math.Abs(b.High[i]) != 1 {
			return false
		}
	}
	return true
}

func (c *envChecker) checkObservation(source string, space *DictSpace, obs Observation) {
	if obs == nil {
		c.fail("%s returned a nil observation", source)
		return
	}
	for _, k := range space.Keys() {
		v, ok := obs[k]
		if !ok {
			c.fail("%s observation is missing key %q", source, k)
			continue
		}
		if !space.Spaces[k].Contains(v) {
			c.fail("%s observation %q = %v is not contained in %s", source, k, v, space.Spaces[k].String())
		}
	}
	for k := range obs {
		if _, ok := space.Spaces[k]; !ok {
			c.fail("%s observation has unexpected key %q", source, k)
		}
	}
}
