// Package hospitalbot is a kinematic model of the hospital ward the robot is
// trained in: a rectangular room with circular obstacles (beds, trolleys), a
// differential drive robot with a planar laser and a target to reach.
package hospitalbot

import (
	"math"

	"github.com/pkg/errors"
	"github.com/zeu5/hospitalbot-rl/types"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	EnvID           = "HospitalBotEnv-v0"
	MaxEpisodeSteps = 100

	// observation components
	AgentKey = "agent"
	LaserKey = "laser"

	GoalReward      = 1000.0
	CollisionReward = -100.0
)

var ErrEpisodeDone = errors.New("episode is done, call Reset")

type Point struct {
	X float64 `mapstructure:"x" yaml:"x"`
	Y float64 `mapstructure:"y" yaml:"y"`
}

func (p Point) Dist(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

type Pose struct {
	Point `mapstructure:",squash" yaml:",inline"`
	Theta float64 `mapstructure:"theta" yaml:"theta"`
}

type Obstacle struct {
	Center Point   `mapstructure:"center" yaml:"center"`
	Radius float64 `mapstructure:"radius" yaml:"radius"`
}

// Env is the hospital robot environment
type Env struct {
	config Config
	rand   rand.Source

	pose         Pose
	target       Point
	prevDistance float64
	steps        int
	done         bool

	obsSpace *types.DictSpace
	actSpace *types.Box
}

var _ types.Environment = &Env{}

func NewEnv(config Config) (*Env, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	laserLow := make([]float64, config.LaserBeams)
	laserHigh := make([]float64, config.LaserBeams)
	for i := range laserHigh {
		laserHigh[i] = config.LaserRange
	}
	actSpace := types.NewUniformBox(-1, 1, 2)
	actSpace.Seed(config.Seed + 1)

	return &Env{
		config: config,
		rand:   rand.NewSource(config.Seed),
		pose:   config.Start,
		target: config.Target,
		done:   true,
		obsSpace: types.NewDictSpace(map[string]*types.Box{
			AgentKey: types.NewBox([]float64{0, -math.Pi}, []float64{math.Hypot(config.Width, config.Height), math.Pi}),
			LaserKey: types.NewBox(laserLow, laserHigh),
		}),
		actSpace: actSpace,
	}, nil
}

// Constructor returns the entry point used to register the environment
func Constructor(config Config) types.EnvConstructor {
	seed := config.Seed
	return func() (types.Environment, error) {
		c := config
		c.Seed = seed
		// every instance gets its own stream
		seed++
		return NewEnv(c)
	}
}

// Register adds HospitalBotEnv-v0 with a 100 step cap to the registry.
// entryPoint is usually Constructor(config).
func Register(registry *types.Registry, entryPoint types.EnvConstructor) error {
	return registry.Register(types.EnvSpec{
		ID:              EnvID,
		EntryPoint:      entryPoint,
		MaxEpisodeSteps: MaxEpisodeSteps,
	})
}

func (e *Env) ObservationSpace() *types.DictSpace { return e.obsSpace }
func (e *Env) ActionSpace() *types.Box            { return e.actSpace }
func (e *Env) Close() error                       { return nil }

func (e *Env) Pose() Pose    { return e.pose }
func (e *Env) Target() Point { return e.target }

func (e *Env) Reset() (types.Observation, error) {
	e.pose = e.config.Start
	if e.config.RandomTarget {
		e.target = e.sampleTarget()
	} else {
		e.target = e.config.Target
	}
	e.steps = 0
	e.done = false
	e.prevDistance = e.pose.Dist(e.target)
	return e.observation(), nil
}

// Step converts the normalized action into linear and angular velocity and
// integrates the robot pose over one time step
func (e *Env) Step(a types.Action) (*types.Transition, error) {
	if e.done {
		return nil, ErrEpisodeDone
	}
	if len(a) != e.actSpace.Dims() {
		return nil, errors.Errorf("expected action of size %d, got %d", e.actSpace.Dims(), len(a))
	}
	a = e.actSpace.Clip(a)

	linear := (a[0] + 1) / 2 * e.config.MaxLinearVel
	angular := a[1] * e.config.MaxAngularVel
	dt := e.config.TimeStep

	e.pose.Theta = normalizeAngle(e.pose.Theta + angular*dt)
	e.pose.X += linear * math.Cos(e.pose.Theta) * dt
	e.pose.Y += linear * math.Sin(e.pose.Theta) * dt
	e.steps++

	obs := e.observation()
	distance := e.pose.Dist(e.target)
	reward := e.config.ProgressScale * (e.prevDistance - distance)
	e.prevDistance = distance

	info := types.Info{"distance": distance}
	switch {
	case distance <= e.config.GoalRadius:
		reward += GoalReward
		e.done = true
		info["goal"] = true
	case e.collided(obs[LaserKey]):
		reward += CollisionReward
		e.done = true
		info["collision"] = true
	}

	return &types.Transition{
		Observation: obs,
		Reward:      reward,
		Done:        e.done,
		Info:        info,
	}, nil
}

func (e *Env) collided(laser []float64) bool {
	if !e.inside(e.pose.Point, 0) {
		return true
	}
	for _, r := range laser {
		if r <= e.config.CollisionDistance {
			return true
		}
	}
	return false
}

func (e *Env) inside(p Point, margin float64) bool {
	return p.X >= margin && p.X <= e.config.Width-margin && p.Y >= margin && p.Y <= e.config.Height-margin
}

func (e *Env) observation() types.Observation {
	distance := e.pose.Dist(e.target)
	heading := math.Atan2(e.target.Y-e.pose.Y, e.target.X-e.pose.X)
	maxDist := e.obsSpace.Spaces[AgentKey].High[0]

	return types.Observation{
		AgentKey: {math.Min(distance, maxDist), normalizeAngle(heading - e.pose.Theta)},
		LaserKey: e.scan(),
	}
}

// scan casts LaserBeams rays evenly spread around the robot
func (e *Env) scan() []float64 {
	beams := e.config.LaserBeams
	out := make([]float64, beams)
	for i := 0; i < beams; i++ {
		angle := e.pose.Theta + 2*math.Pi*float64(i)/float64(beams)
		out[i] = e.castRay(e.pose.Point, angle)
	}
	return out
}

func (e *Env) castRay(from Point, angle float64) float64 {
	maxRange := e.config.LaserRange
	if !e.inside(from, 0) {
		return 0
	}
	dx, dy := math.Cos(angle), math.Sin(angle)
	best := maxRange

	// walls
	if dx > 0 {
		best = math.Min(best, (e.config.Width-from.X)/dx)
	} else if dx < 0 {
		best = math.Min(best, -from.X/dx)
	}
	if dy > 0 {
		best = math.Min(best, (e.config.Height-from.Y)/dy)
	} else if dy < 0 {
		best = math.Min(best, -from.Y/dy)
	}

	// obstacles, ray-circle intersection
	for _, o := range e.config.Obstacles {
		fx, fy := from.X-o.Center.X, from.Y-o.Center.Y
		b := fx*dx + fy*dy
		c := fx*fx + fy*fy - o.Radius*o.Radius
		if c <= 0 {
			return 0
		}
		disc := b*b - c
		if disc < 0 {
			continue
		}
		if t := -b - math.Sqrt(disc); t >= 0 {
			best = math.Min(best, t)
		}
	}
	return math.Max(0, best)
}

// sampleTarget picks a free point in the room away from the start pose
func (e *Env) sampleTarget() Point {
	margin := e.config.TargetMargin
	xs := distuv.Uniform{Min: margin, Max: e.config.Width - margin, Src: e.rand}
	ys := distuv.Uniform{Min: margin, Max: e.config.Height - margin, Src: e.rand}
	for attempt := 0; attempt < 100; attempt++ {
		p := Point{X: xs.Rand(), Y: ys.Rand()}
		if p.Dist(e.config.Start.Point) < e.config.MinTargetDistance {
			continue
		}
		if e.free(p, margin) {
			return p
		}
	}
	return e.config.Target
}

func (e *Env) free(p Point, margin float64) bool {
	for _, o := range e.config.Obstacles {
		if p.Dist(o.Center) < o.Radius+margin {
			return false
		}
	}
	return true
}

func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
