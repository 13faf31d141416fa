package hospitalbot

import "github.com/pkg/errors"

// Config of the ward and the robot
type Config struct {
	Width     float64    `mapstructure:"width" yaml:"width"`
	Height    float64    `mapstructure:"height" yaml:"height"`
	Obstacles []Obstacle `mapstructure:"obstacles" yaml:"obstacles"`

	Start  Pose  `mapstructure:"start" yaml:"start"`
	Target Point `mapstructure:"target" yaml:"target"`
	// RandomTarget draws a new target at every reset
	RandomTarget      bool    `mapstructure:"random_target" yaml:"random_target"`
	TargetMargin      float64 `mapstructure:"target_margin" yaml:"target_margin"`
	MinTargetDistance float64 `mapstructure:"min_target_distance" yaml:"min_target_distance"`

	LaserBeams        int     `mapstructure:"laser_beams" yaml:"laser_beams"`
	LaserRange        float64 `mapstructure:"laser_range" yaml:"laser_range"`
	MaxLinearVel      float64 `mapstructure:"max_linear_vel" yaml:"max_linear_vel"`
	MaxAngularVel     float64 `mapstructure:"max_angular_vel" yaml:"max_angular_vel"`
	TimeStep          float64 `mapstructure:"time_step" yaml:"time_step"`
	GoalRadius        float64 `mapstructure:"goal_radius" yaml:"goal_radius"`
	CollisionDistance float64 `mapstructure:"collision_distance" yaml:"collision_distance"`
	ProgressScale     float64 `mapstructure:"progress_scale" yaml:"progress_scale"`

	Seed uint64 `mapstructure:"seed" yaml:"seed"`
}

// DefaultConfig is a 10m x 8m ward with four beds
func DefaultConfig() Config {
	return Config{
		Width:  10,
		Height: 8,
		Obstacles: []Obstacle{
			{Center: Point{X: 3, Y: 2.5}, Radius: 0.6},
			{Center: Point{X: 3, Y: 5.5}, Radius: 0.6},
			{Center: Point{X: 7, Y: 2.5}, Radius: 0.6},
			{Center: Point{X: 7, Y: 5.5}, Radius: 0.6},
		},
		Start:             Pose{Point: Point{X: 1, Y: 1}, Theta: 0},
		Target:            Point{X: 8.5, Y: 6.5},
		RandomTarget:      true,
		TargetMargin:      0.6,
		MinTargetDistance: 1.5,
		LaserBeams:        12,
		LaserRange:        3.5,
		MaxLinearVel:      0.5,
		MaxAngularVel:     1.5,
		TimeStep:          0.5,
		GoalRadius:        0.35,
		CollisionDistance: 0.2,
		ProgressScale:     10,
	}
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Errorf("invalid room size %vx%v", c.Width, c.Height)
	}
	if c.LaserBeams <= 0 || c.LaserRange <= 0 {
		return errors.New("laser needs at least one beam and a positive range")
	}
	if c.TimeStep <= 0 {
		return errors.New("time step must be positive")
	}
	if c.TargetMargin*2 >= c.Width || c.TargetMargin*2 >= c.Height {
		return errors.New("target margin leaves no free space")
	}
	start := c.Start.Point
	if start.X <= 0 || start.X >= c.Width || start.Y <= 0 || start.Y >= c.Height {
		return errors.Errorf("start position (%v, %v) is outside the room", start.X, start.Y)
	}
	return nil
}
