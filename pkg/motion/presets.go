package motion

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Neutral is the arm pose in front of the robot that every flight starts
// from and returns to.
var Neutral = Waypoint{X: 0.65, Y: 0.0, Z: 0.5}

// Box envelope the flight stays inside, in the YZ plane at Neutral.X.
const (
	BoxHalfWidth  = 0.25
	BoxHalfHeight = 0.25
)

// BoxCorners returns the four edge points of the flight envelope:
// left, right, top, bottom.
func BoxCorners() []Waypoint {
	return []Waypoint{
		{X: Neutral.X, Y: Neutral.Y + BoxHalfWidth, Z: Neutral.Z},
		{X: Neutral.X, Y: Neutral.Y - BoxHalfWidth, Z: Neutral.Z},
		{X: Neutral.X, Y: Neutral.Y, Z: Neutral.Z + BoxHalfHeight},
		{X: Neutral.X, Y: Neutral.Y, Z: Neutral.Z - BoxHalfHeight},
	}
}

// Condition describes the simulated weather.
type Condition string

const (
	Calm    Condition = "calm"
	Average Condition = "average"
	Rough   Condition = "rough"
)

// AllConditions returns the conditions from mildest to harshest.
func AllConditions() []Condition {
	return []Condition{Calm, Average, Rough}
}

// ParseCondition accepts a condition name, case-insensitively. Empty means calm.
func ParseCondition(s string) (Condition, error) {
	if s == "" {
		return Calm, nil
	}
	c := Condition(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllConditions() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown condition %q (want calm, average or rough)", s)
}

// Amplitude is the largest rotation, in degrees, a condition sways the arm by.
func (c Condition) Amplitude() float64 {
	switch c {
	case Average:
		return 30
	case Rough:
		return 45
	default:
		return 15
	}
}

// Sequence returns the scripted three-point flight for the condition.
func (c Condition) Sequence() []Waypoint {
	switch c {
	case Average:
		return []Waypoint{
			{X: 0.65, Y: 0.0, Z: 0.55, Roll: 30, Pitch: 10},
			{X: 0.65, Y: 0.2, Z: 0.45, Roll: -30, Pitch: -10, Yaw: 10},
			{X: 0.65, Y: 0.0, Z: 0.5},
		}
	case Rough:
		return []Waypoint{
			{X: 0.65, Y: -0.2, Z: 0.65, Roll: 45, Pitch: 20, Yaw: -15},
			{X: 0.65, Y: 0.25, Z: 0.35, Roll: -45, Pitch: -20, Yaw: 15},
			{X: 0.65, Y: 0.0, Z: 0.5},
		}
	default:
		return []Waypoint{
			{X: 0.65, Y: 0.0, Z: 0.5, Roll: 45},
			{X: 0.65, Y: 0.5, Z: 0.5, Roll: 45},
			{X: 0.65, Y: 0.5, Z: 0.5},
		}
	}
}

// RandomSequence returns n waypoints inside the box envelope with rotations
// bounded by the condition amplitude.
func RandomSequence(rng *rand.Rand, c Condition, n int) []Waypoint {
	amp := c.Amplitude()
	span := func(half float64) float64 {
		return (rng.Float64()*2 - 1) * half
	}

	wps := make([]Waypoint, 0, n)
	for range n {
		wps = append(wps, Waypoint{
			X:     Neutral.X,
			Y:     Neutral.Y + span(BoxHalfWidth),
			Z:     Neutral.Z + span(BoxHalfHeight),
			Roll:  span(amp),
			Pitch: span(amp),
			Yaw:   span(amp),
		})
	}
	return wps
}
