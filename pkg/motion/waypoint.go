// Package motion turns Cartesian waypoints into motion trajectory requests.
package motion

import (
	"fmt"

	"go.uber.org/multierr"
)

// Point is a position in meters.
type Point struct {
	X, Y, Z float64
}

// Waypoint is a target end-effector pose in the robot base frame.
// Position is in meters, orientation in degrees relative to BaseRotation.
type Waypoint struct {
	X, Y, Z          float64
	Roll, Pitch, Yaw float64
}

// Position returns the waypoint position.
func (w Waypoint) Position() Point {
	return Point{X: w.X, Y: w.Y, Z: w.Z}
}

// Euler returns the waypoint rotation.
func (w Waypoint) Euler() Euler {
	return Euler{Roll: w.Roll, Pitch: w.Pitch, Yaw: w.Yaw}
}

func (w Waypoint) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f | %.0f°, %.0f°, %.0f°)", w.X, w.Y, w.Z, w.Roll, w.Pitch, w.Yaw)
}

// Default kinematic limits.
const (
	DefaultMaxLinearSpeed = 7.0  // m/s
	DefaultMaxLinearAccel = 1.5  // m/s^2
	DefaultCornerDistance = 0.05 // m
)

// KinematicLimits bound the Cartesian motion between consecutive waypoints.
// The controller enforces them; they are only passed through here.
type KinematicLimits struct {
	MaxLinearSpeed float64 `json:"max_linear_speed"`
	MaxLinearAccel float64 `json:"max_linear_accel"`
	CornerDistance float64 `json:"corner_distance"`
}

// DefaultLimits returns the limits used when a move does not override them.
func DefaultLimits() KinematicLimits {
	return KinematicLimits{
		MaxLinearSpeed: DefaultMaxLinearSpeed,
		MaxLinearAccel: DefaultMaxLinearAccel,
		CornerDistance: DefaultCornerDistance,
	}
}

// Validate reports whether the limits are usable.
func (l KinematicLimits) Validate() error {
	var err error
	if l.MaxLinearSpeed <= 0 {
		err = multierr.Append(err, fmt.Errorf("max linear speed must be > 0, got %g", l.MaxLinearSpeed))
	}
	if l.MaxLinearAccel <= 0 {
		err = multierr.Append(err, fmt.Errorf("max linear accel must be > 0, got %g", l.MaxLinearAccel))
	}
	if l.CornerDistance < 0 {
		err = multierr.Append(err, fmt.Errorf("corner distance must be >= 0, got %g", l.CornerDistance))
	}
	return err
}
