package motion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/num/quat"
)

// BaseFrame is the reference frame every pose is expressed in.
const BaseFrame = "base"

// Interpolation is the controller's interpolation mode between waypoints.
type Interpolation string

const (
	InterpolationCartesian Interpolation = "CARTESIAN"
	InterpolationJoint     Interpolation = "JOINT"
)

// ErrStopRequested is returned by Build when the session has been stopped.
// The caller is expected to issue a stop directive instead of a trajectory.
var ErrStopRequested = errors.New("stop requested")

// AcquisitionError reports that the limb handle could not be obtained.
type AcquisitionError struct {
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire limb: %v", e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// Limb is a snapshot of the arm binding a trajectory is built against.
type Limb struct {
	Name        string
	Tip         string
	JointNames  []string
	JointAngles []float64 // radians, same order as JointNames
}

// LimbSource provides the current limb binding.
type LimbSource interface {
	Limb(ctx context.Context) (Limb, error)
}

// PoseEntry is one stamped Cartesian target of a trajectory.
type PoseEntry struct {
	Stamp       time.Time
	FrameID     string
	Position    Point
	Orientation quat.Number
}

// TrajectoryRequest is a complete trajectory ready for submission.
type TrajectoryRequest struct {
	Poses         []PoseEntry
	Limits        KinematicLimits
	Interpolation Interpolation
	Limb          Limb
}

// PathLength returns the length of the polyline through the poses, in meters.
func (r *TrajectoryRequest) PathLength() float64 {
	var total float64
	for i := 1; i < len(r.Poses); i++ {
		a, b := r.Poses[i-1].Position, r.Poses[i].Position
		dx, dy, dz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
		total += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return total
}

// Result is the controller's answer to a completed trajectory.
type Result struct {
	Succeeded bool
	ErrorID   string
	// LastWaypoint is the index of the last waypoint reached, -1 if unknown.
	LastWaypoint int
}

// Builder translates waypoints into trajectory requests.
type Builder struct {
	limbs LimbSource
	clock clock.Clock
	frame string
}

// NewBuilder returns a builder that binds trajectories to limbs from src
// and stamps poses with clk. A nil clock means wall-clock time.
func NewBuilder(src LimbSource, clk clock.Clock) *Builder {
	if clk == nil {
		clk = clock.New()
	}
	return &Builder{limbs: src, clock: clk, frame: BaseFrame}
}

// Build acquires the limb and translates waypoints in order, one pose each.
//
// If the limb cannot be acquired the error is an *AcquisitionError. The
// session is checked after acquisition either way: once stopped, Build
// returns ErrStopRequested (joined with any acquisition error) and
// translates nothing.
func (b *Builder) Build(ctx context.Context, sess *Session, waypoints []Waypoint, limits KinematicLimits) (*TrajectoryRequest, error) {
	limb, err := b.limbs.Limb(ctx)
	if err != nil {
		err = &AcquisitionError{Err: err}
	}
	if sess.Stopped() {
		return nil, multierr.Append(err, ErrStopRequested)
	}
	if err != nil {
		return nil, err
	}

	req := &TrajectoryRequest{
		Poses:         make([]PoseEntry, 0, len(waypoints)),
		Limits:        limits,
		Interpolation: InterpolationCartesian,
		Limb:          limb,
	}
	for _, wp := range waypoints {
		req.Poses = append(req.Poses, PoseEntry{
			Stamp:       b.clock.Now(),
			FrameID:     b.frame,
			Position:    wp.Position(),
			Orientation: Compose(wp.Euler()),
		})
	}
	return req, nil
}
