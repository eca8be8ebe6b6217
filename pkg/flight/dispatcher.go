// Package flight dispatches trajectories to the motion controller and flies
// the drone sequence.
package flight

import (
	"context"
	"errors"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/gwillem/dronearm/pkg/motion"
)

// Enabler enables the robot before any motion.
type Enabler interface {
	Enable(ctx context.Context) error
}

// MotionController executes trajectories.
//
// Submit blocks until the controller reports a result; a nil result means
// the controller gave no answer. Send hands the trajectory over and returns
// without waiting for execution.
type MotionController interface {
	Submit(ctx context.Context, req *motion.TrajectoryRequest) (*motion.Result, error)
	Send(ctx context.Context, req *motion.TrajectoryRequest) error
	StopTrajectory(ctx context.Context) error
}

// Phase is the dispatcher state for the move in progress.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseBuilding
	PhaseSubmittedSync
	PhaseSubmittedAsync
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBuilding:
		return "building"
	case PhaseSubmittedSync:
		return "submitted_sync"
	case PhaseSubmittedAsync:
		return "submitted_async"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Mode selects how a trajectory is submitted.
type Mode int

const (
	// ModeSync blocks until the controller reports completion or failure.
	ModeSync Mode = iota
	// ModeAsync returns as soon as the trajectory is handed over.
	ModeAsync
)

func (m Mode) String() string {
	if m == ModeAsync {
		return "async"
	}
	return "sync"
}

type moveOptions struct {
	mode   Mode
	limits motion.KinematicLimits
}

// MoveOption customizes a single Move.
type MoveOption func(*moveOptions)

// NoWait submits the trajectory without waiting for it to finish.
func NoWait() MoveOption {
	return func(o *moveOptions) { o.mode = ModeAsync }
}

// WithSpeed overrides the max linear speed (m/s) and acceleration (m/s^2).
func WithSpeed(maxSpeed, maxAccel float64) MoveOption {
	return func(o *moveOptions) {
		o.limits.MaxLinearSpeed = maxSpeed
		o.limits.MaxLinearAccel = maxAccel
	}
}

// WithLimits replaces all kinematic limits for the move.
func WithLimits(l motion.KinematicLimits) MoveOption {
	return func(o *moveOptions) { o.limits = l }
}

// Dispatcher builds trajectories and submits them to the motion controller.
type Dispatcher struct {
	ctrl    MotionController
	builder *motion.Builder
	session *motion.Session
	limits  motion.KinematicLimits
	log     *zap.SugaredLogger
	metrics *Metrics

	phase atomic.Int32
}

// NewDispatcher returns a dispatcher bound to one session.
func NewDispatcher(ctrl MotionController, builder *motion.Builder, session *motion.Session, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		ctrl:    ctrl,
		builder: builder,
		session: session,
		limits:  motion.DefaultLimits(),
		log:     logger.Named("dispatcher"),
	}
}

// SetLimits sets the limits used by moves that do not override them.
func (d *Dispatcher) SetLimits(l motion.KinematicLimits) {
	d.limits = l
}

// SetMetrics attaches a metrics collector.
func (d *Dispatcher) SetMetrics(m *Metrics) {
	d.metrics = m
}

// Phase returns the phase of the current or most recent move.
func (d *Dispatcher) Phase() Phase {
	return Phase(d.phase.Load())
}

func (d *Dispatcher) setPhase(p Phase) {
	d.phase.Store(int32(p))
}

// Session returns the session the dispatcher is bound to.
func (d *Dispatcher) Session() *motion.Session {
	return d.session
}

// RequestStop sets the session stop flag. The next Move issues the stop
// directive; RequestStop itself submits nothing.
func (d *Dispatcher) RequestStop() {
	if d.session.RequestStop() {
		d.log.Info("stop requested")
	}
}

// Move builds a trajectory through waypoints and submits it. By default it
// waits for the controller, at 7.0 m/s and 1.5 m/s^2.
//
// Once the session is stopped every Move issues a stop directive instead of
// a trajectory. Failures are logged and reported as false.
func (d *Dispatcher) Move(ctx context.Context, waypoints []motion.Waypoint, opts ...MoveOption) bool {
	o := moveOptions{mode: ModeSync, limits: d.limits}
	for _, opt := range opts {
		opt(&o)
	}

	d.setPhase(PhaseBuilding)
	d.metrics.recordMove()

	req, err := d.builder.Build(ctx, d.session, waypoints, o.limits)
	var acq *motion.AcquisitionError
	if errors.As(err, &acq) {
		d.log.Errorw("could not acquire limb", "error", acq.Err)
		d.metrics.recordAcquisitionFailure()
	}
	if errors.Is(err, motion.ErrStopRequested) {
		return d.stop(ctx)
	}
	if err != nil {
		d.setPhase(PhaseIdle)
		return false
	}

	// A stop may have landed while the request was being built.
	if d.session.Stopped() {
		return d.stop(ctx)
	}

	if o.mode == ModeAsync {
		return d.submitAsync(ctx, req)
	}
	return d.submitSync(ctx, req)
}

// MoveToNeutral moves to the neutral pose and waits.
func (d *Dispatcher) MoveToNeutral(ctx context.Context) bool {
	d.log.Infow("returning to neutral", "waypoint", motion.Neutral.String())
	return d.Move(ctx, []motion.Waypoint{motion.Neutral})
}

// TraceBox visits the four box edges and waits.
func (d *Dispatcher) TraceBox(ctx context.Context) bool {
	d.log.Info("tracing box")
	return d.Move(ctx, motion.BoxCorners())
}

func (d *Dispatcher) stop(ctx context.Context) bool {
	d.setPhase(PhaseStopped)
	d.metrics.recordStop()
	if err := d.ctrl.StopTrajectory(ctx); err != nil {
		d.log.Errorw("stop trajectory failed", "error", err)
		return false
	}
	d.log.Info("trajectory stopped")
	return true
}

func (d *Dispatcher) submitSync(ctx context.Context, req *motion.TrajectoryRequest) bool {
	d.setPhase(PhaseSubmittedSync)
	d.metrics.recordSubmit(ModeSync)
	d.log.Infow("sending trajectory and waiting for finish", "poses", len(req.Poses))

	start := time.Now()
	result, err := d.ctrl.Submit(ctx, req)
	switch {
	case err != nil || result == nil:
		d.log.Errorw("trajectory failed to send", "error", err)
		d.metrics.recordOutcome(outcomeNoResult, time.Since(start))
		return false
	case result.Succeeded:
		d.log.Info("motion controller finished the trajectory")
		d.metrics.recordOutcome(outcomeSucceeded, time.Since(start))
		return true
	default:
		d.log.Errorw("motion controller failed to complete the trajectory",
			"error_id", result.ErrorID, "last_waypoint", result.LastWaypoint)
		d.metrics.recordOutcome(outcomeRejected, time.Since(start))
		return false
	}
}

func (d *Dispatcher) submitAsync(ctx context.Context, req *motion.TrajectoryRequest) bool {
	d.setPhase(PhaseSubmittedAsync)
	d.metrics.recordSubmit(ModeAsync)
	d.log.Infow("sending trajectory without waiting", "poses", len(req.Poses))

	if err := d.ctrl.Send(ctx, req); err != nil {
		d.log.Warnw("trajectory send reported an error", "error", err)
	}
	return true
}
