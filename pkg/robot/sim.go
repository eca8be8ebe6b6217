package robot

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/gwillem/dronearm/pkg/motion"
)

// Error ids reported by the simulated controller.
const (
	SimErrorEmpty   = "EMPTY_TRAJECTORY"
	SimErrorStopped = "STOPPED"
)

// Sim is an in-process motion controller. It moves the endpoint along the
// requested poses at the trajectory's max linear speed, scaled by TimeScale.
type Sim struct {
	// TimeScale multiplies simulated travel time. Zero finishes every
	// trajectory instantly.
	TimeScale float64

	clock clock.Clock
	log   *zap.SugaredLogger

	mu       sync.Mutex
	enabled  bool
	position motion.Point
	history  []*motion.TrajectoryRequest
	stops    int
	abort    chan struct{}
}

// NewSim returns a simulator parked at the neutral position. A nil clock
// means wall-clock time.
func NewSim(clk clock.Clock, logger *zap.SugaredLogger) *Sim {
	if clk == nil {
		clk = clock.New()
	}
	return &Sim{
		clock:    clk,
		log:      logger.Named("sim"),
		position: motion.Neutral.Position(),
		abort:    make(chan struct{}),
	}
}

func (s *Sim) Enable(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
	s.log.Info("robot enabled")
	return nil
}

func (s *Sim) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Sim) Limb(ctx context.Context) (motion.Limb, error) {
	if err := ctx.Err(); err != nil {
		return motion.Limb{}, err
	}
	return motion.Limb{
		Name:        DefaultLimb,
		Tip:         DefaultTip,
		JointNames:  JointNames(),
		JointAngles: make([]float64, len(AllJoints())),
	}, nil
}

// Submit travels the trajectory and reports the result. StopTrajectory
// aborts it early.
func (s *Sim) Submit(ctx context.Context, req *motion.TrajectoryRequest) (*motion.Result, error) {
	s.mu.Lock()
	s.history = append(s.history, req)
	abort := s.abort
	start := s.position
	s.mu.Unlock()

	if len(req.Poses) == 0 {
		return &motion.Result{ErrorID: SimErrorEmpty, LastWaypoint: -1}, nil
	}

	d := s.travelTime(start, req)
	s.log.Debugw("simulating trajectory", "poses", len(req.Poses), "duration", d)
	if d > 0 {
		select {
		case <-s.clock.After(d):
		case <-abort:
			return &motion.Result{ErrorID: SimErrorStopped, LastWaypoint: -1}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	s.position = req.Poses[len(req.Poses)-1].Position
	s.mu.Unlock()
	return &motion.Result{Succeeded: true, LastWaypoint: len(req.Poses) - 1}, nil
}

// Send records the trajectory and jumps to its end.
func (s *Sim) Send(ctx context.Context, req *motion.TrajectoryRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, req)
	if n := len(req.Poses); n > 0 {
		s.position = req.Poses[n-1].Position
	}
	return nil
}

func (s *Sim) StopTrajectory(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	close(s.abort)
	s.abort = make(chan struct{})
	s.log.Info("trajectory stopped")
	return nil
}

// Position returns the simulated endpoint position.
func (s *Sim) Position() motion.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// History returns every trajectory handed to the simulator, in order.
func (s *Sim) History() []*motion.TrajectoryRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*motion.TrajectoryRequest(nil), s.history...)
}

// Stops returns how many stop directives were received.
func (s *Sim) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

func (s *Sim) travelTime(from motion.Point, req *motion.TrajectoryRequest) time.Duration {
	if s.TimeScale <= 0 || req.Limits.MaxLinearSpeed <= 0 {
		return 0
	}
	first := req.Poses[0].Position
	dx, dy, dz := first.X-from.X, first.Y-from.Y, first.Z-from.Z
	dist := math.Sqrt(dx*dx+dy*dy+dz*dz) + req.PathLength()
	secs := dist / req.Limits.MaxLinearSpeed * s.TimeScale
	return time.Duration(secs * float64(time.Second))
}
