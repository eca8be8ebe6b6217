package flight

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/gwillem/dronearm/pkg/motion"
)

type stubLimbs struct {
	err    error
	onLimb func()
}

func (s *stubLimbs) Limb(context.Context) (motion.Limb, error) {
	if s.onLimb != nil {
		s.onLimb()
	}
	if s.err != nil {
		return motion.Limb{}, s.err
	}
	return motion.Limb{
		Name:        "right",
		Tip:         "right_hand",
		JointNames:  []string{"right_j0", "right_j1", "right_j2", "right_j3", "right_j4", "right_j5", "right_j6"},
		JointAngles: make([]float64, 7),
	}, nil
}

// stubController records every call. Submit returns result/err unless
// block is set, in which case it waits for block to close or ctx to end.
type stubController struct {
	mu        sync.Mutex
	submitted []*motion.TrajectoryRequest
	sent      []*motion.TrajectoryRequest
	stops     int

	result  *motion.Result
	err     error
	stopErr error
	block   chan struct{}
	panics  bool
}

func (c *stubController) Submit(ctx context.Context, req *motion.TrajectoryRequest) (*motion.Result, error) {
	c.mu.Lock()
	c.submitted = append(c.submitted, req)
	block := c.block
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.result, c.err
}

func (c *stubController) Send(_ context.Context, req *motion.TrajectoryRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, req)
	return c.err
}

func (c *stubController) StopTrajectory(context.Context) error {
	if c.panics {
		panic("controller went away")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	return c.stopErr
}

func (c *stubController) counts() (submitted, sent, stops int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.submitted), len(c.sent), c.stops
}

func succeeding() *stubController {
	return &stubController{result: &motion.Result{Succeeded: true, LastWaypoint: -1}}
}

func newTestDispatcher(ctrl MotionController, limbs motion.LimbSource, logger *zap.SugaredLogger) *Dispatcher {
	b := motion.NewBuilder(limbs, clock.NewMock())
	return NewDispatcher(ctrl, b, motion.NewSession(), logger)
}
