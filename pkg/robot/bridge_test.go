package robot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	dlog "github.com/gwillem/dronearm/internal/log"
	"github.com/gwillem/dronearm/pkg/motion"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRosbridge speaks just enough of the rosbridge protocol for Bridge.
type fakeRosbridge struct {
	srv *httptest.Server

	jointStates bool   // answer the joint_states subscription
	enables     bool   // report enabled after set_super_enable
	silent      bool   // never answer motion goals
	hangup      bool   // drop the connection on the first goal
	rejectWith  string // answer goals with result=false and this error id

	mu    sync.Mutex
	ops   []inbound
	goals []motionCommandActionGoal
}

func newFakeRosbridge(t *testing.T, configure func(*fakeRosbridge)) *fakeRosbridge {
	t.Helper()
	f := &fakeRosbridge{jointStates: true, enables: true}
	if configure != nil {
		configure(f)
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeRosbridge) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeRosbridge) serve(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var in inbound
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		f.mu.Lock()
		f.ops = append(f.ops, in)
		f.mu.Unlock()

		switch {
		case in.Op == "subscribe" && in.Topic == topicJointStates && f.jointStates:
			_ = conn.WriteJSON(outbound{Op: "publish", Topic: topicJointStates, Msg: jointStateMsg{
				Name:     append([]string{"head_pan"}, JointNames()...),
				Position: []float64{0.3, 0, -1.18, 0, 2.18, 0, 0.57, 3.31},
			}})

		case in.Op == "publish" && in.Topic == topicSuperEnable && f.enables:
			_ = conn.WriteJSON(outbound{Op: "publish", Topic: topicRobotState, Msg: robotStateMsg{Enabled: true}})

		case in.Op == "publish" && in.Topic == topicMotionGoal:
			var goal motionCommandActionGoal
			if err := json.Unmarshal(in.Msg, &goal); err != nil {
				return
			}
			f.mu.Lock()
			f.goals = append(f.goals, goal)
			f.mu.Unlock()

			if f.hangup {
				return
			}
			if f.silent || goal.Goal.Command != commandStart {
				continue
			}
			res := motionCommandActionResult{Status: goalStatusMsg{GoalID: goal.GoalID}}
			if f.rejectWith != "" {
				res.Result = motionCommandResult{ErrorID: f.rejectWith}
			} else {
				res.Result = motionCommandResult{
					Result:                 true,
					LastSuccessfulWaypoint: uint32(len(goal.Goal.Trajectory.Waypoints) - 1),
				}
			}
			_ = conn.WriteJSON(outbound{Op: "publish", Topic: topicMotionResult, Msg: res})
		}
	}
}

func (f *fakeRosbridge) recordedGoals() []motionCommandActionGoal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]motionCommandActionGoal(nil), f.goals...)
}

func (f *fakeRosbridge) recordedOps() []inbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]inbound(nil), f.ops...)
}

func dialFake(t *testing.T, f *fakeRosbridge) *Bridge {
	t.Helper()
	logger, _ := dlog.NewTestLogger(t)
	cfg := Default().Bridge
	cfg.URL = f.url()
	cfg.EnableTimeout = Duration(2 * time.Second)
	cfg.LimbTimeout = Duration(2 * time.Second)

	b, err := Dial(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, b.Close()) })
	return b
}

func buildRequest(t *testing.T, b *Bridge, wps ...motion.Waypoint) *motion.TrajectoryRequest {
	t.Helper()
	builder := motion.NewBuilder(b, clock.NewMock())
	req, err := builder.Build(context.Background(), motion.NewSession(), wps, motion.DefaultLimits())
	require.NoError(t, err)
	return req
}

func TestBridge_DialSubscribes(t *testing.T) {
	f := newFakeRosbridge(t, nil)
	dialFake(t, f)

	require.Eventually(t, func() bool { return len(f.recordedOps()) >= 5 }, 2*time.Second, 5*time.Millisecond)
	var topics []string
	for _, op := range f.recordedOps()[:5] {
		topics = append(topics, op.Op+" "+op.Topic)
	}
	assert.Equal(t, []string{
		"advertise " + topicMotionGoal,
		"advertise " + topicSuperEnable,
		"subscribe " + topicMotionResult,
		"subscribe " + topicJointStates,
		"subscribe " + topicRobotState,
	}, topics)
}

func TestBridge_DialFails(t *testing.T) {
	logger, _ := dlog.NewTestLogger(t)
	cfg := Default().Bridge
	cfg.URL = "ws://127.0.0.1:1"
	_, err := Dial(context.Background(), cfg, logger)
	assert.ErrorContains(t, err, "connect to rosbridge")
}

func TestBridge_Limb(t *testing.T) {
	b := dialFake(t, newFakeRosbridge(t, nil))

	limb, err := b.Limb(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultLimb, limb.Name)
	assert.Equal(t, DefaultTip, limb.Tip)
	assert.Equal(t, JointNames(), limb.JointNames)
	assert.Equal(t, []float64{0, -1.18, 0, 2.18, 0, 0.57, 3.31}, limb.JointAngles)
}

func TestBridge_LimbWithoutJointStates(t *testing.T) {
	f := newFakeRosbridge(t, func(f *fakeRosbridge) { f.jointStates = false })
	b := dialFake(t, f)
	b.cfg.LimbTimeout = Duration(50 * time.Millisecond)

	_, err := b.Limb(context.Background())
	assert.ErrorIs(t, err, ErrNoJointState)
}

func TestBridge_Enable(t *testing.T) {
	b := dialFake(t, newFakeRosbridge(t, nil))

	require.NoError(t, b.Enable(context.Background()))
	assert.True(t, b.Enabled())
}

func TestBridge_EnableTimesOut(t *testing.T) {
	f := newFakeRosbridge(t, func(f *fakeRosbridge) { f.enables = false })
	b := dialFake(t, f)
	b.cfg.EnableTimeout = Duration(50 * time.Millisecond)

	err := b.Enable(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, b.Enabled())
}

func TestBridge_SubmitWaitsForResult(t *testing.T) {
	f := newFakeRosbridge(t, nil)
	b := dialFake(t, f)

	req := buildRequest(t, b, motion.Calm.Sequence()...)
	res, err := b.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	assert.Equal(t, 2, res.LastWaypoint)

	goals := f.recordedGoals()
	require.Len(t, goals, 1)
	goal := goals[0]
	assert.NotEmpty(t, goal.GoalID.ID)
	assert.Equal(t, commandStart, goal.Goal.Command)
	assert.Equal(t, "CARTESIAN", goal.Goal.Trajectory.TrajectoryOptions.InterpolationType)
	assert.Equal(t, JointNames(), goal.Goal.Trajectory.JointNames)
	require.Len(t, goal.Goal.Trajectory.Waypoints, 3)

	wp := goal.Goal.Trajectory.Waypoints[1]
	assert.Equal(t, DefaultTip, wp.ActiveEndpoint)
	assert.Equal(t, motion.BaseFrame, wp.Pose.Header.FrameID)
	assert.Equal(t, pointMsg{X: 0.65, Y: 0.5, Z: 0.5}, wp.Pose.Pose.Position)
	assert.Equal(t, 7.0, wp.Options.MaxLinearSpeed)
	assert.Equal(t, 1.5, wp.Options.MaxLinearAccel)
	assert.Equal(t, 0.05, wp.Options.CornerDistance)
	assert.Len(t, wp.JointPositions, 7)

	q := req.Poses[1].Orientation
	assert.Equal(t, quaternionMsg{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real}, wp.Pose.Pose.Orientation)
}

func TestBridge_SubmitRejected(t *testing.T) {
	f := newFakeRosbridge(t, func(f *fakeRosbridge) { f.rejectWith = "PLANNER_FAILED" })
	b := dialFake(t, f)

	res, err := b.Submit(context.Background(), buildRequest(t, b, motion.Neutral))
	require.NoError(t, err)
	assert.False(t, res.Succeeded)
	assert.Equal(t, "PLANNER_FAILED", res.ErrorID)
}

func TestBridge_SubmitHonoursContext(t *testing.T) {
	f := newFakeRosbridge(t, func(f *fakeRosbridge) { f.silent = true })
	b := dialFake(t, f)
	req := buildRequest(t, b, motion.Neutral)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res, err := b.Submit(ctx, req)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBridge_SubmitConnectionLost(t *testing.T) {
	f := newFakeRosbridge(t, func(f *fakeRosbridge) { f.hangup = true })
	b := dialFake(t, f)
	req := buildRequest(t, b, motion.Neutral)

	res, err := b.Submit(context.Background(), req)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Error(t, b.Err())
	assert.ErrorIs(t, b.Send(context.Background(), req), ErrClosed)
}

func TestBridge_SendDoesNotWait(t *testing.T) {
	f := newFakeRosbridge(t, func(f *fakeRosbridge) { f.silent = true })
	b := dialFake(t, f)

	require.NoError(t, b.Send(context.Background(), buildRequest(t, b, motion.BoxCorners()...)))
	require.Eventually(t, func() bool { return len(f.recordedGoals()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, f.recordedGoals()[0].Goal.Trajectory.Waypoints, 4)
}

func TestBridge_StopTrajectory(t *testing.T) {
	f := newFakeRosbridge(t, nil)
	b := dialFake(t, f)

	require.NoError(t, b.StopTrajectory(context.Background()))
	require.Eventually(t, func() bool { return len(f.recordedGoals()) == 1 }, 2*time.Second, 5*time.Millisecond)
	goal := f.recordedGoals()[0]
	assert.Equal(t, commandStop, goal.Goal.Command)
	assert.Empty(t, goal.Goal.Trajectory.Waypoints)
}

func TestBridge_CloseIsIdempotent(t *testing.T) {
	b := dialFake(t, newFakeRosbridge(t, nil))
	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}
