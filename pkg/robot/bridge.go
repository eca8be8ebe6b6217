package robot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gwillem/dronearm/pkg/motion"
)

var (
	// ErrClosed is returned once the bridge connection has gone away.
	ErrClosed = errors.New("rosbridge connection closed")
	// ErrNoJointState means no joint state arrived within the limb timeout.
	ErrNoJointState = errors.New("no joint state received")
)

const (
	writeTimeout    = 5 * time.Second
	trajectoryLabel = "dronearm"
)

// Bridge talks to the arm's motion controller through a rosbridge websocket.
type Bridge struct {
	cfg  BridgeConfig
	conn *websocket.Conn
	log  *zap.SugaredLogger

	writeMu sync.Mutex

	mu      sync.Mutex
	changed chan struct{} // closed and replaced on every state update
	pending map[string]chan *motion.Result
	angles  []float64
	enabled bool
	closing bool
	readErr error

	done chan struct{}
}

// Dial connects to rosbridge and subscribes to the topics the bridge needs.
func Dial(ctx context.Context, cfg BridgeConfig, logger *zap.SugaredLogger) (*Bridge, error) {
	dialer := websocket.Dialer{HandshakeTimeout: time.Duration(cfg.HandshakeTimeout)}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to rosbridge at %s: %w", cfg.URL, err)
	}

	b := &Bridge{
		cfg:     cfg,
		conn:    conn,
		log:     logger.Named("bridge"),
		changed: make(chan struct{}),
		pending: make(map[string]chan *motion.Result),
		done:    make(chan struct{}),
	}
	go b.readLoop()

	ops := []outbound{
		{Op: "advertise", Topic: topicMotionGoal, Type: typeMotionGoal},
		{Op: "advertise", Topic: topicSuperEnable, Type: typeBool},
		{Op: "subscribe", Topic: topicMotionResult, Type: typeMotionResult},
		{Op: "subscribe", Topic: topicJointStates, Type: typeJointState},
		{Op: "subscribe", Topic: topicRobotState, Type: typeRobotState},
	}
	for _, op := range ops {
		if err := b.write(op); err != nil {
			return nil, multierr.Append(fmt.Errorf("%s %s: %w", op.Op, op.Topic, err), b.Close())
		}
	}

	b.log.Infow("connected", "url", cfg.URL)
	return b, nil
}

// Close unsubscribes and closes the connection. It waits for the reader to exit.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closing {
		b.mu.Unlock()
		<-b.done
		return nil
	}
	b.closing = true
	b.mu.Unlock()

	var werr error
	select {
	case <-b.done:
		// Server already hung up.
	default:
		b.writeMu.Lock()
		werr = b.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		b.writeMu.Unlock()
	}

	err := multierr.Combine(ignoreClosed(werr), b.conn.Close())
	<-b.done
	return err
}

// Enable asks the robot to enable its motors and waits until it reports enabled.
func (b *Bridge) Enable(ctx context.Context) error {
	b.log.Info("enabling robot")
	if err := b.publish(topicSuperEnable, boolMsg{Data: true}); err != nil {
		return fmt.Errorf("enable robot: %w", err)
	}
	err := b.waitFor(ctx, time.Duration(b.cfg.EnableTimeout), func() bool { return b.enabled })
	if err != nil {
		return fmt.Errorf("enable robot: %w", err)
	}
	return nil
}

// Enabled reports the last enable state published by the robot.
func (b *Bridge) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// Limb returns the configured limb seeded with its latest joint angles.
func (b *Bridge) Limb(ctx context.Context) (motion.Limb, error) {
	err := b.waitFor(ctx, time.Duration(b.cfg.LimbTimeout), func() bool { return b.angles != nil })
	if errors.Is(err, context.DeadlineExceeded) {
		err = ErrNoJointState
	}
	if err != nil {
		return motion.Limb{}, err
	}

	b.mu.Lock()
	angles := append([]float64(nil), b.angles...)
	b.mu.Unlock()

	return motion.Limb{
		Name:        b.cfg.Limb,
		Tip:         b.cfg.Tip,
		JointNames:  JointNames(),
		JointAngles: angles,
	}, nil
}

// Submit sends a trajectory and blocks until the controller reports its result.
func (b *Bridge) Submit(ctx context.Context, req *motion.TrajectoryRequest) (*motion.Result, error) {
	id := uuid.NewString()
	ch := make(chan *motion.Result, 1)

	b.mu.Lock()
	b.pending[id] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	if err := b.sendGoal(id, trajectoryGoal(req, trajectoryLabel)); err != nil {
		return nil, err
	}

	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.done:
		return nil, ErrClosed
	}
}

// Send hands a trajectory to the controller without waiting for a result.
func (b *Bridge) Send(ctx context.Context, req *motion.TrajectoryRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.sendGoal(uuid.NewString(), trajectoryGoal(req, trajectoryLabel))
}

// StopTrajectory tells the controller to abandon the running trajectory.
func (b *Bridge) StopTrajectory(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.sendGoal(uuid.NewString(), stopGoal())
}

func (b *Bridge) sendGoal(id string, goal motionCommandGoal) error {
	now := toROSTime(time.Now())
	msg := motionCommandActionGoal{
		Header: header{Stamp: now},
		GoalID: goalIDMsg{Stamp: now, ID: id},
		Goal:   goal,
	}
	b.log.Debugw("sending goal", "id", id, "command", goal.Command, "waypoints", len(goal.Trajectory.Waypoints))
	if err := b.publish(topicMotionGoal, msg); err != nil {
		return fmt.Errorf("send %s goal: %w", goal.Command, err)
	}
	return nil
}

func (b *Bridge) publish(topic string, msg any) error {
	return b.write(outbound{Op: "publish", Topic: topic, Msg: msg})
}

func (b *Bridge) write(op outbound) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return b.conn.WriteJSON(op)
}

// waitFor blocks until ready reports true. ready is called with b.mu held.
func (b *Bridge) waitFor(ctx context.Context, timeout time.Duration, ready func() bool) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	for {
		b.mu.Lock()
		ok := ready()
		changed := b.changed
		b.mu.Unlock()
		if ok {
			return nil
		}

		select {
		case <-changed:
		case <-b.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// notify wakes every waitFor. Callers hold b.mu.
func (b *Bridge) notify() {
	close(b.changed)
	b.changed = make(chan struct{})
}

func (b *Bridge) readLoop() {
	defer close(b.done)
	for {
		var in inbound
		if err := b.conn.ReadJSON(&in); err != nil {
			b.mu.Lock()
			closing := b.closing
			b.readErr = err
			b.mu.Unlock()
			if !closing {
				b.log.Errorw("connection lost", "error", err)
			}
			return
		}
		b.handle(in)
	}
}

func (b *Bridge) handle(in inbound) {
	switch in.Op {
	case "publish":
	case "status":
		var text string
		_ = json.Unmarshal(in.Msg, &text)
		b.log.Warnw("rosbridge status", "level", in.Level, "msg", text)
		return
	default:
		b.log.Debugw("ignoring op", "op", in.Op)
		return
	}

	switch in.Topic {
	case topicMotionResult:
		var msg motionCommandActionResult
		if err := json.Unmarshal(in.Msg, &msg); err != nil {
			b.log.Warnw("bad motion result", "error", err)
			return
		}
		b.mu.Lock()
		ch, ok := b.pending[msg.Status.GoalID.ID]
		b.mu.Unlock()
		if !ok {
			b.log.Debugw("result for unknown goal", "id", msg.Status.GoalID.ID)
			return
		}
		select {
		case ch <- msg.toResult():
		default:
		}

	case topicJointStates:
		var msg jointStateMsg
		if err := json.Unmarshal(in.Msg, &msg); err != nil {
			b.log.Warnw("bad joint state", "error", err)
			return
		}
		angles, ok := orderedAngles(msg.Name, msg.Position)
		if !ok {
			// Gripper and head states arrive on the same topic.
			return
		}
		b.mu.Lock()
		b.angles = angles
		b.notify()
		b.mu.Unlock()

	case topicRobotState:
		var msg robotStateMsg
		if err := json.Unmarshal(in.Msg, &msg); err != nil {
			b.log.Warnw("bad robot state", "error", err)
			return
		}
		b.mu.Lock()
		if b.enabled != msg.Enabled {
			b.log.Infow("robot state", "enabled", msg.Enabled, "stopped", msg.Stopped, "error", msg.Error)
		}
		b.enabled = msg.Enabled
		b.notify()
		b.mu.Unlock()
	}
}

// Err returns the error that ended the connection, if any.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readErr
}

func ignoreClosed(err error) error {
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}
