package robot

import (
	"encoding/json"
	"time"

	"github.com/gwillem/dronearm/pkg/motion"
)

// Topics and message types on the robot side of the rosbridge.
const (
	topicMotionGoal   = "/motion/motion_command/goal"
	topicMotionResult = "/motion/motion_command/result"
	topicJointStates  = "/robot/joint_states"
	topicSuperEnable  = "/robot/set_super_enable"
	topicRobotState   = "/robot/state"

	typeMotionGoal   = "intera_motion_msgs/MotionCommandActionGoal"
	typeMotionResult = "intera_motion_msgs/MotionCommandActionResult"
	typeJointState   = "sensor_msgs/JointState"
	typeBool         = "std_msgs/Bool"
	typeRobotState   = "intera_core_msgs/RobotAssemblyState"
)

// Motion command verbs.
const (
	commandStart = "start"
	commandStop  = "stop"
)

// Intera waypoint option defaults that dronearm does not expose.
const (
	defaultJointSpeedRatio = 0.7
	defaultJointTolerance  = 0.05
	defaultRotationalSpeed = 1.57
	defaultRotationalAccel = 1.57
)

// outbound is a rosbridge v2 operation sent to the server.
type outbound struct {
	Op    string `json:"op"`
	ID    string `json:"id,omitempty"`
	Topic string `json:"topic,omitempty"`
	Type  string `json:"type,omitempty"`
	Msg   any    `json:"msg,omitempty"`
}

// inbound is a rosbridge v2 operation received from the server. Msg is an
// object for "publish" and a string for "status".
type inbound struct {
	Op    string          `json:"op"`
	ID    string          `json:"id,omitempty"`
	Topic string          `json:"topic,omitempty"`
	Level string          `json:"level,omitempty"`
	Msg   json.RawMessage `json:"msg,omitempty"`
}

type rosTime struct {
	Secs  int64 `json:"secs"`
	Nsecs int64 `json:"nsecs"`
}

func toROSTime(t time.Time) rosTime {
	if t.IsZero() {
		return rosTime{}
	}
	return rosTime{Secs: t.Unix(), Nsecs: int64(t.Nanosecond())}
}

type header struct {
	Seq     uint32  `json:"seq"`
	Stamp   rosTime `json:"stamp"`
	FrameID string  `json:"frame_id"`
}

type pointMsg struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type quaternionMsg struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

type poseMsg struct {
	Position    pointMsg      `json:"position"`
	Orientation quaternionMsg `json:"orientation"`
}

type poseStampedMsg struct {
	Header header  `json:"header"`
	Pose   poseMsg `json:"pose"`
}

type waypointOptionsMsg struct {
	Label              string    `json:"label"`
	MaxJointSpeedRatio float64   `json:"max_joint_speed_ratio"`
	JointTolerances    []float64 `json:"joint_tolerances"`
	MaxLinearSpeed     float64   `json:"max_linear_speed"`
	MaxLinearAccel     float64   `json:"max_linear_accel"`
	MaxRotationalSpeed float64   `json:"max_rotational_speed"`
	MaxRotationalAccel float64   `json:"max_rotational_accel"`
	CornerDistance     float64   `json:"corner_distance"`
}

type waypointMsg struct {
	JointPositions []float64          `json:"joint_positions"`
	ActiveEndpoint string             `json:"active_endpoint"`
	Pose           poseStampedMsg     `json:"pose"`
	Options        waypointOptionsMsg `json:"options"`
}

type trajectoryOptionsMsg struct {
	InterpolationType string `json:"interpolation_type"`
}

type trajectoryMsg struct {
	Label             string               `json:"label"`
	JointNames        []string             `json:"joint_names"`
	Waypoints         []waypointMsg        `json:"waypoints"`
	TrajectoryOptions trajectoryOptionsMsg `json:"trajectory_options"`
}

type motionCommandGoal struct {
	Command    string        `json:"command"`
	Trajectory trajectoryMsg `json:"trajectory"`
}

type goalIDMsg struct {
	Stamp rosTime `json:"stamp"`
	ID    string  `json:"id"`
}

type motionCommandActionGoal struct {
	Header header            `json:"header"`
	GoalID goalIDMsg         `json:"goal_id"`
	Goal   motionCommandGoal `json:"goal"`
}

type goalStatusMsg struct {
	GoalID goalIDMsg `json:"goal_id"`
	Status uint8     `json:"status"`
	Text   string    `json:"text"`
}

type motionCommandResult struct {
	Result                 bool   `json:"result"`
	ErrorID                string `json:"errorId"`
	LastSuccessfulWaypoint uint32 `json:"last_successful_waypoint"`
}

type motionCommandActionResult struct {
	Header header              `json:"header"`
	Status goalStatusMsg       `json:"status"`
	Result motionCommandResult `json:"result"`
}

type jointStateMsg struct {
	Header   header    `json:"header"`
	Name     []string  `json:"name"`
	Position []float64 `json:"position"`
}

type robotStateMsg struct {
	Enabled bool `json:"enabled"`
	Stopped bool `json:"stopped"`
	Error   bool `json:"error"`
}

type boolMsg struct {
	Data bool `json:"data"`
}

// trajectoryGoal converts a request into a "start" motion command.
func trajectoryGoal(req *motion.TrajectoryRequest, label string) motionCommandGoal {
	tolerances := make([]float64, len(req.Limb.JointNames))
	for i := range tolerances {
		tolerances[i] = defaultJointTolerance
	}
	opts := waypointOptionsMsg{
		MaxJointSpeedRatio: defaultJointSpeedRatio,
		JointTolerances:    tolerances,
		MaxLinearSpeed:     req.Limits.MaxLinearSpeed,
		MaxLinearAccel:     req.Limits.MaxLinearAccel,
		MaxRotationalSpeed: defaultRotationalSpeed,
		MaxRotationalAccel: defaultRotationalAccel,
		CornerDistance:     req.Limits.CornerDistance,
	}

	waypoints := make([]waypointMsg, 0, len(req.Poses))
	for _, p := range req.Poses {
		waypoints = append(waypoints, waypointMsg{
			JointPositions: req.Limb.JointAngles,
			ActiveEndpoint: req.Limb.Tip,
			Pose: poseStampedMsg{
				Header: header{Stamp: toROSTime(p.Stamp), FrameID: p.FrameID},
				Pose: poseMsg{
					Position: pointMsg{X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z},
					Orientation: quaternionMsg{
						X: p.Orientation.Imag,
						Y: p.Orientation.Jmag,
						Z: p.Orientation.Kmag,
						W: p.Orientation.Real,
					},
				},
			},
			Options: opts,
		})
	}

	return motionCommandGoal{
		Command: commandStart,
		Trajectory: trajectoryMsg{
			Label:      label,
			JointNames: req.Limb.JointNames,
			Waypoints:  waypoints,
			TrajectoryOptions: trajectoryOptionsMsg{
				InterpolationType: string(req.Interpolation),
			},
		},
	}
}

func stopGoal() motionCommandGoal {
	return motionCommandGoal{
		Command:    commandStop,
		Trajectory: trajectoryMsg{JointNames: []string{}, Waypoints: []waypointMsg{}},
	}
}

func (r motionCommandActionResult) toResult() *motion.Result {
	return &motion.Result{
		Succeeded:    r.Result.Result,
		ErrorID:      r.Result.ErrorID,
		LastWaypoint: int(r.Result.LastSuccessfulWaypoint),
	}
}
