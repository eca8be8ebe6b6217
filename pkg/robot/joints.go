// Package robot connects dronearm to the arm's motion controller.
package robot

// JointName identifies a joint of the arm.
type JointName string

// Joint names for the Sawyer right limb, base to wrist.
const (
	RightJ0 JointName = "right_j0"
	RightJ1 JointName = "right_j1"
	RightJ2 JointName = "right_j2"
	RightJ3 JointName = "right_j3"
	RightJ4 JointName = "right_j4"
	RightJ5 JointName = "right_j5"
	RightJ6 JointName = "right_j6"
)

// Limb and endpoint names used by the motion controller.
const (
	DefaultLimb = "right"
	DefaultTip  = "right_hand"
)

// AllJoints returns all joint names in controller order.
func AllJoints() []JointName {
	return []JointName{
		RightJ0,
		RightJ1,
		RightJ2,
		RightJ3,
		RightJ4,
		RightJ5,
		RightJ6,
	}
}

// JointNames returns AllJoints as plain strings.
func JointNames() []string {
	names := make([]string, 0, 7)
	for _, j := range AllJoints() {
		names = append(names, string(j))
	}
	return names
}

// orderedAngles picks the limb joints out of a joint state message, in
// AllJoints order. It reports false if any joint is missing.
func orderedAngles(names []string, positions []float64) ([]float64, bool) {
	index := make(map[string]int, len(names))
	for i, n := range names {
		if i < len(positions) {
			index[n] = i
		}
	}

	angles := make([]float64, 0, 7)
	for _, j := range AllJoints() {
		i, ok := index[string(j)]
		if !ok {
			return nil, false
		}
		angles = append(angles, positions[i])
	}
	return angles, true
}
