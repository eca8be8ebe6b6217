// Package dronearm flies the end effector of a Sawyer robot arm through
// Cartesian waypoints, simulating the motion of a drone.
//
// Waypoints (x, y, z in meters, roll/pitch/yaw in degrees) are translated into
// a Cartesian motion trajectory and submitted to the Intera motion controller
// through a rosbridge websocket.
//
// # Installation
//
//	go install github.com/gwillem/dronearm/cmd/dronearm@latest
//
// # Usage
//
// Point the tool at the robot's rosbridge server:
//
//	dronearm setup
//
// Then fly the default sequence:
//
//	dronearm fly --condition calm --box
//
// Press ctrl+c to stop the arm and exit. Use --sim to fly without a robot.
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/dronearm: CLI with setup, fly and stop commands
//   - pkg/motion: Waypoints, orientation composition and trajectory building
//   - pkg/flight: Trajectory dispatch and the flight sequence
//   - pkg/robot: Rosbridge controller client, simulator and configuration
package dronearm
