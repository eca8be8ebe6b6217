package motion

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Euler holds roll, pitch and yaw in degrees, applied about the static
// X, Y and Z axes in that order.
type Euler struct {
	Roll, Pitch, Yaw float64
}

// BaseTiltDegrees is the pitch that points the gripper forward along +X.
const BaseTiltDegrees = 90.0

// unitTolerance bounds how far a composed rotation may drift from unit norm
// before it is renormalised.
const unitTolerance = 1e-12

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// FromEuler converts static-axis XYZ Euler angles (degrees) to a unit quaternion.
func FromEuler(e Euler) quat.Number {
	sr, cr := math.Sincos(radians(e.Roll) / 2)
	sp, cp := math.Sincos(radians(e.Pitch) / 2)
	sy, cy := math.Sincos(radians(e.Yaw) / 2)

	return quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	}
}

// BaseRotation is the fixed end-effector orientation every waypoint is
// expressed relative to: 90 degrees about Y.
func BaseRotation() quat.Number {
	return FromEuler(Euler{Pitch: BaseTiltDegrees})
}

// Compose returns the waypoint orientation: the Euler rotation multiplied by
// the base rotation, Euler on the left. Swapping the operands changes the
// approach direction of the end effector.
func Compose(e Euler) quat.Number {
	return unit(quat.Mul(FromEuler(e), BaseRotation()))
}

func unit(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.Abs(n-1) <= unitTolerance {
		return q
	}
	return quat.Scale(1/n, q)
}
