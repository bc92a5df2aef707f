package lio

import (
	"github.com/PossumXI/Asgard/lio/frame"
	"gonum.org/v1/gonum/stat"
)

// ImuMeasurement is a single timestamped inertial sample in SI units:
// accelerometer in m/s^2 pre-scale, gyro in rad/s.
type ImuMeasurement struct {
	T   float64
	Lin [3]float64
	Ang [3]float64
}

// ImuInit is the result of consuming the IMU initialization window: the
// seed gravity vector and gyroscope bias the filter state starts from, plus
// the gravity factor later IMU observations rescale the raw accelerometer
// reading by.
type ImuInit struct {
	GravityFactor  float64
	Gravity        frame.Vec3[frame.World]
	AngularAccBias frame.Vec3[frame.Imu]
	CompletedAt    float64
}

// InitImu consumes an initialization window (typically the first ~200
// samples) and computes the per-axis mean of linear and angular
// acceleration via gonum/stat. It returns ErrInsufficientSamples iff samples
// is empty, per §4.7's "zero samples ⇒ initialization fails, caller must
// retry" contract.
func InitImu(samples []ImuMeasurement, gravityNorm float64) (ImuInit, error) {
	n := len(samples)
	if n == 0 {
		return ImuInit{}, ErrInsufficientSamples
	}

	linX := make([]float64, n)
	linY := make([]float64, n)
	linZ := make([]float64, n)
	angX := make([]float64, n)
	angY := make([]float64, n)
	angZ := make([]float64, n)
	for i, s := range samples {
		linX[i], linY[i], linZ[i] = s.Lin[0], s.Lin[1], s.Lin[2]
		angX[i], angY[i], angZ[i] = s.Ang[0], s.Ang[1], s.Ang[2]
	}

	meanLin := frame.New[frame.Imu](stat.Mean(linX, nil), stat.Mean(linY, nil), stat.Mean(linZ, nil))
	meanAng := frame.New[frame.Imu](stat.Mean(angX, nil), stat.Mean(angY, nil), stat.Mean(angZ, nil))

	return FromGravity(meanLin, meanAng, gravityNorm, samples[n-1].T), nil
}

// FromGravity builds an ImuInit directly from an already-averaged linear and
// angular acceleration, bypassing the sample-accumulation path. This is
// useful for callers that already maintain their own running average across
// a longer window than a single fixed-N initialization batch, or for tests
// that want to construct a known gravity direction without synthesizing raw
// samples.
func FromGravity(meanLin, meanAng frame.Vec3[frame.Imu], gravityNorm, completedAt float64) ImuInit {
	norm := meanLin.Norm()
	var gravityFactor float64
	var gravity frame.Vec3[frame.World]
	if norm > 0 {
		gravityFactor = gravityNorm / norm
		dir := meanLin.Scale(1 / norm)
		gravity = frame.New[frame.World](-dir.X*gravityNorm, -dir.Y*gravityNorm, -dir.Z*gravityNorm)
	}
	return ImuInit{
		GravityFactor:  gravityFactor,
		Gravity:        gravity,
		AngularAccBias: meanAng,
		CompletedAt:    completedAt,
	}
}

// NewImuInitFromGravity seeds an ImuInit directly from an already-known
// world-frame gravity vector, with no IMU samples to average: useful when
// replaying a recorded session against a prior calibration, or in tests that
// want a fixed gravity direction without synthesizing raw samples. The
// gravity factor is left at 1.0 (there is no accelerometer norm to rescale
// against) and the gyroscope bias at zero; both can still be overridden
// through Config.GravityFactor and a later bias estimate.
func NewImuInitFromGravity(gravity frame.Vec3[frame.World]) ImuInit {
	return ImuInit{
		GravityFactor: 1.0,
		Gravity:       gravity,
	}
}
