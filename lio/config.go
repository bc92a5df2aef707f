// Package lio is the LIO orchestrator: IMU initialization, per-measurement
// dispatch, extrinsics handling, downsampling and the scratch buffer that
// ties the ESKF core to the voxel map.
package lio

import (
	"github.com/PossumXI/Asgard/lio/eskf"
	"github.com/PossumXI/Asgard/lio/spatial"
)

// Config collects every recognized option from the external interface
// table, with the reference defaults.
type Config struct {
	Gravity float64

	// GravityFactor, when non-zero, overrides the gravity/||mean_lin||
	// ratio ImuInit computed from the initialization window. Leave at its
	// zero value to use the computed factor; set explicitly when a prior
	// calibration run already established the accelerometer's scale.
	GravityFactor float64

	VoxelSize           float64
	MaxLayer            int
	PlaneInitThreshold  int
	UpdateThreshold     int
	PlaneEigenThreshold float64
	MaxPoints           int
	SigmaRatio          float64

	DownsampleResolution float64
	BufferInitSize       int

	ImuAccNoise     float64
	ImuGyroNoise    float64
	LidarPointNoise float64

	VelocityProcessNoise    float64
	LinearAccProcessNoise   float64
	AngularAccProcessNoise  float64
	LinearBiasProcessNoise  float64
	AngularBiasProcessNoise float64

	BodyPointDistanceNoise     float64
	BodyPointDirectionNoiseRad float64
}

// DefaultConfig returns the reference configuration from §6, with
// downsample_resolution defaulted to voxel_size as the spec specifies.
func DefaultConfig() Config {
	c := Config{
		Gravity: 9.81,

		VoxelSize:           0.5,
		MaxLayer:            4,
		PlaneInitThreshold:  5,
		UpdateThreshold:     5,
		PlaneEigenThreshold: 0.01,
		MaxPoints:           50,
		SigmaRatio:          3,

		BufferInitSize: 80,

		ImuAccNoise:     0.1,
		ImuGyroNoise:    0.01,
		LidarPointNoise: 10,

		VelocityProcessNoise:    20,
		LinearAccProcessNoise:   500,
		AngularAccProcessNoise:  1000,
		LinearBiasProcessNoise:  0.01,
		AngularBiasProcessNoise: 0.01,

		BodyPointDistanceNoise:     0.04,
		BodyPointDirectionNoiseRad: 0.2,
	}
	c.DownsampleResolution = c.VoxelSize
	return c
}

func (c Config) planeConfig() spatial.PlaneConfig {
	return spatial.PlaneConfig{
		MaxLayer:            c.MaxLayer,
		PlaneInitThreshold:  c.PlaneInitThreshold,
		UpdateThreshold:     c.UpdateThreshold,
		PlaneEigenThreshold: c.PlaneEigenThreshold,
		MaxPoints:           c.MaxPoints,
		SigmaRatio:          c.SigmaRatio,
	}
}

func (c Config) processNoiseConfig() eskf.ProcessNoiseConfig {
	return eskf.ProcessNoiseConfig{
		Velocity:       c.VelocityProcessNoise,
		LinearAcc:      c.LinearAccProcessNoise,
		AngularAcc:     c.AngularAccProcessNoise,
		LinearAccBias:  c.LinearBiasProcessNoise,
		AngularAccBias: c.AngularBiasProcessNoise,
	}
}

func (c Config) bodyPointNoiseConfig() spatial.BodyPointNoiseConfig {
	return spatial.BodyPointNoiseConfig{
		DistanceStdDev:     c.BodyPointDistanceNoise,
		DirectionStdDevRad: c.BodyPointDirectionNoiseRad,
	}
}
