package lio

// Option mutates a Config built from NewConfig. Setters apply in order, so a
// later option overrides an earlier one that touches the same field.
type Option func(*Config)

// NewConfig returns DefaultConfig with opts applied on top, in order.
func NewConfig(opts ...Option) Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithVoxelSize overrides the voxel map's root voxel edge length in meters, and the point
// downsampler's resolution along with it (pass WithDownsampleResolution
// afterwards to decouple the two).
func WithVoxelSize(v float64) Option {
	return func(c *Config) {
		c.VoxelSize = v
		c.DownsampleResolution = v
	}
}

// WithDownsampleResolution overrides the point downsampler's voxel size
// independently of the map's VoxelSize.
func WithDownsampleResolution(v float64) Option {
	return func(c *Config) { c.DownsampleResolution = v }
}

// WithGravity overrides the expected gravity norm (m/s^2) ImuInit solves for.
func WithGravity(g float64) Option {
	return func(c *Config) { c.Gravity = g }
}

// WithGravityFactor pins the accelerometer rescale factor, bypassing the one
// ImuInit computes from the initialization window.
func WithGravityFactor(f float64) Option {
	return func(c *Config) { c.GravityFactor = f }
}

// WithMaxPoints overrides the octree leaf freeze threshold.
func WithMaxPoints(n int) Option {
	return func(c *Config) { c.MaxPoints = n }
}

// WithImuNoise overrides the per-axis accelerometer and gyroscope noise
// standard deviations used to build the IMU observation's noise diagonal.
func WithImuNoise(accStdDev, gyroStdDev float64) Option {
	return func(c *Config) {
		c.ImuAccNoise = accStdDev
		c.ImuGyroNoise = gyroStdDev
	}
}

// WithLidarPointNoise overrides the base point-to-plane noise scale the
// point observation multiplies by each candidate plane's combined sigma.
func WithLidarPointNoise(n float64) Option {
	return func(c *Config) { c.LidarPointNoise = n }
}

// WithBufferInitSize overrides the scratch buffer's initial capacity.
func WithBufferInitSize(n int) Option {
	return func(c *Config) { c.BufferInitSize = n }
}
