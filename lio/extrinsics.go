package lio

import "github.com/PossumXI/Asgard/lio/frame"

// Extrinsics is the rigid body(LiDAR)->imu transform every body point is
// lifted through before it enters the filter.
type Extrinsics = frame.Transform[frame.Body, frame.Imu]

// IdentityExtrinsics returns the extrinsics for a LiDAR co-located with and
// coaxial to the IMU.
func IdentityExtrinsics() Extrinsics {
	return frame.Identity[frame.Body, frame.Imu]()
}

// Mid360Extrinsics returns the factory-sheet body->imu extrinsics for a
// Livox Mid-360, with no rotational offset between the two frames.
func Mid360Extrinsics() Extrinsics {
	return Extrinsics{
		Rotation:    frame.Identity3(),
		Translation: frame.New[frame.Imu](-0.011, -0.02329, 0.04412),
	}
}
