package lio

import (
	"github.com/PossumXI/Asgard/lio/eskf"
	"github.com/PossumXI/Asgard/lio/frame"
	"github.com/PossumXI/Asgard/lio/internal/telemetry"
	"github.com/PossumXI/Asgard/lio/spatial"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// ScanBatch is one LiDAR sweep: its end-of-scan timestamp and the body-frame
// points it carries.
type ScanBatch struct {
	TEnd   float64
	Points []frame.Vec3[frame.Body]
}

// bufferEntry is one scratch-buffer slot: the pose-independent geometry
// computed once per point (the uncertain body and IMU-frame points, and the
// point's skew matrix in the IMU frame), plus the world point computed
// against the predicted-but-not-yet-corrected pose, reused as the
// map-insertion fallback when a scan produces no observation.
type bufferEntry struct {
	Body           spatial.UncertainPoint[frame.Body]
	Imu            spatial.UncertainPoint[frame.Imu]
	CrossImu       frame.Mat3
	PredictedWorld spatial.UncertainPoint[frame.World]
}

// Lio is the orchestrator: it owns the ESKF, the voxel map, the
// downsampler, the scratch buffer, and the extrinsics and noise
// configuration every measurement is built against.
type Lio struct {
	filter      *eskf.Eskf
	vmap        *spatial.VoxelMap
	downsampler *Downsampler
	extrinsics  Extrinsics
	config      Config

	gravityFactor float64
	buffer        []bufferEntry

	lastT    float64
	hasLastT bool

	log *logrus.Logger
}

// New builds an orchestrator seeded from an IMU init: the state's gravity
// and gyroscope bias come from init, the gravity factor rescales raw
// accelerometer readings in every subsequent IMU observation.
func New(cfg Config, extrinsics Extrinsics, init ImuInit) *Lio {
	initial := eskf.NewState()
	initial.Gravity = init.Gravity
	initial.AngularAccBias = init.AngularAccBias

	gravityFactor := init.GravityFactor
	if cfg.GravityFactor != 0 {
		gravityFactor = cfg.GravityFactor
	}

	telemetry.Logger.WithFields(logrus.Fields{
		"gravity_factor": gravityFactor,
		"voxel_size":     cfg.VoxelSize,
	}).Info("lio orchestrator initialized")

	return &Lio{
		filter:        eskf.New(initial, cfg.processNoiseConfig()),
		vmap:          spatial.NewVoxelMap(cfg.VoxelSize, cfg.planeConfig()),
		downsampler:   NewDownsampler(cfg.DownsampleResolution),
		extrinsics:    extrinsics,
		config:        cfg,
		gravityFactor: gravityFactor,
		buffer:        make([]bufferEntry, 0, cfg.BufferInitSize),
		log:           telemetry.Logger,
	}
}

// Pose returns the current imu-to-world pose estimate.
func (l *Lio) Pose() frame.Transform[frame.Imu, frame.World] {
	return l.filter.State().Pose()
}

// Planes returns a snapshot enumeration of the map's fitted planes.
func (l *Lio) Planes() []*spatial.Plane {
	return l.vmap.Planes()
}

// checkAdvances verifies t strictly advances past the last measurement
// timestamp the orchestrator processed. The ESKF's own predict step silently
// skips integration on a non-positive dt (out-of-order timestamps shouldn't
// panic); at the orchestration boundary that same condition instead gets
// logged and rejected, since a caller feeding non-monotonic timestamps is a
// bug worth surfacing rather than an edge case worth absorbing twice.
func (l *Lio) checkAdvances(t float64) error {
	if l.hasLastT && t-l.lastT <= 0 {
		l.log.WithFields(logrus.Fields{"t": t, "last_t": l.lastT}).Warn("measurement timestamp did not advance, dropping")
		return ErrNonPositiveDelta
	}
	l.lastT = t
	l.hasLastT = true
	return nil
}

// UpdateImu runs predict-to-t followed by the IMU observation, per §4.7's
// "per-IMU update": eskf.update(t, observe_imu).
func (l *Lio) UpdateImu(sample ImuMeasurement) (bool, error) {
	if err := l.checkAdvances(sample.T); err != nil {
		return false, err
	}
	return l.filter.Update(sample.T, l.buildImuObservation(sample)), nil
}

// UpdateScan runs the five-step per-scan update from §4.7: downsample,
// populate the scratch buffer, predict-and-observe against the map, then
// re-insert either the post-update or the predicted-pose world points
// depending on whether an observation was applied.
func (l *Lio) UpdateScan(scan ScanBatch) (bool, error) {
	if err := l.checkAdvances(scan.TEnd); err != nil {
		return false, err
	}

	down := l.downsampler.Downsample(scan.Points)
	l.log.WithFields(logrus.Fields{
		"raw_points":         len(scan.Points),
		"downsampled_points": len(down),
	}).Debug("scan downsampled")

	bodyCfg := l.config.bodyPointNoiseConfig()
	l.buffer = l.buffer[:0]
	for _, p := range down {
		bp := spatial.UncertainBodyPoint(p, bodyCfg)
		ip := spatial.BodyToImu(bp, l.extrinsics)
		l.buffer = append(l.buffer, bufferEntry{
			Body:     bp,
			Imu:      ip,
			CrossImu: ip.Point.CrossMatrix(),
		})
	}

	applied := l.filter.Update(scan.TEnd, l.buildPointObservation)
	if !applied {
		l.log.WithField("points", len(down)).Warn("scan produced no point-to-plane observation")
	}

	pose := l.filter.State().Pose()
	posCov := denseToMat3(l.filter.Covariance().Sub(eskf.Position))
	rotCov := denseToMat3(l.filter.Covariance().Sub(eskf.Rotation))
	for i := range l.buffer {
		entry := &l.buffer[i]
		var world spatial.UncertainPoint[frame.World]
		if applied {
			world = spatial.ImuToWorld(entry.Imu, pose, posCov, rotCov)
		} else {
			world = entry.PredictedWorld
		}
		l.vmap.Insert(world)
	}
	l.buffer = l.buffer[:0]

	return applied, nil
}

// buildImuObservation builds the IMU observation per §4.3: z stacks the
// rescaled-accelerometer and gyro residuals against the current bias
// estimate, over the full AccWithBias sub-state. Each residual component is
// measured minus (estimate + bias), so the 6x12 Jacobian is [I I].
func (l *Lio) buildImuObservation(sample ImuMeasurement) eskf.BuildObservation {
	return func(e *eskf.Eskf) (eskf.Observation, bool) {
		st := e.State()

		measLin := frame.New[frame.Imu](sample.Lin[0], sample.Lin[1], sample.Lin[2]).Scale(l.gravityFactor)
		zLin := measLin.Sub(st.LinearAcc).Sub(st.LinearAccBias)

		measAng := frame.New[frame.Imu](sample.Ang[0], sample.Ang[1], sample.Ang[2])
		zAng := measAng.Sub(st.AngularAcc).Sub(st.AngularAccBias)

		z := mat.NewVecDense(6, []float64{zLin.X, zLin.Y, zLin.Z, zAng.X, zAng.Y, zAng.Z})

		accVar := l.config.ImuAccNoise * l.config.ImuAccNoise
		gyroVar := l.config.ImuGyroNoise * l.config.ImuGyroNoise
		noise := []float64{accVar, accVar, accVar, gyroVar, gyroVar, gyroVar}

		h := mat.NewDense(6, 12, nil)
		for i := 0; i < 6; i++ {
			h.Set(i, i, 1)
			h.Set(i, 6+i, 1)
		}

		return eskf.Observation{
			Sub:       eskf.AccWithBias,
			Model:     eskf.DenseModel(h),
			Z:         z,
			NoiseDiag: noise,
		}, true
	}
}

// buildPointObservation builds the point-to-plane observation per §4.3: for
// each buffered point, transform to world with the current (predicted)
// pose, query the map for a residual, and if accepted emit a row stacking
// the scalar distance measurement, the 6-wide Pose-sub-state model row, and
// the scalar noise. Points whose residual query misses contribute nothing;
// if every point misses, no observation is produced and the predict-only
// step stands.
func (l *Lio) buildPointObservation(e *eskf.Eskf) (eskf.Observation, bool) {
	pose := e.State().Pose()
	rotT := pose.Rotation.Transpose()
	posCov := denseToMat3(e.Covariance().Sub(eskf.Position))
	rotCov := denseToMat3(e.Covariance().Sub(eskf.Rotation))

	type row struct {
		z     float64
		h     [6]float64
		noise float64
	}
	var rows []row

	for i := range l.buffer {
		entry := &l.buffer[i]
		world := spatial.ImuToWorld(entry.Imu, pose, posCov, rotCov)
		entry.PredictedWorld = world

		res, ok := l.vmap.GetResidual(world)
		if !ok {
			continue
		}

		rotatedNormal := frame.FromArray[frame.Imu](applyMat3(rotT, res.Plane.Normal.Array()))
		crossTerm := frame.MulVec(entry.CrossImu, rotatedNormal)

		n := res.Plane.Normal
		rows = append(rows, row{
			z:     -res.Distance,
			h:     [6]float64{crossTerm.X, crossTerm.Y, crossTerm.Z, n.X, n.Y, n.Z},
			noise: l.config.LidarPointNoise * res.Sigma,
		})
	}

	if len(rows) == 0 {
		return eskf.Observation{}, false
	}

	d := len(rows)
	z := mat.NewVecDense(d, nil)
	h := mat.NewDense(d, 6, nil)
	noiseDiag := make([]float64, d)
	for i, r := range rows {
		z.SetVec(i, r.z)
		for c := 0; c < 6; c++ {
			h.Set(i, c, r.h[c])
		}
		noiseDiag[i] = r.noise
	}

	return eskf.Observation{
		Sub:       eskf.Pose,
		Model:     eskf.DenseModel(h),
		Z:         z,
		NoiseDiag: noiseDiag,
	}, true
}

// denseToMat3 copies a 3x3 gonum block into a plain frame.Mat3, bridging the
// ESKF core's gonum-backed covariance into the frame/spatial packages'
// plain-array geometry.
func denseToMat3(d *mat.Dense) frame.Mat3 {
	var m frame.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = d.At(i, j)
		}
	}
	return m
}

// applyMat3 applies a plain 3x3 matrix to a plain array, used where a
// rotation needs to cross from one frame tag to another (here World to
// Imu): frame.MulVec intentionally keeps its input and output in the same
// tag, so a genuine frame change goes through the untagged array form.
func applyMat3(m frame.Mat3, v [3]float64) [3]float64 {
	return [3]float64{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}
