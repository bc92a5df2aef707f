package lio

import (
	"errors"
	"math"
	"testing"

	"github.com/PossumXI/Asgard/lio/frame"
)

func staticGravityInit() ImuInit {
	init, err := InitImu([]ImuMeasurement{
		{T: 0, Lin: [3]float64{0, 0, 9.81}, Ang: [3]float64{0, 0, 0}},
	}, 9.81)
	if err != nil {
		panic(err)
	}
	return init
}

func TestNewOrchestratorPoseStartsAtIdentity(t *testing.T) {
	l := New(DefaultConfig(), IdentityExtrinsics(), staticGravityInit())
	pose := l.Pose()
	if pose.Translation.X != 0 || pose.Translation.Y != 0 || pose.Translation.Z != 0 {
		t.Fatalf("expected identity translation at construction, got %+v", pose.Translation)
	}
	if pose.Rotation != frame.Identity3() {
		t.Fatalf("expected identity rotation at construction, got %+v", pose.Rotation)
	}
}

func TestStaticIMUStreamKeepsTranslationNearOrigin(t *testing.T) {
	l := New(DefaultConfig(), IdentityExtrinsics(), staticGravityInit())

	for i := 1; i <= 100; i++ {
		if _, err := l.UpdateImu(ImuMeasurement{
			T:   float64(i) * 0.01,
			Lin: [3]float64{0, 0, 9.81},
			Ang: [3]float64{0, 0, 0},
		}); err != nil {
			t.Fatalf("unexpected error at step %d: %v", i, err)
		}
	}

	pos := l.Pose().Translation
	norm := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if norm > 1e-2 {
		t.Fatalf("expected translation norm < 1e-2 after a static IMU stream, got %v (%+v)", norm, pos)
	}
}

func TestEmptyScanProducesNoObservationButStillAdvancesClock(t *testing.T) {
	l := New(DefaultConfig(), IdentityExtrinsics(), staticGravityInit())

	applied, err := l.UpdateScan(ScanBatch{TEnd: 1.0, Points: nil})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied {
		t.Fatalf("expected an empty scan to produce no observation")
	}

	// A later IMU sample should predict relative to the scan's timestamp,
	// not error or panic, confirming the shared clock advanced.
	if _, err := l.UpdateImu(ImuMeasurement{T: 1.1, Lin: [3]float64{0, 0, 9.81}, Ang: [3]float64{0, 0, 0}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateRejectsNonAdvancingTimestamp(t *testing.T) {
	l := New(DefaultConfig(), IdentityExtrinsics(), staticGravityInit())

	if _, err := l.UpdateImu(ImuMeasurement{T: 1.0, Lin: [3]float64{0, 0, 9.81}, Ang: [3]float64{0, 0, 0}}); err != nil {
		t.Fatalf("unexpected error on first sample: %v", err)
	}

	_, err := l.UpdateImu(ImuMeasurement{T: 1.0, Lin: [3]float64{0, 0, 9.81}, Ang: [3]float64{0, 0, 0}})
	if !errors.Is(err, ErrNonPositiveDelta) {
		t.Fatalf("expected ErrNonPositiveDelta for a repeated timestamp, got %v", err)
	}

	_, err = l.UpdateScan(ScanBatch{TEnd: 0.5, Points: nil})
	if !errors.Is(err, ErrNonPositiveDelta) {
		t.Fatalf("expected ErrNonPositiveDelta for a scan timestamp behind the last IMU sample, got %v", err)
	}
}

func TestScanEntirelyOutsideMapProducesNoObservationAndGrowsMap(t *testing.T) {
	l := New(DefaultConfig(), IdentityExtrinsics(), staticGravityInit())

	points := []frame.Vec3[frame.Body]{
		frame.New[frame.Body](100, 100, 100),
		frame.New[frame.Body](100.1, 100, 100),
		frame.New[frame.Body](100, 100.1, 100),
	}
	applied, err := l.UpdateScan(ScanBatch{TEnd: 0.1, Points: points})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied {
		t.Fatalf("expected the first scan into an empty map to produce no observation")
	}
	if len(l.Planes()) != 0 {
		t.Fatalf("expected no fitted planes from a single sparse scan below plane_init_threshold, got %d", len(l.Planes()))
	}
}

func TestConfigGravityFactorOverridesComputedValue(t *testing.T) {
	init := staticGravityInit()
	if math.Abs(init.GravityFactor-1.0) > 1e-9 {
		t.Fatalf("expected the static fixture's computed gravity factor to be ~1.0, got %v", init.GravityFactor)
	}

	cfg := DefaultConfig()
	cfg.GravityFactor = 2.5
	l := New(cfg, IdentityExtrinsics(), init)

	if math.Abs(l.gravityFactor-2.5) > 1e-9 {
		t.Fatalf("expected Config.GravityFactor to override the computed value, got %v", l.gravityFactor)
	}
}

func TestMid360ExtrinsicsHasNoRotation(t *testing.T) {
	ex := Mid360Extrinsics()
	if ex.Rotation != frame.Identity3() {
		t.Fatalf("expected the Mid-360's IMU to share the LiDAR's orientation, got %+v", ex.Rotation)
	}
}
