package lio

import (
	"errors"
	"math"
	"testing"

	"github.com/PossumXI/Asgard/lio/frame"
)

func TestInitImuFailsOnEmptySamples(t *testing.T) {
	_, err := InitImu(nil, 9.81)
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Fatalf("expected ErrInsufficientSamples on an empty sample slice, got %v", err)
	}
}

func TestInitImuGravityConvergesForStaticIMU(t *testing.T) {
	var samples []ImuMeasurement
	for i := 0; i < 5; i++ {
		samples = append(samples, ImuMeasurement{
			T:   float64(i) * 0.2,
			Lin: [3]float64{0, 0, 9.81},
			Ang: [3]float64{0, 0, 0},
		})
	}

	init, err := InitImu(samples, 9.81)
	if err != nil {
		t.Fatalf("expected InitImu to succeed with 5 samples, got %v", err)
	}

	// Gravity should point along -z with the configured norm, matching the
	// accelerometer's static reading of [0,0,9.81].
	if math.Abs(init.Gravity.X) > 1e-9 || math.Abs(init.Gravity.Y) > 1e-9 {
		t.Fatalf("expected gravity to be purely along z, got %+v", init.Gravity)
	}
	if math.Abs(init.Gravity.Z+9.81) > 1e-6 {
		t.Fatalf("expected gravity.z ~= -9.81, got %v", init.Gravity.Z)
	}
	if math.Abs(init.GravityFactor-1.0) > 1e-9 {
		t.Fatalf("expected gravity factor ~= 1.0 when measured norm matches configured gravity, got %v", init.GravityFactor)
	}
	if init.CompletedAt != samples[len(samples)-1].T {
		t.Fatalf("expected CompletedAt to be the last sample's timestamp")
	}
}

func TestInitImuZeroMeanLeavesGravityFactorZero(t *testing.T) {
	samples := []ImuMeasurement{{T: 0, Lin: [3]float64{0, 0, 0}, Ang: [3]float64{0, 0, 0}}}
	init, err := InitImu(samples, 9.81)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if init.GravityFactor != 0 {
		t.Fatalf("expected a zero-norm mean to leave gravity factor at its zero value, got %v", init.GravityFactor)
	}
}

func TestNewImuInitFromGravitySeedsWithoutSamples(t *testing.T) {
	gravity := frame.New[frame.World](0, 0, -9.81)
	init := NewImuInitFromGravity(gravity)

	if init.Gravity != gravity {
		t.Fatalf("expected gravity to pass through unchanged, got %+v", init.Gravity)
	}
	if init.GravityFactor != 1.0 {
		t.Fatalf("expected gravity factor 1.0 with no accelerometer norm to rescale against, got %v", init.GravityFactor)
	}
	if init.AngularAccBias != (frame.Vec3[frame.Imu]{}) {
		t.Fatalf("expected zero gyroscope bias with no samples consumed, got %+v", init.AngularAccBias)
	}
}
