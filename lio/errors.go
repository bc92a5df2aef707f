package lio

import "fmt"

var (
	// ErrInsufficientSamples is returned by InitImu when the initialization
	// window is empty: there is nothing to average, so the caller must
	// collect more samples and retry.
	ErrInsufficientSamples = fmt.Errorf("lio: insufficient IMU samples to initialize")

	// ErrNonPositiveDelta is returned by UpdateImu and UpdateScan when a
	// measurement's timestamp does not advance past the last one the
	// orchestrator saw: the predict step has nothing to integrate over, and
	// accepting the measurement anyway would apply an observation against a
	// stale prediction.
	ErrNonPositiveDelta = fmt.Errorf("lio: measurement timestamp did not advance past the last one processed")
)
