package lio

import (
	"math"
	"testing"

	"github.com/PossumXI/Asgard/lio/frame"
)

func TestDownsampleBarycenter(t *testing.T) {
	d := NewDownsampler(0.5)
	points := []frame.Vec3[frame.Body]{
		frame.New[frame.Body](3, 3, 0),
		frame.New[frame.Body](3.2, 3.2, 0),
		frame.New[frame.Body](3.4, 3.4, 0),
	}

	out := d.Downsample(points)
	if len(out) != 1 {
		t.Fatalf("expected exactly one output point, got %d: %+v", len(out), out)
	}
	if math.Abs(out[0].X-3.2) > 1e-9 || math.Abs(out[0].Y-3.2) > 1e-9 || out[0].Z != 0 {
		t.Fatalf("expected barycenter [3.2,3.2,0], got %+v", out[0])
	}
}

func TestDownsampleIsIdempotent(t *testing.T) {
	d := NewDownsampler(0.5)
	points := []frame.Vec3[frame.Body]{
		frame.New[frame.Body](3, 3, 0),
		frame.New[frame.Body](3.2, 3.2, 0),
		frame.New[frame.Body](10, 10, 10),
	}

	first := d.Downsample(points)
	second := d.Downsample(first)

	if len(first) != len(second) {
		t.Fatalf("expected downsampling a downsampled cloud to yield the same count, got %d then %d", len(first), len(second))
	}
}

func TestDownsampleReusesMapAcrossCalls(t *testing.T) {
	d := NewDownsampler(1.0)
	d.Downsample([]frame.Vec3[frame.Body]{frame.New[frame.Body](0, 0, 0)})
	out := d.Downsample([]frame.Vec3[frame.Body]{frame.New[frame.Body](5, 5, 5)})
	if len(out) != 1 {
		t.Fatalf("expected the bucket map to be cleared between calls, got %d points", len(out))
	}
}
