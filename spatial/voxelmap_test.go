package spatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/PossumXI/Asgard/lio/frame"
)

func TestVoxelMapInsertProducesExactlyOneGroundPlane(t *testing.T) {
	m := NewVoxelMap(0.5, DefaultPlaneConfig())
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 200; i++ {
		x := float64(i%20) * 0.01
		y := float64(i/20) * 0.01
		z := 0.01 * (rng.Float64()*2 - 1)
		m.Insert(UncertainPoint[frame.World]{
			Point: frame.New[frame.World](x, y, z),
			Cov:   frame.Diag3(1e-4, 1e-4, 1e-4),
		})
	}

	// The z jitter straddles z=0, a voxel boundary, so points land in roots
	// (0,0,0) and (0,0,-1). Check the root that holds the z >= 0 points.
	planes := m.roots[VoxelIndex{}].iteratePlanes()
	if len(planes) != 1 {
		t.Fatalf("expected exactly one plane in the containing root, got %d", len(planes))
	}
	if math.Abs(planes[0].Normal.Z) <= 0.99 {
		t.Fatalf("expected a near-vertical normal, got %+v", planes[0].Normal)
	}
}

func TestResidualGatingRejectsFarPointAcceptsNearPoint(t *testing.T) {
	m := NewVoxelMap(0.5, DefaultPlaneConfig())
	rng := rand.New(rand.NewSource(4))

	for i := 0; i < 50; i++ {
		x := float64(i%10) * 0.01
		y := float64(i/10) * 0.01
		z := 0.01 * (rng.Float64()*2 - 1)
		m.Insert(UncertainPoint[frame.World]{
			Point: frame.New[frame.World](x, y, z),
			Cov:   frame.Diag3(1e-4, 1e-4, 1e-4),
		})
	}

	far := UncertainPoint[frame.World]{
		Point: frame.New[frame.World](0, 0, 1),
		Cov:   frame.Diag3(1e-4, 1e-4, 1e-4),
	}
	if _, ok := m.GetResidual(far); ok {
		t.Fatalf("expected no residual for a point 1m off the plane (neither its voxel nor its neighbour holds a plane)")
	}

	near := UncertainPoint[frame.World]{
		Point: frame.New[frame.World](0, 0, 0.02),
		Cov:   frame.Diag3(1e-4, 1e-4, 1e-4),
	}
	if _, ok := m.GetResidual(near); !ok {
		t.Fatalf("expected a point 2cm off the plane to be accepted")
	}
}

func TestSpatialHashIsDeterministic(t *testing.T) {
	idx := VoxelIndex{X: 3, Y: -7, Z: 12}
	h1 := SpatialHash(idx)
	h2 := SpatialHash(idx)
	if h1 != h2 {
		t.Fatalf("spatial hash is not deterministic: %d vs %d", h1, h2)
	}
	if h1 < 0 {
		t.Fatalf("spatial hash must be non-negative, got %d", h1)
	}
}

func TestToVoxelIndexGroupsPointsInTheSameVoxel(t *testing.T) {
	a := ToVoxelIndex(frame.New[frame.World](0.1, 0.1, 0.1), 0.5)
	b := ToVoxelIndex(frame.New[frame.World](0.4, 0.3, 0.2), 0.5)
	if a != b {
		t.Fatalf("points within the same 0.5m voxel should share an index: %+v vs %+v", a, b)
	}
	c := ToVoxelIndex(frame.New[frame.World](0.6, 0.1, 0.1), 0.5)
	if a == c {
		t.Fatalf("points in different voxels should not share an index")
	}
}
