package spatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/PossumXI/Asgard/lio/frame"
)

func TestFitPlaneOnFlatSurfaceRecoversVerticalNormal(t *testing.T) {
	cfg := DefaultPlaneConfig()
	rng := rand.New(rand.NewSource(1))

	var points []UncertainPoint[frame.World]
	for i := 0; i < 200; i++ {
		x := float64(i%20) * 0.1
		y := float64(i/20) * 0.1
		z := 0.01 * (rng.Float64()*2 - 1)
		points = append(points, UncertainPoint[frame.World]{
			Point: frame.New[frame.World](x, y, z),
			Cov:   frame.Diag3(1e-4, 1e-4, 1e-4),
		})
	}

	plane, ferr := fitPlane(points, cfg)
	if ferr != planeFitOK {
		t.Fatalf("expected a valid plane fit, got error %v", ferr)
	}

	absZ := math.Abs(plane.Normal.Z)
	if absZ <= 0.99 {
		t.Fatalf("expected |normal.z| > 0.99, got %v (normal=%+v)", absZ, plane.Normal)
	}
	if math.Abs(plane.Normal.Norm()-1) > 1e-9 {
		t.Fatalf("normal is not unit length: %v", plane.Normal.Norm())
	}
	if plane.Radius < 0 {
		t.Fatalf("radius must be non-negative, got %v", plane.Radius)
	}
}

func TestFitPlaneTooFewPoints(t *testing.T) {
	cfg := DefaultPlaneConfig()
	points := []UncertainPoint[frame.World]{
		{Point: frame.New[frame.World](0, 0, 0)},
		{Point: frame.New[frame.World](1, 0, 0)},
	}
	_, ferr := fitPlane(points, cfg)
	if ferr != planeFitTooFewPoints {
		t.Fatalf("expected planeFitTooFewPoints, got %v", ferr)
	}
}

func TestFitPlaneRejectsNonPlanarCluster(t *testing.T) {
	cfg := DefaultPlaneConfig()
	rng := rand.New(rand.NewSource(2))
	var points []UncertainPoint[frame.World]
	for i := 0; i < 20; i++ {
		points = append(points, UncertainPoint[frame.World]{
			Point: frame.New[frame.World](rng.Float64(), rng.Float64(), rng.Float64()),
		})
	}
	_, ferr := fitPlane(points, cfg)
	if ferr != planeFitEigenTooBig {
		t.Fatalf("expected planeFitEigenTooBig for a volumetric cluster, got %v", ferr)
	}
}
