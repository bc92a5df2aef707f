package lio

import (
	"math"

	"github.com/PossumXI/Asgard/lio/frame"
)

type voxelCoord struct {
	X, Y, Z int64
}

type barycenter struct {
	count int
	mean  frame.Vec3[frame.Body]
}

// Downsampler reduces a body-frame point cloud to one barycenter per
// occupied grid voxel, reusing its internal hash map across calls per the
// allocation discipline in §5.
type Downsampler struct {
	resolution float64
	buckets    map[voxelCoord]*barycenter
}

// NewDownsampler returns a downsampler at the given grid resolution.
func NewDownsampler(resolution float64) *Downsampler {
	return &Downsampler{
		resolution: resolution,
		buckets:    make(map[voxelCoord]*barycenter),
	}
}

// Downsample folds points into the grid and drains it, yielding one
// barycenter per occupied voxel in unspecified order. The internal map is
// cleared after draining so the next call starts fresh.
func (d *Downsampler) Downsample(points []frame.Vec3[frame.Body]) []frame.Vec3[frame.Body] {
	for k := range d.buckets {
		delete(d.buckets, k)
	}

	for _, p := range points {
		coord := voxelCoord{
			X: int64(math.Floor(p.X / d.resolution)),
			Y: int64(math.Floor(p.Y / d.resolution)),
			Z: int64(math.Floor(p.Z / d.resolution)),
		}
		b, ok := d.buckets[coord]
		if !ok {
			b = &barycenter{}
			d.buckets[coord] = b
		}
		b.count++
		b.mean = b.mean.Add(p.Sub(b.mean).Scale(1 / float64(b.count)))
	}

	out := make([]frame.Vec3[frame.Body], 0, len(d.buckets))
	for _, b := range d.buckets {
		out = append(out, b.mean)
	}
	for k := range d.buckets {
		delete(d.buckets, k)
	}
	return out
}
