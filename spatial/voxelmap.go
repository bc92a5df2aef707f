package spatial

import (
	"math"

	"github.com/PossumXI/Asgard/lio/frame"
)

// VoxelIndex is the integer voxel coordinate a world point falls into. It is
// used directly as the map key into VoxelMap.roots: keying by the exact
// coordinate tuple (rather than by the spatial hash below) guarantees two
// points in the same voxel always route to the same root, with no
// possibility of a hash collision silently violating that guarantee.
type VoxelIndex struct {
	X, Y, Z int64
}

// ToVoxelIndex floors p/voxelSize per axis.
func ToVoxelIndex(p frame.Vec3[frame.World], voxelSize float64) VoxelIndex {
	return VoxelIndex{
		X: int64(math.Floor(p.X / voxelSize)),
		Y: int64(math.Floor(p.Y / voxelSize)),
		Z: int64(math.Floor(p.Z / voxelSize)),
	}
}

// SpatialHash implements the reference spatial hash over a voxel index. It
// is not used as VoxelMap's internal bucket key (see VoxelIndex), but is
// exposed so callers that need a compact bucket id — logging, sharding,
// debug dumps — compute it the same way the reference implementation does.
func SpatialHash(idx VoxelIndex) int64 {
	const (
		p1 = 73856093
		p2 = 19349669
		p3 = 83492791
		m  = 10000000
	)
	h := (idx.X*p1 ^ idx.Y*p2 ^ idx.Z*p3) % m
	if h < 0 {
		h += m
	}
	return h
}

// Residual is a candidate point-to-plane correspondence returned by a
// voxel-map query: the plane matched, the signed point-to-plane distance,
// and the combined (plane + point) variance along the normal.
type Residual struct {
	Plane    *Plane
	Distance float64
	Sigma    float64
}

// VoxelMap is the sparse, uncertainty-aware map of fitted planes: a hash map
// from voxel index to an octree root, each root caching and refitting
// planes for the points that land inside it.
type VoxelMap struct {
	roots     map[VoxelIndex]*OctreeRoot
	voxelSize float64
	planeCfg  PlaneConfig
}

// NewVoxelMap returns an empty map with the given voxel size and plane
// fitting configuration.
func NewVoxelMap(voxelSize float64, planeCfg PlaneConfig) *VoxelMap {
	return &VoxelMap{
		roots:     make(map[VoxelIndex]*OctreeRoot),
		voxelSize: voxelSize,
		planeCfg:  planeCfg,
	}
}

// Insert routes a world-frame uncertain point to its voxel's root, creating
// the root on first use.
func (m *VoxelMap) Insert(point UncertainPoint[frame.World]) {
	idx := ToVoxelIndex(point.Point, m.voxelSize)
	root, ok := m.roots[idx]
	if !ok {
		root = newOctreeRoot(idx, m.voxelSize)
		m.roots[idx] = root
	}
	root.Insert(point, m.planeCfg)
}

// Planes returns a snapshot enumeration of every fitted plane across every
// root in the map, for visualization/debug consumers.
func (m *VoxelMap) Planes() []*Plane {
	var out []*Plane
	for _, root := range m.roots {
		out = append(out, root.iteratePlanes()...)
	}
	return out
}

// GetResidual finds the best point-to-plane correspondence for q, per §4.4
// steps 2-6: look up q's own voxel first; if that voxel has no surviving
// candidate (no root, or every plane there fails the range/gating test),
// fall back exactly one step to the single neighboring voxel q leans
// towards (no further recursion).
func (m *VoxelMap) GetResidual(q UncertainPoint[frame.World]) (Residual, bool) {
	idx := ToVoxelIndex(q.Point, m.voxelSize)
	if root, ok := m.roots[idx]; ok {
		if res, ok := queryResidual(root, q, m.planeCfg.SigmaRatio); ok {
			return res, true
		}
	}

	neighbor := m.neighborIndex(idx, q.Point)
	if neighbor == idx {
		return Residual{}, false
	}
	if root, ok := m.roots[neighbor]; ok {
		return queryResidual(root, q, m.planeCfg.SigmaRatio)
	}
	return Residual{}, false
}

// neighborIndex computes the single voxel neighbor q leans towards, based
// on the root-level center and quarter-side for idx (independent of the
// octree's internal depth, since every root always starts at
// idx*voxelSize + voxelSize/2 with quarter-side voxelSize/4).
func (m *VoxelMap) neighborIndex(idx VoxelIndex, q frame.Vec3[frame.World]) VoxelIndex {
	center := frame.New[frame.World](
		float64(idx.X)*m.voxelSize+m.voxelSize/2,
		float64(idx.Y)*m.voxelSize+m.voxelSize/2,
		float64(idx.Z)*m.voxelSize+m.voxelSize/2,
	)
	quarter := m.voxelSize / 4
	next := idx
	switch {
	case q.X > center.X+quarter:
		next.X++
	case q.X < center.X-quarter:
		next.X--
	}
	switch {
	case q.Y > center.Y+quarter:
		next.Y++
	case q.Y < center.Y-quarter:
		next.Y--
	}
	switch {
	case q.Z > center.Z+quarter:
		next.Z++
	case q.Z < center.Z-quarter:
		next.Z--
	}
	return next
}

// queryResidual scans every fitted plane in root and returns the
// maximum-likelihood surviving candidate, per §4.4 steps 3-6:
//
//  1. range filter: reject planes whose in-plane distance from the
//     centroid exceeds 3*radius.
//  2. gating filter: reject planes whose |signed distance| does not fall
//     within sigma_ratio standard deviations of the combined variance.
//  3. among survivors, keep the one maximizing
//     (1/sqrt(sigma)) * exp(-0.5*d^2/sigma).
func queryResidual(root *OctreeRoot, q UncertainPoint[frame.World], sigmaRatio float64) (Residual, bool) {
	var best Residual
	var bestLikelihood float64
	found := false

	for _, plane := range root.iteratePlanes() {
		diff := q.Point.Sub(plane.Centroid)
		d := plane.Normal.Dot(diff)

		rangeSq := diff.Dot(diff) - d*d
		if rangeSq < 0 {
			rangeSq = 0
		}
		if math.Sqrt(rangeSq) > 3*plane.Radius {
			continue
		}

		e := Vec6{diff.X, diff.Y, diff.Z, -plane.Normal.X, -plane.Normal.Y, -plane.Normal.Z}
		sigmaPlanePart := plane.Cov.QuadForm(e)
		sigmaPointPart := quadForm3(q.Cov, plane.Normal)
		sigma := sigmaPlanePart + sigmaPointPart
		if sigma <= 0 {
			continue
		}

		if math.Abs(d) >= sigmaRatio*math.Sqrt(sigma) {
			continue
		}

		likelihood := (1 / math.Sqrt(sigma)) * math.Exp(-0.5*d*d/sigma)
		if !found || likelihood > bestLikelihood {
			found = true
			bestLikelihood = likelihood
			best = Residual{Plane: plane, Distance: d, Sigma: sigma}
		}
	}
	return best, found
}

func quadForm3(m frame.Mat3, v frame.Vec3[frame.World]) float64 {
	mv := frame.MulVec(m, v)
	return v.Dot(mv)
}
