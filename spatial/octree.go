package spatial

import (
	"github.com/PossumXI/Asgard/lio/frame"
	"github.com/PossumXI/Asgard/lio/internal/telemetry"
	"github.com/sirupsen/logrus"
)

// octNode is either a leaf or a branch. Children are stored as indices into
// the owning root's node arena rather than pointers: id 0 is reserved for
// the root itself, so 0 doubles as the "no child yet" sentinel in a
// branch's children array, mirroring the slab-arena discipline the
// specification requires (no raw owning pointers, so a leaf can be
// converted into a branch in place without invalidating any other node's
// reference).
type octNode struct {
	isBranch bool
	center   frame.Vec3[frame.World]
	quarter  float64
	depth    int

	// leaf fields
	plane        *Plane
	cachedPoints []UncertainPoint[frame.World]
	frozen       bool

	// branch fields
	children [8]int
}

// OctreeRoot owns the arena of nodes for one voxel.
type OctreeRoot struct {
	nodes []octNode
}

// newOctreeRoot creates a root centered per §4.4 step 1: idx*voxelSize +
// voxelSize/2, with quarter-side voxelSize/4 and depth 0.
func newOctreeRoot(idx VoxelIndex, voxelSize float64) *OctreeRoot {
	center := frame.New[frame.World](
		float64(idx.X)*voxelSize+voxelSize/2,
		float64(idx.Y)*voxelSize+voxelSize/2,
		float64(idx.Z)*voxelSize+voxelSize/2,
	)
	return &OctreeRoot{
		nodes: []octNode{{center: center, quarter: voxelSize / 4}},
	}
}

// Insert routes a point down to the containing leaf, creating branch
// children on demand, and applies the leaf lifecycle (plane refit,
// leaf-to-branch conversion, freezing) described in §4.4 step 3-5.
func (root *OctreeRoot) Insert(point UncertainPoint[frame.World], cfg PlaneConfig) {
	id := root.descend(0, point.Point)
	root.insertAtLeaf(id, point, cfg)
}

// descend walks from id down to the leaf that should contain p, creating
// any missing branch children along the way.
func (root *OctreeRoot) descend(id int, p frame.Vec3[frame.World]) int {
	for {
		if !root.nodes[id].isBranch {
			return id
		}
		center := root.nodes[id].center
		coord := childCoord(center, p)
		idx := coordIndex(coord)
		childID := root.nodes[id].children[idx]
		if childID == 0 {
			childCenter, childQuarter := childCenterAndQuarter(center, root.nodes[id].quarter, coord)
			root.nodes = append(root.nodes, octNode{
				center:  childCenter,
				quarter: childQuarter,
				depth:   root.nodes[id].depth + 1,
			})
			childID = len(root.nodes) - 1
			root.nodes[id].children[idx] = childID
		}
		id = childID
	}
}

// insertAtLeaf applies the leaf lifecycle at a node already known to be a
// leaf (post-descend). If the refit converts the leaf to a branch, it
// drains the cached points and re-inserts each one from id, which is now a
// branch and will route them into fresh children.
func (root *OctreeRoot) insertAtLeaf(id int, point UncertainPoint[frame.World], cfg PlaneConfig) {
	n := &root.nodes[id]
	if n.frozen {
		return
	}

	n.cachedPoints = append(n.cachedPoints, point)
	count := len(n.cachedPoints)

	if count%cfg.UpdateThreshold == 0 {
		n.plane = nil
		plane, ferr := fitPlane(n.cachedPoints, cfg)
		switch ferr {
		case planeFitOK:
			n.plane = plane
			telemetry.Logger.WithFields(logrus.Fields{
				"depth":  n.depth,
				"points": count,
			}).Debug("leaf plane fitted")
		case planeFitEigenTooBig:
			if n.depth < cfg.MaxLayer {
				telemetry.Logger.WithFields(logrus.Fields{
					"depth":  n.depth,
					"points": count,
				}).Debug("leaf converted to branch, redistributing cached points")
				drained := n.cachedPoints
				n.isBranch = true
				n.plane = nil
				n.cachedPoints = nil
				n.children = [8]int{}
				for _, dp := range drained {
					childID := root.descend(id, dp.Point)
					root.insertAtLeaf(childID, dp, cfg)
				}
				return
			}
			// At max depth: keep the leaf without a plane.
		case planeFitTooFewPoints:
		}
	}

	// Freezing is a separate, unconditional check run on every insertion,
	// not gated by the refit cadence above: a leaf that has accumulated
	// max_points cached points stops accepting more regardless of whether
	// this insertion happened to land on an update_threshold multiple.
	if count >= cfg.MaxPoints {
		n.frozen = true
		n.cachedPoints = nil
		telemetry.Logger.WithField("depth", n.depth).Debug("leaf frozen, pruning cached points")
	}
}

// iteratePlanes flat-scans the arena for every leaf with a fitted plane.
// All nodes of a root live in one contiguous slice, so a flat scan visits
// exactly the same set a recursive DFS would.
func (root *OctreeRoot) iteratePlanes() []*Plane {
	var out []*Plane
	for i := range root.nodes {
		if !root.nodes[i].isBranch && root.nodes[i].plane != nil {
			out = append(out, root.nodes[i].plane)
		}
	}
	return out
}

// childCoord reports, per axis, whether p lies at or above the node center.
func childCoord(center frame.Vec3[frame.World], p frame.Vec3[frame.World]) [3]bool {
	return [3]bool{p.X >= center.X, p.Y >= center.Y, p.Z >= center.Z}
}

func coordIndex(c [3]bool) int {
	idx := 0
	if c[0] {
		idx |= 1
	}
	if c[1] {
		idx |= 2
	}
	if c[2] {
		idx |= 4
	}
	return idx
}

// childCenterAndQuarter offsets the parent center by +-quarter per axis
// according to coord, and halves the quarter-side for the child.
func childCenterAndQuarter(center frame.Vec3[frame.World], quarter float64, coord [3]bool) (frame.Vec3[frame.World], float64) {
	sign := func(b bool) float64 {
		if b {
			return 1
		}
		return -1
	}
	child := frame.New[frame.World](
		center.X+sign(coord[0])*quarter,
		center.Y+sign(coord[1])*quarter,
		center.Z+sign(coord[2])*quarter,
	)
	return child, quarter / 2
}
