package kernel

import (
	"context"
	"errors"

	"github.com/camforge/geomlink/mesh"
)

// Sentinel failure signals raised by kernel implementations. The boundary
// layer classifies kernel errors against these with errors.Is; anything else
// is an unclassified kernel fault.
var (
	// ErrParse marks a file the kernel's loader rejected.
	ErrParse = errors.New("parse failed")
	// ErrNoResult marks an operation that completed but produced nothing
	// usable, e.g. a tessellation with no triangles.
	ErrNoResult = errors.New("no result")
)

// Shape is a kernel-owned B-rep shape. The boundary layer treats it as
// opaque: it is stored by handle, passed back into kernel operations, and
// released exactly once.
type Shape interface {
	// Release frees the kernel-side object. Idempotent; a second call is a
	// no-op.
	Release(ctx context.Context) error
}

// TessellationOpts controls triangulation density.
type TessellationOpts struct {
	// ChordTolerance is the maximum chord-height deviation between the
	// triangulation and the true surface, in model units.
	ChordTolerance float64
	// AngleTolerance is the maximum angular deviation between adjacent
	// triangle normals, in radians.
	AngleTolerance float64
}

// BBox is an axis-aligned bounding box in world space.
type BBox struct {
	Min [3]float64
	Max [3]float64
}

// Void reports an empty box, the kernel's answer for a shape with no
// geometric extent.
func (b BBox) Void() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Kernel is the external geometry collaborator. All operations are
// synchronous and run on the caller's goroutine; implementations document
// any serialization they impose on specific operation families.
type Kernel interface {
	// ImportStep parses and heals a STEP file, returning a kernel-owned
	// shape. Fails with ErrParse (wrapped) for files the reader rejects.
	ImportStep(ctx context.Context, path string) (Shape, error)

	// ImportIges parses and heals an IGES file, returning a kernel-owned
	// shape. Same contract as ImportStep.
	ImportIges(ctx context.Context, path string) (Shape, error)

	// ImportSTL reads an STL file as triangulation patches in a single
	// identity-placed, forward-wound patch.
	ImportSTL(ctx context.Context, path string) ([]mesh.Patch, error)

	// Tessellate triangulates the shape, one patch per surface, each in its
	// own local frame with its placement transform and orientation flag.
	Tessellate(ctx context.Context, shape Shape, opts TessellationOpts) ([]mesh.Patch, error)

	// BoundingBox computes the shape's axis-aligned bounds. A void box is
	// returned for shapes with no extent; the caller decides whether that is
	// a failure.
	BoundingBox(ctx context.Context, shape Shape) (BBox, error)
}
