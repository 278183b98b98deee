// Package mesh merges per-surface triangulations into flat, smoothly shaded
// triangle mesh buffers.
//
// The input is a sequence of patches, each one surface's local triangulation plus
// its placement transform and winding-orientation flag, as produced by the
// geometry kernel. Assemble concatenates them into one Buffer with positions
// in world space, a consistent outward winding, and area-weighted vertex
// normals. Vertices are never deduplicated across patch seams; coincident
// seam vertices are an accepted property of the output, not a defect.
package mesh
