package mesh

// Buffer is an assembled triangle mesh in world space. Buffers are built
// once by Assemble and immutable thereafter.
type Buffer struct {
	// Vertices holds xyz triples, 3 float64 per vertex.
	Vertices []float64
	// Normals holds xyz triples, 3 float64 per vertex, unit length except at
	// degenerate vertices where the normal is the zero vector. Always the
	// same vertex count as Vertices.
	Normals []float64
	// Indices holds vertex index triples, 3 uint32 per triangle, each index
	// < VertexCount. Winding is consistently outward-facing.
	Indices []uint32
}

// VertexCount returns the number of vertices.
func (b *Buffer) VertexCount() int {
	return len(b.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (b *Buffer) TriangleCount() int {
	return len(b.Indices) / 3
}

// Empty reports whether the buffer holds no triangles.
func (b *Buffer) Empty() bool {
	return len(b.Indices) == 0
}

// Transform is an affine local-to-world placement: p' = Linear*p + Offset.
type Transform struct {
	// Linear is the row-major 3x3 linear part.
	Linear [9]float64
	// Offset is the translation part.
	Offset [3]float64
}

// Identity returns the identity placement.
func Identity() Transform {
	return Transform{Linear: [9]float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}}
}

// Translation returns a pure-translation placement.
func Translation(x, y, z float64) Transform {
	t := Identity()
	t.Offset = [3]float64{x, y, z}
	return t
}

// Apply maps a local point to world space.
func (t Transform) Apply(x, y, z float64) (float64, float64, float64) {
	m := &t.Linear
	return m[0]*x + m[1]*y + m[2]*z + t.Offset[0],
		m[3]*x + m[4]*y + m[5]*z + t.Offset[1],
		m[6]*x + m[7]*y + m[8]*z + t.Offset[2]
}

// Patch is one surface's triangulation in its own local frame.
type Patch struct {
	// Positions holds xyz triples, 3 float64 per vertex, in the local frame.
	Positions []float64
	// Triangles holds 1-based local vertex index triples, 3 uint32 per
	// triangle.
	Triangles []uint32
	// Placement is the local-to-world transform; nil means identity.
	Placement *Transform
	// Reversed marks a surface whose native orientation is inward-facing.
	// Assemble flips the winding of every triangle of a reversed patch.
	Reversed bool
}

// VertexCount returns the number of local vertices.
func (p *Patch) VertexCount() int {
	return len(p.Positions) / 3
}

// TriangleCount returns the number of triangles.
func (p *Patch) TriangleCount() int {
	return len(p.Triangles) / 3
}
