package mesh

import (
	"fmt"
	"math"
)

// degenerateNormalThreshold is the length floor below which an accumulated
// vertex normal is considered degenerate and left as the zero vector instead
// of being normalized to an arbitrary direction.
const degenerateNormalThreshold = 1e-12

// Assemble merges patches into one world-space Buffer.
//
// Per patch: positions are appended after applying the placement transform,
// triangle indices are rebased onto the merged vertex list, and the winding
// of reversed patches is flipped so every emitted triangle faces outward.
// Face normals (edge cross products, magnitude proportional to twice the
// triangle area) are accumulated into the three touched vertex normals,
// yielding area-weighted smooth normals after the final normalization pass.
//
// A patch with no triangles is skipped entirely: it contributes vertices
// only if it contributes triangles. Merging zero triangles overall is not an
// error here; the caller decides whether an empty buffer is a failure.
func Assemble(patches []Patch) (*Buffer, error) {
	out := &Buffer{}
	for i := range patches {
		if err := appendPatch(out, &patches[i]); err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
	}
	normalizeNormals(out)
	return out, nil
}

func appendPatch(out *Buffer, p *Patch) error {
	if len(p.Positions)%3 != 0 {
		return fmt.Errorf("positions length %d not a multiple of 3", len(p.Positions))
	}
	if len(p.Triangles)%3 != 0 {
		return fmt.Errorf("triangles length %d not a multiple of 3", len(p.Triangles))
	}
	if len(p.Triangles) == 0 {
		return nil
	}

	nVerts := uint32(len(p.Positions) / 3)
	base := uint32(len(out.Vertices) / 3)

	// Append world-space positions. Normal slots start at zero and are
	// filled by accumulation below.
	placement := p.Placement
	for v := uint32(0); v < nVerts; v++ {
		x := p.Positions[v*3+0]
		y := p.Positions[v*3+1]
		z := p.Positions[v*3+2]
		if placement != nil {
			x, y, z = placement.Apply(x, y, z)
		}
		out.Vertices = append(out.Vertices, x, y, z)
		out.Normals = append(out.Normals, 0, 0, 0)
	}

	for t := 0; t < len(p.Triangles); t += 3 {
		n1 := p.Triangles[t+0]
		n2 := p.Triangles[t+1]
		n3 := p.Triangles[t+2]

		// Flip winding for reversed surface orientation.
		if p.Reversed {
			n1, n2 = n2, n1
		}

		for _, n := range [3]uint32{n1, n2, n3} {
			if n < 1 || n > nVerts {
				return fmt.Errorf("triangle index %d out of range 1..%d", n, nVerts)
			}
		}

		i1 := base + n1 - 1
		i2 := base + n2 - 1
		i3 := base + n3 - 1
		out.Indices = append(out.Indices, i1, i2, i3)

		// Face normal from the world-space edge vectors. The cross product's
		// magnitude is twice the triangle area, so accumulating it raw gives
		// area weighting without an explicit weight term.
		e1x := out.Vertices[i2*3+0] - out.Vertices[i1*3+0]
		e1y := out.Vertices[i2*3+1] - out.Vertices[i1*3+1]
		e1z := out.Vertices[i2*3+2] - out.Vertices[i1*3+2]
		e2x := out.Vertices[i3*3+0] - out.Vertices[i1*3+0]
		e2y := out.Vertices[i3*3+1] - out.Vertices[i1*3+1]
		e2z := out.Vertices[i3*3+2] - out.Vertices[i1*3+2]

		fnx := e1y*e2z - e1z*e2y
		fny := e1z*e2x - e1x*e2z
		fnz := e1x*e2y - e1y*e2x

		for _, vi := range [3]uint32{i1, i2, i3} {
			out.Normals[vi*3+0] += fnx
			out.Normals[vi*3+1] += fny
			out.Normals[vi*3+2] += fnz
		}
	}
	return nil
}

// normalizeNormals scales every accumulated vertex normal to unit length.
// A vertex touched only by degenerate triangles keeps the zero vector: its
// normal is explicitly undefined rather than an arbitrary direction.
func normalizeNormals(out *Buffer) {
	for i := 0; i < len(out.Normals); i += 3 {
		nx := out.Normals[i+0]
		ny := out.Normals[i+1]
		nz := out.Normals[i+2]
		length := math.Sqrt(nx*nx + ny*ny + nz*nz)
		if length > degenerateNormalThreshold {
			out.Normals[i+0] = nx / length
			out.Normals[i+1] = ny / length
			out.Normals[i+2] = nz / length
		}
	}
}
