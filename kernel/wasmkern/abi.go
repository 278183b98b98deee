package wasmkern

import (
	"encoding/binary"
	"math"

	"github.com/camforge/geomlink/mesh"
)

// Flat-buffer decoding for data copied out of guest linear memory. The
// kernel module is little-endian by the wasm spec, so these decode LE
// unconditionally.

// decodeF64s decodes b as packed little-endian float64 values.
func decodeF64s(b []byte) []float64 {
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out
}

// decodeU32s decodes b as packed little-endian uint32 values.
func decodeU32s(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

// placementFromF64s builds a mesh placement from the kernel's 3x4 row-major
// affine layout: rows of [linear | offset].
func placementFromF64s(v []float64) *mesh.Transform {
	if len(v) < 12 {
		return nil
	}
	return &mesh.Transform{
		Linear: [9]float64{
			v[0], v[1], v[2],
			v[4], v[5], v[6],
			v[8], v[9], v[10],
		},
		Offset: [3]float64{v[3], v[7], v[11]},
	}
}

// cstringLen returns the length of the NUL-terminated string at the start
// of b, or len(b) if no terminator is present.
func cstringLen(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return len(b)
}
