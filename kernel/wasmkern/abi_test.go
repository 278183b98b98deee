package wasmkern

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestDecodeF64s(t *testing.T) {
	want := []float64{0, 1.5, -2.25, math.Pi}
	b := make([]byte, len(want)*8)
	for i, v := range want {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
	}

	got := decodeF64s(b)
	if len(got) != len(want) {
		t.Fatalf("Expected %d values, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Value %d = %g, want %g", i, got[i], want[i])
		}
	}

	if got := decodeF64s(nil); len(got) != 0 {
		t.Fatalf("Expected empty decode, got %v", got)
	}
}

func TestDecodeU32s(t *testing.T) {
	want := []uint32{1, 2, 3, 0xFFFFFFFF}
	b := make([]byte, len(want)*4)
	for i, v := range want {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}

	got := decodeU32s(b)
	if len(got) != len(want) {
		t.Fatalf("Expected %d values, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Value %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestPlacementFromF64s(t *testing.T) {
	// Row-major [linear | offset]: identity rotation with offset (10, 20, 30).
	v := []float64{
		1, 0, 0, 10,
		0, 1, 0, 20,
		0, 0, 1, 30,
	}
	tr := placementFromF64s(v)
	if tr == nil {
		t.Fatal("Expected a transform")
	}
	x, y, z := tr.Apply(1, 2, 3)
	if x != 11 || y != 22 || z != 33 {
		t.Fatalf("Apply = (%g,%g,%g), want (11,22,33)", x, y, z)
	}

	if tr := placementFromF64s(v[:11]); tr != nil {
		t.Fatal("Truncated layout should yield nil")
	}
}

func TestPlacementFromF64s_Rotation(t *testing.T) {
	// 90° rotation about z, no offset.
	v := []float64{
		0, -1, 0, 0,
		1, 0, 0, 0,
		0, 0, 1, 0,
	}
	tr := placementFromF64s(v)
	x, y, z := tr.Apply(1, 0, 0)
	if x != 0 || y != 1 || z != 0 {
		t.Fatalf("Apply = (%g,%g,%g), want (0,1,0)", x, y, z)
	}
}

func TestCStringLen(t *testing.T) {
	tests := []struct {
		b    []byte
		want int
	}{
		{[]byte("hello\x00world"), 5},
		{[]byte("\x00"), 0},
		{[]byte("no terminator"), 13},
		{nil, 0},
	}
	for _, tt := range tests {
		if got := cstringLen(tt.b); got != tt.want {
			t.Errorf("cstringLen(%q) = %d, want %d", tt.b, got, tt.want)
		}
	}
}
