package kernel

import "testing"

func TestBBox_Void(t *testing.T) {
	if !(BBox{Min: [3]float64{1, 1, 1}, Max: [3]float64{-1, -1, -1}}).Void() {
		t.Fatal("Inverted box should be void")
	}
	if (BBox{Min: [3]float64{0, 0, 0}, Max: [3]float64{1, 1, 1}}).Void() {
		t.Fatal("Proper box should not be void")
	}
	// A degenerate but coincident box is still a result.
	if (BBox{}).Void() {
		t.Fatal("Point box should not be void")
	}
}
