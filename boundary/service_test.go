package boundary

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/camforge/geomlink/errors"
	"github.com/camforge/geomlink/kernel/kerneltest"
	"github.com/camforge/geomlink/mesh"
	"github.com/camforge/geomlink/registry"
)

func trianglePatch() mesh.Patch {
	return mesh.Patch{
		Positions: []float64{
			0, 0, 0,
			1, 0, 0,
			0, 1, 0,
		},
		Triangles: []uint32{1, 2, 3},
	}
}

// writeModel creates a real file so import prechecks pass, and registers it
// with the fake kernel under the same path.
func writeModel(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("model"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestImportShape(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	path := writeModel(t, "part.step")
	fake.AddStep(path, trianglePatch())

	h := svc.ImportShape(ctx, path)
	if h == 0 {
		t.Fatalf("ImportShape failed: %s", svc.LastErrorMessage())
	}
	if msg := svc.LastErrorMessage(); msg != "" {
		t.Fatalf("Expected empty last error after success, got %q", msg)
	}
	if svc.ShapeCount() != 1 {
		t.Fatalf("Expected 1 shape, got %d", svc.ShapeCount())
	}
}

func TestImportShape_EmptyPath(t *testing.T) {
	ctx := context.Background()
	svc := New(kerneltest.New())
	defer svc.Close(ctx)

	if h := svc.ImportShape(ctx, ""); h != 0 {
		t.Fatalf("Expected 0 for empty path, got %d", h)
	}
	if msg := svc.LastErrorMessage(); !strings.Contains(msg, "invalid_input") {
		t.Fatalf("Expected invalid_input diagnostic, got %q", msg)
	}
}

func TestImportShape_MissingFile(t *testing.T) {
	ctx := context.Background()
	svc := New(kerneltest.New())
	defer svc.Close(ctx)

	if h := svc.ImportShape(ctx, "/nonexistent/part.step"); h != 0 {
		t.Fatalf("Expected 0 for missing file, got %d", h)
	}
	if msg := svc.LastErrorMessage(); !strings.Contains(msg, "file_not_found") {
		t.Fatalf("Expected file_not_found diagnostic, got %q", msg)
	}
}

func TestImportShape_ParseFailure(t *testing.T) {
	ctx := context.Background()
	svc := New(kerneltest.New())
	defer svc.Close(ctx)

	// File exists but the kernel has no model for it.
	path := writeModel(t, "broken.step")
	if h := svc.ImportShape(ctx, path); h != 0 {
		t.Fatalf("Expected 0 for unparseable file, got %d", h)
	}
	if msg := svc.LastErrorMessage(); !strings.Contains(msg, "parse_failed") {
		t.Fatalf("Expected parse_failed diagnostic, got %q", msg)
	}
	if svc.ShapeCount() != 0 {
		t.Fatal("Nothing should be stored on failure")
	}
}

func TestImportIges(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	path := writeModel(t, "part.iges")
	fake.AddIges(path, trianglePatch())

	h := svc.ImportIges(ctx, path)
	if h == 0 {
		t.Fatalf("ImportIges failed: %s", svc.LastErrorMessage())
	}
	if svc.ShapeCount() != 1 {
		t.Fatalf("Expected 1 shape, got %d", svc.ShapeCount())
	}
	if m := svc.Tessellate(ctx, h, 0.1, 0.1); m == 0 {
		t.Fatalf("Tessellate of IGES shape failed: %s", svc.LastErrorMessage())
	}

	// A STEP-registered path does not resolve through the IGES reader.
	stepPath := writeModel(t, "part.step")
	fake.AddStep(stepPath, trianglePatch())
	if h := svc.ImportIges(ctx, stepPath); h != 0 {
		t.Fatalf("Expected 0 for wrong-reader import, got %d", h)
	}
	if msg := svc.LastErrorMessage(); !strings.Contains(msg, "parse_failed") {
		t.Fatalf("Expected parse_failed diagnostic, got %q", msg)
	}
}

func TestSuccessClearsLastError(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	svc.ImportShape(ctx, "") // fail
	if svc.LastErrorMessage() == "" {
		t.Fatal("Expected a diagnostic after failure")
	}

	path := writeModel(t, "part.step")
	fake.AddStep(path, trianglePatch())
	if h := svc.ImportShape(ctx, path); h == 0 {
		t.Fatalf("ImportShape failed: %s", svc.LastErrorMessage())
	}
	if msg := svc.LastErrorMessage(); msg != "" {
		t.Fatalf("Success should clear the diagnostic, got %q", msg)
	}
}

func TestTessellate(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	path := writeModel(t, "part.step")
	fake.AddStep(path, trianglePatch())
	shape := svc.ImportShape(ctx, path)

	m := svc.Tessellate(ctx, shape, 0.1, 0.1)
	if m == 0 {
		t.Fatalf("Tessellate failed: %s", svc.LastErrorMessage())
	}
	if m == shape {
		t.Fatal("Mesh and shape handles must not collide")
	}
	if got := svc.MeshVertexCount(m); got != 3 {
		t.Fatalf("Expected 3 vertices, got %d", got)
	}
	if got := svc.MeshTriangleCount(m); got != 1 {
		t.Fatalf("Expected 1 triangle, got %d", got)
	}
}

func TestTessellate_Failures(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	path := writeModel(t, "part.step")
	fake.AddStep(path, trianglePatch())
	shape := svc.ImportShape(ctx, path)

	tests := []struct {
		name     string
		handle   registry.Handle
		chord    float64
		angle    float64
		wantKind string
	}{
		{"null handle", 0, 0.1, 0.1, "null_handle"},
		{"stale handle", shape + 1000, 0.1, 0.1, "null_handle"},
		{"zero chord", shape, 0, 0.1, "invalid_input"},
		{"negative angle", shape, 0.1, -1, "invalid_input"},
	}
	for _, tt := range tests {
		if m := svc.Tessellate(ctx, tt.handle, tt.chord, tt.angle); m != 0 {
			t.Errorf("%s: expected 0, got %d", tt.name, m)
			continue
		}
		if msg := svc.LastErrorMessage(); !strings.Contains(msg, tt.wantKind) {
			t.Errorf("%s: expected %s diagnostic, got %q", tt.name, tt.wantKind, msg)
		}
	}

	// The source shape survives every failed tessellation.
	if svc.ShapeCount() != 1 {
		t.Fatalf("Shape should still be stored, count = %d", svc.ShapeCount())
	}
}

func TestTessellate_EmptyResult(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	path := writeModel(t, "empty.step")
	fake.AddStep(path) // no patches
	shape := svc.ImportShape(ctx, path)

	if m := svc.Tessellate(ctx, shape, 0.1, 0.1); m != 0 {
		t.Fatalf("Expected 0 for empty tessellation, got %d", m)
	}
	if msg := svc.LastErrorMessage(); !strings.Contains(msg, "no_result") {
		t.Fatalf("Expected no_result diagnostic, got %q", msg)
	}
}

func TestTessellate_KernelPanicIsContained(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	path := writeModel(t, "part.step")
	fake.AddStep(path, trianglePatch())
	shape := svc.ImportShape(ctx, path)

	fake.PanicTessellate = true
	if m := svc.Tessellate(ctx, shape, 0.1, 0.1); m != 0 {
		t.Fatalf("Expected 0 after kernel panic, got %d", m)
	}
	msg := svc.LastErrorMessage()
	if !strings.Contains(msg, "kernel_fault") || !strings.Contains(msg, "panic") {
		t.Fatalf("Expected kernel_fault panic diagnostic, got %q", msg)
	}

	// The service stays usable.
	fake.PanicTessellate = false
	if m := svc.Tessellate(ctx, shape, 0.1, 0.1); m == 0 {
		t.Fatalf("Service unusable after contained panic: %s", svc.LastErrorMessage())
	}
}

func TestImportMesh(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	path := writeModel(t, "part.stl")
	fake.AddSTL(path, trianglePatch())

	m := svc.ImportMesh(ctx, path)
	if m == 0 {
		t.Fatalf("ImportMesh failed: %s", svc.LastErrorMessage())
	}
	if got := svc.MeshTriangleCount(m); got != 1 {
		t.Fatalf("Expected 1 triangle, got %d", got)
	}
	if svc.ShapeCount() != 0 {
		t.Fatal("STL import should not store a shape")
	}
}

func TestImportAuto_Dispatch(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	stepPath := writeModel(t, "part.STP") // extension match is case-insensitive
	fake.AddStep(stepPath, trianglePatch())
	igesPath := writeModel(t, "part.iges")
	fake.AddIges(igesPath, trianglePatch())
	igsPath := writeModel(t, "part.igs")
	fake.AddIges(igsPath, trianglePatch())
	stlPath := writeModel(t, "part.stl")
	fake.AddSTL(stlPath, trianglePatch())

	m := svc.ImportAuto(ctx, stepPath)
	if m == 0 {
		t.Fatalf("ImportAuto(.STP) failed: %s", svc.LastErrorMessage())
	}
	// The intermediate shape is released, not stored.
	if svc.ShapeCount() != 0 {
		t.Fatalf("Intermediate shape leaked, count = %d", svc.ShapeCount())
	}
	if fake.ReleasedCount() != 1 {
		t.Fatalf("Expected 1 released shape, got %d", fake.ReleasedCount())
	}

	// IGES goes through the same import-and-tessellate flow, both spellings.
	if m := svc.ImportAuto(ctx, igesPath); m == 0 {
		t.Fatalf("ImportAuto(.iges) failed: %s", svc.LastErrorMessage())
	}
	if m := svc.ImportAuto(ctx, igsPath); m == 0 {
		t.Fatalf("ImportAuto(.igs) failed: %s", svc.LastErrorMessage())
	}
	if svc.ShapeCount() != 0 {
		t.Fatalf("Intermediate shape leaked, count = %d", svc.ShapeCount())
	}
	if fake.ReleasedCount() != 3 {
		t.Fatalf("Expected 3 released shapes, got %d", fake.ReleasedCount())
	}

	if m := svc.ImportAuto(ctx, stlPath); m == 0 {
		t.Fatalf("ImportAuto(.stl) failed: %s", svc.LastErrorMessage())
	}
}

func TestImportAuto_UnsupportedExtensionBeforeExistence(t *testing.T) {
	ctx := context.Background()
	svc := New(kerneltest.New())
	defer svc.Close(ctx)

	// The file does not exist; the extension verdict still wins.
	if m := svc.ImportAuto(ctx, "/nonexistent/part.obj"); m != 0 {
		t.Fatalf("Expected 0 for unsupported extension, got %d", m)
	}
	msg := svc.LastErrorMessage()
	if !strings.Contains(msg, "unsupported") {
		t.Fatalf("Expected unsupported diagnostic, got %q", msg)
	}
	if strings.Contains(msg, "file_not_found") {
		t.Fatalf("Extension check must run before the existence check, got %q", msg)
	}
}

func TestShapeBoundingBox(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	p := trianglePatch()
	tr := mesh.Translation(10, 0, 0)
	p.Placement = &tr
	path := writeModel(t, "part.step")
	fake.AddStep(path, p)
	shape := svc.ImportShape(ctx, path)

	box, status := svc.ShapeBoundingBox(ctx, shape)
	if status != errors.StatusOK {
		t.Fatalf("ShapeBoundingBox failed: %v", status)
	}
	if box.Min[0] != 10 || box.Max[0] != 11 {
		t.Fatalf("Bounds x = [%g, %g], want [10, 11]", box.Min[0], box.Max[0])
	}

	if _, status := svc.ShapeBoundingBox(ctx, 0); status != errors.StatusNullHandle {
		t.Fatalf("Expected null-handle status, got %v", status)
	}
}

func TestShapeBoundingBox_VoidShape(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	path := writeModel(t, "empty.step")
	fake.AddStep(path) // no geometry
	shape := svc.ImportShape(ctx, path)

	if _, status := svc.ShapeBoundingBox(ctx, shape); status != errors.StatusNoResult {
		t.Fatalf("Expected no-result status for void shape, got %v", status)
	}
}

func TestFreeShape(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	path := writeModel(t, "part.step")
	fake.AddStep(path, trianglePatch())
	shape := svc.ImportShape(ctx, path)
	m := svc.Tessellate(ctx, shape, 0.1, 0.1)

	svc.FreeShape(ctx, shape)
	if svc.ShapeCount() != 0 {
		t.Fatalf("Expected 0 shapes, got %d", svc.ShapeCount())
	}
	if fake.ReleasedCount() != 1 {
		t.Fatalf("Expected 1 release, got %d", fake.ReleasedCount())
	}

	// Double free and null free are silent no-ops.
	svc.FreeShape(ctx, shape)
	svc.FreeShape(ctx, 0)
	if fake.ReleasedCount() != 1 {
		t.Fatalf("Double free reached the kernel, releases = %d", fake.ReleasedCount())
	}
	if msg := svc.LastErrorMessage(); msg != "" {
		t.Fatalf("Free should not set a diagnostic, got %q", msg)
	}

	// The extracted mesh outlives its source shape.
	if got := svc.MeshTriangleCount(m); got != 1 {
		t.Fatalf("Mesh should survive shape free, triangles = %d", got)
	}
}

func TestFreeMesh(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	path := writeModel(t, "part.stl")
	fake.AddSTL(path, trianglePatch())
	m := svc.ImportMesh(ctx, path)

	svc.FreeMesh(m)
	if svc.MeshCount() != 0 {
		t.Fatalf("Expected 0 meshes, got %d", svc.MeshCount())
	}
	if got := svc.MeshVertexCount(m); got != 0 {
		t.Fatalf("Freed mesh should count 0 vertices, got %d", got)
	}

	svc.FreeMesh(m)
	svc.FreeMesh(0)
}

func TestCopyOps(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	path := writeModel(t, "part.stl")
	fake.AddSTL(path, trianglePatch())
	m := svc.ImportMesh(ctx, path)

	verts := make([]float64, 3*svc.MeshVertexCount(m))
	if status := svc.CopyVertices(m, verts); status != errors.StatusOK {
		t.Fatalf("CopyVertices failed: %v", status)
	}
	if verts[3] != 1 {
		t.Fatalf("Vertices = %v", verts)
	}

	normals := make([]float64, 3*svc.MeshVertexCount(m))
	if status := svc.CopyNormals(m, normals); status != errors.StatusOK {
		t.Fatalf("CopyNormals failed: %v", status)
	}
	if normals[2] != 1 {
		t.Fatalf("Expected +z normal, got %v", normals[:3])
	}

	indices := make([]uint32, 3*svc.MeshTriangleCount(m))
	if status := svc.CopyIndices(m, indices); status != errors.StatusOK {
		t.Fatalf("CopyIndices failed: %v", status)
	}
	if indices[0] != 0 || indices[1] != 1 || indices[2] != 2 {
		t.Fatalf("Indices = %v, want [0 1 2]", indices)
	}
}

func TestCopyOps_Failures(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	path := writeModel(t, "part.stl")
	fake.AddSTL(path, trianglePatch())
	m := svc.ImportMesh(ctx, path)

	// Undersized destination: rejected, untouched.
	short := []float64{-7, -7}
	if status := svc.CopyVertices(m, short); status != errors.StatusInvalidArgument {
		t.Fatalf("Expected invalid-argument status, got %v", status)
	}
	if short[0] != -7 || short[1] != -7 {
		t.Fatalf("Destination modified on failure: %v", short)
	}

	// Null and stale handles.
	dst := []float64{-7, -7, -7}
	if status := svc.CopyVertices(0, dst); status != errors.StatusNullHandle {
		t.Fatalf("Expected null-handle status, got %v", status)
	}
	if status := svc.CopyNormals(m+1000, dst); status != errors.StatusNullHandle {
		t.Fatalf("Expected null-handle status for stale handle, got %v", status)
	}
	for _, v := range dst {
		if v != -7 {
			t.Fatalf("Destination modified on failure: %v", dst)
		}
	}
}

func TestLastError_PerGoroutine(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	path := writeModel(t, "part.step")
	fake.AddStep(path, trianglePatch())
	if h := svc.ImportShape(ctx, path); h == 0 {
		t.Fatalf("ImportShape failed: %s", svc.LastErrorMessage())
	}

	// A failure on another goroutine must not disturb this goroutine's state.
	var wg sync.WaitGroup
	wg.Add(1)
	var otherMsg string
	go func() {
		defer wg.Done()
		svc.ImportShape(ctx, "")
		otherMsg = svc.LastErrorMessage()
	}()
	wg.Wait()

	if otherMsg == "" {
		t.Fatal("Failing goroutine should see its own diagnostic")
	}
	if msg := svc.LastErrorMessage(); msg != "" {
		t.Fatalf("Sibling failure leaked into this goroutine: %q", msg)
	}

	// A goroutine that has made no call reads the empty string.
	wg.Add(1)
	var freshMsg string
	go func() {
		defer wg.Done()
		freshMsg = svc.LastErrorMessage()
	}()
	wg.Wait()
	if freshMsg != "" {
		t.Fatalf("Fresh goroutine should read empty, got %q", freshMsg)
	}
}

func TestConcurrentOperations(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	path := writeModel(t, "part.step")
	fake.AddStep(path, trianglePatch())

	const workers = 8
	handles := make([]registry.Handle, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			shape := svc.ImportShape(ctx, path)
			if shape == 0 {
				return
			}
			handles[i] = svc.Tessellate(ctx, shape, 0.1, 0.1)
			svc.FreeShape(ctx, shape)
		}(i)
	}
	wg.Wait()

	seen := make(map[registry.Handle]bool)
	for i, h := range handles {
		if h == 0 {
			t.Fatalf("Worker %d got no mesh", i)
		}
		if seen[h] {
			t.Fatalf("Mesh handle %d issued twice", h)
		}
		seen[h] = true
	}
	if svc.MeshCount() != workers {
		t.Fatalf("Expected %d meshes, got %d", workers, svc.MeshCount())
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)

	path := writeModel(t, "part.step")
	fake.AddStep(path, trianglePatch())
	shape := svc.ImportShape(ctx, path)
	svc.Tessellate(ctx, shape, 0.1, 0.1)

	svc.ImportShape(ctx, "") // leave a diagnostic behind

	if err := svc.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if svc.ShapeCount() != 0 || svc.MeshCount() != 0 {
		t.Fatalf("Stores not drained: shapes=%d meshes=%d", svc.ShapeCount(), svc.MeshCount())
	}
	if fake.ReleasedCount() != 1 {
		t.Fatalf("Expected 1 release on close, got %d", fake.ReleasedCount())
	}
	if msg := svc.LastErrorMessage(); msg != "" {
		t.Fatalf("Close should drop per-goroutine diagnostics, got %q", msg)
	}
}

func TestTessellate_KernelError(t *testing.T) {
	ctx := context.Background()
	fake := kerneltest.New()
	svc := New(fake)
	defer svc.Close(ctx)

	path := writeModel(t, "part.step")
	fake.AddStep(path, trianglePatch())
	shape := svc.ImportShape(ctx, path)

	fake.FailTessellate = fmt.Errorf("mesher exploded")
	if m := svc.Tessellate(ctx, shape, 0.1, 0.1); m != 0 {
		t.Fatalf("Expected 0, got %d", m)
	}
	msg := svc.LastErrorMessage()
	if !strings.Contains(msg, "kernel_fault") || !strings.Contains(msg, "mesher exploded") {
		t.Fatalf("Expected kernel_fault with cause, got %q", msg)
	}
}
