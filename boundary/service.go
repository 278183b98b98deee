package boundary

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/camforge/geomlink/errors"
	"github.com/camforge/geomlink/kernel"
	"github.com/camforge/geomlink/mesh"
	"github.com/camforge/geomlink/registry"
)

// Default tessellation tolerances used by ImportAuto, matching the preview
// quality the application layer asks for.
const (
	defaultChordTolerance = 0.1
	defaultAngleTolerance = 0.1
)

// Service is the boundary operation surface. It owns a shape store and a
// mesh store drawing handles from one shared registry, so shape and mesh
// handles can never collide, and a mesh's lifecycle is fully decoupled from
// the shape it was extracted from.
//
// Service is safe for concurrent use.
type Service struct {
	kernel kernel.Kernel
	shapes *registry.Store[kernel.Shape]
	meshes *registry.Store[*mesh.Buffer]
	last   lastError
}

// New creates a boundary service over k. The service does not own k; close
// the kernel separately after closing the service.
func New(k kernel.Kernel) *Service {
	ids := registry.New()
	return &Service{
		kernel: k,
		shapes: registry.NewStore[kernel.Shape](ids),
		meshes: registry.NewStore[*mesh.Buffer](ids),
	}
}

// recoverAs converts a panic below the boundary into an unclassified kernel
// fault. Deferred at the outer frame of every operation that leaves this
// package's control.
func recoverAs(op errors.Op, errp *error) {
	if r := recover(); r != nil {
		*errp = errors.KernelFault(op, fmt.Errorf("panic: %v", r))
	}
}

// classifyKernel maps a kernel failure onto the boundary taxonomy.
func classifyKernel(op errors.Op, path string, err error) error {
	switch {
	case stderrors.Is(err, kernel.ErrParse):
		return errors.ParseFailed(op, path, err)
	case stderrors.Is(err, kernel.ErrNoResult):
		return errors.NoResult(op, err.Error())
	default:
		return errors.KernelFault(op, err)
	}
}

// finish records the operation outcome for the calling goroutine and logs
// failures. Returns err unchanged for the caller's sentinel mapping.
func (s *Service) finish(op errors.Op, err error) error {
	s.last.record(err)
	if err != nil {
		Logger().Debug("boundary operation failed",
			zap.String("op", string(op)),
			zap.Error(err))
	}
	return err
}

// LastErrorMessage returns the diagnostic for the most recent boundary call
// on the calling goroutine, non-destructively. It is the empty string on a
// goroutine that has made no boundary call yet, and after any successful
// call. Valid until the goroutine's next boundary call.
func (s *Service) LastErrorMessage() string {
	return s.last.message()
}

// ImportShape parses and heals a STEP model file, stores the resulting
// shape, and returns its handle. Returns 0 on failure.
func (s *Service) ImportShape(ctx context.Context, path string) registry.Handle {
	const op = errors.Op("import-shape")
	shape, err := s.importShape(ctx, op, path, s.kernel.ImportStep)
	if s.finish(op, err) != nil {
		return registry.Nil
	}
	return s.shapes.Insert(shape)
}

// ImportIges parses and heals an IGES model file, stores the resulting
// shape, and returns its handle. Returns 0 on failure.
func (s *Service) ImportIges(ctx context.Context, path string) registry.Handle {
	const op = errors.Op("import-iges")
	shape, err := s.importShape(ctx, op, path, s.kernel.ImportIges)
	if s.finish(op, err) != nil {
		return registry.Nil
	}
	return s.shapes.Insert(shape)
}

func (s *Service) importShape(ctx context.Context, op errors.Op, path string,
	load func(context.Context, string) (kernel.Shape, error)) (_ kernel.Shape, err error) {
	defer recoverAs(op, &err)
	if path == "" {
		return nil, errors.InvalidInput(op, "empty path")
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return nil, errors.FileNotFound(op, path)
	}
	shape, err := load(ctx, path)
	if err != nil {
		return nil, classifyKernel(op, path, err)
	}
	return shape, nil
}

// ImportMesh reads a triangle-mesh file (STL), assembles it into a mesh
// buffer, stores it, and returns its handle. Returns 0 on failure.
func (s *Service) ImportMesh(ctx context.Context, path string) registry.Handle {
	const op = errors.Op("import-mesh")
	buf, err := s.importMesh(ctx, op, path)
	if s.finish(op, err) != nil {
		return registry.Nil
	}
	return s.meshes.Insert(buf)
}

func (s *Service) importMesh(ctx context.Context, op errors.Op, path string) (_ *mesh.Buffer, err error) {
	defer recoverAs(op, &err)
	if path == "" {
		return nil, errors.InvalidInput(op, "empty path")
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return nil, errors.FileNotFound(op, path)
	}
	patches, err := s.kernel.ImportSTL(ctx, path)
	if err != nil {
		return nil, classifyKernel(op, path, err)
	}
	buf, err := mesh.Assemble(patches)
	if err != nil {
		return nil, errors.KernelFault(op, err)
	}
	if buf.Empty() {
		return nil, errors.NoResult(op, "no triangles in file")
	}
	return buf, nil
}

// ImportAuto dispatches on the file extension (case-insensitive):
// .step/.stp and .iges/.igs import a B-rep and tessellate it at default
// tolerances, .stl loads a triangle mesh directly. Either way the result is
// a stored mesh buffer; the intermediate shape of a B-rep import is
// released, not stored. Returns the mesh handle, or 0 on failure. The
// extension check runs before the file-existence check, so an unsupported
// extension reports unsupported even for a missing file.
func (s *Service) ImportAuto(ctx context.Context, path string) registry.Handle {
	const op = errors.Op("import")
	buf, err := s.importAuto(ctx, op, path)
	if s.finish(op, err) != nil {
		return registry.Nil
	}
	return s.meshes.Insert(buf)
}

func (s *Service) importAuto(ctx context.Context, op errors.Op, path string) (_ *mesh.Buffer, err error) {
	defer recoverAs(op, &err)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "step", "stp", "iges", "igs":
		load := s.kernel.ImportStep
		if ext == "iges" || ext == "igs" {
			load = s.kernel.ImportIges
		}
		shape, err := s.importShape(ctx, op, path, load)
		if err != nil {
			return nil, err
		}
		defer func() {
			if relErr := shape.Release(ctx); relErr != nil {
				Logger().Warn("failed to release intermediate shape",
					zap.String("path", path),
					zap.Error(relErr))
			}
		}()
		opts := kernel.TessellationOpts{
			ChordTolerance: defaultChordTolerance,
			AngleTolerance: defaultAngleTolerance,
		}
		return s.tessellateShape(ctx, op, shape, opts)
	case "stl":
		return s.importMesh(ctx, op, path)
	default:
		return nil, errors.Unsupported(op, ext)
	}
}

// Tessellate triangulates a stored shape and stores the assembled mesh,
// returning its handle. Returns 0 on failure: null or stale handle,
// non-positive tolerances, a kernel fault, or a tessellation that produced
// no triangles. The source shape stays stored and untouched either way.
func (s *Service) Tessellate(ctx context.Context, h registry.Handle, chordTol, angleTol float64) registry.Handle {
	const op = errors.Op("tessellate")
	buf, err := s.tessellate(ctx, op, h, chordTol, angleTol)
	if s.finish(op, err) != nil {
		return registry.Nil
	}
	return s.meshes.Insert(buf)
}

func (s *Service) tessellate(ctx context.Context, op errors.Op, h registry.Handle, chordTol, angleTol float64) (_ *mesh.Buffer, err error) {
	defer recoverAs(op, &err)
	if h == registry.Nil {
		return nil, errors.NullHandle(op)
	}
	if chordTol <= 0 || angleTol <= 0 {
		return nil, errors.InvalidInput(op,
			fmt.Sprintf("tolerances must be positive, got chord=%g angle=%g", chordTol, angleTol))
	}
	shape, ok := s.shapes.Get(h)
	if !ok {
		return nil, errors.NotFound(op, "shape", uint64(h))
	}
	opts := kernel.TessellationOpts{
		ChordTolerance: chordTol,
		AngleTolerance: angleTol,
	}
	return s.tessellateShape(ctx, op, shape, opts)
}

func (s *Service) tessellateShape(ctx context.Context, op errors.Op, shape kernel.Shape, opts kernel.TessellationOpts) (*mesh.Buffer, error) {
	patches, err := s.kernel.Tessellate(ctx, shape, opts)
	if err != nil {
		return nil, classifyKernel(op, "", err)
	}
	buf, err := mesh.Assemble(patches)
	if err != nil {
		return nil, errors.KernelFault(op, err)
	}
	if buf.Empty() {
		return nil, errors.NoResult(op, "no triangles produced")
	}
	return buf, nil
}

// ShapeBoundingBox computes the axis-aligned bounds of a stored shape.
// On failure the zero box is returned alongside the status.
func (s *Service) ShapeBoundingBox(ctx context.Context, h registry.Handle) (kernel.BBox, errors.Status) {
	const op = errors.Op("shape-bounding-box")
	box, err := s.shapeBoundingBox(ctx, op, h)
	if s.finish(op, err) != nil {
		return kernel.BBox{}, errors.StatusOf(err)
	}
	return box, errors.StatusOK
}

func (s *Service) shapeBoundingBox(ctx context.Context, op errors.Op, h registry.Handle) (_ kernel.BBox, err error) {
	defer recoverAs(op, &err)
	if h == registry.Nil {
		return kernel.BBox{}, errors.NullHandle(op)
	}
	shape, ok := s.shapes.Get(h)
	if !ok {
		return kernel.BBox{}, errors.NotFound(op, "shape", uint64(h))
	}
	box, err := s.kernel.BoundingBox(ctx, shape)
	if err != nil {
		return kernel.BBox{}, classifyKernel(op, "", err)
	}
	if box.Void() {
		return kernel.BBox{}, errors.NoResult(op, "empty/void shape")
	}
	return box, nil
}

// FreeShape releases a stored shape and removes it from the registry.
// Freeing the null handle or an already-freed handle is a silent no-op.
// Meshes previously extracted from the shape are unaffected.
func (s *Service) FreeShape(ctx context.Context, h registry.Handle) {
	const op = errors.Op("free-shape")
	s.finish(op, nil)
	shape, ok := s.shapes.Remove(h)
	if !ok {
		if h != registry.Nil {
			Logger().Debug("free of absent shape handle", zap.Uint64("handle", uint64(h)))
		}
		return
	}
	if err := releaseGuarded(ctx, op, shape); err != nil {
		Logger().Warn("shape release failed", zap.Uint64("handle", uint64(h)), zap.Error(err))
	}
}

// releaseGuarded releases a kernel shape with the same panic containment as
// any other kernel call.
func releaseGuarded(ctx context.Context, op errors.Op, shape kernel.Shape) (err error) {
	defer recoverAs(op, &err)
	return shape.Release(ctx)
}

// FreeMesh removes a stored mesh buffer. Freeing the null handle or an
// already-freed handle is a silent no-op. The shape the mesh came from, if
// any, is unaffected.
func (s *Service) FreeMesh(h registry.Handle) {
	const op = errors.Op("free-mesh")
	s.finish(op, nil)
	if _, ok := s.meshes.Remove(h); !ok && h != registry.Nil {
		Logger().Debug("free of absent mesh handle", zap.Uint64("handle", uint64(h)))
	}
}

// MeshVertexCount returns the vertex count of a stored mesh, or 0 for a
// null or stale handle.
func (s *Service) MeshVertexCount(h registry.Handle) int {
	const op = errors.Op("mesh-vertex-count")
	buf, err := s.resolveMesh(op, h)
	if s.finish(op, err) != nil {
		return 0
	}
	return buf.VertexCount()
}

// MeshTriangleCount returns the triangle count of a stored mesh, or 0 for a
// null or stale handle.
func (s *Service) MeshTriangleCount(h registry.Handle) int {
	const op = errors.Op("mesh-triangle-count")
	buf, err := s.resolveMesh(op, h)
	if s.finish(op, err) != nil {
		return 0
	}
	return buf.TriangleCount()
}

func (s *Service) resolveMesh(op errors.Op, h registry.Handle) (*mesh.Buffer, error) {
	if h == registry.Nil {
		return nil, errors.NullHandle(op)
	}
	buf, ok := s.meshes.Get(h)
	if !ok {
		return nil, errors.NotFound(op, "mesh", uint64(h))
	}
	return buf, nil
}

// CopyVertices copies a stored mesh's vertex positions into dst, which the
// caller sizes as 3*MeshVertexCount. dst is untouched on any failure.
func (s *Service) CopyVertices(h registry.Handle, dst []float64) errors.Status {
	const op = errors.Op("copy-vertices")
	buf, err := s.resolveMesh(op, h)
	if err == nil {
		err = checkCopyLen(op, len(dst), len(buf.Vertices))
	}
	if s.finish(op, err) != nil {
		return errors.StatusOf(err)
	}
	copy(dst, buf.Vertices)
	return errors.StatusOK
}

// CopyNormals copies a stored mesh's unit vertex normals into dst, sized as
// 3*MeshVertexCount. dst is untouched on any failure.
func (s *Service) CopyNormals(h registry.Handle, dst []float64) errors.Status {
	const op = errors.Op("copy-normals")
	buf, err := s.resolveMesh(op, h)
	if err == nil {
		err = checkCopyLen(op, len(dst), len(buf.Normals))
	}
	if s.finish(op, err) != nil {
		return errors.StatusOf(err)
	}
	copy(dst, buf.Normals)
	return errors.StatusOK
}

// CopyIndices copies a stored mesh's triangle indices into dst, sized as
// 3*MeshTriangleCount. dst is untouched on any failure.
func (s *Service) CopyIndices(h registry.Handle, dst []uint32) errors.Status {
	const op = errors.Op("copy-indices")
	buf, err := s.resolveMesh(op, h)
	if err == nil {
		err = checkCopyLen(op, len(dst), len(buf.Indices))
	}
	if s.finish(op, err) != nil {
		return errors.StatusOf(err)
	}
	copy(dst, buf.Indices)
	return errors.StatusOK
}

func checkCopyLen(op errors.Op, got, want int) error {
	if got < want {
		return errors.InvalidInput(op,
			fmt.Sprintf("destination holds %d elements, need %d", got, want))
	}
	return nil
}

// ShapeCount returns the number of live shapes. Introspection only.
func (s *Service) ShapeCount() int {
	return s.shapes.Len()
}

// MeshCount returns the number of live mesh buffers. Introspection only.
func (s *Service) MeshCount() int {
	return s.meshes.Len()
}

// Close releases every stored shape, drops all mesh buffers, and clears the
// per-goroutine error state. The service must not be used afterwards.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	for h, shape := range s.shapes.Drain() {
		if err := releaseGuarded(ctx, "close", shape); err != nil {
			errs = append(errs, fmt.Errorf("shape %d: %w", h, err))
		}
	}
	s.meshes.Drain()
	s.last.clear()
	return stderrors.Join(errs...)
}
