package wasmkern

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/camforge/geomlink/kernel"
	"github.com/camforge/geomlink/mesh"
)

// Config holds configuration for kernel creation.
type Config struct {
	// MemoryLimitPages sets the maximum guest memory in 64KB pages.
	// 0 means the wazero default (4GB).
	MemoryLimitPages uint32

	// Mounts maps host directories to guest paths so the kernel's readers
	// can open model files. Empty means the host root is mounted at "/".
	Mounts map[string]string
}

// Exports the kernel module must provide, beyond "memory", "malloc" and
// "free".
var requiredExports = []string{
	"cg_last_error_message",
	"cg_load_step",
	"cg_load_iges",
	"cg_load_stl",
	"cg_shape_free",
	"cg_shape_bbox",
	"cg_shape_triangulate",
	"cg_patch_vertex_count",
	"cg_patch_triangle_count",
	"cg_patch_reversed",
	"cg_patch_placement",
	"cg_patch_positions",
	"cg_patch_indices",
}

// Kernel implements kernel.Kernel over a wasm build of the native geometry
// kernel. Safe for concurrent use; see the package doc for the internal
// serialization points.
type Kernel struct {
	runtime wazero.Runtime
	mod     api.Module
	fns     map[string]api.Function

	// readerMu serializes the STEP and IGES import families around their
	// guest readers' global lazy init.
	readerMu sync.Mutex
	// patchMu serializes use of the guest's patch scratch set, which every
	// triangulate or STL load overwrites.
	patchMu sync.Mutex
}

// New compiles and instantiates the kernel module.
func New(ctx context.Context, wasmBytes []byte, cfg *Config) (*Kernel, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("compile kernel module: %w", err)
	}

	fsCfg := wazero.NewFSConfig()
	mounts := map[string]string{"/": "/"}
	if cfg != nil && len(cfg.Mounts) > 0 {
		mounts = cfg.Mounts
	}
	for host, guest := range mounts {
		fsCfg = fsCfg.WithDirMount(host, guest)
	}

	modCfg := wazero.NewModuleConfig().
		WithName("geomkernel").
		WithFSConfig(fsCfg).
		WithStartFunctions() // reactor module; init is explicit below

	mod, err := r.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("instantiate kernel module: %w", err)
	}

	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			_ = r.Close(ctx)
			return nil, fmt.Errorf("initialize kernel module: %w", err)
		}
	}

	k := &Kernel{
		runtime: r,
		mod:     mod,
		fns:     make(map[string]api.Function),
	}
	for _, name := range append([]string{"malloc", "free"}, requiredExports...) {
		fn := mod.ExportedFunction(name)
		if fn == nil {
			_ = r.Close(ctx)
			return nil, fmt.Errorf("kernel module does not export %q", name)
		}
		k.fns[name] = fn
	}

	Logger().Info("geometry kernel instantiated",
		zap.Int("wasm_bytes", len(wasmBytes)),
		zap.Int("mounts", len(mounts)))
	return k, nil
}

// Close releases the guest instance and all shapes it still owns.
func (k *Kernel) Close(ctx context.Context) error {
	return k.runtime.Close(ctx)
}

func (k *Kernel) call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	res, err := k.fns[name].Call(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return res, nil
}

// lastError reads the guest's thread-local diagnostic string. Best-effort:
// a guest fault while reading it degrades to a generic message.
func (k *Kernel) lastError(ctx context.Context) string {
	res, err := k.call(ctx, "cg_last_error_message")
	if err != nil || len(res) == 0 {
		return "kernel diagnostic unavailable"
	}
	ptr := api.DecodeU32(res[0])
	if ptr == 0 {
		return ""
	}

	mem := k.mod.Memory()
	var msg []byte
	for {
		chunk, ok := mem.Read(ptr+uint32(len(msg)), 256)
		if !ok {
			break
		}
		n := cstringLen(chunk)
		msg = append(msg, chunk[:n]...)
		if n < len(chunk) {
			break
		}
	}
	return string(msg)
}

// writeCString copies s into guest memory as a NUL-terminated string.
// The caller must free the returned pointer with freeGuest.
func (k *Kernel) writeCString(ctx context.Context, s string) (uint32, error) {
	size := uint32(len(s) + 1)
	res, err := k.call(ctx, "malloc", api.EncodeU32(size))
	if err != nil {
		return 0, err
	}
	ptr := api.DecodeU32(res[0])
	if ptr == 0 {
		return 0, fmt.Errorf("guest allocation of %d bytes failed", size)
	}
	buf := make([]byte, size)
	copy(buf, s)
	if !k.mod.Memory().Write(ptr, buf) {
		k.freeGuest(ctx, ptr)
		return 0, fmt.Errorf("guest memory write at %#x failed", ptr)
	}
	return ptr, nil
}

func (k *Kernel) freeGuest(ctx context.Context, ptr uint32) {
	if _, err := k.call(ctx, "free", api.EncodeU32(ptr)); err != nil {
		Logger().Warn("guest free failed", zap.Uint32("ptr", ptr), zap.Error(err))
	}
}

func (k *Kernel) readGuest(ptr, size uint32) ([]byte, error) {
	b, ok := k.mod.Memory().Read(ptr, size)
	if !ok {
		return nil, fmt.Errorf("guest memory read at %#x+%d out of range", ptr, size)
	}
	return b, nil
}

// guestShape is a kernel.Shape backed by an ID in the guest's own shape
// registry.
type guestShape struct {
	k        *Kernel
	id       uint64
	released atomic.Bool
}

// Release implements kernel.Shape.
func (s *guestShape) Release(ctx context.Context) error {
	if s.released.Swap(true) {
		return nil
	}
	_, err := s.k.call(ctx, "cg_shape_free", s.id)
	return err
}

// ImportStep implements kernel.Kernel.
func (k *Kernel) ImportStep(ctx context.Context, path string) (kernel.Shape, error) {
	return k.loadShape(ctx, "cg_load_step", path)
}

// ImportIges implements kernel.Kernel.
func (k *Kernel) ImportIges(ctx context.Context, path string) (kernel.Shape, error) {
	return k.loadShape(ctx, "cg_load_iges", path)
}

// loadShape runs one of the B-rep reader exports. Both readers lazily
// populate global schema state on first use, so they share readerMu.
func (k *Kernel) loadShape(ctx context.Context, export, path string) (kernel.Shape, error) {
	pathPtr, err := k.writeCString(ctx, path)
	if err != nil {
		return nil, err
	}
	defer k.freeGuest(ctx, pathPtr)

	k.readerMu.Lock()
	res, err := k.call(ctx, export, api.EncodeU32(pathPtr))
	k.readerMu.Unlock()
	if err != nil {
		return nil, err
	}
	id := res[0]
	if id == 0 {
		return nil, fmt.Errorf("%w: %s", kernel.ErrParse, k.lastError(ctx))
	}
	Logger().Debug("shape import complete",
		zap.String("reader", export), zap.String("path", path), zap.Uint64("guest_id", id))
	return &guestShape{k: k, id: id}, nil
}

// ImportSTL implements kernel.Kernel.
func (k *Kernel) ImportSTL(ctx context.Context, path string) ([]mesh.Patch, error) {
	pathPtr, err := k.writeCString(ctx, path)
	if err != nil {
		return nil, err
	}
	defer k.freeGuest(ctx, pathPtr)

	k.patchMu.Lock()
	defer k.patchMu.Unlock()

	res, err := k.call(ctx, "cg_load_stl", api.EncodeU32(pathPtr))
	if err != nil {
		return nil, err
	}
	count := int32(api.DecodeU32(res[0]))
	if count < 0 {
		return nil, fmt.Errorf("%w: %s", kernel.ErrParse, k.lastError(ctx))
	}
	return k.readPatches(ctx, int(count))
}

// Tessellate implements kernel.Kernel.
func (k *Kernel) Tessellate(ctx context.Context, shape kernel.Shape, opts kernel.TessellationOpts) ([]mesh.Patch, error) {
	s, ok := shape.(*guestShape)
	if !ok {
		return nil, fmt.Errorf("foreign shape %T", shape)
	}

	k.patchMu.Lock()
	defer k.patchMu.Unlock()

	res, err := k.call(ctx, "cg_shape_triangulate", s.id,
		api.EncodeF64(opts.ChordTolerance), api.EncodeF64(opts.AngleTolerance))
	if err != nil {
		return nil, err
	}
	count := int32(api.DecodeU32(res[0]))
	if count < 0 {
		return nil, fmt.Errorf("triangulate failed: %s", k.lastError(ctx))
	}
	return k.readPatches(ctx, int(count))
}

// readPatches copies the guest's patch scratch set into host memory. The
// caller holds patchMu.
func (k *Kernel) readPatches(ctx context.Context, count int) ([]mesh.Patch, error) {
	patches := make([]mesh.Patch, 0, count)
	for i := 0; i < count; i++ {
		idx := api.EncodeU32(uint32(i))

		nvRes, err := k.call(ctx, "cg_patch_vertex_count", idx)
		if err != nil {
			return nil, err
		}
		ntRes, err := k.call(ctx, "cg_patch_triangle_count", idx)
		if err != nil {
			return nil, err
		}
		nv := api.DecodeU32(nvRes[0])
		nt := api.DecodeU32(ntRes[0])

		revRes, err := k.call(ctx, "cg_patch_reversed", idx)
		if err != nil {
			return nil, err
		}

		p := mesh.Patch{Reversed: api.DecodeU32(revRes[0]) != 0}

		if nv > 0 {
			posRes, err := k.call(ctx, "cg_patch_positions", idx)
			if err != nil {
				return nil, err
			}
			b, err := k.readGuest(api.DecodeU32(posRes[0]), nv*3*8)
			if err != nil {
				return nil, err
			}
			p.Positions = decodeF64s(b)
		}
		if nt > 0 {
			idxRes, err := k.call(ctx, "cg_patch_indices", idx)
			if err != nil {
				return nil, err
			}
			b, err := k.readGuest(api.DecodeU32(idxRes[0]), nt*3*4)
			if err != nil {
				return nil, err
			}
			p.Triangles = decodeU32s(b)
		}

		// A zero placement pointer means the identity transform.
		plRes, err := k.call(ctx, "cg_patch_placement", idx)
		if err != nil {
			return nil, err
		}
		if ptr := api.DecodeU32(plRes[0]); ptr != 0 {
			b, err := k.readGuest(ptr, 12*8)
			if err != nil {
				return nil, err
			}
			p.Placement = placementFromF64s(decodeF64s(b))
		}

		patches = append(patches, p)
	}
	return patches, nil
}

// BoundingBox implements kernel.Kernel.
func (k *Kernel) BoundingBox(ctx context.Context, shape kernel.Shape) (kernel.BBox, error) {
	s, ok := shape.(*guestShape)
	if !ok {
		return kernel.BBox{}, fmt.Errorf("foreign shape %T", shape)
	}

	res, err := k.call(ctx, "malloc", api.EncodeU32(48))
	if err != nil {
		return kernel.BBox{}, err
	}
	outPtr := api.DecodeU32(res[0])
	if outPtr == 0 {
		return kernel.BBox{}, fmt.Errorf("guest allocation of 48 bytes failed")
	}
	defer k.freeGuest(ctx, outPtr)

	stRes, err := k.call(ctx, "cg_shape_bbox", s.id, api.EncodeU32(outPtr))
	if err != nil {
		return kernel.BBox{}, err
	}
	if status := int32(api.DecodeU32(stRes[0])); status != 0 {
		return kernel.BBox{}, fmt.Errorf("bounding box failed: %s", k.lastError(ctx))
	}

	b, err := k.readGuest(outPtr, 48)
	if err != nil {
		return kernel.BBox{}, err
	}
	v := decodeF64s(b)
	return kernel.BBox{
		Min: [3]float64{v[0], v[1], v[2]},
		Max: [3]float64{v[3], v[4], v[5]},
	}, nil
}
