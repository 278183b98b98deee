// Package kerneltest provides an in-memory Kernel fake for boundary tests.
package kerneltest

import (
	"context"
	"fmt"
	"sync"

	"github.com/camforge/geomlink/kernel"
	"github.com/camforge/geomlink/mesh"
)

// Fake is a configurable in-memory kernel. Register models by path with
// AddStep/AddSTL, then point boundary operations at those paths. The zero
// value is not usable; create fakes with New.
type Fake struct {
	mu       sync.Mutex
	steps    map[string][]mesh.Patch
	igeses   map[string][]mesh.Patch
	stls     map[string][]mesh.Patch
	released []*Shape

	// FailTessellate, when set, makes every Tessellate call return this
	// error.
	FailTessellate error
	// PanicTessellate makes Tessellate panic, for exercising the boundary's
	// recover path.
	PanicTessellate bool
}

// Shape is the fake's kernel.Shape. It remembers the patches Tessellate
// should produce for it.
type Shape struct {
	fake     *Fake
	patches  []mesh.Patch
	released bool
}

// Release implements kernel.Shape.
func (s *Shape) Release(ctx context.Context) error {
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	s.fake.released = append(s.fake.released, s)
	return nil
}

// Released reports whether Release has been called.
func (s *Shape) Released() bool {
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()
	return s.released
}

// New creates an empty fake kernel.
func New() *Fake {
	return &Fake{
		steps:  make(map[string][]mesh.Patch),
		igeses: make(map[string][]mesh.Patch),
		stls:   make(map[string][]mesh.Patch),
	}
}

// AddStep registers a STEP model: importing path yields a shape whose
// tessellation produces patches.
func (f *Fake) AddStep(path string, patches ...mesh.Patch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps[path] = patches
}

// AddIges registers an IGES model: importing path yields a shape whose
// tessellation produces patches.
func (f *Fake) AddIges(path string, patches ...mesh.Patch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.igeses[path] = patches
}

// AddSTL registers an STL model: importing path yields patches directly.
func (f *Fake) AddSTL(path string, patches ...mesh.Patch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stls[path] = patches
}

// ReleasedCount returns how many shapes have been released.
func (f *Fake) ReleasedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.released)
}

// ImportStep implements kernel.Kernel.
func (f *Fake) ImportStep(ctx context.Context, path string) (kernel.Shape, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	patches, ok := f.steps[path]
	if !ok {
		return nil, fmt.Errorf("%w: no STEP model registered at %q", kernel.ErrParse, path)
	}
	return &Shape{fake: f, patches: patches}, nil
}

// ImportIges implements kernel.Kernel.
func (f *Fake) ImportIges(ctx context.Context, path string) (kernel.Shape, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	patches, ok := f.igeses[path]
	if !ok {
		return nil, fmt.Errorf("%w: no IGES model registered at %q", kernel.ErrParse, path)
	}
	return &Shape{fake: f, patches: patches}, nil
}

// ImportSTL implements kernel.Kernel.
func (f *Fake) ImportSTL(ctx context.Context, path string) ([]mesh.Patch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	patches, ok := f.stls[path]
	if !ok {
		return nil, fmt.Errorf("%w: no STL model registered at %q", kernel.ErrParse, path)
	}
	return patches, nil
}

// Tessellate implements kernel.Kernel.
func (f *Fake) Tessellate(ctx context.Context, shape kernel.Shape, opts kernel.TessellationOpts) ([]mesh.Patch, error) {
	f.mu.Lock()
	fail := f.FailTessellate
	doPanic := f.PanicTessellate
	f.mu.Unlock()

	if doPanic {
		panic("kerneltest: tessellate panic requested")
	}
	if fail != nil {
		return nil, fail
	}
	s, ok := shape.(*Shape)
	if !ok {
		return nil, fmt.Errorf("kerneltest: foreign shape %T", shape)
	}
	return s.patches, nil
}

// BoundingBox implements kernel.Kernel. It bounds the world-space positions
// of the shape's patches; a shape with no vertices gets a void box.
func (f *Fake) BoundingBox(ctx context.Context, shape kernel.Shape) (kernel.BBox, error) {
	s, ok := shape.(*Shape)
	if !ok {
		return kernel.BBox{}, fmt.Errorf("kerneltest: foreign shape %T", shape)
	}

	box := kernel.BBox{
		Min: [3]float64{1, 1, 1},
		Max: [3]float64{-1, -1, -1},
	}
	seen := false
	for i := range s.patches {
		p := &s.patches[i]
		for v := 0; v+2 < len(p.Positions); v += 3 {
			x, y, z := p.Positions[v], p.Positions[v+1], p.Positions[v+2]
			if p.Placement != nil {
				x, y, z = p.Placement.Apply(x, y, z)
			}
			if !seen {
				box.Min = [3]float64{x, y, z}
				box.Max = [3]float64{x, y, z}
				seen = true
				continue
			}
			box.Min[0] = min(box.Min[0], x)
			box.Min[1] = min(box.Min[1], y)
			box.Min[2] = min(box.Min[2], z)
			box.Max[0] = max(box.Max[0], x)
			box.Max[1] = max(box.Max[1], y)
			box.Max[2] = max(box.Max[2], z)
		}
	}
	return box, nil
}
