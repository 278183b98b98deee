package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/camforge/geomlink/boundary"
	"github.com/camforge/geomlink/kernel/wasmkern"
	"github.com/camforge/geomlink/registry"
)

func main() {
	var (
		kernelFile  = flag.String("kernel", "", "Path to geometry kernel wasm build")
		modelFile   = flag.String("model", "", "Path to model file (.step/.stp/.iges/.igs/.stl)")
		chordTol    = flag.Float64("chord", 0.1, "Chord tolerance for tessellation")
		angleTol    = flag.Float64("angle", 0.1, "Angle tolerance for tessellation (radians)")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *kernelFile == "" || (*modelFile == "" && !*interactive) {
		fmt.Fprintln(os.Stderr, "Usage: geomctl -kernel <kernel.wasm> -model <file.step|.iges|.stl> [-chord t] [-angle t]")
		fmt.Fprintln(os.Stderr, "       geomctl -kernel <kernel.wasm> [-model <file>] -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			boundary.SetLogger(logger)
			wasmkern.SetLogger(logger)
		}
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*kernelFile, *modelFile, *chordTol, *angleTol); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*kernelFile, *modelFile, *chordTol, *angleTol); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(kernelFile, modelFile string, chordTol, angleTol float64) error {
	ctx := context.Background()

	svc, k, err := newService(ctx, kernelFile)
	if err != nil {
		return err
	}
	defer k.Close(ctx)
	defer svc.Close(ctx)

	fmt.Printf("Model: %s\n", modelFile)

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(modelFile), "."))
	if isShapeExt(ext) {
		shape := importShapeFile(ctx, svc, ext, modelFile)
		if shape == 0 {
			return fmt.Errorf("import: %s", svc.LastErrorMessage())
		}
		defer svc.FreeShape(ctx, shape)

		if box, status := svc.ShapeBoundingBox(ctx, shape); status == 0 {
			fmt.Printf("Bounds: [%.3f %.3f %.3f] .. [%.3f %.3f %.3f]\n",
				box.Min[0], box.Min[1], box.Min[2],
				box.Max[0], box.Max[1], box.Max[2])
		}

		m := svc.Tessellate(ctx, shape, chordTol, angleTol)
		if m == 0 {
			return fmt.Errorf("tessellate: %s", svc.LastErrorMessage())
		}
		defer svc.FreeMesh(m)
		fmt.Printf("Tessellated at chord=%g angle=%g\n", chordTol, angleTol)
		printMesh(svc, m)
		return nil
	}

	m := svc.ImportAuto(ctx, modelFile)
	if m == 0 {
		return fmt.Errorf("import: %s", svc.LastErrorMessage())
	}
	defer svc.FreeMesh(m)
	printMesh(svc, m)
	return nil
}

// isShapeExt reports whether ext names a B-rep format that imports to a
// shape handle, as opposed to a direct mesh format.
func isShapeExt(ext string) bool {
	switch ext {
	case "step", "stp", "iges", "igs":
		return true
	}
	return false
}

func importShapeFile(ctx context.Context, svc *boundary.Service, ext, path string) registry.Handle {
	if ext == "iges" || ext == "igs" {
		return svc.ImportIges(ctx, path)
	}
	return svc.ImportShape(ctx, path)
}

func newService(ctx context.Context, kernelFile string) (*boundary.Service, *wasmkern.Kernel, error) {
	wasmBytes, err := os.ReadFile(kernelFile)
	if err != nil {
		return nil, nil, fmt.Errorf("read kernel: %w", err)
	}
	k, err := wasmkern.New(ctx, wasmBytes, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("load kernel: %w", err)
	}
	return boundary.New(k), k, nil
}

func printMesh(svc *boundary.Service, m registry.Handle) {
	fmt.Printf("Vertices:  %d\n", svc.MeshVertexCount(m))
	fmt.Printf("Triangles: %d\n", svc.MeshTriangleCount(m))
}
