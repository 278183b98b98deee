package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/camforge/geomlink/boundary"
	"github.com/camforge/geomlink/kernel"
	"github.com/camforge/geomlink/kernel/wasmkern"
	"github.com/camforge/geomlink/registry"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateLoading modelState = iota
	stateReady
	stateTessellating
)

type inspectorModel struct {
	err        error
	svc        *boundary.Service
	k          *wasmkern.Kernel
	kernelFile string
	modelFile  string
	shape      registry.Handle
	meshH      registry.Handle
	verts      int
	tris       int
	box        *kernel.BBox
	inputs     []textinput.Model
	focusIdx   int
	state      modelState
}

func newInspectorModel(kernelFile, modelFile string, chordTol, angleTol float64) *inspectorModel {
	chord := textinput.New()
	chord.SetValue(strconv.FormatFloat(chordTol, 'g', -1, 64))
	chord.CharLimit = 12
	chord.Width = 12
	chord.Focus()

	angle := textinput.New()
	angle.SetValue(strconv.FormatFloat(angleTol, 'g', -1, 64))
	angle.CharLimit = 12
	angle.Width = 12

	return &inspectorModel{
		kernelFile: kernelFile,
		modelFile:  modelFile,
		inputs:     []textinput.Model{chord, angle},
		state:      stateLoading,
	}
}

type loadedMsg struct {
	err   error
	svc   *boundary.Service
	k     *wasmkern.Kernel
	shape registry.Handle
	box   *kernel.BBox
	meshH registry.Handle
	verts int
	tris  int
}

type tessellatedMsg struct {
	err   error
	meshH registry.Handle
	verts int
	tris  int
}

func (m *inspectorModel) Init() tea.Cmd {
	return m.loadModel
}

func (m *inspectorModel) loadModel() tea.Msg {
	ctx := context.Background()

	svc, k, err := newService(ctx, m.kernelFile)
	if err != nil {
		return loadedMsg{err: err}
	}

	msg := loadedMsg{svc: svc, k: k}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(m.modelFile), "."))
	if isShapeExt(ext) {
		msg.shape = importShapeFile(ctx, svc, ext, m.modelFile)
		if msg.shape == 0 {
			msg.err = fmt.Errorf("import: %s", svc.LastErrorMessage())
			return msg
		}
		if box, status := svc.ShapeBoundingBox(ctx, msg.shape); status == 0 {
			msg.box = &box
		}
		msg.meshH = svc.Tessellate(ctx, msg.shape, 0.1, 0.1)
	} else {
		msg.meshH = svc.ImportAuto(ctx, m.modelFile)
	}
	if msg.meshH == 0 {
		msg.err = fmt.Errorf("mesh: %s", svc.LastErrorMessage())
		return msg
	}
	msg.verts = svc.MeshVertexCount(msg.meshH)
	msg.tris = svc.MeshTriangleCount(msg.meshH)
	return msg
}

func (m *inspectorModel) retessellate() tea.Cmd {
	chordTol, err1 := strconv.ParseFloat(m.inputs[0].Value(), 64)
	angleTol, err2 := strconv.ParseFloat(m.inputs[1].Value(), 64)
	if err1 != nil || err2 != nil {
		return func() tea.Msg {
			return tessellatedMsg{err: fmt.Errorf("tolerances must be numbers")}
		}
	}
	svc, shape, old := m.svc, m.shape, m.meshH
	return func() tea.Msg {
		ctx := context.Background()
		meshH := svc.Tessellate(ctx, shape, chordTol, angleTol)
		if meshH == 0 {
			return tessellatedMsg{err: fmt.Errorf("tessellate: %s", svc.LastErrorMessage())}
		}
		svc.FreeMesh(old)
		return tessellatedMsg{
			meshH: meshH,
			verts: svc.MeshVertexCount(meshH),
			tris:  svc.MeshTriangleCount(meshH),
		}
	}
}

func (m *inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.svc = msg.svc
		m.k = msg.k
		m.shape = msg.shape
		m.box = msg.box
		m.meshH = msg.meshH
		m.verts = msg.verts
		m.tris = msg.tris
		m.err = msg.err
		m.state = stateReady
		return m, nil

	case tessellatedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.meshH = msg.meshH
			m.verts = msg.verts
			m.tris = msg.tris
		}
		m.state = stateReady
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab", "shift+tab":
			m.inputs[m.focusIdx].Blur()
			m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
			m.inputs[m.focusIdx].Focus()
			return m, nil
		case "enter":
			if m.state == stateReady && m.shape != 0 {
				m.state = stateTessellating
				return m, m.retessellate()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focusIdx], cmd = m.inputs[m.focusIdx].Update(msg)
	return m, cmd
}

func (m *inspectorModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("geomctl: mesh inspector"))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Model: "))
	b.WriteString(m.modelFile)
	b.WriteString("\n")

	switch m.state {
	case stateLoading:
		b.WriteString("\nLoading kernel and model...\n")
	case stateTessellating:
		b.WriteString("\nTessellating...\n")
	case stateReady:
		if m.box != nil {
			b.WriteString(labelStyle.Render("Bounds: "))
			b.WriteString(fmt.Sprintf("[%.3f %.3f %.3f] .. [%.3f %.3f %.3f]\n",
				m.box.Min[0], m.box.Min[1], m.box.Min[2],
				m.box.Max[0], m.box.Max[1], m.box.Max[2]))
		}
		b.WriteString(labelStyle.Render("Vertices:  "))
		b.WriteString(valueStyle.Render(strconv.Itoa(m.verts)))
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Triangles: "))
		b.WriteString(valueStyle.Render(strconv.Itoa(m.tris)))
		b.WriteString("\n")

		if m.shape != 0 {
			b.WriteString("\n")
			b.WriteString(labelStyle.Render("Chord tol: "))
			b.WriteString(m.inputs[0].View())
			b.WriteString("  ")
			b.WriteString(labelStyle.Render("Angle tol: "))
			b.WriteString(m.inputs[1].View())
			b.WriteString("\n")
		}

		if m.err != nil {
			b.WriteString("\n")
			b.WriteString(errorStyle.Render(m.err.Error()))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.shape != 0 {
		b.WriteString(helpStyle.Render("tab: switch field • enter: re-tessellate • q: quit"))
	} else {
		b.WriteString(helpStyle.Render("q: quit"))
	}
	b.WriteString("\n")
	return b.String()
}

func runInteractive(kernelFile, modelFile string, chordTol, angleTol float64) error {
	if modelFile == "" {
		return fmt.Errorf("interactive mode needs -model")
	}

	m := newInspectorModel(kernelFile, modelFile, chordTol, angleTol)
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}

	ctx := context.Background()
	if fm, ok := final.(*inspectorModel); ok {
		if fm.svc != nil {
			fm.svc.Close(ctx)
		}
		if fm.k != nil {
			fm.k.Close(ctx)
		}
	}
	return nil
}
