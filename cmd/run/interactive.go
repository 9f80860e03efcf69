package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/wasm-handle/guest"
	"github.com/wippyai/wasm-handle/handle"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	liveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	deadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Strikethrough(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateBrowse modelState = iota
	stateCreate
	stateExecute
)

type interactiveModel struct {
	err      error
	inst     *guest.Instance
	scope    *handle.Scope
	opts     options
	name     string
	status   string
	handles  []*handle.Handle
	input    textinput.Model
	live     *uint32
	selected int
	state    modelState
}

type loadedMsg struct {
	err  error
	inst *guest.Instance
	name string
}

type opResultMsg struct {
	err    error
	h      *handle.Handle
	status string
}

func newInteractiveModel(o options) *interactiveModel {
	ti := textinput.New()
	ti.Width = 40
	return &interactiveModel{opts: o, input: ti, scope: handle.NewScope()}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.load
}

func (m *interactiveModel) load() tea.Msg {
	ctx := context.Background()
	mod, name, err := loadModule(ctx, m.opts.wasmFile)
	if err != nil {
		return loadedMsg{err: err}
	}
	inst, err := mod.Instantiate(ctx, &guest.InstanceConfig{
		CreateExport:  m.opts.createFunc,
		DestroyExport: m.opts.destroyFunc,
	})
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{inst: inst, name: name}
}

// shutdown destroys every handle in the scope. A create still in flight
// finds the scope closed and destroys its handle itself.
func (m *interactiveModel) shutdown() {
	ctx := context.Background()
	_ = m.scope.Close(ctx)
	if m.inst != nil {
		_ = m.inst.Close(ctx)
	}
}

func (m *interactiveModel) current() *handle.Handle {
	if m.selected < 0 || m.selected >= len(m.handles) {
		return nil
	}
	return m.handles[m.selected]
}

func (m *interactiveModel) prompt(state modelState, label, value string) {
	m.state = state
	m.input.Prompt = label + ": "
	m.input.SetValue(value)
	m.input.Focus()
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state != stateBrowse {
			switch msg.String() {
			case "ctrl+c":
				m.shutdown()
				return m, tea.Quit
			case "esc":
				m.state = stateBrowse
				m.input.Blur()
				return m, nil
			case "enter":
				value := m.input.Value()
				state := m.state
				m.state = stateBrowse
				m.input.Blur()
				if state == stateCreate {
					return m, m.create(value)
				}
				return m, m.execute(m.current(), value)
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			m.shutdown()
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.handles)-1 {
				m.selected++
			}
		case "n":
			if m.inst != nil {
				m.prompt(stateCreate, "params ("+m.opts.types+")", m.opts.params)
			}
		case "x":
			if m.current() != nil && m.opts.execFunc != "" {
				m.prompt(stateExecute, m.opts.execFunc+" args ("+m.opts.execTypes+")", m.opts.execArgs)
			}
		case "d":
			if h := m.current(); h != nil {
				return m, m.destroy(h)
			}
		}

	case loadedMsg:
		m.err = msg.err
		m.inst = msg.inst
		m.name = msg.name
		m.refreshLive()

	case opResultMsg:
		m.err = msg.err
		m.status = msg.status
		if msg.h != nil {
			m.handles = append(m.handles, msg.h)
			m.selected = len(m.handles) - 1
		}
		m.refreshLive()
	}

	return m, nil
}

func (m *interactiveModel) refreshLive() {
	if m.inst != nil {
		m.live = liveCount(context.Background(), m.inst)
	}
}

func (m *interactiveModel) create(value string) tea.Cmd {
	inst, scope, o := m.inst, m.scope, m.opts
	return func() tea.Msg {
		params, err := guest.ParseParams(guest.SplitList(o.types), guest.SplitList(value))
		if err != nil {
			return opResultMsg{err: err}
		}
		h, err := handle.CreateIn(context.Background(), scope, inst, params, handle.WithLabel(o.createFunc))
		if err != nil {
			return opResultMsg{err: err}
		}
		return opResultMsg{h: h, status: "created " + h.String()}
	}
}

func (m *interactiveModel) execute(h *handle.Handle, value string) tea.Cmd {
	inst, o := m.inst, m.opts
	return func() tea.Msg {
		args, err := guest.ParseParams(guest.SplitList(o.execTypes), guest.SplitList(value))
		if err != nil {
			return opResultMsg{err: err}
		}
		res, err := inst.Invoke(context.Background(), h, o.execFunc, args...)
		if err != nil {
			return opResultMsg{err: err}
		}
		return opResultMsg{status: fmt.Sprintf("%s(%s) = %v", o.execFunc, h, res)}
	}
}

func (m *interactiveModel) destroy(h *handle.Handle) tea.Cmd {
	return func() tea.Msg {
		label := h.String()
		if err := h.Destroy(context.Background()); err != nil {
			return opResultMsg{err: err}
		}
		return opResultMsg{status: "destroyed " + label}
	}
}

func (m *interactiveModel) View() string {
	if m.inst == nil {
		if m.err != nil {
			return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
		}
		return "Loading module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Handle Runner"))
	b.WriteString(" ")
	b.WriteString(m.name)
	if m.live != nil {
		fmt.Fprintf(&b, "  live: %d", *m.live)
	}
	b.WriteString("\n\n")

	if len(m.handles) == 0 {
		b.WriteString(helpStyle.Render("no handles yet"))
		b.WriteString("\n")
	}
	for i, h := range m.handles {
		line := h.String()
		if h.IsValid() {
			line = liveStyle.Render(line)
		} else {
			line = deadStyle.Render(line)
		}
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> "))
		} else {
			b.WriteString("  ")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.state != stateBrowse {
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter run • esc cancel"))
		return b.String()
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	} else if m.status != "" {
		b.WriteString(resultStyle.Render(m.status))
		b.WriteString("\n\n")
	}
	b.WriteString(helpStyle.Render("n new • x execute • d destroy • ↑/↓ select • q quit"))
	return b.String()
}

func runInteractive(o options) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal")
	}
	p := tea.NewProgram(newInteractiveModel(o), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
