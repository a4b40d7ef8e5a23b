package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-canon/transcoder"
	"github.com/wippyai/wasm-canon/types"
)

func newBrowseCmd(a *app) *cobra.Command {
	var codec codecFlags
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "browse functions and lower arguments interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
				return fmt.Errorf("browse needs a terminal")
			}
			i, err := a.load(true)
			if err != nil {
				return err
			}
			p := tea.NewProgram(newBrowseModel(a.file, i, codec.options()), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
	codec.register(cmd)
	return cmd
}

type browseState int

const (
	stateSelectFunc browseState = iota
	stateInputArgs
	stateShowResult
)

type browseModel struct {
	filename string
	iface    *types.Interface
	funcs    []*types.FuncType
	opts     []transcoder.Option
	inputs   []textinput.Model
	result   string
	err      error
	selected int
	focusIdx int
	state    browseState
}

func newBrowseModel(filename string, i *types.Interface, opts []transcoder.Option) *browseModel {
	return &browseModel{
		filename: filename,
		iface:    i,
		funcs:    i.Funcs(),
		opts:     opts,
		state:    stateSelectFunc,
	}
}

type loweredMsg struct {
	err    error
	result string
}

func (m *browseModel) Init() tea.Cmd { return nil }

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
				return m, nil
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
				return m, nil
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.lower
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.lower

			case stateShowResult:
				m.reset()
				return m, nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
				return m, nil
			}

		case "esc":
			if m.state != stateSelectFunc {
				m.reset()
				return m, nil
			}
		}

	case loweredMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
		return m, nil
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

func (m *browseModel) reset() {
	m.state = stateSelectFunc
	m.inputs = nil
	m.result = ""
	m.err = nil
}

func (m *browseModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.Params))
	for i, p := range f.Params {
		ti := textinput.New()
		ti.Placeholder = p.Type.String()
		ti.Prompt = p.Name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

// lower lowers the entered arguments and renders them like the args
// command.
func (m *browseModel) lower() tea.Msg {
	f := m.funcs[m.selected]
	srcs := make([]string, len(m.inputs))
	for i, in := range m.inputs {
		srcs[i] = in.Value()
	}
	vals, err := parseArgs(f, srcs)
	if err != nil {
		return loweredMsg{err: err}
	}
	c, err := lowerCall(f, vals, m.opts)
	if err != nil {
		return loweredMsg{err: err}
	}

	var buf bytes.Buffer
	a := &app{out: &printer{w: &buf}}
	a.printSig(f)
	a.printCall(c)
	return loweredMsg{result: buf.String()}
}

func (m *browseModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("cabi"))
	b.WriteString(" ")
	b.WriteString(m.iface.Name)
	if m.filename != "" {
		b.WriteString(helpStyle.Render("  " + m.filename))
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		if len(m.funcs) == 0 {
			b.WriteString("No functions.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			break
		}
		b.WriteString("Select a function:\n\n")
		for i, f := range m.funcs {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + f.String()))
			} else {
				b.WriteString("  " + formatFunc(f))
			}
			b.WriteString("\n")
		}
		f := m.funcs[m.selected]
		b.WriteString("\n  core ")
		b.WriteString(typeStyle.Render(f.Flatten().String()))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter lower arguments • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Arguments for %s\n\n", funcStyle.Render(f.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(f.Params[i].Type.String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter lower • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Lowered call to %s:\n\n", funcStyle.Render(f.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func formatFunc(f *types.FuncType) string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Name + ": " + typeStyle.Render(p.Type.String())
	}
	result := ""
	if f.Result != nil {
		result = " -> " + typeStyle.Render(f.Result.String())
	}
	return funcStyle.Render(f.Name) + "(" + strings.Join(params, ", ") + ")" + result
}
