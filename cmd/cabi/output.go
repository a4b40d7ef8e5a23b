package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-canon/types"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

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

// printer writes command output, styled only when color is on.
type printer struct {
	w     io.Writer
	color bool
}

func (p *printer) paint(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func flatString(flat []types.FlatType) string {
	parts := make([]string, len(flat))
	for i, f := range flat {
		parts[i] = f.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func slotsString(slots []uint64) string {
	parts := make([]string, len(slots))
	for i, s := range slots {
		parts[i] = fmt.Sprintf("%#x", s)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// hexBytes renders data as space separated hex, 16 bytes per line, each
// continuation line indented by indent.
func hexBytes(data []byte, indent string) string {
	var b strings.Builder
	for i, c := range data {
		switch {
		case i == 0:
		case i%16 == 0:
			b.WriteString("\n")
			b.WriteString(indent)
		default:
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", c)
	}
	return b.String()
}

// memberLayout lists the offsets of a type's direct members.
func memberLayout(t types.Type) []string {
	var out []string
	switch t := t.(type) {
	case *types.Record:
		for i, f := range t.Fields() {
			out = append(out, fmt.Sprintf("%-4d %s: %s", t.Offset(i), f.Name, f.Type))
		}
	case *types.Tuple:
		for i, e := range t.Elems() {
			out = append(out, fmt.Sprintf("%-4d %d: %s", t.Offset(i), i, e))
		}
	case types.Union:
		out = append(out, fmt.Sprintf("%-4d discriminant (%d bytes)", 0, t.DiscSize()))
		for i := 0; i < t.NumCases(); i++ {
			p := t.Payload(i)
			if p == nil {
				out = append(out, fmt.Sprintf("%-4s %s", "-", caseLabel(t, i)))
				continue
			}
			out = append(out, fmt.Sprintf("%-4d %s: %s", t.PayloadOffset(), caseLabel(t, i), p))
		}
	case *types.Enum:
		out = append(out, fmt.Sprintf("%-4d discriminant (%d bytes)", 0, t.DiscSize()))
	case *types.Flags:
		out = append(out, fmt.Sprintf("%-4d %d words for %d labels", 0, t.Words(), len(t.Labels())))
	}
	return out
}

func caseLabel(t types.Union, i int) string {
	switch t := t.(type) {
	case *types.Variant:
		return t.CaseName(i)
	case *types.Option:
		return [...]string{"none", "some"}[i]
	case *types.Result:
		return [...]string{"ok", "err"}[i]
	}
	return fmt.Sprint(i)
}
