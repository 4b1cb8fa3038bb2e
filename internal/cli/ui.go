package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/graphstate/pkg/graph"
	"github.com/matzehuels/graphstate/pkg/state"
)

// stdout receives all command output. Tests swap it for a buffer.
var stdout io.Writer = os.Stdout

var (
	colorTeal  = lipgloss.Color("36")
	colorGreen = lipgloss.Color("35")
	colorAmber = lipgloss.Color("220")
	colorRed   = lipgloss.Color("167")
	colorBlue  = lipgloss.Color("75")
	colorWhite = lipgloss.Color("255")
	colorGray  = lipgloss.Color("245")
	colorDim   = lipgloss.Color("240")
)

var (
	styleType    = lipgloss.NewStyle().Bold(true).Foreground(colorTeal)
	styleCount   = lipgloss.NewStyle().Foreground(colorTeal)
	stylePath    = lipgloss.NewStyle().Foreground(colorGray)
	styleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	styleMuted   = lipgloss.NewStyle().Foreground(colorDim)
	styleLabel   = lipgloss.NewStyle().Foreground(colorGray).Width(12)
	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
	styleSpinner = lipgloss.NewStyle().Foreground(colorTeal)
	styleCached  = lipgloss.NewStyle().Foreground(colorGreen)
)

// Markers printed by printStats for a definition taken from the cache or
// built by the engine.
const (
	markCached = "cached"
	markFresh  = "fresh"
)

// status is the icon leading a one-line message.
type status struct {
	icon  string
	style lipgloss.Style
}

var (
	statusOK   = status{"✓", lipgloss.NewStyle().Foreground(colorGreen)}
	statusFail = status{"✗", lipgloss.NewStyle().Foreground(colorRed)}
	statusWarn = status{"!", lipgloss.NewStyle().Foreground(colorAmber)}
	statusInfo = status{"›", lipgloss.NewStyle().Foreground(colorGray)}
)

func (s status) print(format string, args ...any) {
	fmt.Fprintln(stdout, s.style.Render(s.icon), fmt.Sprintf(format, args...))
}

// printDetail prints an indented, muted line.
func printDetail(format string, args ...any) {
	fmt.Fprintln(stdout, " ", styleMuted.Render(fmt.Sprintf(format, args...)))
}

// printField prints a labeled value.
func printField(label, value string) {
	fmt.Fprintln(stdout, styleLabel.Render(label), styleValue.Render(value))
}

// printFile prints the path of a written file.
func printFile(path string) {
	fmt.Fprintln(stdout, " ", styleMuted.Render("→"), styleValue.Render(path))
}

// printLeaf prints one state entry as "path = value".
func printLeaf(p state.Path, v any) {
	fmt.Fprintln(stdout, " ", stylePath.Render(p.String()), "=", styleValue.Render(formatLeaf(v)))
}

// printStats prints the size of a graph definition and where it came from.
func printStats(def *graph.GraphDef, cached bool) {
	mark := styleMuted.Render(markFresh)
	if cached {
		mark = styleCached.Render(markCached)
	}
	sizes := fmt.Sprintf("%d nodes · %d leaves ·", len(def.Nodes), def.Leaves)
	fmt.Fprintln(stdout, " ", styleMuted.Render(sizes), mark)
}

// printNextStep suggests a follow-up command.
func printNextStep(description, cmd string) {
	fmt.Fprintln(stdout, styleMuted.Render(description+":"), styleCommand.Render(cmd))
}

func printNewline() {
	fmt.Fprintln(stdout)
}
