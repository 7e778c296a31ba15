package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/Xangel0s/docqr-Flex-sub000/errkind"
	"github.com/Xangel0s/docqr-Flex-sub000/inspect"
	"github.com/Xangel0s/docqr-Flex-sub000/orchestrator"
)

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorGray   = lipgloss.Color("245")
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleLabel   = lipgloss.NewStyle().Foreground(colorGray).Width(12)
	styleValue   = lipgloss.NewStyle().Foreground(colorCyan)
	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleError   = lipgloss.NewStyle().Foreground(colorRed)
	styleHint    = lipgloss.NewStyle().Foreground(colorYellow)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconHint    = "›"
)

func printField(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "  %s %s\n", styleLabel.Render(label), styleValue.Render(fmt.Sprint(value)))
}

func printDescriptor(w io.Writer, name string, d inspect.Descriptor) {
	fmt.Fprintln(w, styleTitle.Render(name))
	printField(w, "pages", d.PageCount)
	printField(w, "page", fmt.Sprintf("%g x %g %s", d.PageWidth, d.PageHeight, d.Unit))
	printField(w, "origin", fmt.Sprintf("%g, %g pt", d.OriginX, d.OriginY))
	if d.Rotation != 0 {
		printField(w, "rotation", d.Rotation)
	}
	printField(w, "readable", d.Readable)
}

func printResult(w io.Writer, out string, res orchestrator.EmbedResult) {
	fmt.Fprintf(w, "%s %s\n", styleSuccess.Render(iconSuccess), styleTitle.Render(out))
	if res.Placement != nil {
		printField(w, "placement", res.Placement.String())
	}
	printField(w, "strategy", res.Strategy)
	printField(w, "job", res.JobID)
}

func printFailure(w io.Writer, kind errkind.Kind, message, hint string) {
	fmt.Fprintf(w, "%s %s: %s\n", styleError.Render(iconError), kind, message)
	if hint != "" {
		fmt.Fprintf(w, "  %s %s\n", styleHint.Render(iconHint), hint)
	}
}

// printError reports a failure that did not come from a job.
func printError(w io.Writer, err error) {
	kind := errkind.Of(err)
	printFailure(w, kind, errkind.MessageFor(kind), errkind.HintFor(kind))
}
