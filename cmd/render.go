package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/smazurov/lightnode/internal/api/models"
	"github.com/smazurov/lightnode/internal/discovery"
)

var (
	lampColors = map[string]lipgloss.Color{
		"red":    lipgloss.Color("#FF3B30"),
		"yellow": lipgloss.Color("#FFCC00"),
		"green":  lipgloss.Color("#34C759"),
	}
	offStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	modeStyle    = lipgloss.NewStyle().Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

var lampOrder = []string{"red", "yellow", "green"}

func lamp(name string, on bool) string {
	label := strings.ToUpper(name)
	if !on {
		return offStyle.Render("○ " + label)
	}
	return lipgloss.NewStyle().Foreground(lampColors[name]).Bold(true).Render("● " + label)
}

func formatDurations(d models.Durations) string {
	return fmt.Sprintf("red %gs  yellow %gs  green %gs  flash %gs", d.Red, d.Yellow, d.Green, d.Flash)
}

// renderState prints the lamps, mode and timings inside a box.
func renderState(w io.Writer, s *models.StateData) {
	lamps := make([]string, 0, len(lampOrder))
	for _, name := range lampOrder {
		lamps = append(lamps, lamp(name, s.Outputs[name]))
	}

	lines := []string{
		strings.Join(lamps, "  "),
		labelStyle.Render("mode    ") + modeStyle.Render(s.Mode),
		labelStyle.Render("preset  ") + s.ActivePreset,
		labelStyle.Render("timings ") + formatDurations(s.Durations),
	}
	if s.Driver != "" {
		lines = append(lines, labelStyle.Render("driver  ")+s.Driver)
	}
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
}

func renderWarnings(w io.Writer, warnings []models.Warning) {
	for _, warn := range warnings {
		fmt.Fprintln(w, warningStyle.Render(fmt.Sprintf("! %s=%q ignored: %s", warn.Field, warn.Value, warn.Reason)))
	}
}

func renderPresets(w io.Writer, list *models.PresetListData) {
	width := 0
	for _, p := range list.Presets {
		width = max(width, lipgloss.Width(p.Name))
	}
	for _, p := range list.Presets {
		marker := "  "
		if p.Name == list.Active {
			marker = modeStyle.Render("*") + " "
		}
		fmt.Fprintf(w, "%s%-*s  %s\n", marker, width, p.Name, labelStyle.Render(formatDurations(p.Durations)))
	}
}

func renderControllers(w io.Writer, found []discovery.Controller) {
	for _, c := range found {
		version := c.Info.Version
		if version == "" {
			version = "?"
		}
		fmt.Fprintf(w, "%s  %s  %s\n", modeStyle.Render(c.Instance), c.URL(), labelStyle.Render("version "+version))
	}
}
