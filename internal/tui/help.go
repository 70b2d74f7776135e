package tui

import (
	"fmt"
	"strings"

	"powerscore/internal/score"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type keyHelp struct {
	key  string
	desc string
}

type helpSection struct {
	title string
	keys  []keyHelp
}

var keySections = []helpSection{
	{"Navigation", []keyHelp{
		{"1", "Dashboard"},
		{"2", "Activities"},
		{"3", "Ranks"},
		{"4 / s", "Sync"},
		{"?", "This screen"},
		{"esc", "Back"},
		{"q", "Quit"},
	}},
	{"Dashboard and Ranks", []keyHelp{
		{"r", "Reload"},
	}},
	{"Activities", []keyHelp{
		{"j / k", "Move cursor"},
		{"pgdn / pgup", "Change page"},
		{"enter", "Open score detail"},
		{"r", "Reload page"},
	}},
	{"Score Detail", []keyHelp{
		{"x", "Rescore with the current profile"},
		{"j / k", "Scroll"},
	}},
	{"Sync", []keyHelp{
		{"s / enter", "Fetch rides, streams and scores"},
	}},
}

var sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(secondaryColor)

// HelpModel lists key bindings and how the score is built
type HelpModel struct{}

func NewHelpModel() HelpModel {
	return HelpModel{}
}

func (m HelpModel) Init() tea.Cmd {
	return nil
}

func (m HelpModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m, nil
}

func (m HelpModel) View() string {
	sections := []string{cardTitleStyle.Render("Keyboard Shortcuts")}
	for _, s := range keySections {
		sections = append(sections, renderKeySection(s))
	}
	sections = append(sections, renderScoreGuide())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderKeySection(s helpSection) string {
	lines := []string{"", sectionStyle.Render(s.title)}
	for _, k := range s.keys {
		lines = append(lines, "  "+RenderKeyHelp(k.key, k.desc))
	}
	return strings.Join(lines, "\n")
}

func renderScoreGuide() string {
	ranks := make([]string, 0, len(score.Ranks()))
	for _, r := range score.Ranks() {
		ranks = append(ranks, RenderRank(r))
	}

	guide := []keyHelp{
		{"Power", fmt.Sprintf("Normalized power per kg against %.1f W/kg.", score.DefaultWRWkgBenchmark)},
		{"Volume", "Ride minutes on a log scale, capped at 100."},
		{"Intensity", "Normalized power over FTP, capped at 100."},
		{"Drift", fmt.Sprintf("Power per heartbeat lost in the second half. Penalized past %.0f%%.", score.DefaultDecouplingThreshold*100)},
		{"Rank", strings.Join(ranks, " ")},
		{"Tier", "LEGENDARY from 90 down to WEAK under 40."},
	}

	lines := []string{"", sectionStyle.Render("Score Explained"), ""}
	for _, g := range guide {
		lines = append(lines, "  "+helpKeyStyle.Render(g.key))
		lines = append(lines, "  "+helpDescStyle.Render(g.desc), "")
	}
	return strings.Join(lines, "\n")
}
