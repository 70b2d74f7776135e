package tui

import (
	"context"
	"fmt"

	"powerscore/internal/score"
	"powerscore/internal/service"
	"powerscore/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

// DashboardModel is the dashboard screen model
type DashboardModel struct {
	queryService *service.QueryService
	data         *service.DashboardData
	loading      bool
	err          error
	width        int
}

// NewDashboardModel creates a new dashboard model
func NewDashboardModel(qs *service.QueryService, width int) DashboardModel {
	return DashboardModel{
		queryService: qs,
		loading:      true,
		width:        width,
	}
}

// Init initializes the dashboard
func (m DashboardModel) Init() tea.Cmd {
	return m.loadData
}

func (m DashboardModel) loadData() tea.Msg {
	data, err := m.queryService.GetDashboardData(context.Background())
	if err != nil {
		return dashboardDataMsg{err: err}
	}
	return dashboardDataMsg{data: data}
}

type dashboardDataMsg struct {
	data *service.DashboardData
	err  error
}

// Update handles messages
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		m.loading = false
		m.err = msg.err
		m.data = msg.data
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			m.loading = true
			return m, m.loadData
		}
	}
	return m, nil
}

// View renders the dashboard
func (m DashboardModel) View() string {
	if m.loading {
		return "\n  Loading dashboard..."
	}

	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err))
	}

	if m.data == nil || !m.data.HasScores() {
		return "\n  No scored rides yet. Press 's' to sync with Strava."
	}

	var sections []string

	scoreCard := m.renderScoreCard()
	windowCard := m.renderWindowCard()
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, scoreCard, "  ", windowCard))

	if len(m.data.Trend) > 2 {
		sections = append(sections, m.renderChart())
	}

	sections = append(sections, m.renderRecentActivities())

	help := statusStyle.Render("Press 'r' to refresh, 's' to sync, '2' for activities list")
	sections = append(sections, help)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m DashboardModel) renderScoreCard() string {
	latest := m.data.Latest
	title := cardTitleStyle.Render("Latest Ride: " + truncateName(latest.Name, 24))

	lines := append(renderBreakdown(latest.Score, m.data.Profile.Developer),
		"",
		statusStyle.Render(latest.Score.ActivityDate.Local().Format("Mon Jan 02 2006")),
	)

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(46).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

// renderBreakdown renders the final score, sub-score bars and classification of a score
func renderBreakdown(rec store.ScoreRecord, developer bool) []string {
	b := rec.Breakdown
	final := lipgloss.NewStyle().Bold(true).Foreground(tierColor(b.QualityTier)).
		Render(fmt.Sprintf("%.1f", b.FinalScore))

	lines := []string{
		final + "  " + RenderScoreBar(b.FinalScore, 20, tierColor(b.QualityTier)) + "  " + RenderTier(b.QualityTier),
		metricLabelStyle.Render("Rank") + RenderRank(b.Rank) + helpDescStyle.Render(fmt.Sprintf("  %.2f W/kg", b.WattsPerKg)),
		"",
		subScoreLine("Power", b.PowerScore),
		subScoreLine("Volume", b.VolumeScore),
		subScoreLine("Intensity", b.IntensityScore),
		"",
		driftLine(b.DecouplingDrift, b.PenaltyApplied, b.HeartRateAvailable),
	}

	if developer {
		lines = append(lines,
			"",
			RenderMetric("Normalized Power", fmt.Sprintf("%.0f W", b.NormalizedPower), ""),
			RenderMetric("Intensity Factor", fmt.Sprintf("%.2f", b.IntensityFactor), ""),
			RenderMetric("Base Score", fmt.Sprintf("%.1f", b.BaseScore), ""),
			RenderMetric("Engine", b.EngineVersion, ""),
		)
	}
	return lines
}

func subScoreLine(label string, value float64) string {
	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		metricLabelStyle.Width(12).Render(label),
		RenderScoreBar(value, 20, primaryColor),
		metricValueStyle.Render(fmt.Sprintf(" %5.1f", value)),
	)
}

func driftLine(drift, penalty float64, hrAvailable bool) string {
	if !hrAvailable {
		return trendFlatStyle.Render("No heart rate: drift not measured")
	}
	text := fmt.Sprintf("Drift %.1f%%  Penalty %.1f", drift*100, penalty)
	if penalty > 0 {
		return warningStyle.Render(text)
	}
	return successStyle.Render(text)
}

func (m DashboardModel) renderWindowCard() string {
	title := cardTitleStyle.Render(fmt.Sprintf("Last %d Days", service.RollingWindowDays))

	lines := []string{
		RenderMetric("Rides scored", fmt.Sprintf("%d", m.data.WindowCount), ""),
		RenderMetric("Average score", fmt.Sprintf("%.1f", m.data.WindowAverage), m.windowTrend()),
	}
	if best := m.data.Best; best != nil {
		lines = append(lines, RenderMetric("Best score", fmt.Sprintf("%.1f", best.Score.FinalScore), ""))
	}
	lines = append(lines, RenderMetric("Activities", fmt.Sprintf("%d", m.data.TotalActivities), ""))

	lines = append(lines, "")
	for _, r := range score.Ranks() {
		if n := m.data.WindowRanks[r]; n > 0 {
			lines = append(lines, metricLabelStyle.Render(RenderRank(r))+metricValueStyle.Render(fmt.Sprintf("%d", n)))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(34).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

// windowTrend compares the latest score against the rolling average
func (m DashboardModel) windowTrend() string {
	if m.data.WindowCount < 2 {
		return ""
	}
	diff := m.data.Latest.Score.FinalScore - m.data.WindowAverage
	switch {
	case diff > 0.5:
		return fmt.Sprintf("↑ %.1f", diff)
	case diff < -0.5:
		return fmt.Sprintf("↓ %.1f", -diff)
	}
	return "→"
}

func (m DashboardModel) renderChart() string {
	title := cardTitleStyle.Render("Final Score - Recent Trend")

	width := 60
	if m.width > 20 && m.width-20 < width {
		width = m.width - 20
	}

	graph := asciigraph.Plot(m.data.Trend,
		asciigraph.Height(8),
		asciigraph.Width(width),
		asciigraph.Precision(1),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(100),
	)

	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, graph))
}

func (m DashboardModel) renderRecentActivities() string {
	title := cardTitleStyle.Render("Recent Activities")

	if len(m.data.RecentActivities) == 0 {
		return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, "No activities yet"))
	}

	header := tableHeaderStyle.Render(fmt.Sprintf("%-10s  %-24s  %7s  %6s  %-12s",
		"Date", "Name", "Time", "Score", "Rank"))

	rows := []string{header}
	for i, sa := range m.data.RecentActivities {
		if i >= 5 {
			break
		}
		rows = append(rows, tableRowStyle.Render(fmt.Sprintf("%-10s  %-24s  %7s  %s",
			sa.StartDate.Local().Format("Jan 02"),
			truncateName(sa.Name, 24),
			formatDuration(sa.MovingTime),
			scoreCells(sa.Score),
		)))
	}

	table := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, table))
}

// scoreCells renders the score and rank columns of a table row
func scoreCells(rec *store.ScoreRecord) string {
	if rec == nil {
		return fmt.Sprintf("%6s  %-12s", "-", "-")
	}
	final := lipgloss.NewStyle().Foreground(tierColor(rec.QualityTier)).Render(fmt.Sprintf("%6.1f", rec.FinalScore))
	return final + "  " + RenderRank(rec.Rank)
}

func formatDuration(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

func truncateName(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
