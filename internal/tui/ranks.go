package tui

import (
	"context"
	"fmt"
	"math"
	"strings"

	"powerscore/internal/score"
	"powerscore/internal/service"
	"powerscore/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const historyLimit = 20

// RanksModel shows the rank ladder, the rolling rank distribution and recent scores
type RanksModel struct {
	queryService *service.QueryService
	engine       score.Config
	data         *service.DashboardData
	history      []store.ScoreRecord
	loading      bool
	err          error
}

// NewRanksModel creates a new ranks model
func NewRanksModel(qs *service.QueryService, engine score.Config) RanksModel {
	return RanksModel{
		queryService: qs,
		engine:       engine,
		loading:      true,
	}
}

// Init initializes the ranks screen
func (m RanksModel) Init() tea.Cmd {
	return m.loadRanks
}

type ranksLoadedMsg struct {
	data    *service.DashboardData
	history []store.ScoreRecord
	err     error
}

func (m RanksModel) loadRanks() tea.Msg {
	ctx := context.Background()
	data, err := m.queryService.GetDashboardData(ctx)
	if err != nil {
		return ranksLoadedMsg{err: err}
	}
	history, err := m.queryService.GetScoreHistory(ctx, historyLimit)
	return ranksLoadedMsg{data: data, history: history, err: err}
}

// Update handles messages
func (m RanksModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ranksLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.data = msg.data
		m.history = msg.history
	case tea.KeyMsg:
		if msg.String() == "r" {
			m.loading = true
			return m, m.loadRanks
		}
	}
	return m, nil
}

// View renders the ranks screen
func (m RanksModel) View() string {
	if m.loading {
		return "\n  Loading ranks..."
	}
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err))
	}

	ladder := m.renderLadder()
	distribution := m.renderDistribution()
	top := lipgloss.JoinHorizontal(lipgloss.Top, ladder, "  ", distribution)

	return lipgloss.JoinVertical(lipgloss.Left, top, m.renderHistory(),
		statusStyle.Render("Press 'r' to refresh"))
}

// cutoffWkg inverts the rank index back to watts/kg
func (m RanksModel) cutoffWkg(cutoff float64) float64 {
	ref, exp := m.engine.RankScale()
	if cutoff <= 0 || exp == 0 {
		return 0
	}
	return ref * math.Pow(cutoff, 1/exp)
}

func (m RanksModel) renderLadder() string {
	title := cardTitleStyle.Render("Rank Ladder")

	current := score.Rank("")
	if m.data != nil && m.data.Latest != nil {
		current = m.data.Latest.Score.Rank
	}

	var lines []string
	for _, t := range m.engine.RankThresholds() {
		lines = append(lines, ladderLine(t.Rank, fmt.Sprintf("≥ %.2f W/kg", m.cutoffWkg(t.Cutoff)), t.Rank == current))
	}
	lines = append(lines, ladderLine(score.RankRookie, "below", current == score.RankRookie))

	if m.data != nil && m.data.Profile.WeightKg > 0 {
		p := m.data.Profile
		lines = append(lines, "", helpDescStyle.Render(fmt.Sprintf("FTP %.0f W at %.1f kg = %.2f W/kg", p.FTPWatts, p.WeightKg, p.FTPWatts/p.WeightKg)))
	}

	return cardStyle.Width(40).Render(lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, lines...)))
}

func ladderLine(r score.Rank, cutoff string, current bool) string {
	marker := "  "
	if current {
		marker = "> "
	}
	return marker + lipgloss.NewStyle().Width(14).Render(RenderRank(r)) + helpDescStyle.Render(cutoff)
}

func (m RanksModel) renderDistribution() string {
	title := cardTitleStyle.Render(fmt.Sprintf("Last %d Days", service.RollingWindowDays))
	if m.data == nil || m.data.WindowCount == 0 {
		return cardStyle.Width(40).Render(lipgloss.JoinVertical(lipgloss.Left, title, "No scored rides"))
	}

	var lines []string
	for _, r := range score.Ranks() {
		n := m.data.WindowRanks[r]
		share := float64(n) / float64(m.data.WindowCount)
		lines = append(lines, lipgloss.NewStyle().Width(14).Render(RenderRank(r))+
			RenderScoreBar(share*100, 16, rankColors[r])+
			fmt.Sprintf(" %d", n))
	}

	return cardStyle.Width(40).Render(lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, lines...)))
}

func (m RanksModel) renderHistory() string {
	title := cardTitleStyle.Render("Recent Scores")
	if len(m.history) == 0 {
		return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, "No scores yet"))
	}

	rows := []string{tableHeaderStyle.Render(fmt.Sprintf("%-10s  %6s  %7s  %6s  %-12s  %-10s", "Date", "Score", "W/kg", "Drift", "Rank", "Tier"))}
	for _, rec := range m.history {
		drift := "-"
		if rec.HeartRateAvailable {
			drift = fmt.Sprintf("%.1f%%", rec.DecouplingDrift*100)
		}
		rows = append(rows, tableRowStyle.Render(fmt.Sprintf("%-10s  %6.1f  %7.2f  %6s  ",
			rec.ActivityDate.Local().Format("Jan 02"),
			rec.FinalScore,
			rec.WattsPerKg,
			drift,
		))+lipgloss.NewStyle().Width(14).Render(RenderRank(rec.Rank))+RenderTier(rec.QualityTier))
	}

	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n")))
}
