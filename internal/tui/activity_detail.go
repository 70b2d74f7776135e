package tui

import (
	"context"
	"fmt"
	"strings"

	"powerscore/internal/service"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

// ActivityDetailModel is the activity detail screen model
type ActivityDetailModel struct {
	queryService *service.QueryService
	scorer       *service.ScoreService
	activityID   int64
	detail       *service.ActivityDetail
	developer    bool
	viewport     viewport.Model
	loading      bool
	err          error
	status       string
	width        int
	height       int
	ready        bool
}

// NewActivityDetailModel creates a new activity detail model
func NewActivityDetailModel(qs *service.QueryService, scorer *service.ScoreService, activityID int64, width, height int) ActivityDetailModel {
	m := ActivityDetailModel{
		queryService: qs,
		scorer:       scorer,
		activityID:   activityID,
		loading:      true,
		width:        width,
		height:       height,
	}

	if width > 0 && height > 0 {
		m.viewport = viewport.New(width, height-6) // Reserve space for header/footer
		m.ready = true
	}

	return m
}

// Init initializes the activity detail screen
func (m ActivityDetailModel) Init() tea.Cmd {
	return m.loadDetail
}

type activityDetailLoadedMsg struct {
	detail    *service.ActivityDetail
	developer bool
	err       error
}

type rescoredMsg struct {
	err error
}

func (m ActivityDetailModel) loadDetail() tea.Msg {
	ctx := context.Background()
	detail, err := m.queryService.GetActivityDetail(ctx, m.activityID)
	if err != nil {
		return activityDetailLoadedMsg{err: err}
	}
	profile, err := m.scorer.Profile(ctx)
	if err != nil {
		return activityDetailLoadedMsg{err: err}
	}
	return activityDetailLoadedMsg{detail: detail, developer: profile.Developer}
}

func (m ActivityDetailModel) rescore() tea.Msg {
	_, err := m.scorer.ScoreActivity(context.Background(), m.activityID)
	return rescoredMsg{err: err}
}

// Update handles messages
func (m ActivityDetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case activityDetailLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.detail = msg.detail
		m.developer = msg.developer
		if m.ready {
			m.viewport.SetContent(m.renderContent())
		}

	case rescoredMsg:
		if msg.err != nil {
			m.status = errorStyle.Render(fmt.Sprintf("Rescore failed: %v", msg.err))
			return m, nil
		}
		m.status = successStyle.Render("Rescored")
		return m, m.loadDetail

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-6)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 6
		}
		if m.detail != nil {
			m.viewport.SetContent(m.renderContent())
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			m.loading = true
			return m, m.loadDetail
		case "x":
			m.status = "Rescoring..."
			return m, m.rescore
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the activity detail screen
func (m ActivityDetailModel) View() string {
	if m.loading {
		return "\n  Loading activity details..."
	}

	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err))
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	footer := statusStyle.Render("  esc: back to list  j/k or arrows: scroll  r: refresh  x: rescore  " + m.status)

	return lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), footer)
}

func (m ActivityDetailModel) renderContent() string {
	if m.detail == nil {
		return "No data"
	}

	sections := []string{m.renderHeader(), m.renderScore(), m.renderStream()}

	if len(m.detail.PowerByMinute) > 5 {
		sections = append(sections, renderSeries("Power by Minute (W)", m.detail.PowerByMinute))
	}
	if len(m.detail.HeartRateByMinute) > 5 && m.detail.Stream.HeartRateSamples > 0 {
		sections = append(sections, renderSeries("Heart Rate by Minute (bpm)", m.detail.HeartRateByMinute))
	}
	if len(m.detail.History) > 1 {
		sections = append(sections, m.renderHistory())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m ActivityDetailModel) renderHeader() string {
	a := m.detail.Activity
	title := cardTitleStyle.Render(a.Name)

	date := a.StartDate.Local().Format("Monday, January 2, 2006 at 3:04 PM")
	subtitle := lipgloss.NewStyle().Foreground(mutedColor).Render(date + "  •  " + a.Source)

	stats := []string{formatDuration(a.MovingTime)}
	if a.Distance > 0 {
		stats = append(stats, fmt.Sprintf("%.1f km", a.Distance/1000))
	}
	if a.TotalElevationGain > 0 {
		stats = append(stats, fmt.Sprintf("%.0f m", a.TotalElevationGain))
	}
	statsLine := lipgloss.NewStyle().Foreground(textColor).Bold(true).Render(strings.Join(stats, "  •  "))

	return lipgloss.JoinVertical(lipgloss.Left, "", title, subtitle, statsLine, "")
}

func (m ActivityDetailModel) renderScore() string {
	heading := lipgloss.NewStyle().Bold(true).Foreground(secondaryColor).Render("Performance Score")
	if m.detail.Score == nil {
		return lipgloss.JoinVertical(lipgloss.Left, heading, statusStyle.Render("  Not scored yet. Press 'x' to score."), "")
	}
	lines := []string{heading}
	lines = append(lines, renderBreakdown(*m.detail.Score, m.developer)...)
	lines = append(lines, "")
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m ActivityDetailModel) renderStream() string {
	s := m.detail.Stream
	var lines []string

	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(secondaryColor).Render("Stream"))
	if s.Samples == 0 {
		lines = append(lines, "  No stream data", "")
		return strings.Join(lines, "\n")
	}

	lines = append(lines, fmt.Sprintf("  Samples:              %d over %s", s.Samples, formatDuration(s.DurationSeconds)))
	lines = append(lines, fmt.Sprintf("  Power coverage:       %.0f%%", s.PowerCoverage()*100))
	if s.PowerSamples > 0 {
		lines = append(lines, fmt.Sprintf("  Average power:        %.0f W (max %.0f W)", s.AvgPower, s.MaxPower))
	}
	lines = append(lines, fmt.Sprintf("  Heart rate coverage:  %.0f%%", s.HeartRateCoverage()*100))
	if s.HeartRateSamples > 0 {
		lines = append(lines, fmt.Sprintf("  Average HR:           %.0f bpm", s.AvgHeartrate))
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func (m ActivityDetailModel) renderHistory() string {
	var lines []string

	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(secondaryColor).Render("Score History"))
	header := fmt.Sprintf("  %-17s  %6s  %-12s  %-10s  %s", "Scored", "Score", "Rank", "Tier", "Engine")
	lines = append(lines, lipgloss.NewStyle().Foreground(primaryColor).Render(header))

	for _, rec := range m.detail.History {
		lines = append(lines, fmt.Sprintf("  %-17s  %6.1f  %-12s  %-10s  %s",
			rec.ScoredAt.Local().Format("Jan 02 2006 15:04"),
			rec.FinalScore,
			rec.Rank,
			rec.QualityTier,
			rec.EngineVersion,
		))
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func renderSeries(title string, data []float64) string {
	var lines []string

	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(secondaryColor).Render(title))

	if len(data) > 60 {
		data = downsample(data, 60)
	}
	data = trimTrailingZeros(data)

	if len(data) > 2 {
		chart := asciigraph.Plot(data,
			asciigraph.Height(8),
			asciigraph.Width(50),
		)
		lines = append(lines, chart)
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func downsample(data []float64, targetLen int) []float64 {
	if len(data) <= targetLen {
		return data
	}

	result := make([]float64, targetLen)
	ratio := float64(len(data)) / float64(targetLen)

	for i := 0; i < targetLen; i++ {
		start := int(float64(i) * ratio)
		end := int(float64(i+1) * ratio)
		if end > len(data) {
			end = len(data)
		}

		sum := 0.0
		count := 0
		for j := start; j < end; j++ {
			if data[j] > 0 {
				sum += data[j]
				count++
			}
		}
		if count > 0 {
			result[i] = sum / float64(count)
		}
	}

	return result
}

func trimTrailingZeros(data []float64) []float64 {
	end := len(data)
	for end > 0 && data[end-1] == 0 {
		end--
	}
	return data[:end]
}
