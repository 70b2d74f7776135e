package tui

import (
	"context"
	"fmt"
	"strings"

	"powerscore/internal/service"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SyncModel is the sync screen model
type SyncModel struct {
	syncService *service.SyncService
	progressCh  chan service.SyncProgress
	progress    map[string]service.SyncProgress
	syncing     bool
	result      *service.SyncResult
	err         error
	done        bool
}

// NewSyncModel creates a new sync model
func NewSyncModel(ss *service.SyncService) SyncModel {
	return SyncModel{
		syncService: ss,
	}
}

// Init initializes the sync screen
func (m SyncModel) Init() tea.Cmd {
	return nil
}

// SyncDoneMsg is sent when sync finishes
type SyncDoneMsg struct {
	Result *service.SyncResult
	Err    error
}

type syncProgressMsg service.SyncProgress

// Update handles messages
func (m SyncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case syncProgressMsg:
		m.progress[msg.Phase] = service.SyncProgress(msg)
		return m, m.waitForProgress

	case SyncDoneMsg:
		m.syncing = false
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, func() tea.Msg { return SyncCompleteMsg{} }

	case tea.KeyMsg:
		if !m.syncing {
			switch msg.String() {
			case "enter", "s":
				m.syncing = true
				m.done = false
				m.err = nil
				m.result = nil
				m.progress = make(map[string]service.SyncProgress)
				m.progressCh = make(chan service.SyncProgress, 16)
				return m, tea.Batch(m.runSync, m.waitForProgress)
			}
		}
	}
	return m, nil
}

func (m SyncModel) runSync() tea.Msg {
	result, syncErr := m.syncService.SyncAll(context.Background(), m.progressCh)
	return SyncDoneMsg{Result: result, Err: syncErr}
}

// waitForProgress relays one progress update; SyncAll closes the channel when done
func (m SyncModel) waitForProgress() tea.Msg {
	p, ok := <-m.progressCh
	if !ok {
		return nil
	}
	return syncProgressMsg(p)
}

// View renders the sync screen
func (m SyncModel) View() string {
	var sections []string

	title := cardTitleStyle.Render("Strava Sync")
	sections = append(sections, title)

	if m.err != nil {
		sections = append(sections, errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err)))
		sections = append(sections, m.renderSummary())
		sections = append(sections, "\n"+statusStyle.Render("  Press 's' or Enter to retry"))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	if m.done && !m.syncing {
		sections = append(sections, successStyle.Render("\n  Sync complete!"))
		sections = append(sections, m.renderSummary())
		sections = append(sections, "\n"+statusStyle.Render("  Press '1' to go to dashboard"))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	if m.syncing {
		sections = append(sections, m.renderProgress())
	} else {
		sections = append(sections, m.renderStartPrompt())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m SyncModel) renderStartPrompt() string {
	var lines []string

	lines = append(lines, "")
	lines = append(lines, "  This will sync your Strava rides:")
	lines = append(lines, "")
	lines = append(lines, "  1. Fetch new rides recorded with power")
	lines = append(lines, "  2. Download power and heart rate streams")
	lines = append(lines, "  3. Compute performance scores")
	lines = append(lines, "")

	if short, daily, ok := m.syncService.RateLimitStatus(); ok {
		lines = append(lines, statusStyle.Render(fmt.Sprintf("  API requests left: %d (15min), %d (daily)", short, daily)))
		lines = append(lines, "")
	}
	lines = append(lines, statusStyle.Render("  Press 's' or Enter to start sync"))

	return strings.Join(lines, "\n")
}

func (m SyncModel) renderProgress() string {
	var lines []string

	lines = append(lines, "")
	lines = append(lines, "  Syncing with Strava...")
	lines = append(lines, "")

	phases := []struct {
		phase string
		label string
	}{
		{service.PhaseActivities, "Fetching new rides"},
		{service.PhaseStreams, "Downloading streams"},
		{service.PhaseScores, "Computing scores"},
	}
	for i, ph := range phases {
		p, started := m.progress[ph.phase]
		line := fmt.Sprintf("  %d. %-22s", i+1, ph.label)
		switch {
		case !started:
			lines = append(lines, helpDescStyle.Render(line))
			continue
		case p.Total > 0:
			line += RenderProgressBar(float64(p.Completed)/float64(p.Total), 24) +
				fmt.Sprintf(" %d/%d", p.Completed, p.Total)
		case p.Completed > 0:
			line += fmt.Sprintf("%d found", p.Completed)
		}
		if p.CurrentActivity != "" {
			line += "  " + helpDescStyle.Render(truncateName(p.CurrentActivity, 24))
		}
		lines = append(lines, line)
	}

	if short, daily, ok := m.syncService.RateLimitStatus(); ok {
		lines = append(lines, "")
		lines = append(lines, statusStyle.Render(fmt.Sprintf("  API requests left: %d (15min), %d (daily)", short, daily)))
	}

	return strings.Join(lines, "\n")
}

func (m SyncModel) renderSummary() string {
	var lines []string

	if m.result == nil {
		return ""
	}

	r := m.result
	lines = append(lines, "")

	if r.ActivitiesStored > 0 {
		lines = append(lines, successStyle.Render(fmt.Sprintf("  %d rides synced", r.ActivitiesStored)))
	} else {
		lines = append(lines, statusStyle.Render("  No new rides"))
	}

	if r.StreamsFetched > 0 {
		lines = append(lines, successStyle.Render(fmt.Sprintf("  %d streams downloaded", r.StreamsFetched)))
	}

	if r.ScoresComputed > 0 {
		lines = append(lines, successStyle.Render(fmt.Sprintf("  %d rides scored", r.ScoresComputed)))
	}

	if r.ScoresRejected > 0 {
		lines = append(lines, warningStyle.Render(fmt.Sprintf("  %d rides could not be scored", r.ScoresRejected)))
	}

	if len(r.Errors) > 0 {
		lines = append(lines, "")
		lines = append(lines, warningStyle.Render(fmt.Sprintf("  %d errors occurred", len(r.Errors))))
		for i, err := range r.Errors {
			if i >= 5 {
				lines = append(lines, helpDescStyle.Render(fmt.Sprintf("    ... and %d more", len(r.Errors)-i)))
				break
			}
			lines = append(lines, helpDescStyle.Render("    "+err.Error()))
		}
	}

	return strings.Join(lines, "\n")
}
