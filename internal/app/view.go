package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jwulff/voiceclone/internal/backend"
	"github.com/jwulff/voiceclone/internal/recorder"
	"github.com/jwulff/voiceclone/internal/ui"
)

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderWaveform())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderResponses(m.responsesVisibleLines()))
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}

	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("VOICECLONE")
	var device string
	if m.deps.Device != "" {
		device = ui.DimStyle.Render(" · " + m.deps.Device)
	}
	return title + device + "  " + ui.StatusStyle.Render(m.statusText)
}

func (m Model) renderStatusBar() string {
	var dot string
	switch m.recState {
	case recorder.Capturing:
		dot = ui.RecordingDotStyle.Render("● REC")
	case recorder.Stopped:
		dot = ui.StoppedDotStyle.Render("■ STOPPED")
	default:
		dot = ui.IdleDotStyle.Render("○ IDLE")
	}

	clock := ui.TimestampStyle.Render(fmt.Sprintf("%s / %s",
		formatClock(m.elapsed), formatClock(m.maxSeconds())))

	var level string
	if m.recState == recorder.Capturing {
		level = "  " + renderLevelMeter("MIC", m.level)
	}

	return dot + "  " + clock + level + m.renderJob()
}

func (m Model) renderJob() string {
	if m.job == nil {
		return ""
	}
	label := fmt.Sprintf("JOB #%d ", m.job.ID)
	var state string
	switch m.job.Status {
	case backend.StateCompleted:
		state = ui.JobDoneStyle.Render(string(m.job.Status))
	case backend.StateFailed:
		state = ui.ErrorTextStyle.Render(string(m.job.Status))
	default:
		state = ui.JobActiveStyle.Render(string(m.job.Status))
	}
	out := "  " + ui.DimStyle.Render(label) + state
	if m.awaitingResponses || m.loading {
		out += "  " + ui.SpinnerStyle.Render("⟳")
	}
	return out
}

func renderLevelMeter(label string, level float32) string {
	const barLen = 8
	filled := min(int(level*barLen), barLen)

	var bar strings.Builder
	for i := 0; i < barLen; i++ {
		if i < filled {
			if float32(i)/float32(barLen) > 0.6 {
				bar.WriteString(ui.LevelYellowStyle.Render("█"))
			} else {
				bar.WriteString(ui.LevelGreenStyle.Render("█"))
			}
		} else {
			bar.WriteString(ui.LevelGrayStyle.Render("░"))
		}
	}
	return ui.MicLabelStyle.Render(label) + " " + bar.String()
}

func (m Model) renderWaveform() string {
	lines := strings.Split(m.surface.String(), "\n")
	caption := ""
	switch {
	case m.recState == recorder.Capturing:
	case m.clip != nil:
		caption = "Clip ready (" + formatBytes(m.clip.Size()) + "). Enter to submit, Space to record again"
	default:
		caption = "Press Space to start recording"
	}
	if caption != "" && len(lines) > 0 {
		lines[len(lines)/2] = padRight(ui.DimStyle.Render("  "+caption), m.waveWidth())
	}
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderResponses(height int) string {
	header := ui.PanelTitleStyle.Render(fmt.Sprintf("RESPONSES (%d)", len(m.clips)))
	lines := []string{header}

	switch {
	case m.awaitingResponses:
		lines = append(lines, ui.DimStyle.Render("  Generating responses..."))
	case len(m.clips) == 0 && m.responsesEmpty:
		lines = append(lines, ui.DimStyle.Render("  No responses yet. Press r to reload"))
	case len(m.clips) == 0:
		lines = append(lines, ui.DimStyle.Render("  Responses appear here once your voice is ready"))
	default:
		start := 0
		if m.selected >= height-1 {
			start = m.selected - (height - 2)
		}
		for i := start; i < len(m.clips) && len(lines) < height; i++ {
			lines = append(lines, m.renderResponseLine(i))
		}
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines[:height], "\n")
}

func (m Model) renderResponseLine(i int) string {
	c := m.clips[i]
	marker := "  "
	if m.playing && m.activeID == c.ID {
		marker = ui.PlayingStyle.Render("▶ ")
	}
	text := truncateToWidth(c.Question, max(10, m.width-6))
	if i == m.selected {
		return ui.SelectedStyle.Render("> ") + marker + ui.SelectedStyle.Render(text)
	}
	return "  " + marker + text
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	var parts []string

	if m.recState == recorder.Capturing {
		parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Stop"))
	} else {
		parts = append(parts, ui.FooterKeyStyle.Render("Space")+ui.FooterDescStyle.Render(" Record"))
	}
	if m.clip != nil && m.recState != recorder.Capturing {
		parts = append(parts, ui.FooterKeyStyle.Render("Enter")+ui.FooterDescStyle.Render(" Submit"))
	}
	if len(m.clips) > 0 {
		parts = append(parts, ui.FooterKeyStyle.Render("j/k")+ui.FooterDescStyle.Render(" Select"))
		parts = append(parts, ui.FooterKeyStyle.Render("p")+ui.FooterDescStyle.Render(" Play"))
		parts = append(parts, ui.FooterKeyStyle.Render("s")+ui.FooterDescStyle.Render(" Stop"))
	}
	if m.voiceID != "" {
		parts = append(parts, ui.FooterKeyStyle.Render("r")+ui.FooterDescStyle.Render(" Reload"))
	}
	parts = append(parts, ui.FooterKeyStyle.Render("q")+ui.FooterDescStyle.Render(" Quit"))

	return strings.Join(parts, "  ")
}

func (m Model) maxSeconds() int {
	if m.deps.Recorder == nil {
		return recorder.MaxSeconds
	}
	return m.deps.Recorder.MaxSeconds()
}

func (m Model) responsesVisibleLines() int {
	if m.height == 0 {
		return 8
	}
	// header(1) + status(1) + 3 dividers + wave + error(1) + footer(1)
	reserved := 7 + waveHeight
	return max(3, m.height-reserved)
}

// Helpers

func padRight(s string, width int) string {
	// Get visible length (ignoring ANSI codes)
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

func formatBytes(n int) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	return fmt.Sprintf("%.1f KB", float64(n)/1024)
}
