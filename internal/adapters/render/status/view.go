package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/session-tokens/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const (
	barWidth    = 24
	indentWidth = 4
)

type RenderOptions struct {
	Now time.Time
}

func renderView(rows []row, tally map[domain.State]int, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Sessions"),
		s.header.Render(fmt.Sprintf("sessions: %d", len(rows))),
	}

	if len(rows) == 0 {
		lines = append(lines, s.empty.Render("No sessions."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	lines = append(lines, s.header.Render(fmt.Sprintf("active: %d  paused: %d  completed: %d",
		tally[domain.StateActive], tally[domain.StatePaused], tally[domain.StateCompleted])))

	for _, r := range rows {
		lines = append(lines, s.section.PaddingLeft(r.depth*indentWidth).Render(renderSession(r.token, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderSession(token domain.Token, opts RenderOptions, s styles) string {
	title := s.session.Render(fmt.Sprintf("%s (%s)", strings.TrimSpace(token.Name), token.ID))
	if token.State == domain.StatePaused {
		title += " " + s.warning.Render("[paused]")
	}

	parts := []string{
		title,
		s.detail.Render(stateLine(token)),
		timeLine(token, opts, s),
		s.detail.Render(boundariesLine(token.Boundaries)),
	}
	if token.Intent != "" {
		parts = append(parts, s.meta.Render("intent: "+token.Intent))
	}
	if !token.IsRoot() {
		parts = append(parts, s.meta.Render("parent: "+string(token.ParentID)))
	}
	if len(token.ChildIDs) > 0 {
		parts = append(parts, s.meta.Render(fmt.Sprintf("children: %d", len(token.ChildIDs))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func stateLine(token domain.Token) string {
	line := fmt.Sprintf("state: %s", token.State)
	if token.EndReason != domain.EndReasonNone {
		line += fmt.Sprintf(" (%s)", endReasonLabel(token.EndReason))
	}
	return line
}

func endReasonLabel(reason domain.EndReason) string {
	switch reason {
	case domain.EndReasonTimedOut:
		return "timed out"
	case domain.EndReasonEnded:
		return "ended"
	default:
		return string(reason)
	}
}

func boundariesLine(b domain.Boundaries) string {
	restrictions := b.Restrictions()
	if len(restrictions) == 0 {
		return "boundaries: none"
	}
	return "boundaries: " + strings.Join(restrictions, ", ")
}

func timeLine(token domain.Token, opts RenderOptions, s styles) string {
	label := s.key.Render("time:")
	total := token.Duration()

	if token.State == domain.StateCompleted || opts.Now.IsZero() {
		return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", s.meta.Render(fmt.Sprintf("%d min budget", token.DurationMinutes)))
	}

	remaining := token.Remaining(opts.Now)
	leftPercent := 0.0
	if total > 0 {
		leftPercent = clampPercent(100 * remaining.Seconds() / total.Seconds())
	}

	percentStyle := lipgloss.NewStyle().Foreground(interpolateColor(leftPercent, 0, 100))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		label,
		" ",
		renderProgressBar(leftPercent, barWidth, s),
		" ",
		percentStyle.Render(formatRemaining(remaining)),
	)
}

func renderProgressBar(leftPercent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(leftPercent) / 100.0))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func formatRemaining(remaining time.Duration) string {
	if remaining <= 0 {
		return "due now"
	}

	minutes := int(math.Ceil(remaining.Minutes()))
	if minutes < 60 {
		suffix := "minutes"
		if minutes == 1 {
			suffix = "minute"
		}
		return fmt.Sprintf("%d %s left", minutes, suffix)
	}

	return fmt.Sprintf("%dh%02dm left", minutes/60, minutes%60)
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp, faded at min and bright at max.
	baseColor := 240.0
	targetColor := 255.0
	colorCode := int(baseColor + (targetColor-baseColor)*normalized)

	return lipgloss.Color(fmt.Sprintf("%d", colorCode))
}
