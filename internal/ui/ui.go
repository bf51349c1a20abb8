// Package ui holds the lipgloss styles and small formatting helpers the
// CLI shares across commands.
package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/grindpulse/grindsync/internal/awareness"
	"github.com/grindpulse/grindsync/internal/model"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
	headerStyle = lipgloss.NewStyle().Bold(true)
)

func RenderPass(s string) string   { return passStyle.Render(s) }
func RenderWarn(s string) string   { return warnStyle.Render(s) }
func RenderError(s string) string  { return errorStyle.Render(s) }
func RenderAccent(s string) string { return accentStyle.Render(s) }
func RenderFaint(s string) string  { return faintStyle.Render(s) }
func RenderHeader(s string) string { return headerStyle.Render(s) }

// bucketStyles maps awareness buckets to terminal colors, mirroring the
// traffic-light progression the scores encode: fresh solves render calm,
// decayed ones hot, and fully decayed ones blink.
var bucketStyles = map[awareness.Bucket]lipgloss.Style{
	awareness.BucketUnsolved: lipgloss.NewStyle().Faint(true),
	awareness.BucketWhite:    lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
	awareness.BucketGreen:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	awareness.BucketYellow:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
	awareness.BucketRed:      lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
	awareness.BucketDarkRed:  lipgloss.NewStyle().Foreground(lipgloss.Color("124")),
	awareness.BucketFlashing: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true).Blink(true),
}

// RenderBucket styles text with its awareness bucket's color.
func RenderBucket(b awareness.Bucket, s string) string {
	if style, ok := bucketStyles[b]; ok {
		return style.Render(s)
	}
	return s
}

// RenderDifficulty colors a difficulty label.
func RenderDifficulty(d model.Difficulty) string {
	switch d {
	case model.DifficultyEasy:
		return passStyle.Render(string(d))
	case model.DifficultyMedium:
		return warnStyle.Render(string(d))
	case model.DifficultyHard:
		return errorStyle.Render(string(d))
	default:
		return string(d)
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// FormatRelative renders a solved date as a coarse relative time.
// Unparseable or empty dates render as empty, matching how the tracker
// treats them.
func FormatRelative(solvedDate string, now time.Time) string {
	date, ok := model.ParseSolvedDate(solvedDate)
	if !ok {
		return ""
	}
	diff := now.Sub(date)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d min ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	}
	days := int(diff.Hours() / 24)
	switch {
	case days < 7:
		return plural(days, "day")
	case days/7 < 4:
		return plural(days/7, "week")
	case days/30 < 12:
		return plural(days/30, "month")
	default:
		return plural(days/365, "year")
	}
}
