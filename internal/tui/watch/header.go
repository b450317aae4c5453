package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StatusState is the last /status poll result.
type StatusState struct {
	Connected     bool
	Feedback      string
	Default       bool
	Declared      string
	Playing       bool
	Plays         int64
	LastCommand   string
	Received      int64
	Dropped       int64
	Faults        int64
	Hooks         []string
	Feedbacks     []string
	Fingerprint   string
	UptimeSeconds int64
	LastCheck     time.Time
}

func renderHeader(st StatusState, ticker Ticker, activity Activity, theme Theme, width int) string {
	innerWidth := width - 4

	state := theme.StatusIdle.Render("IDLE")
	switch {
	case !st.Connected:
		state = theme.StatusFailed.Render("CONNECTING")
	case st.Playing:
		state = theme.StatusRunning.Render("PLAYING")
	}

	feedback := st.Feedback
	if feedback == "" {
		feedback = "-"
	}
	if st.Default {
		feedback += theme.Dim.Render(" (default)")
	}

	lastEvent := "never"
	if !activity.LastEvent().IsZero() {
		lastEvent = fmt.Sprintf("%s ago", time.Since(activity.LastEvent()).Round(time.Second))
	}

	clock := theme.Dim.Render(time.Now().Format("15:04:05"))
	title := fmt.Sprintf(" FEEDBACKD WATCH %s", theme.Highlight.Render(ticker.Current()))
	pad := innerWidth - lipgloss.Width(title) - lipgloss.Width(clock) - 4
	if pad < 1 {
		pad = 1
	}
	titleLine := title + strings.Repeat(" ", pad) + clock + " "

	feedbackLine := fmt.Sprintf(" %s  %s  plays: %d  last: %s", state, feedback, st.Plays, orDash(st.LastCommand))
	countersLine := fmt.Sprintf(" ⏱ %s  signals: %d  dropped: %d  faults: %d",
		formatDuration(time.Duration(st.UptimeSeconds)*time.Second),
		st.Received, st.Dropped, st.Faults)
	hooksLine := fmt.Sprintf(" hooks: %s  declared: %s", orDash(strings.Join(st.Hooks, ",")), orDash(st.Declared))
	activityLine := fmt.Sprintf(" last event: %s %s", lastEvent, activity.Render(theme))

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleLine,
		feedbackLine,
		countersLine,
		hooksLine,
		activityLine,
	)
	return theme.Border.Width(innerWidth).Render(content)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
