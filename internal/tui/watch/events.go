package watch

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattjoyce/feedbackd/internal/events"
)

func formatEvent(e events.Event, theme Theme) string {
	ts := theme.Dim.Render(e.At.Format("15:04:05"))

	var typeStyle lipgloss.Style
	switch {
	case e.Type == events.PluginFault, e.Type == events.SignalDropped, e.Type == events.FeedbackLoadFailed:
		typeStyle = theme.StatusFailed
	case e.Type == events.PlayStarted:
		typeStyle = theme.StatusRunning
	case e.Type == events.PlayFinished, e.Type == events.FeedbackLoaded:
		typeStyle = theme.StatusOK
	case strings.HasPrefix(e.Type, events.LifecyclePrefix):
		typeStyle = theme.Highlight
	default:
		typeStyle = theme.Dim
	}

	return fmt.Sprintf("%s %s %s", ts, typeStyle.Render(fmt.Sprintf("%-24s", e.Type)), describeEvent(e))
}

// describeEvent renders the event payload as sorted key=value pairs.
func describeEvent(e events.Event) string {
	data := make(map[string]any)
	if err := json.Unmarshal(e.Data, &data); err != nil || len(data) == 0 {
		raw := string(e.Data)
		if raw == "{}" {
			return ""
		}
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fmt.Sprint(data[k])
		if k == "run_id" || k == "signal_id" {
			if len(v) > 8 {
				v = v[:8]
			}
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, " ")
}
