package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/speedwagon-io/reefercheck/internal/model"
)

const placeholder = "--"

// Layouts the backend is known to emit for timestamp columns.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// RelativeTime labels how long ago raw was, bucketed into seconds, minutes or
// hours. Absent or unparsable values yield "never". Timestamps ahead of now
// count as zero seconds.
func RelativeTime(now time.Time, raw *string) string {
	if raw == nil {
		return "never"
	}
	t, ok := parseTimestamp(*raw)
	if !ok {
		return "never"
	}

	secs := int64(now.Sub(t) / time.Second)
	if secs < 0 {
		secs = 0
	}

	switch {
	case secs < 60:
		return fmt.Sprintf("%ds ago", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm ago", secs/60)
	default:
		return fmt.Sprintf("%dh ago", secs/3600)
	}
}

var severityGlyphs = map[model.Severity]string{
	model.SeverityEmergency: "🔴",
	model.SeverityCritical:  "🟠",
	model.SeverityWarning:   "🟡",
	model.SeverityInfo:      "🔵",
}

func SeverityGlyph(s model.Severity) string {
	if g, ok := severityGlyphs[s]; ok {
		return g
	}
	return "⚪"
}

func formatTemp(v *float64) string {
	if v == nil {
		return placeholder
	}
	return fmt.Sprintf("%.1f°C", *v)
}

func formatHumidity(v *float64) string {
	if v == nil {
		return placeholder
	}
	return fmt.Sprintf("%.0f%%", *v)
}

func formatRSSI(v *int) string {
	if v == nil {
		return placeholder
	}
	return fmt.Sprintf("%d", *v)
}

func orDefault(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

// shortTimestamp trims a timestamp to "2006-01-02 15:04:05".
func shortTimestamp(raw string) string {
	if len(raw) > 19 {
		raw = raw[:19]
	}
	return strings.Replace(raw, "T", " ", 1)
}
