// Package monitor polls the newest reading on a fixed interval and redraws it
// until its context is cancelled.
package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/speedwagon-io/reefercheck/internal/lib/logger/sl"
	"github.com/speedwagon-io/reefercheck/internal/model"
	"github.com/speedwagon-io/reefercheck/internal/postgrest"
)

const (
	DefaultInterval = 5 * time.Second
	clearScreen     = "\033[H\033[J"
)

type Source interface {
	Select(ctx context.Context, table string, q postgrest.Query, dest any) error
}

type Options struct {
	DeviceID string
	Interval time.Duration
}

type Monitor struct {
	log      *slog.Logger
	source   Source
	out      io.Writer
	deviceID string
	interval time.Duration
	now      func() time.Time

	lastID int64

	mu          sync.RWMutex
	lastSuccess time.Time
}

func New(log *slog.Logger, source Source, out io.Writer, opts Options) *Monitor {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Monitor{
		log:      log,
		source:   source,
		out:      out,
		deviceID: opts.DeviceID,
		interval: interval,
		now:      time.Now,
	}
}

func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// LastSuccess is the time of the last poll that returned a row. Zero until
// the first one.
func (m *Monitor) LastSuccess() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSuccess
}

// Run polls immediately and then once per interval. It returns nil when ctx
// is cancelled; a failed poll never stops it.
func (m *Monitor) Run(ctx context.Context) error {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(m.out, "\n%s\n📊 REAL-TIME MONITOR\n%s\n", rule, rule)
	fmt.Fprintf(m.out, "Refreshing every %s. Ctrl+C to exit.\n\n", m.interval)

	m.log.Info("starting monitor",
		slog.String("device_id", m.deviceID),
		slog.Duration("interval", m.interval),
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(m.out, "\n\n👋 Monitor stopped\n")
			m.log.Info("monitor stopped")
			return nil
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	q := postgrest.Query{Select: "*", Order: "created_at.desc", Limit: 1}
	if m.deviceID != "" {
		q = q.Where(postgrest.Eq("device_id", m.deviceID))
	}

	var readings []model.Reading
	if err := m.source.Select(ctx, model.TableReadings, q, &readings); err != nil {
		if ctx.Err() == nil {
			m.log.Debug("poll failed", sl.Err(err))
		}
		return
	}
	if len(readings) == 0 {
		return
	}

	r := readings[0]
	isNew := r.ID != m.lastID
	m.lastID = r.ID

	m.mu.Lock()
	m.lastSuccess = m.now()
	m.mu.Unlock()

	m.render(r, isNew)
}

func (m *Monitor) render(r model.Reading, isNew bool) {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	b.WriteString(clearScreen)
	fmt.Fprintf(&b, "%s\n📊 MONITOR - %s\n%s\n", rule, m.now().Format("2006-01-02 15:04:05"), rule)

	marker := "  "
	if isNew {
		marker = "🆕"
	}

	temp := "--"
	if r.TempAvg != nil {
		temp = fmt.Sprintf("%.1f°C", *r.TempAvg)
	}
	humidity := "--"
	if r.Humidity != nil {
		humidity = fmt.Sprintf("%.1f", *r.Humidity)
	}
	door := "Closed 🔒"
	if r.Door1Open {
		door = "OPEN 🔓"
	}
	power := "OK ✓"
	if !r.HasPower() {
		power = "NO POWER ⚠️"
	}
	alert := "Normal ✓"
	if r.AlertActive {
		alert = "ACTIVE ⚠️"
	}
	rssi := "--"
	if r.WifiRSSI != nil {
		rssi = fmt.Sprintf("%d", *r.WifiRSSI)
	}
	created := r.CreatedAt
	if len(created) > 19 {
		created = created[:19]
	}

	fmt.Fprintf(&b, "\n%s Device: %s\n", marker, r.DeviceID)
	fmt.Fprintf(&b, "   %s Temperature: %s\n", TempGlyph(r.TempAvg), temp)
	fmt.Fprintf(&b, "   💧 Humidity: %s%%\n", humidity)
	fmt.Fprintf(&b, "   🚪 Door: %s\n", door)
	fmt.Fprintf(&b, "   ⚡ Power: %s\n", power)
	fmt.Fprintf(&b, "   🚨 Alert: %s\n", alert)
	fmt.Fprintf(&b, "   📶 WiFi: %s dBm\n", rssi)
	fmt.Fprintf(&b, "\n   Last reading: %s\n", created)
	fmt.Fprintf(&b, "\n%s\nPress Ctrl+C to exit\n", strings.Repeat("-", 60))

	io.WriteString(m.out, b.String())
}

// TempGlyph buckets a cargo temperature: below -15°C is cold enough, below
// -10°C is warming, anything else is too warm.
func TempGlyph(temp *float64) string {
	switch {
	case temp == nil:
		return "⚪"
	case *temp < -15:
		return "🔵"
	case *temp < -10:
		return "🟡"
	default:
		return "🔴"
	}
}
