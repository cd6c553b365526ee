package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/speedwagon-io/reefercheck/internal/lib/logger/sl"
	"github.com/speedwagon-io/reefercheck/internal/model"
	"github.com/speedwagon-io/reefercheck/internal/postgrest"
	"github.com/speedwagon-io/reefercheck/internal/synth"
)

const (
	DefaultReadingLimit = 10
	bundleReadingLimit  = 5
	alertLimit          = 20
)

// Backend is the subset of the REST client the reports need.
type Backend interface {
	Select(ctx context.Context, table string, q postgrest.Query, dest any) error
	Insert(ctx context.Context, table string, record any, dest any) error
	Update(ctx context.Context, table, filter string, patch any, dest any) (bool, error)
	Count(ctx context.Context, table string, q postgrest.Query) (int64, error)
	Ping(ctx context.Context) error
	BaseURL() string
}

// Reporter prints each diagnostic section to out. Its methods never return
// errors: failures are printed and the caller carries on.
type Reporter struct {
	log     *slog.Logger
	backend Backend
	out     io.Writer
	now     func() time.Time
	rnd     *rand.Rand
}

func New(log *slog.Logger, backend Backend, out io.Writer) *Reporter {
	return &Reporter{
		log:     log,
		backend: backend,
		out:     out,
		now:     time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	r.now = now
	return r
}

func (r *Reporter) WithRand(rnd *rand.Rand) *Reporter {
	r.rnd = rnd
	return r
}

func (r *Reporter) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *Reporter) section(title string) {
	rule := strings.Repeat("=", 60)
	r.printf("\n%s\n%s\n%s\n", rule, title, rule)
}

func (r *Reporter) Banner() {
	rule := strings.Repeat("=", 60)
	r.printf("\n%s\n🏔️ REEFER MONITORING - backend checker\n%s\n", rule, rule)
}

func (r *Reporter) CheckConnection(ctx context.Context) bool {
	r.section("🔌 CHECKING BACKEND CONNECTION")
	r.printf("URL: %s\n", r.backend.BaseURL())

	if err := r.backend.Ping(ctx); err != nil {
		r.log.Debug("connectivity check failed", sl.Err(err))
		r.printf("❌ Could not reach the backend: %v\n", err)
		r.printf("\nCheck:\n")
		r.printf("  1. URL and API key are correct\n")
		r.printf("  2. Tables are created (run the schema migration)\n")
		r.printf("  3. Row-level security policies allow this key\n")
		return false
	}

	r.printf("✅ Connected!\n")
	return true
}

func (r *Reporter) ListDevices(ctx context.Context) {
	r.section("📱 REGISTERED DEVICES")

	var devices []model.Device
	err := r.backend.Select(ctx, model.TableDevices, postgrest.Query{
		Select: "device_id,name,location,is_online,last_seen_at,wifi_rssi",
		Order:  "device_id",
	}, &devices)
	if err != nil {
		r.printf("❌ Could not load devices: %v\n", err)
		return
	}

	if len(devices) == 0 {
		r.printf("No devices registered\n")
		return
	}

	now := r.now()
	for _, d := range devices {
		online := "🔴"
		if d.IsOnline {
			online = "🟢"
		}

		r.printf("\n%s %s - %s\n", online, d.DeviceID, orDefault(d.Name, "unnamed"))
		r.printf("   📍 %s\n", orDefault(d.Location, "no location"))
		r.printf("   📶 WiFi: %s dBm | Seen: %s\n", formatRSSI(d.WifiRSSI), RelativeTime(now, d.LastSeenAt))
	}
}

func (r *Reporter) ListReadings(ctx context.Context, deviceID string, limit int) {
	r.section("🌡️ LATEST READINGS")

	if limit <= 0 {
		limit = DefaultReadingLimit
	}

	q := postgrest.Query{
		Select: "id,device_id,temp_avg,humidity,door1_open,ac_power,alert_active,created_at",
		Order:  "created_at.desc",
		Limit:  limit,
	}
	if deviceID != "" {
		q = q.Where(postgrest.Eq("device_id", deviceID))
	}

	var readings []model.Reading
	if err := r.backend.Select(ctx, model.TableReadings, q, &readings); err != nil {
		r.printf("❌ Could not load readings: %v\n", err)
		return
	}

	if len(readings) == 0 {
		r.printf("No readings recorded\n")
		return
	}

	r.printf("\n%-12s %8s %6s %8s %6s %8s %-20s\n", "DEVICE", "TEMP", "HUM", "DOOR", "POWER", "ALERT", "TIME")
	r.printf("%s\n", strings.Repeat("-", 80))

	for _, rd := range readings {
		door := "closed"
		if rd.Door1Open {
			door = "OPEN"
		}
		power := "✓"
		if !rd.HasPower() {
			power = "⚡OFF"
		}
		alert := "OK"
		if rd.AlertActive {
			alert = "🚨 YES"
		}

		r.printf("%-12s %8s %6s %8s %6s %8s %-20s\n",
			rd.DeviceID,
			formatTemp(rd.TempAvg),
			formatHumidity(rd.Humidity),
			door,
			power,
			alert,
			shortTimestamp(rd.CreatedAt),
		)
	}
}

func (r *Reporter) ListAlerts(ctx context.Context, unresolvedOnly bool) {
	title := "🚨 ALERTS"
	if unresolvedOnly {
		title += " (UNRESOLVED)"
	}
	r.section(title)

	q := postgrest.Query{
		Select: "id,device_id,alert_type,severity,message,acknowledged,resolved,created_at",
		Order:  "created_at.desc",
		Limit:  alertLimit,
	}
	if unresolvedOnly {
		q = q.Where(postgrest.Eq("resolved", false))
	}

	var alerts []model.Alert
	if err := r.backend.Select(ctx, model.TableAlerts, q, &alerts); err != nil {
		r.printf("❌ Could not load alerts: %v\n", err)
		return
	}

	if len(alerts) == 0 {
		if unresolvedOnly {
			r.printf("✅ No unresolved alerts\n")
		} else {
			r.printf("✅ No alerts\n")
		}
		return
	}

	for _, a := range alerts {
		severity := string(a.Severity)
		if severity == "" {
			severity = "unknown"
		}

		var marks []string
		if a.Acknowledged {
			marks = append(marks, "✓ ACK")
		}
		if a.Resolved {
			marks = append(marks, "✓ RESOLVED")
		}

		r.printf("\n%s [%s] %s (#%d)\n", SeverityGlyph(a.Severity), strings.ToUpper(severity), a.DeviceID, a.ID)
		r.printf("   Type: %s\n", nonEmpty(a.AlertType))
		r.printf("   Message: %s\n", nonEmpty(a.Message))
		r.printf("   Date: %s %s\n", shortTimestamp(a.CreatedAt), strings.Join(marks, " "))
	}
}

func (r *Reporter) InsertReading(ctx context.Context, deviceID string) bool {
	r.section("📝 INSERTING TEST READING")

	reading := synth.Reading(deviceID, r.rnd)

	door := "closed"
	if reading.Door1Open {
		door = "OPEN"
	}
	r.printf("Device: %s\n", reading.DeviceID)
	r.printf("Temperature: %s\n", formatTemp(reading.TempAvg))
	r.printf("Humidity: %.1f%%\n", *reading.Humidity)
	r.printf("Door: %s\n", door)

	var created []model.Reading
	if err := r.backend.Insert(ctx, model.TableReadings, reading, &created); err != nil {
		r.printf("\n❌ Failed to insert reading: %v\n", err)
		return false
	}

	r.printf("\n✅ Reading inserted!\n")
	id := "N/A"
	if len(created) > 0 {
		id = strconv.FormatInt(created[0].ID, 10)
	}
	r.printf("ID: %s\n", id)
	return true
}

func (r *Reporter) InsertAlert(ctx context.Context, deviceID string) bool {
	r.section("🚨 INSERTING TEST ALERT")

	alert := synth.Alert(deviceID, r.now())

	var created []model.Alert
	if err := r.backend.Insert(ctx, model.TableAlerts, alert, &created); err != nil {
		r.printf("❌ Failed to insert alert: %v\n", err)
		return false
	}

	r.printf("✅ Alert inserted!\n")
	id := "N/A"
	if len(created) > 0 {
		id = strconv.FormatInt(created[0].ID, 10)
	}
	r.printf("ID: %s\n", id)
	return true
}

func (r *Reporter) AcknowledgeAlert(ctx context.Context, id int64) bool {
	r.section("✓ ACKNOWLEDGING ALERT")
	return r.patchAlert(ctx, id, model.AlertAck{Acknowledged: true}, "acknowledged")
}

func (r *Reporter) ResolveAlert(ctx context.Context, id int64) bool {
	r.section("✓ RESOLVING ALERT")
	patch := model.AlertResolve{
		Resolved:   true,
		ResolvedAt: r.now().UTC().Format(time.RFC3339),
	}
	return r.patchAlert(ctx, id, patch, "resolved")
}

// patchAlert updates one alert by id. A nil rows slice means the backend
// answered 204 without a representation; an empty one means no alert matched.
func (r *Reporter) patchAlert(ctx context.Context, id int64, patch any, verb string) bool {
	filter := postgrest.Eq("id", id).String()

	var rows []model.Alert
	ok, err := r.backend.Update(ctx, model.TableAlerts, filter, patch, &rows)
	if err != nil {
		r.printf("❌ Alert #%d could not be %s: %v\n", id, verb, err)
		return false
	}
	if !ok {
		r.printf("❌ Alert #%d could not be %s\n", id, verb)
		return false
	}
	if rows != nil && len(rows) == 0 {
		r.printf("❌ Alert #%d not found\n", id)
		return false
	}

	r.printf("✅ Alert #%d %s\n", id, verb)
	return true
}

// Stats prints totals. Each figure is fetched independently; a failed one is
// reported as unavailable and the rest still print.
func (r *Reporter) Stats(ctx context.Context) {
	r.section("📈 OVERALL STATISTICS")

	idOnly := postgrest.Query{Select: "id"}

	readings, err := r.backend.Count(ctx, model.TableReadings, idOnly)
	r.printf("\n📊 Total readings: %s (latest id %s)\n",
		countOrUnavailable(readings, err),
		r.latestID(ctx, model.TableReadings),
	)

	unresolved, err := r.backend.Count(ctx, model.TableAlerts, idOnly.Where(postgrest.Eq("resolved", false)))
	r.printf("🚨 Unresolved alerts: %s\n", countOrUnavailable(unresolved, err))

	alerts, err := r.backend.Count(ctx, model.TableAlerts, idOnly)
	r.printf("🚨 Total alerts: %s (latest id %s)\n",
		countOrUnavailable(alerts, err),
		r.latestID(ctx, model.TableAlerts),
	)

	var devices []model.Device
	if err := r.backend.Select(ctx, model.TableDevices, postgrest.Query{Select: "device_id,is_online"}, &devices); err != nil {
		r.printf("\n📱 Devices: unavailable (%v)\n", err)
		return
	}

	online := 0
	for _, d := range devices {
		if d.IsOnline {
			online++
		}
	}
	r.printf("\n📱 Devices: %d total, %d online\n", len(devices), online)
}

// latestID returns the highest id in table. Ids are not dense, so this is
// only a rough size hint next to the exact count.
func (r *Reporter) latestID(ctx context.Context, table string) string {
	var rows []struct {
		ID int64 `json:"id"`
	}
	err := r.backend.Select(ctx, table, postgrest.Query{Select: "id", Order: "id.desc", Limit: 1}, &rows)
	if err != nil {
		r.log.Debug("failed to read latest id", slog.String("table", table), sl.Err(err))
		return placeholder
	}
	if len(rows) == 0 {
		return placeholder
	}
	return strconv.FormatInt(rows[0].ID, 10)
}

// RunDefault prints the bundle shown when no action is requested.
func (r *Reporter) RunDefault(ctx context.Context) {
	r.ListDevices(ctx)
	r.ListReadings(ctx, "", bundleReadingLimit)
	r.ListAlerts(ctx, true)
	r.Stats(ctx)
}

func countOrUnavailable(n int64, err error) string {
	if err != nil {
		return "unavailable"
	}
	return humanize.Comma(n)
}

func nonEmpty(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}
