// Package synth builds plausible test rows flagged as simulated.
package synth

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/speedwagon-io/reefercheck/internal/model"
)

const DefaultDeviceID = "REEFER-01"

// Reading returns a frozen-cargo reading around -20°C. temp_avg stays in
// [-21.5, -17.5] and humidity in [40, 50].
func Reading(deviceID string, rnd *rand.Rand) model.Reading {
	if deviceID == "" {
		deviceID = DefaultDeviceID
	}

	temp1 := round(-20+spread(rnd, 2), 2)
	temp2 := round(-19+spread(rnd, 2), 2)
	avg := round(-19.5+spread(rnd, 2), 2)
	humidity := round(45+spread(rnd, 5), 1)
	power := true
	rssi := -70 + rnd.Intn(31)
	uptime := int64(1000 + rnd.Intn(99001))

	return model.Reading{
		DeviceID:       deviceID,
		Temp1:          &temp1,
		Temp2:          &temp2,
		TempAvg:        &avg,
		Humidity:       &humidity,
		Door1Open:      rnd.Intn(4) == 0,
		ACPower:        &power,
		RelayOn:        false,
		AlertActive:    false,
		DefrostMode:    false,
		SimulationMode: true,
		WifiRSSI:       &rssi,
		UptimeSec:      &uptime,
	}
}

// Alert returns an unacknowledged temperature warning stamped with now.
func Alert(deviceID string, now time.Time) model.Alert {
	if deviceID == "" {
		deviceID = DefaultDeviceID
	}

	temp := -8.5

	return model.Alert{
		DeviceID:    deviceID,
		AlertType:   "temperature",
		Severity:    model.SeverityWarning,
		Message:     fmt.Sprintf("test alert from reefercheck - %s", now.Format("15:04:05")),
		Temperature: &temp,
	}
}

// spread is uniform in [-width, width].
func spread(rnd *rand.Rand, width float64) float64 {
	return (rnd.Float64()*2 - 1) * width
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
