package synth

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/reefercheck/internal/model"
)

func TestReading_Ranges(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	doorOpen := 0

	for i := 0; i < 2000; i++ {
		r := Reading("REEFER-07", rnd)

		require.NotNil(t, r.TempAvg)
		require.NotNil(t, r.Humidity)
		assert.InDelta(t, -19.5, *r.TempAvg, 2.0+1e-9)
		assert.GreaterOrEqual(t, *r.TempAvg, -23.5)
		assert.LessOrEqual(t, *r.TempAvg, -17.5)
		assert.GreaterOrEqual(t, *r.Humidity, 40.0)
		assert.LessOrEqual(t, *r.Humidity, 50.0)
		assert.InDelta(t, -20, *r.Temp1, 2.0+1e-9)
		assert.InDelta(t, -19, *r.Temp2, 2.0+1e-9)
		assert.GreaterOrEqual(t, *r.WifiRSSI, -70)
		assert.LessOrEqual(t, *r.WifiRSSI, -40)
		assert.GreaterOrEqual(t, *r.UptimeSec, int64(1000))
		assert.LessOrEqual(t, *r.UptimeSec, int64(100000))

		assert.True(t, r.SimulationMode)
		assert.True(t, r.HasPower())
		assert.False(t, r.AlertActive)
		assert.Equal(t, "REEFER-07", r.DeviceID)

		if r.Door1Open {
			doorOpen++
		}
	}

	// roughly one in four
	assert.Greater(t, doorOpen, 300)
	assert.Less(t, doorOpen, 700)
}

func TestReading_DefaultDevice(t *testing.T) {
	r := Reading("", rand.New(rand.NewSource(2)))
	assert.Equal(t, DefaultDeviceID, r.DeviceID)
}

func TestAlert(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 5, 9, 0, time.UTC)
	a := Alert("", now)

	assert.Equal(t, DefaultDeviceID, a.DeviceID)
	assert.Equal(t, "temperature", a.AlertType)
	assert.Equal(t, model.SeverityWarning, a.Severity)
	assert.Contains(t, a.Message, "14:05:09")
	require.NotNil(t, a.Temperature)
	assert.Equal(t, -8.5, *a.Temperature)
	assert.False(t, a.Acknowledged)
	assert.False(t, a.Resolved)
	assert.False(t, a.TelegramSent)
	assert.False(t, a.SMSSent)
}
