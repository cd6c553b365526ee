package model

// Reading is a row of the readings table. Nullable columns are pointers.
type Reading struct {
	ID             int64    `json:"id,omitempty"`
	DeviceID       string   `json:"device_id"`
	Temp1          *float64 `json:"temp1,omitempty"`
	Temp2          *float64 `json:"temp2,omitempty"`
	TempAvg        *float64 `json:"temp_avg,omitempty"`
	Humidity       *float64 `json:"humidity,omitempty"`
	Door1Open      bool     `json:"door1_open"`
	ACPower        *bool    `json:"ac_power,omitempty"`
	RelayOn        bool     `json:"relay_on"`
	AlertActive    bool     `json:"alert_active"`
	DefrostMode    bool     `json:"defrost_mode"`
	SimulationMode bool     `json:"simulation_mode"`
	WifiRSSI       *int     `json:"wifi_rssi,omitempty"`
	UptimeSec      *int64   `json:"uptime_sec,omitempty"`
	CreatedAt      string   `json:"created_at,omitempty"`
}

// HasPower reports mains power. A missing column counts as powered.
func (r *Reading) HasPower() bool {
	return r.ACPower == nil || *r.ACPower
}

// UnmarshalJSON decodes a row leniently: a column of the wrong type reads as
// absent rather than failing the batch it came in.
func (r *Reading) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}

	*r = Reading{
		ID:             f.id("id"),
		DeviceID:       f.text("device_id"),
		Temp1:          f.float("temp1"),
		Temp2:          f.float("temp2"),
		TempAvg:        f.float("temp_avg"),
		Humidity:       f.float("humidity"),
		Door1Open:      f.flag("door1_open"),
		ACPower:        f.boolPtr("ac_power"),
		RelayOn:        f.flag("relay_on"),
		AlertActive:    f.flag("alert_active"),
		DefrostMode:    f.flag("defrost_mode"),
		SimulationMode: f.flag("simulation_mode"),
		WifiRSSI:       f.intPtr("wifi_rssi"),
		UptimeSec:      f.int64Ptr("uptime_sec"),
		CreatedAt:      f.text("created_at"),
	}
	return nil
}
