package model

// Device is a row of the devices table. Devices maintain their own rows; this
// tool only reads them.
type Device struct {
	DeviceID   string  `json:"device_id"`
	Name       *string `json:"name,omitempty"`
	Location   *string `json:"location,omitempty"`
	IsOnline   bool    `json:"is_online"`
	LastSeenAt *string `json:"last_seen_at,omitempty"`
	WifiRSSI   *int    `json:"wifi_rssi,omitempty"`
}

const (
	TableDevices  = "devices"
	TableReadings = "readings"
	TableAlerts   = "alerts"
)

func (d *Device) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}

	*d = Device{
		DeviceID:   f.text("device_id"),
		Name:       f.str("name"),
		Location:   f.str("location"),
		IsOnline:   f.flag("is_online"),
		LastSeenAt: f.str("last_seen_at"),
		WifiRSSI:   f.intPtr("wifi_rssi"),
	}
	return nil
}
