package model

type Severity string

const (
	SeverityInfo      Severity = "info"
	SeverityWarning   Severity = "warning"
	SeverityCritical  Severity = "critical"
	SeverityEmergency Severity = "emergency"
)

// Alert is a row of the alerts table.
type Alert struct {
	ID           int64    `json:"id,omitempty"`
	DeviceID     string   `json:"device_id"`
	AlertType    string   `json:"alert_type"`
	Severity     Severity `json:"severity"`
	Message      string   `json:"message"`
	Temperature  *float64 `json:"temperature,omitempty"`
	Acknowledged bool     `json:"acknowledged"`
	Resolved     bool     `json:"resolved"`
	TelegramSent bool     `json:"telegram_sent"`
	SMSSent      bool     `json:"sms_sent"`
	CreatedAt    string   `json:"created_at,omitempty"`
	ResolvedAt   *string  `json:"resolved_at,omitempty"`
}

func (a *Alert) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}

	*a = Alert{
		ID:           f.id("id"),
		DeviceID:     f.text("device_id"),
		AlertType:    f.text("alert_type"),
		Severity:     Severity(f.text("severity")),
		Message:      f.text("message"),
		Temperature:  f.float("temperature"),
		Acknowledged: f.flag("acknowledged"),
		Resolved:     f.flag("resolved"),
		TelegramSent: f.flag("telegram_sent"),
		SMSSent:      f.flag("sms_sent"),
		CreatedAt:    f.text("created_at"),
		ResolvedAt:   f.str("resolved_at"),
	}
	return nil
}

// AlertAck is the partial update sent when acknowledging an alert.
type AlertAck struct {
	Acknowledged bool `json:"acknowledged"`
}

// AlertResolve is the partial update sent when resolving an alert.
type AlertResolve struct {
	Resolved   bool   `json:"resolved"`
	ResolvedAt string `json:"resolved_at"`
}
