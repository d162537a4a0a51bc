package models

import "time"

// PingEvent принятый heartbeat. DriftSeconds сколько секунд прошло с предыдущего пинга.
type PingEvent struct {
	ID           string    `json:"id"`
	MonitorID    string    `json:"monitor_id"`
	DriftSeconds int64     `json:"drift_seconds"`
	CreatedAt    time.Time `json:"created_at"`
}

type HeartbeatResult struct {
	MonitorID      string        `json:"monitor_id"`
	MonitorName    string        `json:"monitor_name"`
	DriftSeconds   int64         `json:"drift_seconds"`
	PreviousStatus MonitorStatus `json:"previous_status"`
	NewStatus      MonitorStatus `json:"new_status"`
	NewGracePeriod int           `json:"new_grace_period"`
	GraceAdjusted  bool          `json:"grace_adjusted"`
	DowntimeClosed bool          `json:"downtime_closed"`
	ClosedDowntime *Downtime     `json:"closed_downtime,omitempty"`
	ReceivedAt     time.Time     `json:"received_at"`
}

type FailureResult struct {
	MonitorID      string        `json:"monitor_id"`
	MonitorName    string        `json:"monitor_name"`
	PreviousStatus MonitorStatus `json:"previous_status"`
	NewStatus      MonitorStatus `json:"new_status"`
	DowntimeOpened bool          `json:"downtime_opened"`
	ReportedAt     time.Time     `json:"reported_at"`
}
