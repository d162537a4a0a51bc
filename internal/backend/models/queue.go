package models

import "time"

const (
	EventHeartbeat     = "heartbeat"
	EventFailureReport = "failure_report"
	EventMarkedDown    = "marked_down"
	EventMonitorDelete = "monitor_deleted"
)

// AlertJob задача на отправку письма о падении монитора
type AlertJob struct {
	MonitorID   string    `json:"monitor_id"`
	MonitorName string    `json:"monitor_name"`
	OwnerEmail  string    `json:"owner_email"`
	LastPing    time.Time `json:"last_ping"`
	DownSince   time.Time `json:"down_since"`
	Attempt     int       `json:"attempt"`
	QueuedAt    time.Time `json:"queued_at"`
}

// MonitorEvent изменение статуса, рассылается через pub/sub
type MonitorEvent struct {
	Type           string        `json:"type"`
	MonitorID      string        `json:"monitor_id"`
	OwnerID        string        `json:"owner_id"`
	MonitorName    string        `json:"monitor_name"`
	Status         MonitorStatus `json:"status"`
	PreviousStatus MonitorStatus `json:"previous_status,omitempty"`
	At             time.Time     `json:"at"`
}
