package models

import "time"

// SweepCandidate UP монитор вместе с email владельца
type SweepCandidate struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	OwnerID     string     `json:"owner_id"`
	OwnerEmail  string     `json:"owner_email"`
	LastPing    *time.Time `json:"last_ping"`
	Interval    int        `json:"interval"`
	GracePeriod int        `json:"grace_period"`
}

// StatusTransition условный переход: применяется только если last_ping не изменился
type StatusTransition struct {
	MonitorID        string
	ExpectedLastPing time.Time
}

type SweepResult struct {
	Checked    int       `json:"checked"`
	MarkedDown int       `json:"markedDown"`
	AlertsSent int       `json:"alertsQueued"`
	SweptAt    time.Time `json:"sweptAt"`
}
