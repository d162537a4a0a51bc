package models

import (
	"math"
	"time"
)

// Downtime интервал простоя. EndedAt == nil пока простой продолжается.
type Downtime struct {
	ID              string     `json:"id"`
	MonitorID       string     `json:"monitor_id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
	DurationMinutes *int       `json:"duration"`
}

func (d *Downtime) IsOpen() bool {
	return d.EndedAt == nil
}

// DowntimeMinutes floor((end - start) / 1m)
func DowntimeMinutes(startedAt, endedAt time.Time) int {
	return int(math.Floor(endedAt.Sub(startedAt).Minutes()))
}

type UptimeAggregate struct {
	WindowHours          int     `json:"window_hours"`
	TotalDowntimeMinutes int     `json:"total_downtime_minutes"`
	UptimePercentage     float64 `json:"uptime_percentage"`
	ActiveDowntime       bool    `json:"active_downtime"`
	IncidentCount        int     `json:"incident_count"`
}
