package models

import (
	"fmt"
	"time"
)

type MonitorStatus string

const (
	MonitorStatusPending MonitorStatus = "PENDING"
	MonitorStatusUp      MonitorStatus = "UP"
	MonitorStatusDown    MonitorStatus = "DOWN"
)

func (s MonitorStatus) Valid() bool {
	switch s {
	case MonitorStatusPending, MonitorStatusUp, MonitorStatusDown:
		return true
	}
	return false
}

func ParseMonitorStatus(raw string) (MonitorStatus, error) {
	status := MonitorStatus(raw)
	if !status.Valid() {
		return "", fmt.Errorf("unknown monitor status %q", raw)
	}
	return status, nil
}

// Monitor наблюдаемая задача. Interval и GracePeriod в минутах.
type Monitor struct {
	ID            string        `json:"id"`
	OwnerID       string        `json:"owner_id"`
	Name          string        `json:"name"`
	Key           string        `json:"key"`
	Secret        *string       `json:"secret,omitempty"`
	Interval      int           `json:"interval"`
	GracePeriod   int           `json:"grace_period"`
	UseSmartGrace bool          `json:"use_smart_grace"`
	Status        MonitorStatus `json:"status"`
	LastPing      *time.Time    `json:"last_ping"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (m *Monitor) IsPrivate() bool {
	return m.Secret != nil && *m.Secret != ""
}

// Deadline момент, после которого монитор считается пропавшим
func Deadline(lastPing time.Time, intervalMinutes, graceMinutes int) time.Time {
	return lastPing.
		Add(time.Duration(intervalMinutes) * time.Minute).
		Add(time.Duration(graceMinutes) * time.Minute)
}

// CreateMonitorRequest Interval и GracePeriod в минутах, grace по умолчанию 5
type CreateMonitorRequest struct {
	Name           string `json:"name" binding:"required,max=100"`
	Interval       int    `json:"interval" binding:"min=1,max=43200"`
	GracePeriod    *int   `json:"grace_period" binding:"omitempty,min=0,max=10080"`
	UseSmartGrace  bool   `json:"use_smart_grace"`
	PrivateMonitor bool   `json:"private_monitor"`
}

type UpdateMonitorRequest struct {
	Name           *string `json:"name" binding:"omitempty,min=1,max=100"`
	Interval       *int    `json:"interval" binding:"omitempty,min=1,max=43200"`
	GracePeriod    *int    `json:"grace_period" binding:"omitempty,min=0,max=10080"`
	UseSmartGrace  *bool   `json:"use_smart_grace"`
	PrivateMonitor *bool   `json:"private_monitor"`
}

type MonitorDetail struct {
	Monitor   *Monitor        `json:"monitor"`
	Pings     []*PingEvent    `json:"pings"`
	Downtimes []*Downtime     `json:"downtimes"`
	Uptime    UptimeAggregate `json:"uptime"`
}
