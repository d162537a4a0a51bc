package constants

import "time"

const (
	DatabaseConnectTimeout = 10 * time.Second
	RedisDialTimeout       = 5 * time.Second
	SMTPTimeout            = 15 * time.Second
	EventPublishTimeout    = 2 * time.Second
	ShutdownTimeout        = 30 * time.Second
	WebSocketWriteTimeout  = 10 * time.Second
	WebSocketPingPeriod    = 30 * time.Second
)
