package models

// CronCheckResponse ответ /api/v1/cron/check, общий для backend и worker
type CronCheckResponse struct {
	Success    bool   `json:"success"`
	Checked    int    `json:"checked"`
	MarkedDown int    `json:"markedDown"`
	Error      string `json:"error,omitempty"`
}
