package api

import "github.com/saddatahmad19/deepdomain/internal/dispatch"

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	QueueDepth    int    `json:"queue_depth"`
	Subscribers   int    `json:"subscribers"`
}

// StateResponse is returned by GET /state.
type StateResponse struct {
	dispatch.Snapshot
	QueueDepth  int   `json:"queue_depth"`
	LastEventID int64 `json:"last_event_id"`
}
