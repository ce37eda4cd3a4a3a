package model

import "time"

// RegistryStats is a point-in-time snapshot of the session registry, exposed
// on the stats endpoint and rendered by the monitor command.
type RegistryStats struct {
	ConnectedUsers    int           `json:"connected_users"`
	TotalSessions     int           `json:"total_sessions"`
	PendingHandshakes int           `json:"pending_handshakes"`
	Uptime            time.Duration `json:"uptime"`
}
