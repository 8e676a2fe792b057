package model

import "time"

type HubStats struct {
	ActiveSessions int            `json:"active_sessions"`
	ByState        map[string]int `json:"by_state"`
	Uptime         time.Duration  `json:"uptime"`
}
