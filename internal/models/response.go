package models

import "time"

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type HealthCheck struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// EventResult reports what happened to one event of a webhook delivery.
type EventResult struct {
	ID          string `json:"id"`
	Outcome     string `json:"outcome"`
	Reason      string `json:"reason,omitempty"`
	Destination string `json:"destination,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}
