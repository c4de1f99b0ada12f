// Package cloudevent implements the subset of CloudEvents 1.0 used for
// workflow lifecycle callbacks: a structured envelope plus binary-mode
// HTTP delivery with optional HMAC signing.
package cloudevent

import "time"

// CloudEvent is the event envelope. Subject carries the workflow ID so
// consumers can correlate events without inspecting Data.
type CloudEvent struct {
	SpecVersion     string         `json:"specversion"`
	Type            string         `json:"type"`
	Source          string         `json:"source"`
	Subject         string         `json:"subject"`
	ID              string         `json:"id"`
	Time            time.Time      `json:"time"`
	DataContentType string         `json:"datacontenttype"`
	Data            map[string]any `json:"data"`
}

// New builds a version 1.0 event with a JSON payload, stamped with the
// current UTC time.
func New(eventType, source, subject, id string, data map[string]any) *CloudEvent {
	return &CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          source,
		Subject:         subject,
		ID:              id,
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}
