package model

import "time"

// Voice is the metadata of one uploaded reference voice sample.
type Voice struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	CreatedAt        time.Time `json:"created_at"`
	HasTranscription bool      `json:"has_transcription"`
	Duration         *float64  `json:"duration,omitempty"`
}
