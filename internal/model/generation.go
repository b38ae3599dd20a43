package model

import "time"

// GenerationRequest is the body of both the synchronous and the asynchronous
// generation endpoints.
type GenerationRequest struct {
	Text    string `json:"text" binding:"required"`
	VoiceID string `json:"voice_id" binding:"required"`
	Model   string `json:"model"`
}

// Generation is the metadata of a finished speech synthesis artifact.
type Generation struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	VoiceID   string    `json:"voice_id"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Duration  *float64  `json:"duration,omitempty"`
	AudioURL  string    `json:"audio_url,omitempty"`
}
