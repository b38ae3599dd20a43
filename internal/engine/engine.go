package engine

import "context"

// ProgressFunc receives (progress, message) pairs emitted by the engine
// while a generation is running. Values are forwarded as-is.
type ProgressFunc func(progress int, message string)

// GenerateRequest carries everything the engine needs to clone a voice.
type GenerateRequest struct {
	Text         string
	RefAudioPath string
	RefText      string
	Model        string
}

// Result is the raw outcome of one generation call.
type Result struct {
	Audio    []byte
	Duration *float64
	Model    string
}

// Info describes the inference backend.
type Info struct {
	Platform        string   `json:"platform"`
	CurrentModel    string   `json:"current_model,omitempty"`
	AvailableModels []string `json:"available_models"`
	SampleRate      int      `json:"sample_rate"`
}

// Engine produces cloned-voice speech. Implementations wrap an external
// inference backend and may block for minutes.
type Engine interface {
	Generate(ctx context.Context, req GenerateRequest, onProgress ProgressFunc) (*Result, error)
	Info() Info
}

// Transcriber converts a reference audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}
