package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var ErrUnknownModel = fmt.Errorf("unknown model")

// RemoteConfig configures the connection to the MLX/PyTorch inference
// sidecar.
type RemoteConfig struct {
	BaseURL      string
	Timeout      time.Duration
	Platform     string
	SampleRate   int
	DefaultModel string
	Models       []string
}

// Remote implements Engine and Transcriber against the inference sidecar.
// The sidecar streams newline-delimited JSON events for /generate:
// progress events first, then a single result (or error) event.
type Remote struct {
	cfg    RemoteConfig
	client *http.Client

	mu           sync.Mutex
	currentModel string
}

func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &Remote{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type generatePayload struct {
	Text         string `json:"text"`
	RefAudioPath string `json:"ref_audio_path"`
	RefText      string `json:"ref_text"`
	Model        string `json:"model"`
}

type streamEvent struct {
	Type     string   `json:"type"`
	Progress int      `json:"progress"`
	Message  string   `json:"message"`
	Audio    string   `json:"audio"`
	Duration *float64 `json:"duration"`
}

// ResolveModel validates a requested model name, falling back to the
// configured default when empty.
func (r *Remote) ResolveModel(name string) (string, error) {
	if name == "" {
		if r.cfg.DefaultModel != "" {
			return r.cfg.DefaultModel, nil
		}
		if len(r.cfg.Models) > 0 {
			return r.cfg.Models[0], nil
		}
		return "", fmt.Errorf("no models configured")
	}
	for _, m := range r.cfg.Models {
		if m == name {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownModel, name)
}

func (r *Remote) Generate(ctx context.Context, req GenerateRequest, onProgress ProgressFunc) (*Result, error) {
	model, err := r.ResolveModel(req.Model)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(generatePayload{
		Text:         req.Text,
		RefAudioPath: req.RefAudioPath,
		RefText:      req.RefText,
		Model:        model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	log.WithFields(log.Fields{"model": model, "text_len": len(req.Text)}).Debug("engine generate start")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("engine request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("engine returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	dec := json.NewDecoder(resp.Body)
	for {
		var ev streamEvent
		if err := dec.Decode(&ev); err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("engine stream ended without result")
			}
			return nil, fmt.Errorf("decode engine event: %w", err)
		}

		switch ev.Type {
		case "progress":
			if onProgress != nil {
				onProgress(ev.Progress, ev.Message)
			}
		case "result":
			audio, err := base64.StdEncoding.DecodeString(ev.Audio)
			if err != nil {
				return nil, fmt.Errorf("decode engine audio: %w", err)
			}
			r.mu.Lock()
			r.currentModel = model
			r.mu.Unlock()
			return &Result{Audio: audio, Duration: ev.Duration, Model: model}, nil
		case "error":
			return nil, fmt.Errorf("engine: %s", ev.Message)
		default:
			log.WithField("type", ev.Type).Warn("unknown engine event, skipping")
		}
	}
}

type transcribePayload struct {
	AudioPath string `json:"audio_path"`
}

func (r *Remote) Transcribe(ctx context.Context, audioPath string) (string, error) {
	body, err := json.Marshal(transcribePayload{AudioPath: audioPath})
	if err != nil {
		return "", fmt.Errorf("marshal transcribe request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/transcribe", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create transcribe request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("engine request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("engine returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return out.Text, nil
}

func (r *Remote) Info() Info {
	r.mu.Lock()
	current := r.currentModel
	r.mu.Unlock()
	return Info{
		Platform:        r.cfg.Platform,
		CurrentModel:    current,
		AvailableModels: r.cfg.Models,
		SampleRate:      r.cfg.SampleRate,
	}
}
