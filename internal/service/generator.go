package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"voiceclone/internal/config"
	"voiceclone/internal/engine"
	"voiceclone/internal/logger"
	"voiceclone/internal/model"
	"voiceclone/internal/storage"
	"voiceclone/internal/taskmgr"
)

var (
	ErrEmptyText        = fmt.Errorf("text must not be empty")
	ErrTextTooLong      = fmt.Errorf("text exceeds maximum length")
	ErrNoTranscription  = fmt.Errorf("voice has no transcription")
	ErrVoiceAudioAbsent = fmt.Errorf("voice audio file not found")
)

// Generator bridges the synchronous HTTP create-request to the background
// generation work. Every accepted request gets its own goroutine; there is
// no queue, no concurrency cap and no cancellation. Deleting a task record
// does not stop an in-flight engine call.
type Generator struct {
	cfg     *config.Config
	store   *storage.Storage
	eng     engine.Engine
	tracker *taskmgr.Tracker
	sentry  *sentry.Hub

	// The inference backend loads one model and handles one generation at
	// a time, so invocations are serialized here while task bookkeeping
	// stays independent per request.
	engineMu sync.Mutex
}

func NewGenerator(cfg *config.Config, store *storage.Storage, eng engine.Engine, tracker *taskmgr.Tracker, hub *sentry.Hub) *Generator {
	return &Generator{
		cfg:     cfg,
		store:   store,
		eng:     eng,
		tracker: tracker,
		sentry:  hub,
	}
}

type validatedRequest struct {
	req          model.GenerationRequest
	refAudioPath string
	refText      string
}

// validate checks the request against the voice store before any task is
// created. Returns storage.ErrVoiceNotFound for an unknown voice.
func (g *Generator) validate(req model.GenerationRequest) (*validatedRequest, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if len([]rune(req.Text)) > g.cfg.Generation.MaxTextLength {
		return nil, ErrTextTooLong
	}

	if _, err := g.store.GetVoice(req.VoiceID); err != nil {
		return nil, err
	}
	refAudioPath, err := g.store.VoiceAudioPath(req.VoiceID)
	if err != nil {
		return nil, ErrVoiceAudioAbsent
	}
	refText, err := g.store.Transcription(req.VoiceID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(refText) == "" {
		return nil, ErrNoTranscription
	}

	return &validatedRequest{req: req, refAudioPath: refAudioPath, refText: refText}, nil
}

// Start validates the request, creates a task and spawns the background
// work. It returns as soon as the task id is allocated.
func (g *Generator) Start(req model.GenerationRequest) (string, error) {
	vr, err := g.validate(req)
	if err != nil {
		return "", err
	}

	task := g.tracker.Create("Generation queued")
	log.WithFields(log.Fields{"task_id": task.ID, "voice_id": req.VoiceID}).Info("generation task created")

	go g.run(task.ID, vr)

	return task.ID, nil
}

// run is the background unit of work. Every failure path ends in a terminal
// failed state; nothing escapes the goroutine silently.
func (g *Generator) run(taskID string, vr *validatedRequest) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic during generation: %v", r)
			logger.LogAndCapture(g.sentry, err, "generation worker", map[string]interface{}{"task_id": taskID})
			g.fail(taskID, err.Error())
		}
	}()

	g.transition(taskID, model.StatusInitializing, 10, "Loading model")

	gen, err := g.generate(context.Background(), taskID, vr)
	if err != nil {
		logger.LogAndCapture(g.sentry, err, "generation worker", map[string]interface{}{
			"task_id":  taskID,
			"voice_id": vr.req.VoiceID,
		})
		g.fail(taskID, err.Error())
		return
	}

	if err := g.tracker.Complete(taskID, gen); err != nil {
		// Terminal tasks are owned by this goroutine alone, so this
		// indicates a bug rather than a race.
		log.WithFields(log.Fields{"task_id": taskID}).Errorf("complete task: %v", err)
		return
	}
	log.WithFields(log.Fields{"task_id": taskID, "generation_id": gen.ID}).Info("generation completed")
}

// generate runs the engine and persists the artifact. Shared between the
// background worker and the synchronous endpoint; taskID is empty on the
// synchronous path.
func (g *Generator) generate(ctx context.Context, taskID string, vr *validatedRequest) (*model.Generation, error) {
	onProgress := engine.ProgressFunc(nil)
	if taskID != "" {
		onProgress = func(progress int, message string) {
			g.transition(taskID, model.StatusGenerating, progress, message)
		}
	}

	if taskID != "" {
		g.transition(taskID, model.StatusGenerating, 30, "Generating speech")
	}

	g.engineMu.Lock()
	result, err := g.eng.Generate(ctx, engine.GenerateRequest{
		Text:         vr.req.Text,
		RefAudioPath: vr.refAudioPath,
		RefText:      vr.refText,
		Model:        vr.req.Model,
	}, onProgress)
	g.engineMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("TTS generation failed: %w", err)
	}

	if taskID != "" {
		g.transition(taskID, model.StatusProcessing, 80, "Saving audio")
	}

	gen, err := g.store.CreateGeneration(result.Audio, vr.req.Text, vr.req.VoiceID, result.Model, result.Duration)
	if err != nil {
		return nil, fmt.Errorf("save generation: %w", err)
	}
	gen.AudioURL = AudioURL(gen.ID)

	if taskID != "" {
		g.transition(taskID, model.StatusProcessing, 90, "Finalizing")
	}
	return gen, nil
}

// Generate is the synchronous path: same pipeline, no task bookkeeping.
func (g *Generator) Generate(ctx context.Context, req model.GenerationRequest) (*model.Generation, error) {
	vr, err := g.validate(req)
	if err != nil {
		return nil, err
	}
	return g.generate(ctx, "", vr)
}

// Transcribe runs speech-to-text on a stored voice and persists the result.
func (g *Generator) Transcribe(ctx context.Context, voiceID string) (string, error) {
	audioPath, err := g.store.VoiceAudioPath(voiceID)
	if err != nil {
		return "", err
	}
	tr, ok := g.eng.(engine.Transcriber)
	if !ok {
		return "", fmt.Errorf("engine does not support transcription")
	}

	g.engineMu.Lock()
	text, err := tr.Transcribe(ctx, audioPath)
	g.engineMu.Unlock()
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	if err := g.store.SetTranscription(voiceID, text); err != nil {
		return "", err
	}
	return text, nil
}

func (g *Generator) transition(taskID string, status model.TaskStatus, progress int, message string) {
	if err := g.tracker.Update(taskID, status, progress, message); err != nil {
		log.WithFields(log.Fields{"task_id": taskID, "status": status}).Warnf("task update skipped: %v", err)
	}
}

func (g *Generator) fail(taskID, msg string) {
	if err := g.tracker.Fail(taskID, msg); err != nil {
		log.WithFields(log.Fields{"task_id": taskID}).Errorf("fail task: %v", err)
	}
}

// AudioURL is the retrieval URL of a generation artifact.
func AudioURL(generationID string) string {
	return fmt.Sprintf("/api/generations/%s/audio", generationID)
}
