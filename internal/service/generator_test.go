package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"voiceclone/internal/config"
	"voiceclone/internal/engine"
	"voiceclone/internal/model"
	"voiceclone/internal/storage"
	"voiceclone/internal/taskmgr"
)

type progressStep struct {
	progress int
	message  string
}

// fakeEngine plays back a scripted progress sequence, then returns audio or
// an error.
type fakeEngine struct {
	steps      []progressStep
	audio      []byte
	err        error
	panicMsg   string
	transcript string
}

func (f *fakeEngine) Generate(ctx context.Context, req engine.GenerateRequest, onProgress engine.ProgressFunc) (*engine.Result, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	for _, s := range f.steps {
		if onProgress != nil {
			onProgress(s.progress, s.message)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	name := req.Model
	if name == "" {
		name = "test-model"
	}
	return &engine.Result{Audio: f.audio, Model: name}, nil
}

func (f *fakeEngine) Info() engine.Info {
	return engine.Info{Platform: "test", AvailableModels: []string{"test-model"}, SampleRate: 24000}
}

func (f *fakeEngine) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.transcript, nil
}

func newTestGenerator(t *testing.T, eng engine.Engine) (*Generator, *storage.Storage, *taskmgr.Tracker) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewStorage(filepath.Join(dir, "voices"), filepath.Join(dir, "generations"))
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	cfg := &config.Config{}
	cfg.Generation.MaxTextLength = 100
	tracker := taskmgr.NewTracker()
	return NewGenerator(cfg, store, eng, tracker, nil), store, tracker
}

func createVoice(t *testing.T, store *storage.Storage, transcription string) string {
	t.Helper()
	voice, err := store.CreateVoice([]byte("ref-audio"), "test voice", transcription)
	if err != nil {
		t.Fatalf("create voice: %v", err)
	}
	return voice.ID
}

func waitTerminal(t *testing.T, tracker *taskmgr.Tracker, id string) model.Task {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		task, err := tracker.Get(id)
		if err != nil {
			t.Fatalf("get task: %v", err)
		}
		if task.Status.Terminal() {
			return task
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("task did not reach a terminal state")
	return model.Task{}
}

func TestStartCompletesTask(t *testing.T) {
	eng := &fakeEngine{
		steps: []progressStep{{35, "token 10/100"}, {60, "token 60/100"}},
		audio: []byte("generated-wav"),
	}
	gen, store, tracker := newTestGenerator(t, eng)
	voiceID := createVoice(t, store, "reference text")

	taskID, err := gen.Start(model.GenerationRequest{Text: "say this", VoiceID: voiceID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// the first poll sees the task before or just after the worker picks
	// it up
	first, err := tracker.Get(taskID)
	if err != nil {
		t.Fatalf("poll after create: %v", err)
	}
	if first.Status == model.StatusPending || first.Status == model.StatusInitializing {
		if first.Progress > 10 {
			t.Errorf("early poll progress %d exceeds 10", first.Progress)
		}
	}

	task := waitTerminal(t, tracker, taskID)
	if task.Status != model.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", task.Status, task.Error)
	}
	if task.Progress != 100 {
		t.Errorf("expected progress 100, got %d", task.Progress)
	}
	if task.Result == nil || task.Result.AudioURL == "" {
		t.Fatal("completed task must carry a result with audio_url")
	}

	stored, err := store.GetGeneration(task.Result.ID)
	if err != nil {
		t.Fatalf("generation not persisted: %v", err)
	}
	if stored.Text != "say this" || stored.VoiceID != voiceID {
		t.Errorf("unexpected generation metadata: %+v", stored)
	}
}

func TestStartUnknownVoice(t *testing.T) {
	gen, _, tracker := newTestGenerator(t, &fakeEngine{audio: []byte("x")})

	_, err := gen.Start(model.GenerationRequest{Text: "hi", VoiceID: "no-such-voice"})
	if !errors.Is(err, storage.ErrVoiceNotFound) {
		t.Fatalf("expected ErrVoiceNotFound, got %v", err)
	}
	// fail-fast: no task record exists for a rejected request
	if _, err := tracker.Get("no-such-task"); !errors.Is(err, taskmgr.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestStartValidation(t *testing.T) {
	gen, store, _ := newTestGenerator(t, &fakeEngine{audio: []byte("x")})
	voiceID := createVoice(t, store, "ref")

	if _, err := gen.Start(model.GenerationRequest{Text: "   ", VoiceID: voiceID}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}

	long := make([]rune, 101)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := gen.Start(model.GenerationRequest{Text: string(long), VoiceID: voiceID}); !errors.Is(err, ErrTextTooLong) {
		t.Errorf("expected ErrTextTooLong, got %v", err)
	}
}

func TestStartVoiceWithoutTranscription(t *testing.T) {
	gen, store, _ := newTestGenerator(t, &fakeEngine{audio: []byte("x")})
	voiceID := createVoice(t, store, "")

	if _, err := gen.Start(model.GenerationRequest{Text: "hi", VoiceID: voiceID}); !errors.Is(err, ErrNoTranscription) {
		t.Errorf("expected ErrNoTranscription, got %v", err)
	}
}

func TestEngineFailureMarksTaskFailed(t *testing.T) {
	eng := &fakeEngine{
		steps: []progressStep{{42, "token 42/100"}},
		err:   fmt.Errorf("inference backend crashed"),
	}
	gen, store, tracker := newTestGenerator(t, eng)
	voiceID := createVoice(t, store, "ref")

	taskID, err := gen.Start(model.GenerationRequest{Text: "hi", VoiceID: voiceID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	task := waitTerminal(t, tracker, taskID)
	if task.Status != model.StatusFailed {
		t.Fatalf("expected failed, got %s", task.Status)
	}
	if task.Error == "" {
		t.Error("failed task must carry an error message")
	}
	if task.Progress != 42 {
		t.Errorf("progress must be frozen at last reported value, got %d", task.Progress)
	}
	if task.Result != nil {
		t.Error("failed task must not carry a result")
	}

	// the record stays failed until deleted
	time.Sleep(10 * time.Millisecond)
	again, _ := tracker.Get(taskID)
	if again.Status != model.StatusFailed {
		t.Error("failed task changed state")
	}
}

func TestEnginePanicMarksTaskFailed(t *testing.T) {
	gen, store, tracker := newTestGenerator(t, &fakeEngine{panicMsg: "index out of range"})
	voiceID := createVoice(t, store, "ref")

	taskID, err := gen.Start(model.GenerationRequest{Text: "hi", VoiceID: voiceID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	task := waitTerminal(t, tracker, taskID)
	if task.Status != model.StatusFailed || task.Error == "" {
		t.Errorf("panic must surface as a failed task, got %+v", task)
	}
}

func TestConcurrentTasksAreIndependent(t *testing.T) {
	gen, store, tracker := newTestGenerator(t, &fakeEngine{audio: []byte("x")})
	voiceID := createVoice(t, store, "ref")

	idA, err := gen.Start(model.GenerationRequest{Text: "first", VoiceID: voiceID})
	if err != nil {
		t.Fatalf("start a: %v", err)
	}
	idB, err := gen.Start(model.GenerationRequest{Text: "second", VoiceID: voiceID})
	if err != nil {
		t.Fatalf("start b: %v", err)
	}
	if idA == idB {
		t.Fatal("task ids must be distinct")
	}

	taskA := waitTerminal(t, tracker, idA)
	taskB := waitTerminal(t, tracker, idB)
	if taskA.Status != model.StatusCompleted || taskB.Status != model.StatusCompleted {
		t.Errorf("both tasks should complete: %s / %s", taskA.Status, taskB.Status)
	}
	if taskA.Result.ID == taskB.Result.ID {
		t.Error("tasks must produce distinct generations")
	}
}

func TestSynchronousGenerate(t *testing.T) {
	gen, store, _ := newTestGenerator(t, &fakeEngine{audio: []byte("wav")})
	voiceID := createVoice(t, store, "ref")

	out, err := gen.Generate(context.Background(), model.GenerationRequest{Text: "hi", VoiceID: voiceID})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out.AudioURL == "" {
		t.Error("generation must carry an audio_url")
	}
	if _, err := store.GetGeneration(out.ID); err != nil {
		t.Errorf("generation not persisted: %v", err)
	}
}

func TestTranscribePersistsResult(t *testing.T) {
	gen, store, _ := newTestGenerator(t, &fakeEngine{transcript: "recognized speech"})
	voiceID := createVoice(t, store, "")

	text, err := gen.Transcribe(context.Background(), voiceID)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "recognized speech" {
		t.Errorf("unexpected transcription %q", text)
	}
	stored, _ := store.Transcription(voiceID)
	if stored != "recognized speech" {
		t.Error("transcription not persisted")
	}
	voice, _ := store.GetVoice(voiceID)
	if !voice.HasTranscription {
		t.Error("voice metadata not updated")
	}
}
