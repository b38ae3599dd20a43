package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"voiceclone/internal/audio"
	"voiceclone/internal/model"
)

var (
	ErrVoiceNotFound      = fmt.Errorf("voice not found")
	ErrGenerationNotFound = fmt.Errorf("generation not found")
)

// Storage keeps voices and generations on disk, one directory per id with a
// metadata.json next to the audio file.
type Storage struct {
	voicesDir      string
	generationsDir string
}

func NewStorage(voicesDir, generationsDir string) (*Storage, error) {
	for _, dir := range []string{voicesDir, generationsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return &Storage{voicesDir: voicesDir, generationsDir: generationsDir}, nil
}

func (s *Storage) CreateVoice(audioData []byte, name, transcription string) (*model.Voice, error) {
	id := uuid.New().String()
	dir := filepath.Join(s.voicesDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create voice dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "audio.wav"), audioData, 0o644); err != nil {
		return nil, fmt.Errorf("write voice audio: %w", err)
	}

	voice := &model.Voice{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if d, ok := audio.WAVDuration(audioData); ok {
		voice.Duration = &d
	}
	if strings.TrimSpace(transcription) != "" {
		if err := os.WriteFile(filepath.Join(dir, "transcription.txt"), []byte(transcription), 0o644); err != nil {
			return nil, fmt.Errorf("write transcription: %w", err)
		}
		voice.HasTranscription = true
	}

	if err := writeMetadata(dir, voice); err != nil {
		return nil, err
	}
	return voice, nil
}

func (s *Storage) GetVoice(id string) (*model.Voice, error) {
	var voice model.Voice
	if err := readMetadata(filepath.Join(s.voicesDir, id), &voice); err != nil {
		return nil, ErrVoiceNotFound
	}
	return &voice, nil
}

func (s *Storage) ListVoices() ([]*model.Voice, error) {
	entries, err := os.ReadDir(s.voicesDir)
	if err != nil {
		return nil, fmt.Errorf("read voices dir: %w", err)
	}
	voices := make([]*model.Voice, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var v model.Voice
		if err := readMetadata(filepath.Join(s.voicesDir, e.Name()), &v); err != nil {
			continue
		}
		voices = append(voices, &v)
	}
	sort.Slice(voices, func(i, j int) bool {
		return voices[i].CreatedAt.After(voices[j].CreatedAt)
	})
	return voices, nil
}

// VoiceAudioPath returns the path of the reference audio file.
func (s *Storage) VoiceAudioPath(id string) (string, error) {
	path := filepath.Join(s.voicesDir, id, "audio.wav")
	if _, err := os.Stat(path); err != nil {
		return "", ErrVoiceNotFound
	}
	return path, nil
}

// Transcription returns the voice transcription, or "" when the voice has
// none yet.
func (s *Storage) Transcription(id string) (string, error) {
	if _, err := s.GetVoice(id); err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(s.voicesDir, id, "transcription.txt"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read transcription: %w", err)
	}
	return string(data), nil
}

func (s *Storage) SetTranscription(id, transcription string) error {
	dir := filepath.Join(s.voicesDir, id)
	var voice model.Voice
	if err := readMetadata(dir, &voice); err != nil {
		return ErrVoiceNotFound
	}
	if err := os.WriteFile(filepath.Join(dir, "transcription.txt"), []byte(transcription), 0o644); err != nil {
		return fmt.Errorf("write transcription: %w", err)
	}
	voice.HasTranscription = true
	return writeMetadata(dir, &voice)
}

func (s *Storage) DeleteVoice(id string) error {
	dir := filepath.Join(s.voicesDir, id)
	if _, err := os.Stat(dir); err != nil {
		return ErrVoiceNotFound
	}
	return os.RemoveAll(dir)
}

func (s *Storage) CreateGeneration(audioData []byte, text, voiceID, modelName string, duration *float64) (*model.Generation, error) {
	id := uuid.New().String()
	dir := filepath.Join(s.generationsDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create generation dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "audio.wav"), audioData, 0o644); err != nil {
		return nil, fmt.Errorf("write generation audio: %w", err)
	}

	gen := &model.Generation{
		ID:        id,
		Text:      text,
		VoiceID:   voiceID,
		Model:     modelName,
		CreatedAt: time.Now(),
		Duration:  duration,
	}
	if gen.Duration == nil {
		if d, ok := audio.WAVDuration(audioData); ok {
			gen.Duration = &d
		}
	}

	if err := writeMetadata(dir, gen); err != nil {
		return nil, err
	}
	return gen, nil
}

func (s *Storage) GetGeneration(id string) (*model.Generation, error) {
	var gen model.Generation
	if err := readMetadata(filepath.Join(s.generationsDir, id), &gen); err != nil {
		return nil, ErrGenerationNotFound
	}
	return &gen, nil
}

// ListGenerations returns all generations, newest first, optionally filtered
// by voice id.
func (s *Storage) ListGenerations(voiceID string) ([]*model.Generation, error) {
	entries, err := os.ReadDir(s.generationsDir)
	if err != nil {
		return nil, fmt.Errorf("read generations dir: %w", err)
	}
	gens := make([]*model.Generation, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var g model.Generation
		if err := readMetadata(filepath.Join(s.generationsDir, e.Name()), &g); err != nil {
			continue
		}
		if voiceID != "" && g.VoiceID != voiceID {
			continue
		}
		gens = append(gens, &g)
	}
	sort.Slice(gens, func(i, j int) bool {
		return gens[i].CreatedAt.After(gens[j].CreatedAt)
	})
	return gens, nil
}

func (s *Storage) GenerationAudioPath(id string) (string, error) {
	path := filepath.Join(s.generationsDir, id, "audio.wav")
	if _, err := os.Stat(path); err != nil {
		return "", ErrGenerationNotFound
	}
	return path, nil
}

func (s *Storage) DeleteGeneration(id string) error {
	dir := filepath.Join(s.generationsDir, id)
	if _, err := os.Stat(dir); err != nil {
		return ErrGenerationNotFound
	}
	return os.RemoveAll(dir)
}

func writeMetadata(dir string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func readMetadata(dir string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
