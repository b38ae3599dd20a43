package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"voiceclone/internal/engine"
	"voiceclone/internal/model"
	"voiceclone/internal/service"
	"voiceclone/internal/storage"
	"voiceclone/internal/taskmgr"
)

type APIHandler struct {
	Store   *storage.Storage
	Gen     *service.Generator
	Tracker *taskmgr.Tracker
	Engine  engine.Engine
}

type transcriptionRequest struct {
	Transcription string `json:"transcription" binding:"required"`
}

func RegisterHandlers(r *gin.Engine, h *APIHandler) {
	r.GET("/", h.root)

	api := r.Group("/api")
	api.GET("/health", h.health)

	voices := api.Group("/voices")
	voices.POST("", h.createVoice)
	voices.GET("", h.listVoices)
	voices.GET("/:id", h.getVoice)
	voices.GET("/:id/audio", h.getVoiceAudio)
	voices.GET("/:id/transcription", h.getTranscription)
	voices.PUT("/:id/transcription", h.setTranscription)
	voices.POST("/:id/transcribe", h.transcribeVoice)
	voices.DELETE("/:id", h.deleteVoice)

	gens := api.Group("/generations")
	gens.POST("", h.generate)
	gens.GET("", h.listGenerations)
	gens.POST("/async", h.generateAsync)
	gens.GET("/tasks/:task_id", h.getTask)
	gens.DELETE("/tasks/:task_id", h.deleteTask)
	gens.GET("/:id", h.getGeneration)
	gens.GET("/:id/audio", h.getGenerationAudio)
	gens.DELETE("/:id", h.deleteGeneration)

	models := api.Group("/models")
	models.GET("/info", h.modelsInfo)
	models.GET("/list", h.modelsList)
}

func (h *APIHandler) root(c *gin.Context) {
	info := h.Engine.Info()
	c.JSON(http.StatusOK, gin.H{
		"name":     "Voice Cloning TTS API",
		"platform": info.Platform,
	})
}

func (h *APIHandler) health(c *gin.Context) {
	info := h.Engine.Info()
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"platform": info.Platform,
	})
}

// --- async generation tasks ---

func (h *APIHandler) generateAsync(c *gin.Context) {
	var req model.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
		return
	}

	taskID, err := h.Gen.Start(req)
	if err != nil {
		h.generationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"task_id":    taskID,
		"message":    "Generation started",
		"status_url": fmt.Sprintf("/api/generations/tasks/%s", taskID),
	})
}

func (h *APIHandler) getTask(c *gin.Context) {
	task, err := h.Tracker.Get(c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// deleteTask is best-effort cleanup: removing an already-absent task is not
// an error to the caller.
func (h *APIHandler) deleteTask(c *gin.Context) {
	if err := h.Tracker.Delete(c.Param("task_id")); err != nil {
		log.WithField("task_id", c.Param("task_id")).Debugf("delete task: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

// --- synchronous generation and generation CRUD ---

func (h *APIHandler) generate(c *gin.Context) {
	var req model.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
		return
	}

	gen, err := h.Gen.Generate(c.Request.Context(), req)
	if err != nil {
		h.generationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gen)
}

func (h *APIHandler) listGenerations(c *gin.Context) {
	gens, err := h.Store.ListGenerations(c.Query("voice_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for _, g := range gens {
		g.AudioURL = service.AudioURL(g.ID)
	}
	c.JSON(http.StatusOK, gens)
}

func (h *APIHandler) getGeneration(c *gin.Context) {
	gen, err := h.Store.GetGeneration(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
		return
	}
	gen.AudioURL = service.AudioURL(gen.ID)
	c.JSON(http.StatusOK, gen)
}

func (h *APIHandler) getGenerationAudio(c *gin.Context) {
	path, err := h.Store.GenerationAudioPath(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "generation or audio file not found"})
		return
	}
	c.FileAttachment(path, fmt.Sprintf("generation_%s.wav", c.Param("id")))
}

func (h *APIHandler) deleteGeneration(c *gin.Context) {
	if err := h.Store.DeleteGeneration(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// --- voices ---

func (h *APIHandler) createVoice(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "name is required"})
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "audio file is required"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read audio file"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read audio file"})
		return
	}

	voice, err := h.Store.CreateVoice(data, name, c.PostForm("transcription"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, voice)
}

func (h *APIHandler) listVoices(c *gin.Context) {
	voices, err := h.Store.ListVoices()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, voices)
}

func (h *APIHandler) getVoice(c *gin.Context) {
	voice, err := h.Store.GetVoice(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "voice not found"})
		return
	}
	c.JSON(http.StatusOK, voice)
}

func (h *APIHandler) getVoiceAudio(c *gin.Context) {
	path, err := h.Store.VoiceAudioPath(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "voice audio not found"})
		return
	}
	c.FileAttachment(path, fmt.Sprintf("voice_%s.wav", c.Param("id")))
}

func (h *APIHandler) getTranscription(c *gin.Context) {
	text, err := h.Store.Transcription(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "voice not found"})
		return
	}
	if text == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "transcription not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"voice_id": c.Param("id"), "transcription": text})
}

func (h *APIHandler) setTranscription(c *gin.Context) {
	var req transcriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "transcription is required"})
		return
	}
	if err := h.Store.SetTranscription(c.Param("id"), req.Transcription); err != nil {
		if errors.Is(err, storage.ErrVoiceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "voice not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"voice_id": c.Param("id"), "transcription": req.Transcription})
}

func (h *APIHandler) transcribeVoice(c *gin.Context) {
	text, err := h.Gen.Transcribe(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrVoiceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "voice not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"voice_id": c.Param("id"), "transcription": text})
}

func (h *APIHandler) deleteVoice(c *gin.Context) {
	if err := h.Store.DeleteVoice(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "voice not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// --- models ---

func (h *APIHandler) modelsInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.Engine.Info())
}

func (h *APIHandler) modelsList(c *gin.Context) {
	c.JSON(http.StatusOK, h.Engine.Info().AvailableModels)
}

// generationError maps validation and lookup failures of the generation
// pipeline to HTTP status codes.
func (h *APIHandler) generationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrVoiceNotFound), errors.Is(err, service.ErrVoiceAudioAbsent):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyText), errors.Is(err, service.ErrTextTooLong):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoTranscription), errors.Is(err, engine.ErrUnknownModel):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
