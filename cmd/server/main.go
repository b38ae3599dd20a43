package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"voiceclone/internal/api"
	"voiceclone/internal/config"
	"voiceclone/internal/engine"
	"voiceclone/internal/logger"
	"voiceclone/internal/service"
	"voiceclone/internal/storage"
	"voiceclone/internal/taskmgr"
)

func main() {
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger.Init(cfg.LogLevel)

	hub, err := logger.InitSentry(cfg.SentryDSN, "voiceclone")
	if err != nil {
		log.Warnf("sentry disabled: %v", err)
	}

	store, err := storage.NewStorage(cfg.VoicesDir(), cfg.GenerationsDir())
	if err != nil {
		log.Fatalf("storage error: %v", err)
	}

	eng := engine.NewRemote(engine.RemoteConfig{
		BaseURL:      cfg.Engine.BaseURL,
		Timeout:      cfg.EngineTimeout(),
		Platform:     cfg.Engine.Platform,
		SampleRate:   cfg.Engine.SampleRate,
		DefaultModel: cfg.Engine.DefaultModel,
		Models:       cfg.Engine.Models,
	})

	tracker := taskmgr.NewTracker()
	gen := service.NewGenerator(cfg, store, eng, tracker, hub)

	go func() {
		for {
			time.Sleep(cfg.SweepInterval())
			if removed := tracker.Sweep(cfg.TaskRetention()); removed > 0 {
				log.Infof("swept %d stale tasks", removed)
			}
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	api.RegisterHandlers(r, &api.APIHandler{
		Store:   store,
		Gen:     gen,
		Tracker: tracker,
		Engine:  eng,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		tracker.Clear()
		log.Info("shutting down")
		os.Exit(0)
	}()

	log.Infof("server starting on :%d (engine %s, data %s)", cfg.Server.Port, cfg.Engine.BaseURL, cfg.DataDir)
	if err := r.Run(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
