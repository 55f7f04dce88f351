package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"parley/internal/chat"
	"parley/internal/config"
	"parley/internal/control"
	"parley/internal/orchestrator"
	"parley/internal/store"
	"parley/internal/turns"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	st, err := store.Open(cfg.Storage.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	coord := turns.New(logger)
	hub := orchestrator.NewHub(coord, &autosave{store: st, logger: logger}, orchestrator.Config{
		ResponderTimeout: time.Duration(cfg.Scheduler.ResponderTimeout) * time.Second,
	}, logger)

	if err := hub.Hydrate(st.LoadSnapshot()); err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}

	srv := control.NewServer(hub, logger)
	srv.ExportDir = cfg.Storage.ExportDir
	if err := srv.Start(cfg.Server.ListenPort); err != nil {
		return fmt.Errorf("start control server: %w", err)
	}

	logger.Info("parley started",
		zap.Int("port", cfg.Server.ListenPort),
		zap.Bool("autonomous_default", cfg.Rooms.Autonomous),
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	if err := srv.Stop(); err != nil {
		logger.Warn("control server shutdown failed", zap.Error(err))
	}
	if err := st.SaveSnapshot(hub.Snapshot()); err != nil {
		logger.Warn("final snapshot failed", zap.Error(err))
	}
	return hub.Close()
}

// autosave persists every state change, so a crash loses at most the
// in-flight turn.
type autosave struct {
	store  *store.Store
	logger *zap.Logger
}

func (a *autosave) StateChanged(snap chat.Snapshot) {
	if err := a.store.SaveSnapshot(snap); err != nil {
		a.logger.Warn("autosave failed", zap.Error(err))
	}
}

func (a *autosave) RoomUpdated(*chat.Room) {}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	return cfg.Build()
}
