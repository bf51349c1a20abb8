package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/grindpulse/grindsync/internal/cloud"
	"github.com/grindpulse/grindsync/internal/model"
	"github.com/grindpulse/grindsync/internal/remote"
	"github.com/grindpulse/grindsync/internal/store"
	"github.com/grindpulse/grindsync/internal/tracker"
	"github.com/grindpulse/grindsync/internal/transfer"
)

// App wires the components a command needs: the local store, the tracker
// over the loaded sets, and, when a remote endpoint is configured, the
// sync engine and config sync. Engine is nil in offline mode.
type App struct {
	DataDir string
	SetsDir string

	Logger  *log.Logger
	DB      *store.DB
	Tracker *tracker.Tracker

	Remote     remote.Store
	Engine     *cloud.Engine
	ConfigSync *cloud.ConfigSync
}

// openApp loads configuration, the local database, and every problem set,
// merging stored progress into the in-memory sets.
func openApp(ctx context.Context) (*App, error) {
	dataDir := viper.GetString("data_dir")
	setsDir := viper.GetString("sets_dir")

	if err := os.MkdirAll(setsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sets directory: %w", err)
	}

	logger := log.New(&lumberjack.Logger{
		Filename:   filepath.Join(dataDir, "logs", "grindsync.log"),
		MaxSize:    viper.GetInt("log.max_size_mb"),
		MaxBackups: viper.GetInt("log.max_backups"),
		Compress:   true,
	}, "[grindsync] ", log.LstdFlags)

	db, err := store.Open(filepath.Join(dataDir, "grindsync.db"), logger)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchemaContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	sets, err := model.ReadAllSetFiles(setsDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("no problem sets found in %s (add *.tsv files or import one): %w", setsDir, err)
	}
	if err := db.LoadInto(ctx, sets); err != nil {
		db.Close()
		return nil, err
	}

	tr := tracker.New(sets, db, logger)

	app := &App{
		DataDir: dataDir,
		SetsDir: setsDir,
		Logger:  logger,
		DB:      db,
		Tracker: tr,
	}

	if url := viper.GetString("remote.url"); url != "" {
		app.Remote = remote.NewClient(url, viper.GetString("remote.token"), logger)
		app.Engine = cloud.NewEngine(tr, db, app.Remote, cloud.NewClock(), logger)
	}

	var keys []string
	for _, set := range sets {
		keys = append(keys, set.Key)
	}
	deviceID := "local"
	if app.Engine != nil {
		deviceID = app.Engine.DeviceID()
	}
	app.ConfigSync = cloud.NewConfigSync(db, app.Remote, cloud.NewClock(), deviceID, keys, logger)

	return app, nil
}

// Close releases the local database.
func (a *App) Close() {
	a.ConfigSync.Stop()
	if a.Engine != nil {
		a.Engine.SignOut()
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Printf("failed to close store: %v", err)
	}
}

// Importer builds a transfer importer over the app's tracker and store.
func (a *App) Importer() *transfer.Importer {
	return transfer.NewImporter(a.Tracker, a.DB, a.Logger)
}

// requireEngine errors when no remote endpoint is configured.
func (a *App) requireEngine() error {
	if a.Engine == nil {
		return fmt.Errorf("no remote configured: set remote.url in the config file or GRINDSYNC_REMOTE_URL")
	}
	return nil
}

// pushAfterEdit pushes progress immediately after a one-shot command.
// Interactive watch mode relies on debounced pushes instead, but a
// process about to exit cannot wait out a debounce window.
func (a *App) pushAfterEdit(ctx context.Context) {
	if a.Engine == nil {
		return
	}
	if err := a.Engine.PushAll(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cloud push failed: %v\n", err)
	}
}
