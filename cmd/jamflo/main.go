// Command jamflo runs a practice session for one routine in the terminal.
//
// Routines come either from the sync server (--routine with --server) or
// from a local JSON file (--routine-file). Session progress is saved to a
// local database and, when a server is configured, mirrored there too, so
// an interrupted session can be resumed with the default continue mode.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rivo/tview"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jamflo/jamflo/internal/config"
	"github.com/jamflo/jamflo/internal/notes"
	"github.com/jamflo/jamflo/internal/persist"
	"github.com/jamflo/jamflo/internal/routine"
	"github.com/jamflo/jamflo/internal/safego"
	"github.com/jamflo/jamflo/internal/session"
	"github.com/jamflo/jamflo/internal/tui"
)

func main() {
	var (
		configPath  = pflag.String("config", "", "path to config file (default $DATA_DIR/config.yaml)")
		routineID   = pflag.String("routine", "", "routine ID to fetch from the sync server")
		routineFile = pflag.String("routine-file", "", "path to a local routine JSON file")
		serverURL   = pflag.String("server", "", "sync server base URL (overrides config)")
		userID      = pflag.String("user", "", "user ID (overrides config)")
		dataDir     = pflag.String("data-dir", "", "data directory (overrides config)")
		fresh       = pflag.Bool("fresh", false, "start from the beginning, discarding any saved progress")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load config: %v", err)
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *userID != "" {
		cfg.UserID = *userID
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	if *routineID == "" && *routineFile == "" {
		fatal("either --routine or --routine-file is required")
	}
	if *routineFile == "" && cfg.ServerURL == "" {
		fatal("--routine needs a sync server (--server or config server_url)")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		fatal("create data dir %s: %v", cfg.DataDir, err)
	}

	// The TUI owns the terminal, so all logging goes to a rotated file.
	logger := log.New(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    5, // MB
		MaxBackups: 3,
	}, "", log.LstdFlags|log.Lmicroseconds)
	logger.Printf("jamflo starting, data dir %s", cfg.DataDir)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	rtn, err := loadRoutine(ctx, cfg.ServerURL, *routineID, *routineFile)
	cancel()
	if err != nil {
		fatal("load routine: %v", err)
	}
	logger.Printf("loaded routine %q with %d exercises", rtn.Name, rtn.TotalExercises())

	var local persist.LocalStore
	sqliteStore, err := persist.OpenSQLiteStore(cfg.DataDir)
	if err != nil {
		// Progress still persists for this run via the remote tier if any.
		logger.Printf("opening session database failed, using in-memory store: %v", err)
		local = persist.NewMemoryStore()
	} else {
		defer sqliteStore.Close()
		local = sqliteStore
	}

	var remote persist.RemoteStore
	var notesClient *notes.Client
	if cfg.ServerURL != "" {
		remote = persist.NewHTTPRemoteStore(cfg.ServerURL)
		notesClient = notes.NewClient(cfg.ServerURL)
	}

	mode := persist.ModeContinue
	if *fresh {
		mode = persist.ModeFresh
	}

	manager := session.NewSessionManager(session.Config{
		Routine: rtn,
		UserID:  cfg.UserID,
		Mode:    mode,
		Local:   local,
		Remote:  remote,
		Logger:  logger,
	})
	manager.Start(context.Background())

	app := tview.NewApplication()
	view := tui.NewSessionView(logger, app, manager, rtn, notesClient, cfg.UserID, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		manager.Exit(ctx)
	})
	view.Initialize()
	view.SetupKeyboardHandlers()

	// A terminating signal flushes progress before the process dies.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	safego.Go(logger, func() {
		sig := <-sigChan
		logger.Printf("received %v, saving and exiting", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		manager.Exit(ctx)
		view.Stop()
	})

	if err := view.Run(); err != nil {
		logger.Printf("UI error: %v", err)
	}

	manager.Shutdown()
	logger.Println("jamflo exiting")
}

// loadRoutine fetches the raw routine document and normalizes it.
func loadRoutine(ctx context.Context, serverURL, routineID, routineFile string) (routine.Routine, error) {
	var store routine.Store
	id := routineID
	if routineFile != "" {
		store = routine.NewFileStore(routineFile)
	} else {
		store = routine.NewHTTPStore(serverURL)
	}

	raw, err := store.GetRoutineByID(ctx, id)
	if err != nil {
		return routine.Routine{}, err
	}
	return routine.Normalize(raw), nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "jamflo: "+format+"\n", args...)
	os.Exit(1)
}
