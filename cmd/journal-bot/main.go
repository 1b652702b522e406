package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mosesmc52/journal-bot/internal/api"
	"github.com/mosesmc52/journal-bot/internal/archive"
	"github.com/mosesmc52/journal-bot/internal/genai"
	"github.com/mosesmc52/journal-bot/internal/giphy"
	"github.com/mosesmc52/journal-bot/internal/journal"
	"github.com/mosesmc52/journal-bot/internal/lockfile"
	"github.com/mosesmc52/journal-bot/internal/messaging"
	"github.com/mosesmc52/journal-bot/internal/reminder"
	"github.com/mosesmc52/journal-bot/internal/scheduler"
	"github.com/mosesmc52/journal-bot/internal/store"
	"github.com/mosesmc52/journal-bot/internal/twiliosms"
	"github.com/mosesmc52/journal-bot/internal/util"
	"github.com/mosesmc52/journal-bot/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for journal-bot state data
	DefaultStateDir = "/var/lib/journal-bot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "journal-bot.db"
	// DefaultBackend is the messaging transport used when none is configured
	DefaultBackend = "twilio"
	// ShutdownTimeout bounds graceful HTTP server shutdown
	ShutdownTimeout = 10 * time.Second
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping journal-bot with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "backend", *flags.backend)
	if err := run(config, flags); err != nil {
		slog.Error("journal-bot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("journal-bot exited successfully")
}

// Config holds environment configuration
type Config struct {
	Backend          string
	StateDir         string
	DatabaseDSN      string
	Timezone         string
	APIAddr          string
	OpenAIKey        string
	GiphyKey         string
	GoogleCreds      string
	DriveFolderID    string
	SessionID        string
	BotName          string
	UserName         string
	RemindersEnabled bool
}

// Flags holds command line flag values
type Flags struct {
	qrOutput  *string
	numeric   *bool
	backend   *string
	stateDir  *string
	dbDSN     *string
	timezone  *string
	openaiKey *string
	apiAddr   *string
	session   *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		Backend:          os.Getenv("MESSAGING_BACKEND"),
		StateDir:         os.Getenv("JOURNAL_BOT_STATE_DIR"),
		DatabaseDSN:      os.Getenv("DATABASE_URL"),
		Timezone:         os.Getenv("TIMEZONE"),
		APIAddr:          os.Getenv("API_ADDR"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		GiphyKey:         os.Getenv("GIPHY_API_KEY"),
		GoogleCreds:      os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
		DriveFolderID:    os.Getenv("GOOGLE_DRIVE_PARENT_FOLDER_ID"),
		SessionID:        os.Getenv("TO_PHONE"),
		BotName:          os.Getenv("BOT_NAME"),
		UserName:         os.Getenv("USER_NAME"),
		RemindersEnabled: util.ParseBoolEnv("REMINDERS_ENABLED", true),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No JOURNAL_BOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("JOURNAL_BOT_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	if config.Backend == "" {
		config.Backend = DefaultBackend
		slog.Debug("No MESSAGING_BACKEND set, using default", "backend", config.Backend)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}

	slog.Debug("environment variables loaded",
		"MESSAGING_BACKEND", config.Backend,
		"DATABASE_URL_SET", config.DatabaseDSN != "",
		"JOURNAL_BOT_STATE_DIR", config.StateDir,
		"TIMEZONE", config.Timezone,
		"API_ADDR", config.APIAddr,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"GIPHY_API_KEY_SET", config.GiphyKey != "",
		"GOOGLE_SERVICE_ACCOUNT_FILE_SET", config.GoogleCreds != "",
		"TO_PHONE_SET", config.SessionID != "",
		"REMINDERS_ENABLED", config.RemindersEnabled)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:  flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:   flag.Bool("numeric-code", false, "use numeric WhatsApp login code instead of QR code"),
		backend:   flag.String("backend", config.Backend, "messaging backend, twilio or whatsapp (overrides $MESSAGING_BACKEND)"),
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for journal-bot data (overrides $JOURNAL_BOT_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseDSN, "database DSN for the journal store (overrides $DATABASE_URL)"),
		timezone:  flag.String("timezone", config.Timezone, "IANA timezone for greetings and reminders (overrides $TIMEZONE)"),
		openaiKey: flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		session:   flag.String("session", config.SessionID, "phone number of the journal owner (overrides $TO_PHONE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"backend", *flags.backend,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"timezone", *flags.timezone,
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"sessionSet", *flags.session != "")

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseDSN && config.DatabaseDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	// Ensure state directory exists if we're using a file-based DSN
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
		slog.Debug("State directory created successfully", "state_dir", stateDir)
	}
	return nil
}

// run wires every module together and blocks until shutdown.
func run(config Config, flags Flags) error {
	// Only one instance may own a state directory at a time.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	loc := journal.LoadLocation(*flags.timezone)

	engine := journal.NewEngine(st, buildEngineOptions(config, flags, st, loc)...)

	sched := scheduler.New()
	defer sched.Stop()

	msgService, twilioSvc, err := buildMessagingService(config, flags)
	if err != nil {
		return err
	}

	reminders := reminder.NewService(sched, st, engine, msgService, buildReminderOptions(flags)...)
	if err := reminders.Restore(ctx); err != nil {
		slog.Warn("Failed to restore persisted reminders", "error", err)
	}
	if config.RemindersEnabled && *flags.session != "" {
		if err := reminders.StartBuiltinJobs(*flags.session); err != nil {
			return err
		}
	} else {
		slog.Info("Built-in reminder jobs disabled", "reminders_enabled", config.RemindersEnabled, "session_set", *flags.session != "")
	}

	if err := msgService.Start(ctx); err != nil {
		return err
	}
	defer msgService.Stop()

	dispatcher := messaging.NewDispatcher(msgService, engine)
	dispatcher.Start(ctx)

	deps := api.Deps{
		Store:     st,
		Reminders: reminders,
		Scheduler: sched,
	}
	if twilioSvc != nil {
		deps.Webhook = twilioSvc.WebhookHandler
	}
	server := api.NewServer(deps, buildAPIOptions(flags)...)
	if err := server.Start(); err != nil {
		return err
	}

	// Block until an interrupt arrives, then unwind.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("Shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
	}
	cancel()
	dispatcher.Wait()
	return nil
}

// buildStore opens the journal store matching the configured DSN.
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildEngineOptions constructs conversation engine options from the optional
// external services. A missing key disables the matching capability rather
// than failing startup.
func buildEngineOptions(config Config, flags Flags, st store.Store, loc *time.Location) []journal.EngineOption {
	engineOpts := []journal.EngineOption{journal.WithLocation(loc)}
	if config.BotName != "" {
		engineOpts = append(engineOpts, journal.WithBotName(config.BotName))
	}
	if config.UserName != "" {
		engineOpts = append(engineOpts, journal.WithUserName(config.UserName))
	}

	if *flags.openaiKey != "" {
		completer, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
		if err != nil {
			slog.Warn("GenAI client unavailable, question answering disabled", "error", err)
		} else {
			engineOpts = append(engineOpts, journal.WithCompleter(completer))
		}
	} else {
		slog.Info("No OpenAI API key configured, question answering disabled")
	}

	if config.GiphyKey != "" {
		gifs, err := giphy.NewClient(giphy.WithAPIKey(config.GiphyKey))
		if err != nil {
			slog.Warn("Giphy client unavailable, gratitude GIFs disabled", "error", err)
		} else {
			engineOpts = append(engineOpts, journal.WithGIFSearcher(gifs))
		}
	} else {
		slog.Info("No Giphy API key configured, gratitude GIFs disabled")
	}

	if config.GoogleCreds != "" {
		driveClient, err := archive.NewDriveClient(context.Background(), config.GoogleCreds)
		if err != nil {
			slog.Warn("Google Drive client unavailable, archiving disabled", "error", err)
		} else {
			archiverOpts := []archive.ArchiverOption{archive.WithLocation(loc)}
			if config.DriveFolderID != "" {
				archiverOpts = append(archiverOpts, archive.WithParentFolder(config.DriveFolderID))
			}
			engineOpts = append(engineOpts, journal.WithArchiver(archive.NewArchiver(driveClient, st, archiverOpts...)))
		}
	} else {
		slog.Info("No Google service account configured, archiving disabled")
	}

	return engineOpts
}

// buildMessagingService constructs the configured transport. The second
// return value is non-nil only for the Twilio backend, which exposes an
// inbound webhook handler.
func buildMessagingService(config Config, flags Flags) (messaging.Service, *messaging.TwilioService, error) {
	switch *flags.backend {
	case "twilio":
		client, err := twiliosms.NewClient()
		if err != nil {
			return nil, nil, err
		}
		svc := messaging.NewTwilioService(client)
		return svc, svc, nil
	case "whatsapp":
		waOpts := buildWhatsAppOptions(config, flags)
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewWhatsAppService(client), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown messaging backend %q (expected twilio or whatsapp)", *flags.backend)
	}
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(config Config, flags Flags) []whatsapp.Option {
	waOpts := []whatsapp.Option{
		whatsapp.WithDBDSN(filepath.Join(*flags.stateDir, "whatsmeow.db")),
	}
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	return waOpts
}

// buildReminderOptions constructs reminder service options
func buildReminderOptions(flags Flags) []reminder.Option {
	var reminderOpts []reminder.Option
	if *flags.timezone != "" {
		reminderOpts = append(reminderOpts, reminder.WithTimezone(*flags.timezone))
	}
	return reminderOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
