package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gymbro/gymbot/internal/api"
	"github.com/gymbro/gymbot/internal/flow"
	"github.com/gymbro/gymbot/internal/genai"
	"github.com/gymbro/gymbot/internal/lockfile"
	"github.com/gymbro/gymbot/internal/messaging"
	"github.com/gymbro/gymbot/internal/store"
	"github.com/gymbro/gymbot/internal/twiliowhatsapp"
	"github.com/gymbro/gymbot/internal/util"
	"github.com/gymbro/gymbot/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for GymBot state data
	DefaultStateDir = "/var/lib/gymbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "gymbot.db"
	// BackendWhatsmeow runs the dialog over a direct Whatsmeow connection
	BackendWhatsmeow = "whatsmeow"
	// BackendTwilio runs the dialog over the Twilio WhatsApp API
	BackendTwilio = "twilio"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// One GymBot instance per state directory.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	slog.Info("Bootstrapping GymBot", "backend", *flags.backend, "state_dir", *flags.stateDir)
	if err := run(flags); err != nil {
		slog.Error("GymBot failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("GymBot exited successfully")
}

// Config holds environment configuration
type Config struct {
	Backend     string
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	APIAddr     string
	VerifyToken string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput    *string
	numeric     *bool
	backend     *string
	stateDir    *string
	dbDSN       *string
	openaiKey   *string
	apiAddr     *string
	verifyToken *string
}

// initializeLogger sets up structured logging. GYMBOT_DEBUG=true lowers the
// level to debug.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("GYMBOT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
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
		Backend:     os.Getenv("GYMBOT_BACKEND"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("GYMBOT_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("API_ADDR"),
		VerifyToken: os.Getenv("WEBHOOK_VERIFY_TOKEN"),
	}

	if config.Backend == "" {
		config.Backend = BackendWhatsmeow
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No GYMBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	// Without a database URL, fall back to SQLite in the state directory.
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"GYMBOT_BACKEND", config.Backend,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"GYMBOT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"WEBHOOK_VERIFY_TOKEN_SET", config.VerifyToken != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:    flag.String("qr-output", "", "path to write login QR code"),
		numeric:     flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		backend:     flag.String("backend", config.Backend, "messaging backend: whatsmeow or twilio (overrides $GYMBOT_BACKEND)"),
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for GymBot data (overrides $GYMBOT_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN for the store and WhatsApp session (overrides $DATABASE_URL)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		verifyToken: flag.String("verify-token", config.VerifyToken, "webhook verification token (overrides $WEBHOOK_VERIFY_TOKEN)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"backend", *flags.backend,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if err := os.MkdirAll(*flags.stateDir, 0755); err != nil {
		return err
	}
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		dbDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating directory for file-based database", "db_dir", dbDir)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// buildStore opens the store backend matching the configured DSN.
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildMessagingService creates the messaging backend selected by flags.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	if strings.EqualFold(*flags.backend, BackendTwilio) {
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(client), nil
	}

	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.dbDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.dbDSN))
	}
	client, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return nil, err
	}
	return messaging.NewWhatsAppService(client), nil
}

// buildAnswerer creates the GenAI client when an API key is configured.
func buildAnswerer(flags Flags) (flow.Answerer, error) {
	if *flags.openaiKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
		slog.Warn("No OpenAI API key configured, AI questions will be answered with a fallback message")
		return nil, nil
	}
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genai.NewClient(genaiOpts...)
}

// run wires the modules together and blocks until shutdown.
func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	msgService, err := buildMessagingService(flags)
	if err != nil {
		return err
	}
	defer msgService.Stop()

	answerer, err := buildAnswerer(flags)
	if err != nil {
		return err
	}

	engine := flow.NewEngine(flow.NewStateManager(st), st, msgService, answerer)

	if err := msgService.Start(ctx); err != nil {
		return err
	}

	// Drain inbound messages from the messaging backend into the flow engine.
	go func() {
		for msg := range msgService.Responses() {
			fresh, err := st.CheckAndRecordInbound(msg.MessageID)
			if err != nil {
				slog.Error("Inbound dedup check failed", "error", err, "message_id", msg.MessageID)
			} else if !fresh {
				slog.Debug("Duplicate inbound message skipped", "message_id", msg.MessageID)
				continue
			}
			if err := engine.HandleMessage(ctx, msg); err != nil {
				slog.Error("Message handling failed", "error", err, "from", msg.Sender)
			}
		}
	}()

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.verifyToken != "" {
		apiOpts = append(apiOpts, api.WithVerifyToken(*flags.verifyToken))
	}
	server := api.NewServer(msgService, engine, st, apiOpts...)
	return server.Run(ctx)
}
