package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/dreampastry/qualibot/internal/analytics"
	"github.com/dreampastry/qualibot/internal/api"
	"github.com/dreampastry/qualibot/internal/flow"
	"github.com/dreampastry/qualibot/internal/genai"
	"github.com/dreampastry/qualibot/internal/notify"
	"github.com/dreampastry/qualibot/internal/store"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Qualibot state data
	DefaultStateDir = "/var/lib/qualibot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "qualibot.db"
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

	ctx := context.Background()

	st, err := openStore(ctx, flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	oracle, err := buildOracle(flags)
	if err != nil {
		slog.Error("Failed to initialize scoring oracle", "error", err)
		os.Exit(1)
	}

	dispatcher := buildDispatcher()
	engine := flow.NewEngine(st, oracle, dispatcher, analytics.NewSink(st))

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(engine, st, apiOpts...)

	slog.Info("Bootstrapping Qualibot with configured modules")
	slog.Debug("Final configuration", "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "seed", *flags.seed)
	if err := server.Run(ctx); err != nil {
		slog.Error("Qualibot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Qualibot exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	APIAddr     string
}

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDSN     *string
	openaiKey *string
	apiAddr   *string
	seed      *bool
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
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("QUALIBOT_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("API_ADDR"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No QUALIBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("QUALIBOT_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"QUALIBOT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for Qualibot data (overrides $QUALIBOT_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "database DSN: Postgres connection string or SQLite file path (overrides $DATABASE_URL)"),
		openaiKey: flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		seed:      flag.Bool("seed", false, "load sample formations and slots into the store at startup"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"seed", *flags.seed)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
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

// seeder is implemented by stores that can load the sample catalogue.
type seeder interface {
	SeedSampleData(ctx context.Context) error
}

// openStore selects and opens the storage backend based on the DSN, and seeds
// the sample catalogue when requested.
func openStore(ctx context.Context, flags Flags) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, opening PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
		st, err = store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	} else {
		slog.Debug("Detected SQLite DSN, opening SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
		st, err = store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
	}
	if err != nil {
		return nil, err
	}

	if *flags.seed {
		if s, ok := st.(seeder); ok {
			if err := s.SeedSampleData(ctx); err != nil {
				slog.Error("Failed to seed sample data", "error", err)
				st.Close()
				return nil, err
			}
			slog.Info("Sample formations seeded")
		}
	}
	return st, nil
}

// buildOracle wires the OpenAI client into the scoring oracle.
func buildOracle(flags Flags) (*genai.Oracle, error) {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return nil, err
	}
	return genai.NewOracle(client), nil
}

// buildDispatcher assembles the notification channels from the environment.
// Unconfigured channels are skipped with a warning; the service still runs.
func buildDispatcher() *notify.Dispatcher {
	email, err := notify.NewEmailSender()
	if err != nil {
		slog.Warn("Email channel not configured, staff and client emails disabled", "error", err)
		email = nil
	}
	sms, err := notify.NewSMSSender()
	if err != nil {
		slog.Debug("SMS channel not configured", "error", err)
		sms = nil
	}
	return notify.NewDispatcher(email, sms)
}
