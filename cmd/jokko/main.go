package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jokkolabs/jokko/internal/api"
	"github.com/jokkolabs/jokko/internal/flow"
	"github.com/jokkolabs/jokko/internal/genai"
	"github.com/jokkolabs/jokko/internal/intent"
	"github.com/jokkolabs/jokko/internal/messaging"
	"github.com/jokkolabs/jokko/internal/router"
	"github.com/jokkolabs/jokko/internal/store"
	"github.com/jokkolabs/jokko/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Jokko state data
	DefaultStateDir = "/var/lib/jokko"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "jokko.db"
)

func main() {
	// Load environment configuration (logger level depends on JOKKO_DEBUG)
	config := loadEnvironmentConfig()

	// Initialize structured logger
	initializeLogger(config.Debug)

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Build the storage backend
	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Build the completion client
	genaiOpts := buildGenAIOptions(flags, config)
	genaiClient, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Error("Failed to initialize GenAI client", "error", err)
		os.Exit(1)
	}

	// Build the outbound messaging transport
	msgService, err := buildMessagingService(flags, config)
	if err != nil {
		slog.Error("Failed to initialize messaging service", "error", err)
		os.Exit(1)
	}

	// Wire the routing pipeline
	classifier := intent.NewClassifier()
	rt := router.New(st, classifier)
	responder := flow.NewResponder(rt, genaiClient, st)

	apiOpts := buildAPIOptions(flags, config)
	server := api.NewServer(responder, st, msgService, apiOpts...)

	slog.Info("Bootstrapping Jokko with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "provider", config.MessagingProvider)

	// Shut down cleanly on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("Jokko failed to run", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), api.DefaultShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Jokko shutdown error", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("Jokko exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL       string
	StateDir          string
	OpenAIKey         string
	OpenAIModel       string
	FallbackModel     string
	MaxTokens         int64
	APIAddr           string
	VerifyToken       string
	APIToken          string
	MessagingProvider string
	WhatsAppToken     string
	PhoneNumberID     string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	Debug             bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDSN       *string
	openaiKey   *string
	apiAddr     *string
	verifyToken *string
}

// initializeLogger sets up structured logging
func initializeLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
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
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		StateDir:          os.Getenv("JOKKO_STATE_DIR"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       os.Getenv("OPENAI_MODEL"),
		FallbackModel:     os.Getenv("OPENAI_FALLBACK_MODEL"),
		MaxTokens:         util.ParseIntEnv("OPENAI_MAX_TOKENS", genai.DefaultMaxTokens),
		APIAddr:           os.Getenv("API_ADDR"),
		VerifyToken:       os.Getenv("WHATSAPP_VERIFY_TOKEN"),
		APIToken:          os.Getenv("API_TOKEN"),
		MessagingProvider: os.Getenv("MESSAGING_PROVIDER"),
		WhatsAppToken:     os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		PhoneNumberID:     os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:  os.Getenv("TWILIO_FROM_NUMBER"),
		Debug:             util.ParseBoolEnv("JOKKO_DEBUG", false),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No JOKKO_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// Default to Cloud API when no provider is named explicitly
	if config.MessagingProvider == "" {
		config.MessagingProvider = "cloudapi"
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"JOKKO_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"WHATSAPP_VERIFY_TOKEN_SET", config.VerifyToken != "",
		"API_TOKEN_SET", config.APIToken != "",
		"MESSAGING_PROVIDER", config.MessagingProvider)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	dsn := config.DatabaseURL
	if dsn == "" {
		dsn = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", dsn)
	}

	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for Jokko data (overrides $JOKKO_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", dsn, "database DSN for the conversation store (overrides $DATABASE_URL)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		verifyToken: flag.String("verify-token", config.VerifyToken, "webhook verification token (overrides $WHATSAPP_VERIFY_TOKEN)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"verifyTokenSet", *flags.verifyToken != "")

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// buildStore selects and opens the storage backend from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags, config Config) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if config.OpenAIModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(config.OpenAIModel))
	}
	if config.FallbackModel != "" {
		genaiOpts = append(genaiOpts, genai.WithFallbackModel(config.FallbackModel))
	}
	if config.MaxTokens > 0 {
		genaiOpts = append(genaiOpts, genai.WithMaxTokens(config.MaxTokens))
	}
	return genaiOpts
}

// buildMessagingService constructs the outbound WhatsApp transport
func buildMessagingService(flags Flags, config Config) (messaging.Service, error) {
	if config.MessagingProvider == "twilio" {
		slog.Debug("Configuring Twilio messaging transport")
		return messaging.NewTwilioService(
			messaging.WithAccountSID(config.TwilioAccountSID),
			messaging.WithAuthToken(config.TwilioAuthToken),
			messaging.WithFromNumber(config.TwilioFromNumber),
		)
	}
	slog.Debug("Configuring WhatsApp Cloud API transport")
	return messaging.NewCloudAPIService(
		messaging.WithAccessToken(config.WhatsAppToken),
		messaging.WithPhoneNumberID(config.PhoneNumberID),
	)
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags, config Config) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.verifyToken != "" {
		apiOpts = append(apiOpts, api.WithVerifyToken(*flags.verifyToken))
	}
	if config.APIToken != "" {
		apiOpts = append(apiOpts, api.WithAPIToken(config.APIToken))
	}
	return apiOpts
}
