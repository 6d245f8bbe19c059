package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/dimiro1/banner"
	"github.com/joho/godotenv"

	"github.com/BTreeMap/LeadPipe/internal/api"
	"github.com/BTreeMap/LeadPipe/internal/backend"
	"github.com/BTreeMap/LeadPipe/internal/genai"
	"github.com/BTreeMap/LeadPipe/internal/lockfile"
	"github.com/BTreeMap/LeadPipe/internal/meta"
	"github.com/BTreeMap/LeadPipe/internal/rag"
	"github.com/BTreeMap/LeadPipe/internal/session"
	"github.com/BTreeMap/LeadPipe/internal/store"
	"github.com/BTreeMap/LeadPipe/internal/twiliowhatsapp"
	"github.com/BTreeMap/LeadPipe/internal/util"
	"github.com/BTreeMap/LeadPipe/internal/voice"
	"github.com/BTreeMap/LeadPipe/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for LeadPipe state data
	DefaultStateDir = "/var/lib/leadpipe"
	// DefaultWhatsAppDBFileName is the default whatsmeow device database filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// DefaultAPIBaseURL is the business backend used when API_BASE_URL is unset
	DefaultAPIBaseURL = "http://localhost:5000"
	// DefaultFrontendBaseURL is the dashboard used when FRONTEND_BASE_URL is unset
	DefaultFrontendBaseURL = "http://localhost:3000"
	// DefaultMaxHistoryMessages is how many history messages accompany a RAG question
	DefaultMaxHistoryMessages = 10

	// WhatsAppModeTwilio sends WhatsApp through the Twilio Messaging API.
	WhatsAppModeTwilio = "twilio"
	// WhatsAppModeWhatsmeow links a WhatsApp number directly.
	WhatsAppModeWhatsmeow = "whatsmeow"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	// Initialize structured logger
	initializeLogger()
	printBanner()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping LeadPipe", "version", Version)
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "addr", *flags.addr,
		"whatsapp_mode", *flags.whatsAppMode, "redis_set", *flags.redisURL != "")
	if err := run(ctx, flags); err != nil {
		slog.Error("LeadPipe failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("LeadPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir           string
	Addr               string
	DatabaseDSN        string
	RedisURL           string
	WhatsAppMode       string
	WhatsAppDBDSN      string
	APIBaseURL         string
	FrontendBaseURL    string
	SignSecret         string
	OpenAIKey          string
	GPTModel           string
	EmbeddingModel     string
	ChromaURL          string
	RAGK               int
	MaxHistoryMessages int
	SessionTimeout     int
	SweepSchedule      string
	InvalidateSecret   string
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioFrom         string
	ValidateSignature  bool
	PublicBaseURL      string
	MetaVerifyToken    string
	MetaAppSecret      string
	MetaGraphVersion   string
	DeepgramKey        string
	STTModel           string
	TTSModel           string
	RoutesFile         string
	OTelEndpoint       string
	LogLevel           string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput         *string
	numeric          *bool
	stateDir         *string
	addr             *string
	dbDSN            *string
	redisURL         *string
	whatsAppMode     *string
	whatsAppDSN      *string
	apiBaseURL       *string
	frontendURL      *string
	signSecret       *string
	openaiKey        *string
	gptModel         *string
	embeddingModel   *string
	chromaURL        *string
	ragK             *int
	maxHistory       *int
	sessionTimeout   *int
	sweepSchedule    *string
	invalidateSecret *string
	twilioSID        *string
	twilioToken      *string
	twilioFrom       *string
	validateSig      *bool
	publicURL        *string
	metaVerifyToken  *string
	metaAppSecret    *string
	metaGraphVersion *string
	deepgramKey      *string
	sttModel         *string
	ttsModel         *string
	routesFile       *string
	otelEndpoint     *string
	debug            *bool
}

// initializeLogger sets up structured logging; LOG_LEVEL selects the level (default info).
func initializeLogger() {
	level := slog.LevelInfo
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			level = slog.LevelInfo
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func printBanner() {
	tpl := "{{ .Title \"LeadPipe\" \"\" 0 }}\nVersion: " + Version + "\n"
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(tpl))
}

// envInt reads an integer variable, returning def when it is unset or malformed.
func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("envInt: invalid integer value, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:           os.Getenv("LEADPIPE_STATE_DIR"),
		Addr:               envOr("LEADPIPE_ADDR", api.DefaultAddr),
		DatabaseDSN:        os.Getenv("DATABASE_DSN"),
		RedisURL:           os.Getenv("REDIS_URL"),
		WhatsAppMode:       strings.ToLower(envOr("WHATSAPP_MODE", WhatsAppModeTwilio)),
		WhatsAppDBDSN:      os.Getenv("WHATSAPP_DB_DSN"),
		APIBaseURL:         envOr("API_BASE_URL", DefaultAPIBaseURL),
		FrontendBaseURL:    envOr("FRONTEND_BASE_URL", DefaultFrontendBaseURL),
		SignSecret:         os.Getenv("TP_SIGN_SECRET"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		GPTModel:           envOr("GPT_MODEL", genai.DefaultModel),
		EmbeddingModel:     envOr("EMBEDDING_MODEL", genai.DefaultEmbeddingModel),
		ChromaURL:          os.Getenv("CHROMA_URL"),
		RAGK:               envInt("RAG_K", rag.DefaultK),
		MaxHistoryMessages: envInt("MAX_HISTORY_MESSAGES", DefaultMaxHistoryMessages),
		SessionTimeout:     envInt("SESSION_TIMEOUT_SECONDS", int(session.DefaultTimeout.Seconds())),
		SweepSchedule:      envOr("SESSION_SWEEP_INTERVAL", session.DefaultSweepSchedule),
		InvalidateSecret:   os.Getenv("INVALIDATE_SESSIONS_SECRET"),
		TwilioAccountSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:         os.Getenv("TWILIO_WHATSAPP_FROM"),
		ValidateSignature:  util.ParseBoolEnv("TWILIO_VALIDATE_SIGNATURE", false),
		PublicBaseURL:      os.Getenv("PUBLIC_BASE_URL"),
		MetaVerifyToken:    envOr("META_VERIFY_TOKEN", meta.DefaultVerifyToken),
		MetaAppSecret:      os.Getenv("META_APP_SECRET"),
		MetaGraphVersion:   envOr("META_GRAPH_API_VERSION", meta.DefaultGraphVersion),
		DeepgramKey:        os.Getenv("DEEPGRAM_API_KEY"),
		STTModel:           envOr("DEEPGRAM_STT_MODEL", voice.DefaultSTTModel),
		TTSModel:           envOr("DEEPGRAM_TTS_MODEL", voice.DefaultTTSModel),
		RoutesFile:         os.Getenv("CHANNEL_ROUTES_FILE"),
		OTelEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No LEADPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("LEADPIPE_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// whatsmeow keeps its device keys next to the other state by default
	if config.WhatsAppDBDSN == "" {
		config.WhatsAppDBDSN = whatsAppDSNFor(config.StateDir)
	}

	slog.Debug("environment variables loaded",
		"LEADPIPE_STATE_DIR", config.StateDir,
		"LEADPIPE_ADDR", config.Addr,
		"DATABASE_DSN_SET", config.DatabaseDSN != "",
		"REDIS_URL_SET", config.RedisURL != "",
		"WHATSAPP_MODE", config.WhatsAppMode,
		"API_BASE_URL", config.APIBaseURL,
		"TP_SIGN_SECRET_SET", config.SignSecret != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"GPT_MODEL", config.GPTModel,
		"RAG_K", config.RAGK,
		"SESSION_TIMEOUT_SECONDS", config.SessionTimeout,
		"TWILIO_ACCOUNT_SID_SET", config.TwilioAccountSID != "",
		"TWILIO_VALIDATE_SIGNATURE", config.ValidateSignature,
		"META_APP_SECRET_SET", config.MetaAppSecret != "",
		"DEEPGRAM_API_KEY_SET", config.DeepgramKey != "",
		"CHANNEL_ROUTES_FILE", config.RoutesFile,
		"OTEL_EXPORTER_OTLP_ENDPOINT", config.OTelEndpoint)

	return config
}

func whatsAppDSNFor(stateDir string) string {
	return "file:" + filepath.Join(stateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	return parseFlags(flag.CommandLine, os.Args[1:], config)
}

func parseFlags(fs *flag.FlagSet, args []string, config Config) Flags {
	flags := Flags{
		qrOutput:         fs.String("qr-output", "", "path to write the whatsmeow login QR code"),
		numeric:          fs.Bool("numeric-code", false, "print the raw pairing code instead of a QR code"),
		stateDir:         fs.String("state-dir", config.StateDir, "state directory for LeadPipe data (overrides $LEADPIPE_STATE_DIR)"),
		addr:             fs.String("addr", config.Addr, "HTTP listen address (overrides $LEADPIPE_ADDR)"),
		dbDSN:            fs.String("db-dsn", config.DatabaseDSN, "sqlite path or postgres URL; empty keeps sessions in memory (overrides $DATABASE_DSN)"),
		redisURL:         fs.String("redis-url", config.RedisURL, "redis URL for shared sessions (overrides $REDIS_URL)"),
		whatsAppMode:     fs.String("whatsapp-mode", config.WhatsAppMode, "twilio or whatsmeow (overrides $WHATSAPP_MODE)"),
		whatsAppDSN:      fs.String("whatsapp-db-dsn", config.WhatsAppDBDSN, "whatsmeow device database (overrides $WHATSAPP_DB_DSN)"),
		apiBaseURL:       fs.String("api-base-url", config.APIBaseURL, "business backend base URL (overrides $API_BASE_URL)"),
		frontendURL:      fs.String("frontend-base-url", config.FrontendBaseURL, "dashboard base URL (overrides $FRONTEND_BASE_URL)"),
		signSecret:       fs.String("sign-secret", config.SignSecret, "HMAC secret for backend requests (overrides $TP_SIGN_SECRET)"),
		openaiKey:        fs.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		gptModel:         fs.String("gpt-model", config.GPTModel, "chat model (overrides $GPT_MODEL)"),
		embeddingModel:   fs.String("embedding-model", config.EmbeddingModel, "embedding model (overrides $EMBEDDING_MODEL)"),
		chromaURL:        fs.String("chroma-url", config.ChromaURL, "Chroma server for the RAG index (overrides $CHROMA_URL)"),
		ragK:             fs.Int("rag-k", config.RAGK, "documents retrieved per question (overrides $RAG_K)"),
		maxHistory:       fs.Int("max-history", config.MaxHistoryMessages, "history messages sent with a question (overrides $MAX_HISTORY_MESSAGES)"),
		sessionTimeout:   fs.Int("session-timeout", config.SessionTimeout, "idle seconds before a session is swept (overrides $SESSION_TIMEOUT_SECONDS)"),
		sweepSchedule:    fs.String("sweep-schedule", config.SweepSchedule, "cron schedule of the session sweep (overrides $SESSION_SWEEP_INTERVAL)"),
		invalidateSecret: fs.String("invalidate-secret", config.InvalidateSecret, "admin secret for session invalidation (overrides $INVALIDATE_SESSIONS_SECRET)"),
		twilioSID:        fs.String("twilio-account-sid", config.TwilioAccountSID, "Twilio account SID (overrides $TWILIO_ACCOUNT_SID)"),
		twilioToken:      fs.String("twilio-auth-token", config.TwilioAuthToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)"),
		twilioFrom:       fs.String("twilio-from", config.TwilioFrom, "default Twilio sender (overrides $TWILIO_WHATSAPP_FROM)"),
		validateSig:      fs.Bool("validate-signature", config.ValidateSignature, "verify X-Twilio-Signature (overrides $TWILIO_VALIDATE_SIGNATURE)"),
		publicURL:        fs.String("public-url", config.PublicBaseURL, "externally visible base URL (overrides $PUBLIC_BASE_URL)"),
		metaVerifyToken:  fs.String("meta-verify-token", config.MetaVerifyToken, "Meta webhook verify token (overrides $META_VERIFY_TOKEN)"),
		metaAppSecret:    fs.String("meta-app-secret", config.MetaAppSecret, "Meta app secret for webhook signatures (overrides $META_APP_SECRET)"),
		metaGraphVersion: fs.String("meta-graph-version", config.MetaGraphVersion, "Graph API version (overrides $META_GRAPH_API_VERSION)"),
		deepgramKey:      fs.String("deepgram-api-key", config.DeepgramKey, "Deepgram API key; empty disables voice (overrides $DEEPGRAM_API_KEY)"),
		sttModel:         fs.String("stt-model", config.STTModel, "Deepgram listen model (overrides $DEEPGRAM_STT_MODEL)"),
		ttsModel:         fs.String("tts-model", config.TTSModel, "Deepgram speak model (overrides $DEEPGRAM_TTS_MODEL)"),
		routesFile:       fs.String("routes-file", config.RoutesFile, "channel routes YAML (overrides $CHANNEL_ROUTES_FILE)"),
		otelEndpoint:     fs.String("otel-endpoint", config.OTelEndpoint, "OTLP gRPC endpoint; empty disables tracing (overrides $OTEL_EXPORTER_OTLP_ENDPOINT)"),
		debug:            fs.Bool("genai-debug", false, "write every LLM request and response under the state directory"),
	}

	if err := fs.Parse(args); err != nil {
		slog.Warn("parseFlags: failed to parse flags", "error", err)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"addr", *flags.addr,
		"dbDSN_set", *flags.dbDSN != "",
		"whatsAppMode", *flags.whatsAppMode,
		"openaiKeySet", *flags.openaiKey != "",
		"ragK", *flags.ragK,
		"routesFile", *flags.routesFile)

	// Update the whatsmeow DSN if it was derived from the environment's state directory
	if *flags.whatsAppDSN == whatsAppDSNFor(config.StateDir) && *flags.stateDir != config.StateDir {
		*flags.whatsAppDSN = whatsAppDSNFor(*flags.stateDir)
		slog.Debug("Updated whatsAppDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	dirs := []string{*flags.stateDir}
	if dsn := *flags.dbDSN; dsn != "" && store.DetectDSNType(dsn) == store.DSNTypeSQLite {
		dirs = append(dirs, filepath.Dir(sqlitePath(dsn)))
	}
	for _, dir := range dirs {
		slog.Debug("Creating state directory", "dir", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "dir", dir)
			return err
		}
	}
	return nil
}

// sqlitePath strips the file: scheme and query of a sqlite DSN.
func sqlitePath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(p, "?"); i >= 0 {
		p = p[:i]
	}
	return p
}

// buildWhatsAppOptions constructs whatsmeow configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.whatsAppDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.whatsAppDSN))
	}
	return waOpts
}

// buildTwilioOptions constructs Twilio client options
func buildTwilioOptions(flags Flags) []twiliowhatsapp.Option {
	var opts []twiliowhatsapp.Option
	if *flags.twilioSID != "" {
		opts = append(opts, twiliowhatsapp.WithAccountSID(*flags.twilioSID))
	}
	if *flags.twilioToken != "" {
		opts = append(opts, twiliowhatsapp.WithAuthToken(*flags.twilioToken))
	}
	if *flags.twilioFrom != "" {
		opts = append(opts, twiliowhatsapp.WithFrom(*flags.twilioFrom))
	}
	return opts
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		slog.Debug("Database DSN configured", "dsn_type", store.DetectDSNType(*flags.dbDSN))
		storeOpts = append(storeOpts, store.WithDSN(*flags.dbDSN))
	} else {
		slog.Debug("No database DSN provided, will use in-memory sessions")
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	genaiOpts := []genai.Option{
		genai.WithModel(*flags.gptModel),
		genai.WithEmbeddingModel(*flags.embeddingModel),
	}
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.debug {
		genaiOpts = append(genaiOpts, genai.WithDebugMode(true), genai.WithStateDir(*flags.stateDir))
	}
	return genaiOpts
}

// buildRAGOptions constructs retrieval options; the embedder is added by the caller.
func buildRAGOptions(flags Flags) []rag.Option {
	ragOpts := []rag.Option{
		rag.WithK(*flags.ragK),
		rag.WithHistoryTurns(*flags.maxHistory),
	}
	if *flags.chromaURL != "" {
		ragOpts = append(ragOpts, rag.WithChromaURL(*flags.chromaURL))
	}
	return ragOpts
}

// buildBackendOptions constructs business backend client options
func buildBackendOptions(flags Flags) []backend.Option {
	opts := []backend.Option{
		backend.WithBaseURL(*flags.apiBaseURL),
		backend.WithFrontendURL(*flags.frontendURL),
	}
	if *flags.signSecret != "" {
		opts = append(opts, backend.WithSecret(*flags.signSecret))
	}
	return opts
}

// buildMetaOptions constructs Graph API client options
func buildMetaOptions(flags Flags) []meta.Option {
	return []meta.Option{meta.WithVersion(*flags.metaGraphVersion)}
}

// buildVoiceOptions constructs voice handler options
func buildVoiceOptions(flags Flags, validator *twiliowhatsapp.Validator) []voice.Option {
	var opts []voice.Option
	if *flags.publicURL != "" {
		opts = append(opts, voice.WithPublicURL(*flags.publicURL))
	}
	if validator != nil {
		opts = append(opts, voice.WithValidator(validator))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags, channels api.Channels) []api.Option {
	apiOpts := []api.Option{api.WithChannels(channels)}
	if *flags.addr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.addr))
	}
	if *flags.invalidateSecret != "" {
		apiOpts = append(apiOpts, api.WithInvalidateSecret(*flags.invalidateSecret))
	}
	return apiOpts
}

var errUnknownWhatsAppMode = errors.New("unknown WhatsApp mode")
