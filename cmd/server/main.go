package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/assistant"
	"github.com/MarkoPoloResearchLab/leadloop/internal/clients"
	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
)

const (
	commandUseName                = "server"
	commandShortDescription       = "Run the lead intake server"
	commandLongDescription        = "Launch the lead intake HTTP API together with the ingestion, reminder and email workers"
	missingConfigurationMessage   = "missing required configuration"
	loggerCreationErrorMessage    = "logger"
	unexpectedArgumentsMessage    = "unexpected command arguments"
	commandInitializationFailure  = "failed to configure command"
	flagNotDefinedMessage         = "flag %s not defined"
	environmentConfigurationError = "failed to apply environment configuration"

	flagNameApplicationAddress = "app-addr"
	flagNameServeMode          = "serve-mode"
	flagNameDatabaseDriver     = "db-driver"
	flagNameDatabaseDSN        = "db-dsn"
	flagNameStoreBackend       = "store-backend"
	flagNameRedisURL           = "redis-url"
	flagNameOperatorAccessCode = "operator-access-code"
	flagNameSessionSecret      = "session-secret"
	flagNameLLMAPIKey          = "llm-api-key"
	flagNameLLMModel           = "llm-model"
	flagNameLLMTimeout         = "llm-timeout"
	flagNameIngestInterval     = "ingest-interval"
	flagNameIngestWindow       = "ingest-window"
	flagNameIdentityConfig     = "identity-config"
	flagNamePublicOrigins      = "public-origins"

	environmentKeyApplicationAddress = "APP_ADDR"
	environmentKeyServeMode          = "SERVE_MODE"
	environmentKeyDatabaseDriver     = "DB_DRIVER"
	environmentKeyDatabaseDSN        = "DB_DSN"
	environmentKeyStoreBackend       = "STORE_BACKEND"
	environmentKeyRedisURL           = "REDIS_URL"
	environmentKeyOperatorAccessCode = "OPERATOR_ACCESS_CODE"
	environmentKeySessionSecret      = "SESSION_SECRET"
	environmentKeyLLMAPIKey          = "LLM_API_KEY"
	environmentKeyLLMModel           = "LLM_MODEL"
	environmentKeyLLMTimeout         = "LLM_TIMEOUT"
	environmentKeyIngestInterval     = "INGEST_INTERVAL"
	environmentKeyIngestWindow       = "INGEST_WINDOW"
	environmentKeyIdentityConfig     = "IDENTITY_CONFIG"
	environmentKeyPublicOrigins      = "PUBLIC_ORIGINS"

	defaultApplicationAddress = ":8080"
	defaultStoreBackend       = storeBackendSQLite
	defaultLLMTimeout         = 20 * time.Second
	defaultIngestInterval     = 30 * time.Second
	defaultPublicOrigins      = corsOriginWildcard
	minimumSessionSecretBytes = 32

	storeBackendSQLite = storage.BackendSQLite
	storeBackendRedis  = storage.BackendRedis

	errorMessageUnsupportedStoreBackend = "unsupported store backend"
	errorMessageShortSessionSecret      = "session secret must be at least 32 bytes"
)

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress string
	ServeMode          ServeMode
	DatabaseDriver     string
	DatabaseDSN        string
	StoreBackend       string
	RedisURL           string
	OperatorAccessCode string
	SessionSecret      string
	LLMAPIKey          string
	LLMModel           string
	LLMTimeout         time.Duration
	IngestInterval     time.Duration
	IngestWindow       time.Duration
	IdentityConfigPath string
	PublicOrigins      []string
}

// DocumentStoreOpener opens the shared document store and returns its closer.
type DocumentStoreOpener func(ctx context.Context, configuration ServerConfig) (storage.DocumentStore, func() error, error)

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	documentStoreOpener DocumentStoreOpener
}

type stringSetting struct {
	environmentKey string
	flagName       string
	defaultValue   string
	usage          string
}

type durationSetting struct {
	environmentKey string
	flagName       string
	defaultValue   time.Duration
	usage          string
}

var stringSettings = []stringSetting{
	{environmentKeyApplicationAddress, flagNameApplicationAddress, defaultApplicationAddress, "address for the HTTP server to listen on"},
	{environmentKeyServeMode, flagNameServeMode, string(ServeModeMonolith), "components to run: monolith, api or worker"},
	{environmentKeyDatabaseDriver, flagNameDatabaseDriver, storage.DriverNameSQLite, "database driver for the sqlite backend"},
	{environmentKeyDatabaseDSN, flagNameDatabaseDSN, "", "database connection string for the sqlite backend"},
	{environmentKeyStoreBackend, flagNameStoreBackend, defaultStoreBackend, "document store backend: sqlite or redis"},
	{environmentKeyRedisURL, flagNameRedisURL, "", "redis URL for the redis backend"},
	{environmentKeyOperatorAccessCode, flagNameOperatorAccessCode, "", "access code required for operator endpoints"},
	{environmentKeySessionSecret, flagNameSessionSecret, "", "secret used to sign operator session cookies"},
	{environmentKeyLLMAPIKey, flagNameLLMAPIKey, "", "Anthropic API key; empty uses the local fallback generator"},
	{environmentKeyLLMModel, flagNameLLMModel, assistant.DefaultModel, "model used for completions"},
	{environmentKeyIdentityConfig, flagNameIdentityConfig, "", "YAML identity constraint file; empty uses the built-in constraint"},
	{environmentKeyPublicOrigins, flagNamePublicOrigins, defaultPublicOrigins, "comma separated origins allowed to submit leads"},
}

var durationSettings = []durationSetting{
	{environmentKeyLLMTimeout, flagNameLLMTimeout, defaultLLMTimeout, "timeout for a single completion call"},
	{environmentKeyIngestInterval, flagNameIngestInterval, defaultIngestInterval, "interval between client ingestion passes"},
	{environmentKeyIngestWindow, flagNameIngestWindow, clients.DefaultIngestWindow, "age limit of lead notifications considered for ingestion"},
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		documentStoreOpener: openDocumentStore,
	}
}

// WithDocumentStoreOpener overrides the document store opener dependency.
func (application *ServerApplication) WithDocumentStoreOpener(opener DocumentStoreOpener) *ServerApplication {
	application.documentStoreOpener = opener
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	commandFlags := command.Flags()
	for _, setting := range stringSettings {
		application.configurationLoader.SetDefault(setting.environmentKey, setting.defaultValue)
		commandFlags.String(setting.flagName, setting.defaultValue, setting.usage)
	}
	for _, setting := range durationSettings {
		application.configurationLoader.SetDefault(setting.environmentKey, setting.defaultValue)
		commandFlags.Duration(setting.flagName, setting.defaultValue, setting.usage)
	}
	application.configurationLoader.AutomaticEnv()

	for _, setting := range stringSettings {
		if bindErr := application.bindFlag(commandFlags, setting.environmentKey, setting.flagName); bindErr != nil {
			return bindErr
		}
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, setting.environmentKey, setting.flagName); environmentErr != nil {
			return environmentErr
		}
	}
	for _, setting := range durationSettings {
		if bindErr := application.bindFlag(commandFlags, setting.environmentKey, setting.flagName); bindErr != nil {
			return bindErr
		}
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, setting.environmentKey, setting.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *ServerApplication) loadConfiguration() (ServerConfig, error) {
	loader := application.configurationLoader
	serveMode, serveModeErr := ParseServeMode(loader.GetString(environmentKeyServeMode))
	if serveModeErr != nil {
		return ServerConfig{}, serveModeErr
	}
	return ServerConfig{
		ApplicationAddress: strings.TrimSpace(loader.GetString(environmentKeyApplicationAddress)),
		ServeMode:          serveMode,
		DatabaseDriver:     strings.TrimSpace(loader.GetString(environmentKeyDatabaseDriver)),
		DatabaseDSN:        strings.TrimSpace(loader.GetString(environmentKeyDatabaseDSN)),
		StoreBackend:       strings.ToLower(strings.TrimSpace(loader.GetString(environmentKeyStoreBackend))),
		RedisURL:           strings.TrimSpace(loader.GetString(environmentKeyRedisURL)),
		OperatorAccessCode: strings.TrimSpace(loader.GetString(environmentKeyOperatorAccessCode)),
		SessionSecret:      loader.GetString(environmentKeySessionSecret),
		LLMAPIKey:          strings.TrimSpace(loader.GetString(environmentKeyLLMAPIKey)),
		LLMModel:           strings.TrimSpace(loader.GetString(environmentKeyLLMModel)),
		LLMTimeout:         loader.GetDuration(environmentKeyLLMTimeout),
		IngestInterval:     loader.GetDuration(environmentKeyIngestInterval),
		IngestWindow:       loader.GetDuration(environmentKeyIngestWindow),
		IdentityConfigPath: strings.TrimSpace(loader.GetString(environmentKeyIdentityConfig)),
		PublicOrigins:      splitOrigins(loader.GetString(environmentKeyPublicOrigins)),
	}, nil
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig, configurationErr := application.loadConfiguration()
	if configurationErr != nil {
		return configurationErr
	}

	if validationErr := ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}

	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	parentContext := command.Context()
	if parentContext == nil {
		parentContext = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentContext, os.Interrupt, syscall.SIGTERM)
	defer stop()

	documents, closeDocuments, openErr := application.documentStoreOpener(ctx, serverConfig)
	if openErr != nil {
		logger.Error("open_document_store", zap.String("backend", serverConfig.StoreBackend), zap.Error(openErr))
		return openErr
	}
	defer func() {
		if closeErr := closeDocuments(); closeErr != nil {
			logger.Warn("close_document_store", zap.Error(closeErr))
		}
	}()

	runtime, runtimeErr := newServerRuntime(ctx, serverConfig, documents, logger)
	if runtimeErr != nil {
		logger.Error("build_runtime", zap.Error(runtimeErr))
		return runtimeErr
	}
	return runtime.Run(ctx)
}

func ensureRequiredConfiguration(configuration ServerConfig) error {
	var missingParameters []string

	switch configuration.StoreBackend {
	case storeBackendSQLite:
		if configuration.DatabaseDSN == "" {
			missingParameters = append(missingParameters, flagNameDatabaseDSN)
		}
	case storeBackendRedis:
		if configuration.RedisURL == "" {
			missingParameters = append(missingParameters, flagNameRedisURL)
		}
	default:
		return fmt.Errorf("%s: %q", errorMessageUnsupportedStoreBackend, configuration.StoreBackend)
	}

	if configuration.ServeMode.ServesAPI() {
		if configuration.OperatorAccessCode == "" {
			missingParameters = append(missingParameters, flagNameOperatorAccessCode)
		}
		if configuration.SessionSecret == "" {
			missingParameters = append(missingParameters, flagNameSessionSecret)
		}
	}

	if len(missingParameters) > 0 {
		return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
	}

	if configuration.ServeMode.ServesAPI() && len(configuration.SessionSecret) < minimumSessionSecretBytes {
		return fmt.Errorf("%s: %s", errorMessageShortSessionSecret, flagNameSessionSecret)
	}

	return nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{corsOriginWildcard}
	}
	return origins
}

func main() {
	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
