package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/MarkoPoloResearchLab/leadloop/internal/clients"
	"github.com/MarkoPoloResearchLab/leadloop/internal/features"
	"github.com/MarkoPoloResearchLab/leadloop/internal/identity"
	"github.com/MarkoPoloResearchLab/leadloop/internal/notifications"
	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
)

const (
	commandUseName                = "leadctl"
	commandShortDescription       = "Operate the lead intake stores"
	commandLongDescription        = "Inspect and change feature flags, clients, authorizations and identity incidents in the shared document store"
	commandInitializationFailure  = "failed to configure command"
	flagNotDefinedMessage         = "flag %s not defined"
	environmentConfigurationError = "failed to apply environment configuration"
	loggerCreationErrorMessage    = "logger"

	flagNameStoreBackend   = "store-backend"
	flagNameDatabaseDriver = "db-driver"
	flagNameDatabaseDSN    = "db-dsn"
	flagNameRedisURL       = "redis-url"
	flagNameIdentityConfig = "identity-config"
	flagNameOutput         = "output"

	environmentKeyStoreBackend   = "STORE_BACKEND"
	environmentKeyDatabaseDriver = "DB_DRIVER"
	environmentKeyDatabaseDSN    = "DB_DSN"
	environmentKeyRedisURL       = "REDIS_URL"
	environmentKeyIdentityConfig = "IDENTITY_CONFIG"
	environmentKeyOutput         = "LEADCTL_OUTPUT"
)

// Application wires the leadctl command tree.
type Application struct {
	configurationLoader *viper.Viper
	output              io.Writer
}

// workspace is the set of components one command invocation operates on.
type workspace struct {
	documents storage.DocumentStore
	flags     *features.Store
	log       *notifications.Log
	registry  *clients.Registry
	guard     *identity.Guard
	logger    *zap.Logger
	close     func() error
}

func NewApplication() *Application {
	return &Application{configurationLoader: viper.New(), output: os.Stdout}
}

// Command builds the root command with every subcommand attached.
func (application *Application) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:           commandUseName,
		Short:         commandShortDescription,
		Long:          commandLongDescription,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCommand.SetOut(application.output)

	persistentFlags := rootCommand.PersistentFlags()
	settings := []struct {
		environmentKey string
		flagName       string
		defaultValue   string
		usage          string
	}{
		{environmentKeyStoreBackend, flagNameStoreBackend, storage.BackendSQLite, "document store backend: sqlite or redis"},
		{environmentKeyDatabaseDriver, flagNameDatabaseDriver, storage.DriverNameSQLite, "database driver for the sqlite backend"},
		{environmentKeyDatabaseDSN, flagNameDatabaseDSN, "", "database connection string for the sqlite backend"},
		{environmentKeyRedisURL, flagNameRedisURL, "", "redis URL for the redis backend"},
		{environmentKeyIdentityConfig, flagNameIdentityConfig, "", "YAML identity constraint file"},
		{environmentKeyOutput, flagNameOutput, outputFormatJSON, "output format: json or yaml"},
	}
	for _, setting := range settings {
		application.configurationLoader.SetDefault(setting.environmentKey, setting.defaultValue)
		persistentFlags.String(setting.flagName, setting.defaultValue, setting.usage)
		if bindErr := application.bindFlag(persistentFlags, setting.environmentKey, setting.flagName); bindErr != nil {
			return nil, bindErr
		}
		if environmentErr := application.applyEnvironmentConfiguration(persistentFlags, setting.environmentKey, setting.flagName); environmentErr != nil {
			return nil, environmentErr
		}
	}
	application.configurationLoader.AutomaticEnv()

	rootCommand.AddCommand(
		application.flagsCommand(),
		application.ingestCommand(),
		application.notificationsCommand(),
		application.clientsCommand(),
		application.authorizationsCommand(),
		application.incidentsCommand(),
	)
	return rootCommand, nil
}

func (application *Application) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}
	return application.configurationLoader.BindPFlag(environmentKey, flag)
}

func (application *Application) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}
	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}
	return nil
}

func (application *Application) openWorkspace(ctx context.Context) (*workspace, error) {
	loader := application.configurationLoader
	loggerConfiguration := zap.NewProductionConfig()
	loggerConfiguration.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	logger, loggerErr := loggerConfiguration.Build()
	if loggerErr != nil {
		return nil, fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}

	documents, closeDocuments, openErr := storage.OpenDocumentStore(ctx, storage.BackendConfig{
		Backend: loader.GetString(environmentKeyStoreBackend),
		Database: storage.Config{
			DriverName:     loader.GetString(environmentKeyDatabaseDriver),
			DataSourceName: loader.GetString(environmentKeyDatabaseDSN),
		},
		RedisURL: loader.GetString(environmentKeyRedisURL),
	})
	if openErr != nil {
		return nil, openErr
	}
	constraint, constraintErr := identity.LoadConstraint(strings.TrimSpace(loader.GetString(environmentKeyIdentityConfig)))
	if constraintErr != nil {
		_ = closeDocuments()
		return nil, constraintErr
	}

	log := notifications.NewLog(documents, logger)
	return &workspace{
		documents: documents,
		flags:     features.NewStore(ctx, documents, nil, logger),
		log:       log,
		registry:  clients.NewRegistry(documents, log, nil, logger),
		guard:     identity.NewGuard(constraint, documents, nil, logger),
		logger:    logger,
		close: func() error {
			_ = logger.Sync()
			return closeDocuments()
		},
	}, nil
}

// withWorkspace opens the stores around run.
func (application *Application) withWorkspace(run func(ctx context.Context, command *cobra.Command, space *workspace, arguments []string) error) func(*cobra.Command, []string) error {
	return func(command *cobra.Command, arguments []string) error {
		ctx := command.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		space, openErr := application.openWorkspace(ctx)
		if openErr != nil {
			return openErr
		}
		defer func() {
			_ = space.close()
		}()
		return run(ctx, command, space, arguments)
	}
}

func main() {
	application := NewApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}
	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
