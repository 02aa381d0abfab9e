package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
	"github.com/MarkoPoloResearchLab/leadloop/internal/notifications"
)

const (
	errorMessageUnknownFlag          = "unknown feature flag"
	errorMessageConfirmationRequired = "reset requires --confirm"

	flagNameConfirm      = "confirm"
	flagNameType         = "type"
	flagNameUnprocessed  = "unprocessed"
	flagNameQuery        = "q"
	flagNameCategory     = "category"
	flagNameHighPriority = "high-priority"
	flagNamePending      = "pending"
)

var (
	errUnknownFlag          = errors.New(errorMessageUnknownFlag)
	errConfirmationRequired = errors.New(errorMessageConfirmationRequired)
)

type flagMutation struct {
	Flag    model.FlagName       `json:"flag"`
	Applied bool                 `json:"applied"`
	Flags   model.FeatureFlagSet `json:"configuration"`
}

func (application *Application) flagsCommand() *cobra.Command {
	flagsCommand := &cobra.Command{Use: "flags", Short: "Inspect and change feature flags"}

	statusCommand := &cobra.Command{
		Use:   "status",
		Short: "Print the feature flag document",
		Args:  cobra.NoArgs,
		RunE: application.withWorkspace(func(ctx context.Context, command *cobra.Command, space *workspace, arguments []string) error {
			return application.render(command.OutOrStdout(), space.flags.Status())
		}),
	}

	mutation := func(use string, short string, mutate func(space *workspace) func(context.Context, model.FlagName) bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " NAME",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: application.withWorkspace(func(ctx context.Context, command *cobra.Command, space *workspace, arguments []string) error {
				name := model.FlagName(strings.TrimSpace(arguments[0]))
				if !model.IsKnownFlag(name) {
					return fmt.Errorf("%w: %s", errUnknownFlag, name)
				}
				applied := mutate(space)(ctx, name)
				return application.render(command.OutOrStdout(), flagMutation{Flag: name, Applied: applied, Flags: space.flags.Status()})
			}),
		}
	}

	emergencyCommand := &cobra.Command{
		Use:   "emergency",
		Short: "Keep only the essential flags enabled",
		Args:  cobra.NoArgs,
		RunE: application.withWorkspace(func(ctx context.Context, command *cobra.Command, space *workspace, arguments []string) error {
			return application.render(command.OutOrStdout(), space.flags.EmergencyMode(ctx))
		}),
	}

	resetCommand := &cobra.Command{
		Use:   "reset",
		Short: "Restore the default flag values",
		Args:  cobra.NoArgs,
		RunE: application.withWorkspace(func(ctx context.Context, command *cobra.Command, space *workspace, arguments []string) error {
			confirmed, _ := command.Flags().GetBool(flagNameConfirm)
			if !space.flags.ResetToDefault(ctx, confirmed) {
				return errConfirmationRequired
			}
			return application.render(command.OutOrStdout(), space.flags.Status())
		}),
	}
	resetCommand.Flags().Bool(flagNameConfirm, false, "confirm the reset")

	flagsCommand.AddCommand(
		statusCommand,
		mutation("toggle", "Invert a flag", func(space *workspace) func(context.Context, model.FlagName) bool { return space.flags.Toggle }),
		mutation("enable", "Enable a flag", func(space *workspace) func(context.Context, model.FlagName) bool { return space.flags.Enable }),
		mutation("disable", "Disable a flag", func(space *workspace) func(context.Context, model.FlagName) bool { return space.flags.Disable }),
		emergencyCommand,
		resetCommand,
	)
	return flagsCommand
}

func (application *Application) ingestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Turn recent lead submissions into clients",
		Args:  cobra.NoArgs,
		RunE: application.withWorkspace(func(ctx context.Context, command *cobra.Command, space *workspace, arguments []string) error {
			report, ingestErr := space.registry.ScanAndIngest(ctx)
			if ingestErr != nil {
				return ingestErr
			}
			return application.render(command.OutOrStdout(), report)
		}),
	}
}

func (application *Application) notificationsCommand() *cobra.Command {
	notificationsCommand := &cobra.Command{
		Use:   "notifications",
		Short: "List the notification log",
		Args:  cobra.NoArgs,
		RunE: application.withWorkspace(func(ctx context.Context, command *cobra.Command, space *workspace, arguments []string) error {
			types, _ := command.Flags().GetStringSlice(flagNameType)
			unprocessed, _ := command.Flags().GetBool(flagNameUnprocessed)
			filter := notifications.Filter{Types: types}
			if unprocessed {
				processed := false
				filter.Processed = &processed
			}
			return application.render(command.OutOrStdout(), space.log.List(ctx, filter))
		}),
	}
	notificationsCommand.Flags().StringSlice(flagNameType, nil, "notification types to include")
	notificationsCommand.Flags().Bool(flagNameUnprocessed, false, "only entries not yet processed")
	return notificationsCommand
}

func (application *Application) clientsCommand() *cobra.Command {
	clientsCommand := &cobra.Command{Use: "clients", Short: "Browse the client registry"}

	listCommand := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		Args:  cobra.NoArgs,
		RunE: application.withWorkspace(func(ctx context.Context, command *cobra.Command, space *workspace, arguments []string) error {
			highPriority, _ := command.Flags().GetBool(flagNameHighPriority)
			category, _ := command.Flags().GetString(flagNameCategory)
			query, _ := command.Flags().GetString(flagNameQuery)
			var records []model.ClientRecord
			switch {
			case highPriority:
				records = space.registry.HighPriority(ctx)
			case strings.TrimSpace(category) != "":
				records = space.registry.ByCategory(ctx, model.ClientCategory(strings.ToLower(strings.TrimSpace(category))))
			default:
				records = space.registry.Search(ctx, query)
			}
			return application.render(command.OutOrStdout(), records)
		}),
	}
	listCommand.Flags().String(flagNameQuery, "", "search name, address, email and city")
	listCommand.Flags().String(flagNameCategory, "", "vendeur, acheteur, evaluation or information")
	listCommand.Flags().Bool(flagNameHighPriority, false, "only clients at priority 4 or above")

	statsCommand := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the registry",
		Args:  cobra.NoArgs,
		RunE: application.withWorkspace(func(ctx context.Context, command *cobra.Command, space *workspace, arguments []string) error {
			return application.render(command.OutOrStdout(), space.registry.Stats(ctx))
		}),
	}

	statusCommand := &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Change the commercial status of a client",
		Args:  cobra.ExactArgs(2),
		RunE: application.withWorkspace(func(ctx context.Context, command *cobra.Command, space *workspace, arguments []string) error {
			status, parseErr := model.ParseClientStatus(arguments[1])
			if parseErr != nil {
				return parseErr
			}
			updated, updateErr := space.registry.UpdateStatus(ctx, arguments[0], status)
			if updateErr != nil {
				return updateErr
			}
			return application.render(command.OutOrStdout(), updated)
		}),
	}

	clientsCommand.AddCommand(listCommand, statsCommand, statusCommand)
	return clientsCommand
}

func (application *Application) authorizationsCommand() *cobra.Command {
	authorizationsCommand := &cobra.Command{Use: "authorizations", Short: "Review listing authorization requests"}

	listCommand := &cobra.Command{
		Use:   "list",
		Short: "List authorization requests",
		Args:  cobra.NoArgs,
		RunE: application.withWorkspace(func(ctx context.Context, command *cobra.Command, space *workspace, arguments []string) error {
			pendingOnly, _ := command.Flags().GetBool(flagNamePending)
			if pendingOnly {
				return application.render(command.OutOrStdout(), space.registry.PendingAuthorizations(ctx))
			}
			return application.render(command.OutOrStdout(), space.registry.Authorizations(ctx))
		}),
	}
	listCommand.Flags().Bool(flagNamePending, false, "only requests awaiting a decision")

	resolveCommand := &cobra.Command{
		Use:   "resolve ID DECISION",
		Short: "Record autoriser, reporter or refuser for a request",
		Args:  cobra.ExactArgs(2),
		RunE: application.withWorkspace(func(ctx context.Context, command *cobra.Command, space *workspace, arguments []string) error {
			resolved, resolveErr := space.registry.ResolveAuthorization(ctx, arguments[0], model.AuthorizationDecision(arguments[1]))
			if resolveErr != nil {
				return resolveErr
			}
			return application.render(command.OutOrStdout(), resolved)
		}),
	}

	wakeCommand := &cobra.Command{
		Use:   "wake",
		Short: "Reopen deferred requests whose reminder is due",
		Args:  cobra.NoArgs,
		RunE: application.withWorkspace(func(ctx context.Context, command *cobra.Command, space *workspace, arguments []string) error {
			return application.render(command.OutOrStdout(), space.registry.WakeDeferred(ctx, time.Now().UTC()))
		}),
	}

	authorizationsCommand.AddCommand(listCommand, resolveCommand, wakeCommand)
	return authorizationsCommand
}

func (application *Application) incidentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "incidents",
		Short: "Print the identity guard status and recorded incidents",
		Args:  cobra.NoArgs,
		RunE: application.withWorkspace(func(ctx context.Context, command *cobra.Command, space *workspace, arguments []string) error {
			return application.render(command.OutOrStdout(), space.guard.Status(ctx))
		}),
	}
}
