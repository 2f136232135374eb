package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-zwave/internal/api"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-zwave/internal/schedule"
)

// defaultConfigPath is used when neither --config nor GRAYLOGIC_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

// errInvalidModules is returned by check-module when any file fails.
var errInvalidModules = errors.New("one or more module configurations are invalid")

// rootOptions holds global flags for all commands.
type rootOptions struct {
	configPath string
}

// resolveConfigPath picks the --config flag, then GRAYLOGIC_CONFIG, then
// the default path.
func (o *rootOptions) resolveConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// newRootCommand creates the root command.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "graylogic-zwave",
		Short:         "Schedule-driven Z-Wave actuator controller",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml (default $GRAYLOGIC_CONFIG or "+defaultConfigPath+")")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newCheckModuleCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the controller until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts.resolveConfigPath())
		},
	}
}

func newCheckModuleCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-module [file...]",
		Short: "Validate module configuration files",
		Long: `Validate module configuration files without starting the controller.

With no arguments every module listed under scheduler.modules in the
configuration file is checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			files := args
			if len(files) == 0 {
				cfg, err := config.Load(opts.resolveConfigPath())
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				for _, m := range cfg.Scheduler.Modules {
					files = append(files, m.File)
				}
			}
			if len(files) == 0 {
				return errors.New("no module files given and none configured")
			}
			return checkModules(cmd.OutOrStdout(), files)
		},
	}
}

// checkModules validates each file and prints one summary per file.
func checkModules(w io.Writer, files []string) error {
	failed := false
	for _, path := range files {
		cfg, err := schedule.Load(schedule.FileSource{Path: path})
		if err != nil {
			failed = true
			fmt.Fprintf(w, "FAIL %s\n  %v\n", path, err)
			continue
		}
		fmt.Fprintf(w, "OK   %s (%s): %d actuators, normal state %s\n", path, cfg.Name, len(cfg.Actuators), cfg.NormalState)
		for _, r := range cfg.Rules {
			if r.Kind.IsWindow() && r.Unset() {
				fmt.Fprintf(w, "  %-13s unset\n", r.Kind)
				continue
			}
			fmt.Fprintf(w, "  %-13s %s\n", r.Kind, r.Value)
		}
		for _, name := range cfg.Ignored {
			fmt.Fprintf(w, "  ignored parameter %q\n", name)
		}
	}
	if failed {
		return errInvalidModules
	}
	return nil
}

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.resolveConfigPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if ttl == 0 {
				ttl = time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
			}
			token, err := api.IssueToken(cfg.Security.JWT.Secret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "installer", "token subject, logged with each control request")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default security.jwt.access_token_ttl minutes)")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "graylogic-zwave %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
