// Package app provides the commands of the fetch-tool-versions binary.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vellankikoti/tool-versions/internal/config"
	"github.com/vellankikoti/tool-versions/internal/logging"
)

// NewRootCmd creates the root command. Running it without a subcommand
// performs one fetch run.
func NewRootCmd() *cobra.Command {
	opts := &fetchOptions{}

	rootCmd := &cobra.Command{
		Use:               "fetch-tool-versions",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Short:             "Fetch the latest release of every tracked tool",
		Long: `fetch-tool-versions asks each tool's upstream for its latest release and
writes the results to a JSON document read by the learning platform site.

Tools that fail are reported and either keep their previous entry or are
dropped (onFailure). The command fails only when the configuration is invalid
or the document cannot be written.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogger(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, opts)
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration file (YAML format)")
	rootCmd.Flags().StringVar(&opts.output, "output", "", "Path of the version document (overrides configuration)")
	rootCmd.Flags().BoolVar(&opts.summary, "summary", false, "Print a per-tool summary table to stdout")

	rootCmd.AddCommand(newSourcesCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs cmd and reports a returned error on its error stream. The
// root command silences cobra's own reporting, so this is the only place a
// failed run is explained. It returns the process exit code.
func Execute(ctx context.Context, cmd *cobra.Command) int {
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

// setupLogger installs the logger into the command context. The level comes
// from TOOL_VERSIONS_LOG_LEVEL unless --debug is given.
func setupLogger(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	if err := v.BindPFlag("debug", cmd.Flags().Lookup("debug")); err != nil {
		return fmt.Errorf("failed to bind debug flag: %w", err)
	}

	level, development := resolveLogging(v)

	logger, err := logging.New(logging.WithLevel(level), logging.WithDevelopment(development))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid %s_LOG_LEVEL, using info: %v\n", config.EnvPrefix, err)
		logger, err = logging.New(logging.WithDevelopment(development))
		if err != nil {
			return err
		}
	}

	cmd.SetContext(logging.IntoContext(cmd.Context(), logger))
	return nil
}

// resolveLogging picks the level and encoder. --debug selects the development
// console encoder at debug level and wins over log_level.
func resolveLogging(v *viper.Viper) (level string, development bool) {
	if v.GetBool("debug") {
		return "debug", true
	}
	return v.GetString("log_level"), false
}

// loadConfig reads the configuration file, if any, and the environment
func loadConfig(opts *fetchOptions) (*config.Config, error) {
	loadOpts := []config.Option{config.WithViper(config.NewEnvViper())}
	if opts.configPath != "" {
		loadOpts = append(loadOpts, config.WithConfigPath(opts.configPath))
	}

	cfg, err := config.LoadConfig(loadOpts...)
	if err != nil {
		return nil, err
	}
	if opts.output != "" {
		cfg.Output = opts.output
	}
	return cfg, nil
}
