package cli

import (
	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand returns the pipecache command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "pipecache",
		Short:         "Record, inspect and replay pipeline warmup caches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logLevel == "" {
				return nil
			}
			return core.SetLogLevel(opts.logLevel)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "pipecache.toml", "Location of the configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "", "Overrides the configured log level")

	cmd.AddCommand(
		newRecordCommand(opts),
		newInspectCommand(),
		newWarmupCommand(opts),
	)
	return cmd
}

// loadConfig reads the configuration and applies the command line overrides.
func (o *rootOptions) loadConfig() (*core.Config, error) {
	cfg, err := core.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}
