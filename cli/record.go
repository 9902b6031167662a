package cli

import (
	"fmt"

	"github.com/spaghettifunk/pipecache/engine"
	"github.com/spaghettifunk/pipecache/engine/renderer/headless"
	"github.com/spaghettifunk/pipecache/testbed"
	"github.com/spf13/cobra"
)

type recordOptions struct {
	shaders  string
	output   string
	compress bool
}

func newRecordCommand(root *rootOptions) *cobra.Command {
	var opts recordOptions

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Build the testbed scene and save its warmup cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd, root, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.shaders, "shaders", "", "Overrides the configured shader directory")
	flags.StringVarP(&opts.output, "output", "o", "", "Overrides the configured warmup cache location")
	flags.BoolVar(&opts.compress, "compress", true, "Compress the saved cache")

	return cmd
}

func runRecord(cmd *cobra.Command, root *rootOptions, opts recordOptions) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if opts.shaders != "" {
		cfg.Shaders.Directory = opts.shaders
	}
	if opts.output != "" {
		cfg.Warmup.Path = opts.output
	}
	cfg.Warmup.Enabled = true
	cfg.Warmup.Compress = opts.compress
	cfg.Cache.DisableRecording = false

	tg := testbed.NewTestGame(root.configPath, cfg)
	e, err := engine.New(tg.Game, headless.NewDevice())
	if err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		return err
	}
	if err := e.Run(); err != nil {
		_ = e.Shutdown()
		return err
	}

	// Shutdown saves the cache.
	state := e.ResourceCache().State()
	if err := e.Shutdown(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "recorded %d objects to %s\n", state.Total(), cfg.Warmup.Path)
	return nil
}
