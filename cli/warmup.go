package cli

import (
	"fmt"
	"slices"

	"github.com/spaghettifunk/pipecache/engine/renderer/cache"
	"github.com/spaghettifunk/pipecache/engine/renderer/headless"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
	"github.com/spaghettifunk/pipecache/engine/systems"
	"github.com/spf13/cobra"
)

type warmupOptions struct {
	applicationID string
}

func newWarmupCommand(root *rootOptions) *cobra.Command {
	var opts warmupOptions

	cmd := &cobra.Command{
		Use:   "warmup [FILE]",
		Short: "Replay a warmup cache on a headless device",
		Long:  "Replay a warmup cache on a headless device. Fails when the file is rejected or the replay stops early.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWarmup(cmd, root, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.applicationID, "application-id", "", "Overrides the configured application id")
	return cmd
}

func runWarmup(cmd *cobra.Command, root *rootOptions, opts warmupOptions, args []string) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Warmup.Path = args[0]
	}
	if opts.applicationID != "" {
		cfg.Warmup.ApplicationID = opts.applicationID
	}
	id, err := systems.ParseApplicationID(cfg.Warmup.ApplicationID)
	if err != nil {
		return err
	}

	device := headless.NewDevice()
	rc, err := cache.NewResourceCache(device, cache.ResourceCacheConfig{
		DescriptorPoolMaxSets: cfg.Cache.DescriptorPoolMaxSets,
	})
	if err != nil {
		return err
	}
	defer rc.Clear()

	ws, err := systems.NewWarmupSystem(systems.WarmupSystemConfig{
		Path:              cfg.Warmup.Path,
		ApplicationID:     id,
		PipelineCachePath: cfg.Warmup.PipelineCachePath,
	}, rc)
	if err != nil {
		return err
	}
	defer ws.Close()

	complete, err := ws.Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	state := rc.State()
	kinds := make([]metadata.ResourceKind, 0, len(state))
	for kind, n := range state {
		if n > 0 {
			kinds = append(kinds, kind)
		}
	}
	slices.Sort(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(out, "%-22s %d\n", kind.String()+":", state[kind])
	}
	if !complete {
		return fmt.Errorf("warmup cache '%s' did not replay completely", cfg.Warmup.Path)
	}
	fmt.Fprintf(out, "replayed %d objects from %s\n", state.Total(), cfg.Warmup.Path)
	return nil
}
