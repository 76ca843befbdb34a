package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/dapconsole/internal/config"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dapconsole",
		Short: "Interactive console for a Debug Adapter Protocol server",
		Long: "dapconsole connects to a running debug adapter over TCP, keeps the\n" +
			"breakpoints declared in a breakpoints file in sync with it, and evaluates\n" +
			"expressions typed at the prompt against the stopped frame.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runConsole(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringP("config", "c", "", "Path to configuration file")
	flags.StringP("addr", "a", "", "Debug adapter address (host:port)")
	flags.String("adapter-id", "", "Adapter identifier sent in the initialize request")
	flags.StringP("breakpoints", "b", "", "Path to breakpoints file")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("no-watch", false, "Do not reload the breakpoints file when it changes")

	return cmd
}

// loadConfig loads the configuration file and applies the flags that were
// set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag   string
		target *string
	}{
		{"addr", &cfg.Adapter.Address},
		{"adapter-id", &cfg.Adapter.AdapterID},
		{"breakpoints", &cfg.Breakpoints.File},
		{"log-level", &cfg.Logging.Level},
	}
	for _, o := range overrides {
		if flags.Changed(o.flag) {
			*o.target, _ = flags.GetString(o.flag)
		}
	}
	if noWatch, _ := flags.GetBool("no-watch"); noWatch {
		cfg.Breakpoints.Watch = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
