package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ay9334524-ux/mecfinder-backend/internal/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and lock configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "check",
			Short: "Load and validate the config, verifying its lock if present",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "%s %s\n", color.GreenString("OK"), cfg.SourcePath)
				if cfg.Locked {
					fmt.Fprintf(w, "  lock: %s\n", color.GreenString("verified"))
				} else {
					fmt.Fprintf(w, "  lock: %s\n", color.YellowString("none"))
				}
				fmt.Fprintf(w, "  records: %s, state: %s, listen: %s\n", cfg.Records.Driver, cfg.State.Driver, cfg.API.Listen)
				return nil
			},
		},
		&cobra.Command{
			Use:   "lock",
			Short: "Validate the config and write its BLAKE3 lock file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path, err := opts.resolveConfigPath()
				if err != nil {
					return err
				}
				cfg, err := config.LoadUnverified(path)
				if err != nil {
					return fmt.Errorf("refusing to lock invalid config: %w", err)
				}
				path = cfg.SourcePath
				hash, err := config.Lock(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", color.GreenString("locked"), config.LockPath(path), hash)
				return nil
			},
		},
	)
	return cmd
}
