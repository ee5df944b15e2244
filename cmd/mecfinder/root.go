package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ay9334524-ux/mecfinder-backend/internal/config"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "mecfinder",
		Short: "mecfinder booking dispatch engine",
		Long: `mecfinder offers a booking to ranked mechanics one at a time until one
accepts, the list runs out or the customer cancels.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file or directory (default: discovered)")

	root.AddCommand(
		newServeCmd(opts),
		newRecoverCmd(opts),
		newWatchCmd(),
		newConfigCmd(opts),
		newTokenCmd(opts),
		newBookingCmd(opts),
		newInspectCmd(opts),
		newDoctorCmd(opts),
		newVersionCmd(),
	)
	return root
}

// resolveConfigPath returns the --config value or the first discovered
// config file.
func (o *rootOptions) resolveConfigPath() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	path, err := config.Discover()
	if err != nil {
		return "", fmt.Errorf("discover config: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", path)
	return path, nil
}

func (o *rootOptions) load() (*config.Config, error) {
	path, err := o.resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mecfinder %s\n", version)
		},
	}
}
