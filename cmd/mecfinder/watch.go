package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ay9334524-ux/mecfinder-backend/internal/tui/watch"
)

func newWatchCmd() *cobra.Command {
	var apiURL, token string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard of active dispatches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" {
				token = os.Getenv("MECFINDER_TOKEN")
			}
			if token == "" {
				return fmt.Errorf("a service or admin token is required (--token or MECFINDER_TOKEN)")
			}
			p := tea.NewProgram(watch.New(apiURL, token), tea.WithContext(cmd.Context()))
			_, err := p.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&apiURL, "url", "http://127.0.0.1:8080", "mecfinder API base URL")
	cmd.Flags().StringVar(&token, "token", "", "bearer token with the service or admin role")
	return cmd
}
