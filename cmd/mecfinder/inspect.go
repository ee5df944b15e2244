package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ay9334524-ux/mecfinder-backend/internal/inspect"
	"github.com/ay9334524-ux/mecfinder-backend/internal/log"
)

func newInspectCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <booking-id>",
		Short: "Show a booking's record, dispatch snapshot, live offer and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
			st, err := openStores(cmd.Context(), cfg, log.WithComponent("storage"))
			if err != nil {
				return err
			}
			defer st.Close()

			report, err := inspect.Gather(cmd.Context(), st.records, st.state, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				out, err := inspect.RenderJSON(report)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), inspect.Render(report, time.Now()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
