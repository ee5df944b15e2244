package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ay9334524-ux/mecfinder-backend/internal/config"
	"github.com/ay9334524-ux/mecfinder-backend/internal/doctor"
	"github.com/ay9334524-ux/mecfinder-backend/internal/log"
)

func newDoctorCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check config, store connectivity and pending recovery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := opts.resolveConfigPath()
			if err != nil {
				return err
			}
			// Lock and validation problems are reported by the doctor itself.
			cfg, err := config.Read(path)
			if err != nil {
				return err
			}
			log.Setup("error", cfg.Service.LogFormat)

			var stores doctor.Stores
			st, err := openStores(cmd.Context(), cfg, log.WithComponent("storage"))
			if err != nil {
				stores.OpenErr = err
			} else {
				defer st.Close()
				stores.Records, stores.State = st.records, st.state
			}

			result := doctor.New(cfg, stores).Validate(cmd.Context())
			w := cmd.OutOrStdout()
			if asJSON {
				out, err := doctor.FormatJSON(result)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, out)
			} else {
				report := doctor.FormatHuman(result)
				switch {
				case !result.Valid:
					color.New(color.FgRed).Fprint(w, report)
				case len(result.Warnings) > 0:
					color.New(color.FgYellow).Fprint(w, report)
				default:
					color.New(color.FgGreen).Fprint(w, report)
				}
			}
			if !result.Valid {
				return fmt.Errorf("doctor found %d error(s)", len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
