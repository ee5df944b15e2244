package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ay9334524-ux/mecfinder-backend/internal/dispatch"
	"github.com/ay9334524-ux/mecfinder-backend/internal/events"
	"github.com/ay9334524-ux/mecfinder-backend/internal/log"
)

func newRecoverCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Show what startup recovery would do with persisted dispatch state",
		Long: `recover scans persisted dispatch snapshots and classifies each one
against its booking record without changing anything. serve applies the
same plan on startup when dispatch.recover_on_start is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			mgr := dispatch.NewManager(dispatch.Config{
				OfferTimeout:        cfg.Dispatch.OfferTimeout,
				SnapshotTTL:         cfg.Dispatch.SnapshotTTL,
				StoreTimeout:        cfg.Dispatch.StoreTimeout,
				RecoveryConcurrency: cfg.Dispatch.RecoveryConcurrency,
			}, st.records, st.state, events.NewHub(1), nil, log.WithComponent("recover"))
			defer mgr.Shutdown()

			report, err := mgr.PlanRecovery(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printRecoveryReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printRecoveryReport(w io.Writer, r dispatch.RecoveryReport) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "Snapshots scanned: %d\n", r.Scanned)
	if len(r.Decisions) == 0 {
		fmt.Fprintln(w, "Nothing to recover.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BOOKING\tCURSOR\tSTATUS\tACTION\tERROR")
	for _, d := range r.Decisions {
		fmt.Fprintf(tw, "%s\t%d/%d\t%s\t%s\t%s\n", d.BookingID, d.Cursor, d.Total, d.Status, actionColor(d.Action), d.Error)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nresume %d, discard %d, exhaust %d, skip %d, failed %d\n",
		r.Resumed, r.Discarded, r.Exhausted, r.Skipped, r.Failed)
}

func actionColor(action string) string {
	switch action {
	case dispatch.RecoveryResume:
		return color.GreenString(action)
	case dispatch.RecoveryDiscard, dispatch.RecoverySkip:
		return color.HiBlackString(action)
	case dispatch.RecoveryExhaust:
		return color.YellowString(action)
	default:
		return color.RedString(action)
	}
}
