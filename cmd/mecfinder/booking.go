package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ay9334524-ux/mecfinder-backend/internal/booking"
	"github.com/ay9334524-ux/mecfinder-backend/internal/log"
)

func newBookingCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "booking",
		Short: "Seed booking records",
	}
	cmd.AddCommand(newBookingCreateCmd(opts))
	return cmd
}

func newBookingCreateCmd(opts *rootOptions) *cobra.Command {
	rec := &booking.Record{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Insert a PENDING booking record",
		Args:  cobra.NoArgs,
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

			if rec.ID == "" {
				rec.ID = uuid.NewString()
			}
			if err := st.records.Create(cmd.Context(), rec); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&rec.ID, "id", "", "booking id (default: random UUID)")
	f.StringVar(&rec.CustomerID, "customer", "", "customer id")
	f.StringVar(&rec.ServiceType, "service", "", "service type")
	f.StringVar(&rec.VehicleType, "vehicle", "", "vehicle type")
	f.Float64Var(&rec.Location.Lat, "lat", 0, "pickup latitude")
	f.Float64Var(&rec.Location.Lng, "lng", 0, "pickup longitude")
	f.StringVar(&rec.Location.Address, "address", "", "pickup address")
	f.Float64Var(&rec.EstimatedPayout, "payout", 0, "estimated payout")
	f.StringVar(&rec.Currency, "currency", "INR", "payout currency")
	_ = cmd.MarkFlagRequired("customer")
	return cmd
}
