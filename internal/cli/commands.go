package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/vpn-subscription/internal/migrations"
	"github.com/magabrotheeeer/vpn-subscription/internal/models"
)

func newMigrateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.openDB(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := migrations.Run(e.db.DB); err != nil {
				return err
			}
			version, dirty, err := migrations.Version(e.db.DB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
	return cmd
}

func newGrantCmd(opts *options) *cobra.Command {
	var (
		kind string
		days int
	)
	cmd := &cobra.Command{
		Use:   "grant <user-id>",
		Short: "Grant a trial or paid period to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			if !models.PeriodKind(kind).Valid() {
				return fmt.Errorf("unknown kind %q: use trial or paid", kind)
			}

			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if days <= 0 {
				days = e.cfg.Subscription.PaidPeriodDays
				if kind == string(models.KindTrial) {
					days = e.cfg.Subscription.TrialDays
				}
			}
			period, err := e.admin.Grant(cmd.Context(), userID, models.PeriodKind(kind), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted %s period #%d to user %d until %s\n",
				period.Kind, period.ID, userID, period.EndDate.Format("2006-01-02 15:04 MST"))
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(models.KindPaid), "period kind: trial or paid")
	cmd.Flags().IntVar(&days, "days", 0, "period length in days (default from config)")
	return cmd
}

func newSweepCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark periods that already ended as expired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := e.subscriptions.ExpireStale(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d period(s)\n", n)
			return nil
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <user-id>",
		Short: "Print the entitlement, periods and devices of a user as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}

			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ent, err := e.subscriptions.Evaluate(cmd.Context(), userID)
			if err != nil {
				return err
			}
			periods, err := e.subscriptions.History(cmd.Context(), userID)
			if err != nil {
				return err
			}
			count, limit, err := e.devices.Limits(cmd.Context(), userID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(models.SubscriptionStatus{
				Entitlement: ent,
				DeviceCount: count,
				MaxDevices:  limit,
				Periods:     periods,
			})
		},
	}
}

func newPromoteCmd(opts *options) *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "promote <username>",
		Short: "Grant or revoke administrator rights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.admin.Promote(cmd.Context(), args[0], !revoke); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s admin=%t\n", args[0], !revoke)
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "revoke administrator rights")
	return cmd
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}
