package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/lightnode/internal/systemd"
	"github.com/smazurov/lightnode/internal/updater"
)

// CreateUpdateCmd creates the update command.
func CreateUpdateCmd() *cobra.Command {
	var (
		opts     updater.Options
		check    bool
		rollback bool
		restart  string
		user     bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update lightnode to the latest release",
		Long: `Downloads the latest GitHub release and replaces the running binary, keeping a
backup for --rollback. With --restart the systemd unit is restarted afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := updater.New(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch {
			case check:
				info, err := u.Check(cmd.Context())
				if err != nil {
					return err
				}
				if info.UpdateAvailable {
					fmt.Fprintf(out, "Update available: %s -> %s\n%s\n", info.CurrentVersion, info.LatestVersion, info.ReleaseURL)
				} else {
					fmt.Fprintf(out, "Up to date (%s)\n", info.CurrentVersion)
				}
				return nil

			case rollback:
				version, err := u.Rollback()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Restored %s\n", version)

			default:
				info, err := u.Apply(cmd.Context())
				if updater.HasCode(err, updater.ErrCodeNoUpdate) {
					fmt.Fprintf(out, "Up to date (%s)\n", info.CurrentVersion)
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Updated %s -> %s\n", info.CurrentVersion, info.LatestVersion)
			}

			if restart == "" {
				return nil
			}
			return restartUnit(cmd.Context(), out, restart, user)
		},
	}

	cmd.Flags().StringVar(&opts.Repository, "repo", updater.DefaultRepository, "GitHub repository to update from")
	cmd.Flags().BoolVar(&opts.Prerelease, "prerelease", false, "Include prereleases")
	cmd.Flags().BoolVar(&check, "check", false, "Only report whether an update is available")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Restore the binary saved by the last update")
	cmd.Flags().StringVar(&restart, "restart", "", "systemd unit to restart afterwards (e.g. "+systemd.DefaultUnit+")")
	cmd.Flags().BoolVar(&user, "user", false, "Use the user systemd manager for --restart")
	cmd.MarkFlagsMutuallyExclusive("check", "rollback")
	return cmd
}

func restartUnit(ctx context.Context, out io.Writer, unit string, user bool) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	m, err := systemd.NewManager(ctx, user)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Restart(ctx, unit); err != nil {
		return err
	}
	status, err := m.UnitStatus(ctx, unit)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s is %s\n", systemd.UnitName(unit), status)
	return nil
}
