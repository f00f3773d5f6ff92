package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smazurov/lightnode/internal/api/models"
	"github.com/smazurov/lightnode/internal/light"
)

// CreateControlCmd creates the control command.
func CreateControlCmd() *cobra.Command {
	var overrides models.ControlRequestData

	cmd := &cobra.Command{
		Use:   "control [ACTION]",
		Short: "Switch mode and/or override timings on a running controller",
		Long: `Sends one control request. ACTION is STOP, SEQUENCE, HOLD_<COLOR> or FLASH_<COLOR>
(case-insensitive). Timing flags are applied before the action; rejected values are
reported and do not stop the action. Without ACTION only the timings are updated.`,
		Example: `  lightnode control hold_red
  lightnode control sequence --green 8 --yellow 2
  lightnode control --flash 0.25`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := overrides
			if len(args) == 1 {
				if _, err := light.ParseMode(args[0]); err != nil {
					return err
				}
				req.Action = strings.ToUpper(args[0])
			}
			if req == (models.ControlRequestData{}) {
				return fmt.Errorf("nothing to do: give an ACTION or a timing flag")
			}

			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			out, err := c.Control(ctx, req)
			if err != nil {
				return err
			}
			renderWarnings(cmd.ErrOrStderr(), out.Warnings)
			renderState(cmd.OutOrStdout(), &out.State)
			return nil
		},
	}

	cmd.Flags().StringVar(&overrides.Red, "red", "", "Red phase seconds")
	cmd.Flags().StringVar(&overrides.Yellow, "yellow", "", "Yellow phase seconds")
	cmd.Flags().StringVar(&overrides.Green, "green", "", "Green phase seconds")
	cmd.Flags().StringVar(&overrides.Flash, "flash", "", "Flash half-period seconds")
	addServerFlags(cmd)
	return cmd
}

// CreateStateCmd creates the state command.
func CreateStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the state of a running controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			state, err := c.State(ctx)
			if err != nil {
				return err
			}
			renderState(cmd.OutOrStdout(), state)
			return nil
		},
	}
	addServerFlags(cmd)
	return cmd
}
