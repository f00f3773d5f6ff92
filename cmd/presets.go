package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/lightnode/internal/api/models"
)

var timingFlags = []string{"red", "yellow", "green", "flash"}

// CreatePresetsCmd creates the presets command and its subcommands.
func CreatePresetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Manage timing presets on a running controller",
	}
	addServerFlags(cmd)

	list := &cobra.Command{
		Use:   "list",
		Short: "List presets (* marks the active one)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			out, err := c.Presets(ctx)
			if err != nil {
				return err
			}
			renderPresets(cmd.OutOrStdout(), out)
			return nil
		},
	}

	var d models.Durations
	save := &cobra.Command{
		Use:   "save NAME",
		Short: "Save the live timings, or the given ones, under NAME",
		Long: `Without timing flags the controller's live timings are stored. With flags all four
timings must be given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var durations *models.Durations
			set := 0
			for _, name := range timingFlags {
				if cmd.Flags().Changed(name) {
					set++
				}
			}
			switch set {
			case 0:
			case len(timingFlags):
				durations = &d
			default:
				return fmt.Errorf("give all of --red, --yellow, --green and --flash, or none to save the live timings")
			}

			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			out, err := c.SavePreset(ctx, args[0], durations)
			if err != nil {
				return err
			}
			renderPresets(cmd.OutOrStdout(), out)
			return nil
		},
	}
	save.Flags().Float64Var(&d.Red, "red", 0, "Red phase seconds")
	save.Flags().Float64Var(&d.Yellow, "yellow", 0, "Yellow phase seconds")
	save.Flags().Float64Var(&d.Green, "green", 0, "Green phase seconds")
	save.Flags().Float64Var(&d.Flash, "flash", 0, "Flash half-period seconds")

	apply := &cobra.Command{
		Use:   "apply NAME",
		Short: "Make NAME the live timing set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			state, err := c.ApplyPreset(ctx, args[0])
			if err != nil {
				return err
			}
			renderState(cmd.OutOrStdout(), state)
			return nil
		},
	}

	del := &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"rm"},
		Short:   "Delete a preset (the last one cannot be deleted)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			state, err := c.DeletePreset(ctx, args[0])
			if err != nil {
				return err
			}
			renderState(cmd.OutOrStdout(), state)
			return nil
		},
	}

	cmd.AddCommand(list, save, apply, del)
	return cmd
}
