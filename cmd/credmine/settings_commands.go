package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change runtime settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show every known setting",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cache, backend, err := ctx.openSettings()
				if err != nil {
					return err
				}
				names := backend.Names()
				rows := make([][]string, 0, len(names))
				for _, name := range names {
					v, err := cache.Value(cmd.Context(), name)
					if err != nil {
						return err
					}
					rows = append(rows, []string{name, fmt.Sprint(v)})
				}
				out := cmd.OutOrStdout()
				if isTerminal(out) {
					fmt.Fprintln(out, renderTable([]string{"Name", "Value"}, rows, nil))
					return nil
				}
				for _, r := range rows {
					fmt.Fprintf(out, "%s\t%s\n", r[0], r[1])
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <name>",
			Short: "Print a setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cache, _, err := ctx.openSettings()
				if err != nil {
					return err
				}
				v, err := cache.Value(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <name> <value>",
			Short: "Override a setting",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				cache, _, err := ctx.openSettings()
				if err != nil {
					return err
				}
				return cache.Set(cmd.Context(), args[0], parseSettingValue(args[1]))
			},
		},
		&cobra.Command{
			Use:   "reset <name>",
			Short: "Restore a setting to its default",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cache, _, err := ctx.openSettings()
				if err != nil {
					return err
				}
				v, err := cache.Reset(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", args[0], v)
				return nil
			},
		},
	)
	return cmd
}
