package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVoicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List the narration voices the service offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			voices, err := a.video.ListVoices(cmd.Context())
			if err != nil {
				return userMessage(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, voices)
			}
			if len(voices.Available) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No voices available")
				return nil
			}
			rows := make([][]string, 0, len(voices.Available))
			for _, v := range voices.Available {
				marker := ""
				if v == voices.Default {
					marker = "default"
				}
				rows = append(rows, []string{v, marker})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(voicesColumns, rows))
			return nil
		},
	}
}
