package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/statline/internal/client"
)

var updateCmd = &cobra.Command{
	Use:   "update [module...]",
	Short: "Ask the daemon to re-poll modules immediately",
	Long: `Update requests an immediate re-poll of the named modules, for
example after a volume keybinding fires:

    statline update volume

With no arguments every enabled module is re-polled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		unknown, err := client.Update(cmd.Context(), socketPath(), args)
		if err != nil {
			return err
		}
		if len(unknown) > 0 {
			return fmt.Errorf("daemon does not know these modules: %s", strings.Join(unknown, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
