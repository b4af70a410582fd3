// cmd/devices.go
package cmd

import (
	"fmt"

	"github.com/ColonelBlimp/cwblocks/internal/cli/decode"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio capture devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		devices, err := decode.ListAudioDevices()
		if err != nil {
			return fmt.Errorf("audio: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, d := range devices {
			marker := ""
			if d.IsDefault {
				marker = " (default)"
			}
			fmt.Fprintf(out, "%3d  %s%s\n", d.Index, d.Name, marker)
		}
		if len(devices) == 0 {
			fmt.Fprintln(out, "no capture devices found")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
