// cmd/encode.go
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ColonelBlimp/cwblocks/internal/cli/encode"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var encodeCmd = &cobra.Command{
	Use:   "encode TEXT...",
	Short: "Encode text as Morse symbols or as a keyed tone WAV file",
	Long: `Encode text. Without --output the dot/dash notation is printed.

  cwblocks encode cq de test
  cwblocks encode --wpm 20 --frequency 600 -o cq.wav cq de test`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEncode,
}

func init() {
	encodeCmd.Flags().StringP("output", "o", "", "write a WAV file instead of printing symbols")
	encodeCmd.Flags().Float64("amplitude", 0.8, "tone amplitude 0-1")
	encodeCmd.Flags().Float64("sample-rate", 48000, "sample rate of the WAV file in Hz")
	rootCmd.AddCommand(encodeCmd)
}

func runEncode(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")

	e, err := encode.NewEncoder(*settings)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		fmt.Fprintln(cmd.OutOrStdout(), e.Symbols(text))
		return nil
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	duration, err := e.WriteWAV(cmd.Context(), text, w)
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	size := int64(0)
	if info, err := os.Stat(output); err == nil {
		size = info.Size()
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s: %s, %s\n", output, duration, humanize.Bytes(uint64(size)))
	return nil
}
