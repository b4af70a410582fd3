// cmd/decode.go
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ColonelBlimp/cwblocks/internal/audio"
	"github.com/ColonelBlimp/cwblocks/internal/cli/decode"
	"github.com/ColonelBlimp/cwblocks/internal/config"
	"github.com/ColonelBlimp/cwblocks/internal/publish"
	"github.com/ColonelBlimp/cwblocks/internal/status"
	"github.com/spf13/cobra"
	"github.com/womat/debug"
)

// transcriptLimit is the number of characters the status server keeps.
const transcriptLimit = 4096

// ErrDecodeSource indicates decode needs exactly one of FILE, --live and --symbols
var ErrDecodeSource = errors.New("decode needs exactly one of FILE, --live or --symbols")

var decodeCmd = &cobra.Command{
	Use:   "decode [FILE.wav]",
	Short: "Decode Morse code from a WAV file, the sound card or dot/dash notation",
	Long: `Decode Morse code. The text is written to stdout as it is resolved.

  cwblocks decode recording.wav
  cwblocks decode --live --mqtt tcp://localhost:1883 --http :8080
  cwblocks decode --symbols "-.-. --.- / -.. ."`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().Bool("live", false, "decode from the sound card until interrupted")
	decodeCmd.Flags().String("symbols", "", `decode dot/dash notation such as "... --- ..."`)
	decodeCmd.Flags().String("mqtt", "", "MQTT broker to publish decoded words to, e.g. tcp://localhost:1883")
	decodeCmd.Flags().String("http", "", "listen address of the status server, e.g. :8080")
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	live, _ := cmd.Flags().GetBool("live")
	symbols, _ := cmd.Flags().GetString("symbols")
	fromSymbols := cmd.Flags().Changed("symbols")

	sources := len(args)
	if live {
		sources++
	}
	if fromSymbols {
		sources++
	}
	if sources != 1 {
		return ErrDecodeSource
	}

	d, err := decode.NewDecoder(*settings)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if fromSymbols {
		_, err := d.DecodeSymbols(symbols, out)
		fmt.Fprintln(out)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	closeOutputs, err := attachOutputs(d, *settings)
	if err != nil {
		return err
	}
	defer closeOutputs()

	var summary decode.Summary
	if live {
		summary, err = decodeLive(ctx, d, *settings, out)
	} else {
		summary, err = decodeFile(ctx, d, args[0], out)
	}
	fmt.Fprintln(out)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "decoded %s\n", summary)
	return nil
}

func decodeFile(ctx context.Context, d *decode.Decoder, path string, out io.Writer) (decode.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return decode.Summary{}, err
	}
	defer func() {
		_ = f.Close()
	}()

	return d.DecodeFile(ctx, bufio.NewReader(f), out)
}

// decodeLive captures until ctx is done. The flowgraph outlives ctx so the
// audio already captured is decoded and flushed.
func decodeLive(ctx context.Context, d *decode.Decoder, s config.Settings, out io.Writer) (decode.Summary, error) {
	capture := audio.New(decode.CaptureConfig(s))
	if err := capture.Init(); err != nil {
		return decode.Summary{}, fmt.Errorf("audio: %w", err)
	}
	defer func() {
		_ = capture.Close()
	}()

	if err := capture.Start(ctx); err != nil {
		return decode.Summary{}, fmt.Errorf("audio: %w", err)
	}
	debug.InfoLog.Print("decoding, press Ctrl-C to stop")

	summary, err := d.DecodeLive(context.WithoutCancel(ctx), capture.Samples, out, func() {
		_ = capture.Close()
	})
	if n := capture.Dropped(); n > 0 {
		debug.ErrorLog.Printf("dropped %d audio buffers", n)
	}
	return summary, err
}

// attachOutputs starts the status server and the MQTT publisher when they
// are configured. The returned function stops them.
func attachOutputs(d *decode.Decoder, s config.Settings) (func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if s.HTTPListen != "" {
		transcript := status.NewTranscript(transcriptLimit)
		server := status.NewServer(transcript, s.WPM)
		d.AddWriter(transcript)

		go func() {
			if err := server.Listen(s.HTTPListen); err != nil {
				debug.ErrorLog.Print(err)
			}
		}()
		closers = append(closers, func() {
			if err := server.Shutdown(); err != nil {
				debug.ErrorLog.Printf("status server shutdown: %v", err)
			}
		})
	}

	if s.MQTTBroker != "" {
		client, err := publish.Connect(s.MQTTBroker, s.MQTTClientID)
		if err != nil {
			closeAll()
			return nil, err
		}
		p := publish.NewPublisher(client, s.MQTTTopic, s.WPM)
		d.AddWriter(p)
		closers = append(closers, func() {
			if err := p.Close(); err != nil {
				debug.ErrorLog.Printf("mqtt publisher: %v", err)
			}
		})
	}

	return closeAll, nil
}
