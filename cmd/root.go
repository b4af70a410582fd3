// cmd/root.go
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/ColonelBlimp/cwblocks/internal/config"
	"github.com/ColonelBlimp/cwblocks/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/womat/debug"
)

var (
	// settings is loaded before any subcommand runs
	settings  *config.Settings
	logCloser io.Closer
)

// configKeys maps command line flags to the config keys they override.
var configKeys = map[string]string{
	"device":      "device_index",
	"frequency":   "tone_frequency",
	"wpm":         "wpm",
	"accuracy":    "accuracy",
	"debug":       "debug",
	"log-level":   "log_level",
	"mqtt":        "mqtt_broker",
	"http":        "http_listen",
	"amplitude":   "tone_amplitude",
	"sample-rate": "sample_rate",
}

var rootCmd = &cobra.Command{
	Use:   "cwblocks",
	Short: "CW (Morse code) decoder and encoder",
	Long: `cwblocks decodes Morse code from the sound card, a WAV file or dot/dash
notation, and encodes text into Morse symbols or a keyed tone.`,
	SilenceUsage:       true,
	PersistentPreRunE:  loadSettings,
	PersistentPostRunE: closeLog,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags (override config file)
	rootCmd.PersistentFlags().IntP("device", "d", -1, "audio device index (-1 for default)")
	rootCmd.PersistentFlags().Float64P("frequency", "f", 750, "CW tone frequency in Hz")
	rootCmd.PersistentFlags().IntP("wpm", "w", 15, "sending speed in words per minute")
	rootCmd.PersistentFlags().IntP("accuracy", "a", 70, "required timing accuracy in percent")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")
	rootCmd.PersistentFlags().StringP("log-level", "l", "standard", "log level (standard|debug|trace)")
}

// loadSettings reads the config file, applies the flags of cmd and sets up
// logging.
func loadSettings(cmd *cobra.Command, _ []string) error {
	if err := config.Init(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	for name, key := range configKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return fmt.Errorf("config: bind %s: %w", name, err)
			}
		}
	}

	s, err := config.Get()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	level := s.LogLevel
	if s.Debug && level == "standard" {
		level = "debug"
	}
	closer, err := logging.Setup(level, s.LogFile)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	settings, logCloser = s, closer
	debug.DebugLog.Printf("config file: %s", viper.ConfigFileUsed())
	return nil
}

func closeLog(_ *cobra.Command, _ []string) error {
	if logCloser == nil {
		return nil
	}
	err := logCloser.Close()
	logCloser = nil
	return err
}
