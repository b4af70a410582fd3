// cmd/config.go
package cmd

import (
	"fmt"

	"github.com/ColonelBlimp/cwblocks/internal/status"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := yaml.Marshal(settings)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}

		out := cmd.OutOrStdout()
		if file := viper.ConfigFileUsed(); file != "" {
			fmt.Fprintf(out, "# %s\n", file)
		}
		_, err = out.Write(data)
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	// no config needed
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), status.Version())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
