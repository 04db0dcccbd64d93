package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gridwatch/gridwatch/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Load configuration from defaults, config file, environment, and flags,
validate it, and print the effective result as YAML. Useful to verify what a
node would actually run with before starting it.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, _ []string) error {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	if _, err := loader.Load(); err != nil {
		return err
	}

	out, err := yaml.Marshal(loader.Viper().AllSettings())
	if err != nil {
		return fmt.Errorf("rendering config: %w", err)
	}

	if file := loader.ConfigFileUsed(); file != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "# config file: %s\n", file)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}
