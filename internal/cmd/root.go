package cmd

import (
	"strings"

	"github.com/Iron-Ham/imecore/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "imecore",
	Short: "Serialize access to an input method engine",
	Long: `imecore owns a single input method engine session and serializes every
call into it on one worker thread.

It drives the engine through its lifecycle, turns engine notifications into
typed events, and publishes the engine state after each operation.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/imecore/config.yaml)")
	rootCmd.PersistentFlags().String("shared-data-dir", "", "directory holding the shared schema data")
	rootCmd.PersistentFlags().String("user-data-dir", "", "directory holding user customizations")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("engine.shared_data_dir", rootCmd.PersistentFlags().Lookup("shared-data-dir"))
	_ = viper.BindPFlag("engine.user_data_dir", rootCmd.PersistentFlags().Lookup("user-data-dir"))
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("IMECORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is fine; defaults apply.
	_ = viper.ReadInConfig()
}
