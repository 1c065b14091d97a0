package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "seca-recon",
	Short:         "Passive reconnaissance and risk scoring for public hosts",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		cliConfig = loadConfig(viper.GetViper())

		base, err := newLogger(cliConfig.Log)
		if err != nil {
			return err
		}
		logger := base.Sugar()
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debugw("config loaded", "file", used)
		}

		applyConfigDefaults(cmd, cliConfig)
		storeAppContext(cmd, &AppContext{Logger: logger, Config: cliConfig})
		return nil
	},
}

// initConfig points viper at the config file and environment. A missing
// default config file is fine; a missing explicit --config is not.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".seca-recon")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SECA_RECON")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// well-known variable names, accepted alongside the prefixed form
	_ = viper.BindEnv("intel.otx_api_key", "SECA_RECON_INTEL_OTX_API_KEY", "OTX_API_KEY")
	_ = viper.BindEnv("intel.safebrowsing_api_key", "SECA_RECON_INTEL_SAFEBROWSING_API_KEY", "GOOGLE_SAFE_BROWSING_API_KEY")
	_ = viper.BindEnv("intel.nvd_api_key", "SECA_RECON_INTEL_NVD_API_KEY", "NVD_API_KEY")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

func Execute() {
	err := rootCmd.Execute()
	globalAppContext.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.seca-recon.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log encoding (console or json)")
	rootCmd.PersistentFlags().String("log-file", "", "also write JSON logs to this rotating file")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(vulnCmd)
	rootCmd.AddCommand(versionCmd)
}
