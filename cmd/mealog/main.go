package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/MarcoPoloResearchLab/mealog/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mealog",
		Short: "Personal meal log",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newServeCommand(), newTUICommand(), newImportCommand(), newTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().StringSlice("allowed-origins", defaults.GetStringSlice("http.allowed_origins"), "Browser origins allowed to call the API")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-file", defaults.GetString("log.file"), "Log file used by the terminal UI")
	cmd.PersistentFlags().String("signing-secret", "", "API token signing secret (overrides env)")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "API token TTL in minutes")
	cmd.PersistentFlags().String("legacy-path", defaults.GetString("legacy.path"), "Legacy JSON dump imported at startup")
	cmd.PersistentFlags().String("default-type", defaults.GetString("meals.default_type"), "Meal type of an empty day's first row")
	cmd.PersistentFlags().Bool("watch", defaults.GetBool("watch.enabled"), "Reload when another process writes the database")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.allowed_origins", "allowed-origins")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.file", "log-file")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "legacy.path", "legacy-path")
	bindFlag(cmd, "meals.default_type", "default-type")
	bindFlag(cmd, "watch.enabled", "watch")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &configNotFound) {
			return nil
		}
		return fmt.Errorf("config file: %w", err)
	}

	return nil
}

func loadConfig() (config.AppConfig, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("config: %w", err)
	}
	return appConfig, nil
}
