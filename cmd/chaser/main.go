package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Veraticus/invoice-chaser/internal/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "chaser",
		Short: "📨 Invoice reconciliation for your inbox",
		Long: `invoice-chaser reads vendor replies, matches the invoices they attach
against the ledger of invoices you are still waiting for, and drafts the
follow-up asking for whatever is still missing.

Nothing is sent until you approve it.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/chaser/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(recordsCmd())
	rootCmd.AddCommand(kickoffCmd())
	rootCmd.AddCommand(cycleCmd())
	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(remindCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(matchCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		viper.AddConfigPath(fmt.Sprintf("%s/.config/chaser", home))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CHASER")
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if _, err := common.SetupLogger(os.Stderr, viper.GetString("logging.level"), viper.GetString("logging.format")); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("cycle.poll_interval", "10m")
	viper.SetDefault("cycle.fetch_limit", 5)
	viper.SetDefault("reminders.cadence", "48h")
	viper.SetDefault("reminders.time_of_day", "09:00")
	viper.SetDefault("llm.provider", "anthropic")
	viper.SetDefault("llm.max_retries", 3)
	viper.SetDefault("llm.retry_delay", "1s")
	viper.SetDefault("llm.rate_limit", 50)
	viper.SetDefault("llm.cache_ttl", "24h")
	viper.SetDefault("convert.pdftoppm_path", "pdftoppm")
	viper.SetDefault("convert.dpi", 150)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			slog.Info("chaser version", "version", version)
		},
	}
}
