package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pc-rca/internal/config"
	"pc-rca/internal/environ"
)

var cfg config.Config
var logLevel string
var configPath string
var logDir string

var rootCmd = &cobra.Command{
	Use:   "pcrca",
	Short: "Host CPU anomaly detection with root cause candidates",
	Long: `pcrca samples host CPU and memory, flags CPU anomalies with an EWMA z-score
detector and records the top processes at the moment of each anomaly.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLvl, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		log.SetLevel(logLvl)
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logDir != "" {
			cfg.LogDir = logDir
		}
		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel,
		"log-level",
		environ.GetString("LOG_LEVEL", "info"),
		"Log level. One of debug, info, warn, error, fatal, panic.",
	)
	rootCmd.PersistentFlags().StringVar(&configPath,
		"config",
		environ.GetString("PCRCA_CONFIG", ""),
		"Path to a YAML config file. Unset fields keep their defaults.",
	)
	rootCmd.PersistentFlags().StringVar(&logDir,
		"log-dir",
		environ.GetString("PCRCA_LOG_DIR", ""),
		"Directory holding metrics.csv and events.csv",
	)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
