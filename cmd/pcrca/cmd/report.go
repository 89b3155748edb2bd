package cmd

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pc-rca/internal/environ"
	"pc-rca/internal/report"
	"pc-rca/internal/store"
)

var reportWindow time.Duration
var reportDir string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Correlates recorded events with metrics and writes a Markdown report",
	Run: func(cmd *cobra.Command, args []string) {
		if reportWindow > 0 {
			cfg.ReportWindow = reportWindow
		}
		if reportDir != "" {
			cfg.ReportDir = reportDir
		}

		ctx, stop := signalContext()
		defer stop()

		path, err := report.Generate(ctx, cfg)
		if errors.Is(err, store.ErrInputMissing) {
			log.Fatalf("%v. Run the monitor first to collect metrics and events", err)
		}
		if err != nil {
			log.Fatal(err)
		}
		log.WithField("path", path).Info("report generated")
	},
}

func init() {
	reportCmd.Flags().DurationVar(&reportWindow, "window",
		environ.GetDuration("PCRCA_REPORT_WINDOW", 0),
		"Half width of the before/after window (defaults to the config value)",
	)
	reportCmd.Flags().StringVar(&reportDir, "report-dir",
		environ.GetString("PCRCA_REPORT_DIR", ""),
		"Directory the report is written to",
	)
	rootCmd.AddCommand(reportCmd)
}
