package cmd

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pc-rca/internal/cache"
	"pc-rca/internal/environ"
	"pc-rca/internal/monitor"
	"pc-rca/internal/server"
	"pc-rca/internal/snapshot"
	"pc-rca/internal/store"
	"pc-rca/internal/sysstat"
)

var interval time.Duration
var detector string
var topN int
var redisAddr string
var statusAddr string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Samples the host and records CPU anomalies until interrupted",
	PreRun: func(cmd *cobra.Command, args []string) {
		if interval > 0 {
			cfg.Interval = interval
		}
		if detector != "" {
			cfg.Detector = detector
		}
		if topN > 0 {
			cfg.TopN = topN
		}
		if redisAddr != "" {
			cfg.RedisAddr = redisAddr
		}
		if statusAddr != "" {
			cfg.StatusAddr = statusAddr
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signalContext()
		defer stop()

		metrics, err := store.OpenMetricWriter(cfg.MetricsPath())
		if err != nil {
			log.Fatal(err)
		}
		defer metrics.Close()

		events, err := store.OpenEventWriter(cfg.EventsPath())
		if err != nil {
			log.Fatal(err)
		}
		defer events.Close()

		procs := snapshot.New(snapshot.NewGopsutilProvider(),
			snapshot.WithFailureHook(monitor.ObserveSnapshotFailure),
		)

		var opts []monitor.Option
		if cfg.RedisAddr != "" {
			feed, err := cache.NewRedisFeed(ctx, cfg.RedisAddr)
			if err != nil {
				log.Fatal(err)
			}
			defer feed.Close()
			opts = append(opts, monitor.WithSink(feed))
		}

		m, err := monitor.New(cfg, sysstat.NewGopsutilProvider(), procs, metrics, events, opts...)
		if err != nil {
			log.Fatal(err)
		}

		g, gctx := errgroup.WithContext(ctx)
		if cfg.StatusAddr != "" {
			srv := server.New(cfg.StatusAddr, m.Tracker())
			g.Go(func() error {
				return srv.Run(gctx)
			})
		}
		g.Go(func() error {
			err := m.Run(gctx)
			stop()
			return err
		})

		if err := g.Wait(); err != nil {
			log.Fatal(err)
		}
		log.WithFields(log.Fields{
			"metrics": cfg.MetricsPath(),
			"events":  cfg.EventsPath(),
		}).Info("logs saved")
	},
}

func init() {
	monitorCmd.Flags().DurationVar(&interval, "interval",
		environ.GetDuration("PCRCA_INTERVAL", 0),
		"Sampling interval (defaults to the config value)",
	)
	monitorCmd.Flags().StringVar(&detector, "detector",
		environ.GetString("PCRCA_DETECTOR", ""),
		"Detector variant. One of zscore, deviation.",
	)
	monitorCmd.Flags().IntVar(&topN, "top-n",
		environ.GetInt("PCRCA_TOP_N", 0),
		"Number of root cause candidates recorded per event (defaults to the config value)",
	)
	monitorCmd.Flags().StringVar(&redisAddr, "redis-addr",
		environ.GetString("PCRCA_REDIS_ADDR", ""),
		"Publish anomalies to this Redis server",
	)
	monitorCmd.Flags().StringVar(&statusAddr, "status-addr",
		environ.GetString("PCRCA_STATUS_ADDR", ""),
		"Serve live analytics on this address",
	)
	rootCmd.AddCommand(monitorCmd)
}
