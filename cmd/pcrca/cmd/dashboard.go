package cmd

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pc-rca/internal/cache"
	"pc-rca/internal/dashboard"
	"pc-rca/internal/environ"
)

var dashboardAddr string
var dashboardWindow time.Duration
var dashboardRedisAddr string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serves a read-only web view of the recorded metrics and events",
	Run: func(cmd *cobra.Command, args []string) {
		if dashboardAddr != "" {
			cfg.DashboardAddr = dashboardAddr
		}
		if dashboardWindow > 0 {
			cfg.DashboardWindow = dashboardWindow
		}
		if dashboardRedisAddr != "" {
			cfg.RedisAddr = dashboardRedisAddr
		}

		ctx, stop := signalContext()
		defer stop()

		var opts []dashboard.Option
		if cfg.RedisAddr != "" {
			feed, err := cache.NewRedisFeed(ctx, cfg.RedisAddr)
			if err != nil {
				log.Warnf("live feed disabled: %v", err)
			} else {
				defer feed.Close()
				opts = append(opts, dashboard.WithLiveFeed(feed))
			}
		}

		if err := dashboard.New(cfg, opts...).Run(ctx); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardAddr, "addr",
		environ.GetString("PCRCA_DASHBOARD_ADDR", ""),
		"Listen address (defaults to the config value)",
	)
	dashboardCmd.Flags().DurationVar(&dashboardWindow, "window",
		environ.GetDuration("PCRCA_DASHBOARD_WINDOW", 0),
		"Half width of the event detail window",
	)
	dashboardCmd.Flags().StringVar(&dashboardRedisAddr, "redis-addr",
		environ.GetString("PCRCA_REDIS_ADDR", ""),
		"Read live events from this Redis server",
	)
	rootCmd.AddCommand(dashboardCmd)
}
