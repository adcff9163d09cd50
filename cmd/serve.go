package cmd

import (
	"github.com/mediascout/mediascout/config"
	"github.com/mediascout/mediascout/pkg/logger"
	"github.com/mediascout/mediascout/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the media scanner server",
	Long:  `start the media scanner server`,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.Get()

		cfg, err := config.New(viper.GetViper())
		if err != nil {
			log.Fatalw("failed to read configurations", "err", err)
		}
		if err := cfg.Validate(); err != nil {
			log.Fatalw("invalid configuration", "err", err)
		}

		store, newTask, err := newTaskFactory(cfg)
		if err != nil {
			log.Fatalw("failed to wire scanner", "err", err)
		}
		defer store.Close()

		srv := server.New(log, store, cfg.Library.Datasources, func() server.ScanRunner {
			return newTask()
		})
		log.Error(srv.Serve(cfg.Server.Port))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
