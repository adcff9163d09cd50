package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mediascout/mediascout/config"
	"github.com/mediascout/mediascout/pkg/airecog"
	"github.com/mediascout/mediascout/pkg/imagecache"
	"github.com/mediascout/mediascout/pkg/logger"
	"github.com/mediascout/mediascout/pkg/scanner"
	"github.com/mediascout/mediascout/pkg/storage/sqlite"
	"github.com/mediascout/mediascout/pkg/vsmeta"
	"github.com/mediascout/mediascout/pkg/walker"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "scan the configured datasources once",
	Long:  `walk every datasource, reconcile each show against storage, and print a summary`,
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

		ctx := logger.WithCtx(cmd.Context(), log)
		summary, err := newTask().Run(ctx, cfg.Library.Datasources)
		if err != nil {
			log.Fatalw("scan failed", "err", err)
		}

		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			log.Fatalw("failed to render summary", "err", err)
		}
		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

// newTaskFactory wires the scan stack from configuration. The engine and
// recognition batcher are shared so recognition caching survives across
// triggered scans; each factory call mints a task with a fresh id.
func newTaskFactory(cfg config.Config) (*sqlite.SQLite, func() *scanner.Task, error) {
	fsys := os.DirFS("/")
	base := "/"

	store, err := sqlite.New(cfg.Storage.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	var opts []scanner.EngineOption
	if cfg.Library.ImageCacheDir != "" {
		images, err := imagecache.New(cfg.Library.ImageCacheDir)
		if err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("open image cache: %w", err)
		}
		opts = append(opts, scanner.WithImageCache(images))
	}
	if cfg.Scanner.ExtractArtwork {
		opts = append(opts, scanner.WithArtworkExtractor(vsmeta.NewExtractor(fsys)))
	}

	engine := scanner.NewEngine(fsys, base, store, scanner.Config{
		Walk: walker.Options{
			SkipFolders:   cfg.Scanner.SkipFolders,
			SkipPaths:     cfg.Scanner.SkipPaths,
			SkipOnNoMedia: cfg.Scanner.SkipOnNoMedia,
		},
		ExtractArtwork: cfg.Scanner.ExtractArtwork,
	}, opts...)

	taskOpts := []scanner.TaskOption{scanner.WithWorkers(cfg.Scanner.Workers)}
	var batcher *airecog.Batcher
	if cfg.AI.Enabled {
		client := airecog.NewHTTPClient(cfg.AI.URL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxAttempts)
		batcher = airecog.NewBatcher(client, aiConfig(cfg.AI))
		taskOpts = append(taskOpts, scanner.WithBatcher(batcher))
	}

	return store, func() *scanner.Task {
		if batcher != nil {
			refreshBatcher(batcher, viper.GetViper())
		}
		return scanner.NewTask(engine, taskOpts...)
	}, nil
}

// refreshBatcher re-reads the AI configuration so an endpoint change made
// between scans reaches the batcher, which drops cached recognitions when
// the endpoint fingerprint moved.
func refreshBatcher(b *airecog.Batcher, cu config.ConfigUnmarshaler) {
	cfg, err := config.New(cu)
	if err != nil || !cfg.AI.Enabled {
		return
	}
	client := airecog.NewHTTPClient(cfg.AI.URL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxAttempts)
	b.Configure(client, aiConfig(cfg.AI))
}

func aiConfig(ai config.AI) airecog.Config {
	return airecog.Config{
		Enabled:            ai.Enabled,
		URL:                ai.URL,
		APIKey:             ai.APIKey,
		Model:              ai.Model,
		MaxBatchSize:       ai.MaxBatchSize,
		CallsPerMinute:     ai.CallsPerMinute,
		CallsPerHour:       ai.CallsPerHour,
		MaxAttempts:        ai.MaxAttempts,
		BatchDelay:         ai.BatchDelay,
		IndividualFallback: ai.IndividualFallback,
	}
}
