package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mediascout",
	Short: "mediascout cli",
	Long:  `mediascout cli`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file")
}

func initConfig() {
	viper.SetConfigFile(cfgFile)

	viper.SetEnvPrefix("MEDIASCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", ""))
	viper.AutomaticEnv()

	viper.SetDefault("library.datasources", []string{})
	viper.SetDefault("library.imageCacheDir", "images")

	viper.SetDefault("scanner.workers", 3)
	viper.SetDefault("scanner.skipFolders", []string{})
	viper.SetDefault("scanner.skipPaths", []string{})
	viper.SetDefault("scanner.skipOnNoMedia", true)
	viper.SetDefault("scanner.extractArtwork", false)

	viper.SetDefault("ai.enabled", false)
	viper.SetDefault("ai.url", "")
	viper.SetDefault("ai.apiKey", "")
	viper.SetDefault("ai.model", "")
	viper.SetDefault("ai.maxBatchSize", 50)
	viper.SetDefault("ai.callsPerMinute", 0)
	viper.SetDefault("ai.callsPerHour", 0)
	viper.SetDefault("ai.maxAttempts", 3)
	viper.SetDefault("ai.batchDelay", time.Second)
	viper.SetDefault("ai.individualFallback", false)

	viper.SetDefault("storage.filePath", "mediascout.sqlite")

	viper.SetDefault("server.port", 8080)
}
