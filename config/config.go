package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Library Library `json:"library" yaml:"library" mapstructure:"library"`
	Scanner Scanner `json:"scanner" yaml:"scanner" mapstructure:"scanner"`
	AI      AI      `json:"ai" yaml:"ai" mapstructure:"ai"`
	Storage Storage `json:"storage" yaml:"storage" mapstructure:"storage"`
	Server  Server  `json:"server" yaml:"server" mapstructure:"server"`
}

type Library struct {
	// Datasources are the root directories holding one show per subfolder.
	Datasources   []string `json:"datasources" yaml:"datasources" mapstructure:"datasources" validate:"required,min=1,dive,required"`
	ImageCacheDir string   `json:"imageCacheDir" yaml:"imageCacheDir" mapstructure:"imageCacheDir"`
}

type Scanner struct {
	Workers        int      `json:"workers" yaml:"workers" mapstructure:"workers" validate:"gte=1,lte=32"`
	SkipFolders    []string `json:"skipFolders" yaml:"skipFolders" mapstructure:"skipFolders"`
	SkipPaths      []string `json:"skipPaths" yaml:"skipPaths" mapstructure:"skipPaths"`
	SkipOnNoMedia  bool     `json:"skipOnNoMedia" yaml:"skipOnNoMedia" mapstructure:"skipOnNoMedia"`
	ExtractArtwork bool     `json:"extractArtwork" yaml:"extractArtwork" mapstructure:"extractArtwork"`
}

type AI struct {
	Enabled            bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	URL                string        `json:"url" yaml:"url" mapstructure:"url" validate:"required_if=Enabled true,omitempty,url"`
	APIKey             string        `json:"apiKey" yaml:"apiKey" mapstructure:"apiKey"`
	Model              string        `json:"model" yaml:"model" mapstructure:"model" validate:"required_if=Enabled true"`
	MaxBatchSize       int           `json:"maxBatchSize" yaml:"maxBatchSize" mapstructure:"maxBatchSize" validate:"gte=0"`
	CallsPerMinute     int           `json:"callsPerMinute" yaml:"callsPerMinute" mapstructure:"callsPerMinute" validate:"gte=0"`
	CallsPerHour       int           `json:"callsPerHour" yaml:"callsPerHour" mapstructure:"callsPerHour" validate:"gte=0"`
	MaxAttempts        int           `json:"maxAttempts" yaml:"maxAttempts" mapstructure:"maxAttempts" validate:"gte=1"`
	BatchDelay         time.Duration `json:"batchDelay" yaml:"batchDelay" mapstructure:"batchDelay"`
	IndividualFallback bool          `json:"individualFallback" yaml:"individualFallback" mapstructure:"individualFallback"`
}

// Storage configuration is assumed to be for sqlite database only currently
type Storage struct {
	FilePath string `json:"filePath" yaml:"filePath" mapstructure:"filePath" validate:"required"`
}

type Server struct {
	Port int `json:"port" yaml:"port" mapstructure:"port" validate:"gte=1,lte=65535"`
}

type ConfigUnmarshaler interface {
	ReadInConfig() error
	Unmarshal(any, ...viper.DecoderConfigOption) error
	ConfigFileUsed() string
}

// New reads a new configuration
func New(cu ConfigUnmarshaler) (Config, error) {
	var c Config

	if cu.ConfigFileUsed() != "" {
		err := cu.ReadInConfig()
		if err != nil {
			return c, err
		}
	}

	err := cu.Unmarshal(&c)
	return c, err
}

// Validate checks field constraints across the whole configuration.
func (c Config) Validate() error {
	return validator.New().Struct(c)
}
