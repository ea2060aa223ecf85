package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/googol/pkg/downloader"
	"github.com/cuemby/googol/pkg/gateway"
	"github.com/cuemby/googol/pkg/log"
	"github.com/cuemby/googol/pkg/multicast"
	"github.com/cuemby/googol/pkg/queue"
	"github.com/cuemby/googol/pkg/retry"
	"github.com/cuemby/googol/pkg/stopwords"
	"gopkg.in/yaml.v3"
)

// DefaultRegistry is where every role looks for the directory
const DefaultRegistry = "127.0.0.1:7000"

// Config is the cluster file shared by every googol process
type Config struct {
	Registry string    `yaml:"registry"`
	Log      LogConfig `yaml:"log"`
	// MetricsAddr is the /health, /ready and /metrics listener. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
	// MetricsInterval is how often component gauges are sampled
	MetricsInterval time.Duration `yaml:"metrics_interval"`

	Queue      queue.Config           `yaml:"queue"`
	Barrel     BarrelConfig           `yaml:"barrel"`
	Downloader DownloaderConfig       `yaml:"downloader"`
	Gateway    gateway.Config         `yaml:"gateway"`
	StopWords  stopwords.Config       `yaml:"stopwords"`
	Fetch      downloader.FetchConfig `yaml:"fetch"`
}

// LogConfig selects the log level and format
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// BarrelConfig holds storage node settings
type BarrelConfig struct {
	// GatewayPoll is how often a starting barrel retries reaching the gateway
	GatewayPoll time.Duration `yaml:"gateway_poll"`
}

// DownloaderConfig holds crawl worker settings
type DownloaderConfig struct {
	Multicast  multicast.Config `yaml:"multicast"`
	QueueRetry retry.Config     `yaml:"queue_retry"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Registry:        DefaultRegistry,
		Log:             LogConfig{Level: string(log.InfoLevel)},
		MetricsInterval: 15 * time.Second,
		Queue:           queue.Config{DeliveryTimeout: 10 * time.Second},
		Barrel:          BarrelConfig{GatewayPoll: 2 * time.Second},
		Downloader: DownloaderConfig{
			Multicast:  multicast.DefaultConfig(),
			QueueRetry: retry.DefaultConfig(),
		},
		Gateway:   gateway.DefaultConfig(),
		StopWords: stopwords.DefaultConfig(),
		Fetch:     downloader.DefaultFetchConfig(),
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no component can run with
func (c Config) Validate() error {
	if c.Registry == "" {
		return fmt.Errorf("registry address is required")
	}
	if c.Downloader.QueueRetry.Attempts < 1 {
		return fmt.Errorf("downloader.queue_retry.attempts must be at least 1")
	}
	if c.Gateway.Retry.Attempts < 1 {
		return fmt.Errorf("gateway.retry.attempts must be at least 1")
	}
	if c.Downloader.Multicast.MaxRetries < 1 {
		return fmt.Errorf("downloader.multicast.max_retries must be at least 1")
	}
	if c.Downloader.Multicast.MaxWorkers < 1 {
		return fmt.Errorf("downloader.multicast.max_workers must be at least 1")
	}
	if c.Gateway.Heartbeat.Interval <= 0 {
		return fmt.Errorf("gateway.heartbeat.interval must be positive")
	}
	if c.StopWords.Threshold <= 0 || c.StopWords.Threshold > 1 {
		return fmt.Errorf("stopwords.threshold must be in (0, 1]")
	}
	if c.Fetch.RatePerHost < 0 {
		return fmt.Errorf("fetch.rate_per_host must not be negative")
	}
	return nil
}

// LogLevel returns the parsed log level
func (c Config) LogLevel() log.Level {
	return log.ParseLevel(c.Log.Level)
}
