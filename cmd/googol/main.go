package main

import (
	"fmt"
	"os"

	"github.com/cuemby/googol/pkg/config"
	"github.com/cuemby/googol/pkg/log"
	"github.com/cuemby/googol/pkg/metrics"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// cfg is loaded once before any subcommand runs
var cfg = config.Default()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "googol",
	Short: "Googol - distributed web crawler and search engine",
	Long: `Googol crawls the web with a pool of downloaders, replicates the
resulting inverted index across storage barrels and answers searches
through a gateway that balances load on the fastest barrel.

Every process role is a subcommand. Start a registry first, then a queue,
a gateway, one or more barrels and downloaders.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Googol version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to the cluster YAML file")
	flags.String("registry", config.DefaultRegistry, "Address of the directory service")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Write logs as JSON")
	flags.String("metrics-addr", "", "Address for /health, /ready and /metrics (empty disables)")

	rootCmd.AddGroup(
		&cobra.Group{ID: roleGroup, Title: "Process roles:"},
		&cobra.Group{ID: clientGroup, Title: "Client commands:"},
	)

	for _, cmd := range []*cobra.Command{registryCmd, queueCmd, barrelCmd, downloaderCmd, gatewayCmd, stopWordsCmd} {
		cmd.GroupID = roleGroup
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{indexCmd, searchCmd, linksCmd, statsCmd, statusCmd} {
		cmd.GroupID = clientGroup
		rootCmd.AddCommand(cmd)
	}
}

const (
	roleGroup   = "roles"
	clientGroup = "client"
)

// loadConfig reads the cluster file and applies flags that were set explicitly
func loadConfig(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}

	if flags.Changed("registry") {
		loaded.Registry, _ = flags.GetString("registry")
	}
	if flags.Changed("log-level") {
		loaded.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		loaded.Log.JSON, _ = flags.GetBool("log-json")
	}
	if flags.Changed("metrics-addr") {
		loaded.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	cfg = loaded

	logCfg := log.Config{
		Level:      cfg.LogLevel(),
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stderr,
	}
	if cmd.GroupID == roleGroup {
		logCfg.Role = cmd.Name()
	}
	log.Init(logCfg)
	metrics.SetVersion(Version)
	return nil
}
