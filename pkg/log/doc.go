/*
Package log provides structured logging for Googol using zerolog.

A single global Logger is configured once per process by Init. Every role
derives a child logger so log lines can be filtered by the emitting component:

	┌──────────────── LOGGING ────────────────┐
	│  log.Init(Config{Level, JSONOutput})    │
	│              │                          │
	│   ┌──────────▼───────────┐              │
	│   │   global Logger      │              │
	│   └──────────┬───────────┘              │
	│   WithComponent("gateway")              │
	│   WithNodeName("barrel", "Barrel-1")    │
	│   WithDownloader("3f2a...")             │
	└─────────────────────────────────────────┘

Console output is the default; JSON output is selected with --log-json on
every googol subcommand. Process roles pass their name as Config.Role, so
every line a barrel process writes carries role=barrel.

# Usage

	log.Init(log.Config{Level: log.ParseLevel("debug"), JSONOutput: true})

	logger := log.WithNodeName("barrel", "Barrel-1")
	logger.Info().Int("terms", 120).Msg("Barrel activated")

	log.Logger.Error().Err(err).Msg("Failed to reach gateway")
*/
package log
