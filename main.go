// Command litetable-reader scans Bigtable-compatible tables with resumable reads and
// serves an in-memory emulator for local use.
package main

import (
	"github.com/maruel/subcommands"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"os"
	"time"
)

const (
	serviceName = "LiteTable Reader"
	stopTimeout = 10 * time.Second
)

var application = &subcommands.DefaultApplication{
	Name:  "litetable-reader",
	Title: "Resumable row reads against Bigtable-compatible services.",
	Commands: []*subcommands.Command{
		subcommands.CmdHelp,

		cmdScan,
		cmdEmulate,
	},
}

func main() {
	setupLogging(false)
	os.Exit(subcommands.Run(application, nil))
}

// setupLogging writes human readable logs to stderr, keeping stdout for rows.
func setupLogging(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()
}
