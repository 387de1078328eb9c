package main

import (
	"context"
	"fmt"
	"github.com/litetable/litetable-reader/internal/app"
	"github.com/litetable/litetable-reader/internal/emulator"
	"github.com/maruel/subcommands"
	"github.com/rs/zerolog/log"
	"os"
)

var cmdEmulate = &subcommands.Command{
	UsageLine: "emulate -seed <file> [options]",
	ShortDesc: "serves an in-memory table over the Bigtable ReadRows API",
	LongDesc: `Serves the rows of a YAML seed file over gRPC until interrupted.

The seed may script faults, such as failing the first attempt after two rows, to
exercise resumption. Point scan at it with endpoint=<address>:<port> and
insecure=true.`,
	CommandRun: func() subcommands.CommandRun {
		c := &emulateRun{}
		c.Flags.StringVar(&c.seedPath, "seed", "", "Path of the YAML seed file. Required.")
		c.Flags.StringVar(&c.address, "address", "127.0.0.1", "Address to listen on.")
		c.Flags.IntVar(&c.port, "port", 8086, "Port to listen on.")
		c.Flags.BoolVar(&c.debug, "debug", false, "Enable debug logging.")
		return c
	},
}

type emulateRun struct {
	subcommands.CommandRunBase

	seedPath string
	address  string
	port     int
	debug    bool
}

func (c *emulateRun) Run(_ subcommands.Application, _ []string, _ subcommands.Env) int {
	setupLogging(c.debug)
	if c.seedPath == "" {
		log.Error().Msg("missing required argument (-seed)")
		return 1
	}
	if err := c.run(context.Background()); err != nil {
		log.Error().Err(err).Msg("emulator failed")
		return 1
	}
	return 0
}

func (c *emulateRun) run(ctx context.Context) error {
	srv, err := c.server()
	if err != nil {
		return err
	}

	a, err := app.CreateApp(&app.Config{
		ServiceName: "LiteTable Emulator",
		StopTimeout: stopTimeout,
	}, srv)
	if err != nil {
		return err
	}
	return a.Run(ctx, nil)
}

// server builds the emulator described by the seed file.
func (c *emulateRun) server() (*emulator.Server, error) {
	f, err := os.Open(c.seedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	seed, err := emulator.LoadSeed(f)
	if err != nil {
		return nil, err
	}
	svcCfg, err := seed.ServiceConfig()
	if err != nil {
		return nil, err
	}

	log.Info().Str("table", seed.Table).Int("rows", len(seed.Rows)).Int("faults", len(seed.Faults)).Msg("seed loaded")
	return emulator.NewServer(&emulator.Config{
		Address: c.address,
		Port:    c.port,
		Service: emulator.NewService(svcCfg),
	})
}
