package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/litetable/litetable-reader/internal/app"
	"github.com/litetable/litetable-reader/internal/config"
	"github.com/litetable/litetable-reader/internal/litetable"
	"github.com/litetable/litetable-reader/internal/metrics"
	"github.com/litetable/litetable-reader/internal/reader"
	"github.com/litetable/litetable-reader/internal/server"
	"github.com/litetable/litetable-reader/internal/transport"
	"github.com/maruel/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"time"
)

var cmdScan = &subcommands.Command{
	UsageLine: "scan [options]",
	ShortDesc: "reads rows and prints them as JSON lines",
	LongDesc: `Reads rows from the configured table and prints one JSON object per row.

Rows are selected by a YAML options file (-options) or by -key, -prefix and -limit.
Interrupted streams are resumed after the last row printed, so no row is printed
twice. Connection settings come from the config file (-config, default
~/.litetable/reader.conf) and LITETABLE_* environment variables.`,
	CommandRun: func() subcommands.CommandRun {
		c := &scanRun{}
		c.Flags.StringVar(&c.configPath, "config", "", "Path of the reader config file.")
		c.Flags.StringVar(&c.optionsPath, "options", "", "Path of a YAML file describing the rows to read.")
		c.Flags.Var(&c.keys, "key", "Row key to read. May be repeated.")
		c.Flags.StringVar(&c.prefix, "prefix", "", "Read rows whose key starts with this prefix.")
		c.Flags.Int64Var(&c.limit, "limit", 0, "Maximum number of rows to print. 0 is unlimited.")
		c.Flags.BoolVar(&c.debug, "debug", false, "Enable debug logging.")
		return c
	},
}

type scanRun struct {
	subcommands.CommandRunBase

	configPath  string
	optionsPath string
	keys        stringList
	prefix      string
	limit       int64
	debug       bool
}

func (c *scanRun) Run(_ subcommands.Application, args []string, _ subcommands.Env) int {
	if len(args) > 0 {
		log.Error().Msgf("unexpected arguments: %v", args)
		return 1
	}
	if err := c.run(context.Background(), os.Stdout); err != nil {
		log.Error().Err(err).Msg("scan failed")
		return 1
	}
	return 0
}

// debugEnabled reports whether either the config file or the --debug flag asks for
// debug output.
func (c *scanRun) debugEnabled(cfg *config.Config) bool {
	return cfg.Debug || c.debug
}

func (c *scanRun) run(ctx context.Context, out io.Writer) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	debug := c.debugEnabled(cfg)
	setupLogging(debug)

	opts, err := c.options()
	if err != nil {
		return err
	}
	spec, err := opts.Spec()
	if err != nil {
		return err
	}
	if spec.Timeout == 0 {
		spec.Timeout = cfg.OperationTimeout
	}

	tr, err := transport.New(&transport.Config{
		Endpoint: cfg.Endpoint,
		Insecure: cfg.Insecure,
	})
	if err != nil {
		return err
	}
	deps := []app.Dependency{tr}

	var sinks []metrics.Sink
	if debug {
		sinks = append(sinks, metrics.LogSink{})
	}
	if cfg.MetricsPort > 0 {
		reg := prometheus.NewRegistry()
		sinks = append(sinks, metrics.NewPrometheus(reg))

		srv, err := server.New(&server.Config{
			Address:  cfg.MetricsAddress,
			Port:     cfg.MetricsPort,
			Registry: reg,
		})
		if err != nil {
			return err
		}
		deps = append(deps, srv)
	}

	rd, err := reader.New(&reader.Config{
		Transport:    tr,
		Sink:         metrics.Multi(sinks...),
		Table:        cfg.Table,
		AppProfileID: cfg.AppProfile,
		Policy:       cfg.Policy(),
		Debug:        debug,
	})
	if err != nil {
		return err
	}

	a, err := app.CreateApp(&app.Config{
		ServiceName: serviceName,
		StopTimeout: stopTimeout,
	}, deps...)
	if err != nil {
		return err
	}

	return a.Run(ctx, func(ctx context.Context) error {
		n, err := writeRows(ctx, rd, spec, out)
		log.Info().Int("rows", n).Str("table", cfg.Table).Msg("scan finished")
		return err
	})
}

// options merges the options file with the command line flags; flags win.
func (c *scanRun) options() (reader.Options, error) {
	var opts reader.Options
	if c.optionsPath != "" {
		f, err := os.Open(c.optionsPath)
		if err != nil {
			return opts, fmt.Errorf("failed to open options file: %w", err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
			return opts, fmt.Errorf("failed to decode options file: %w", err)
		}
	}

	if len(c.keys) > 0 {
		opts.Keys = c.keys
	}
	if c.prefix != "" {
		opts.Prefix = c.prefix
	}
	if c.limit != 0 {
		opts.Limit = c.limit
	}
	return opts, nil
}

// scannedRow is the printed form of a row.
type scannedRow struct {
	Key      string                              `json:"key"`
	Families map[string]map[string][]scannedCell `json:"families"`
}

type scannedCell struct {
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Labels    []string  `json:"labels,omitempty"`
}

func newScannedRow(row litetable.Row) scannedRow {
	out := scannedRow{
		Key:      string(row.Key),
		Families: make(map[string]map[string][]scannedCell, len(row.Families)),
	}
	for family, qualifiers := range row.Columns() {
		fam := make(map[string][]scannedCell, len(qualifiers))
		for qualifier, values := range qualifiers {
			for _, v := range values {
				fam[qualifier] = append(fam[qualifier], scannedCell{
					Value:     string(v.Value),
					Timestamp: time.UnixMicro(v.Timestamp).UTC(),
					Labels:    v.Labels,
				})
			}
		}
		out.Families[family] = fam
	}
	return out
}

// writeRows prints every row of the read as one JSON line and returns how many
// rows were written.
func writeRows(ctx context.Context, rd *reader.Reader, spec reader.ReadSpec, out io.Writer) (int, error) {
	enc := json.NewEncoder(out)
	n := 0
	for row, err := range rd.Rows(ctx, spec) {
		if err != nil {
			return n, err
		}
		if err := enc.Encode(newScannedRow(row)); err != nil {
			return n, fmt.Errorf("failed to write row %q: %w", row.Key, err)
		}
		n++
	}
	return n, nil
}

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string {
	return fmt.Sprint([]string(*l))
}

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}
