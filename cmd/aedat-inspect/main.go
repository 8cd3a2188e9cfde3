// Command aedat-inspect decodes AEDAT recordings and prints a summary of
// their contents, optionally caching v3 packet indexes and writing plots.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/aedat/internal/aedat/eventplot"
	"github.com/banshee-data/aedat/internal/aedat/importer"
	"github.com/banshee-data/aedat/internal/aedat/indexstore"
	"github.com/banshee-data/aedat/internal/aedat/summary"
	"github.com/banshee-data/aedat/internal/config"
	"github.com/banshee-data/aedat/internal/monitoring"
	"github.com/banshee-data/aedat/internal/units"
	"github.com/banshee-data/aedat/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("aedat-inspect", flag.ContinueOnError)
	flags.SetOutput(stderr)

	configPath := flags.String("config", "", "JSON import config, e.g. "+config.DefaultConfigPath)
	startEvent := flags.Int64("start-event", 0, "first event index to read (v1/v2)")
	endEvent := flags.Int64("end-event", -1, "event index to stop before, -1 for all (v1/v2)")
	startPacket := flags.Int64("start-packet", 0, "first packet to read (v3)")
	endPacket := flags.Int64("end-packet", -1, "packet to stop before, -1 for all (v3)")
	startTime := flags.Duration("start-time", 0, "earliest timestamp to keep")
	endTime := flags.Duration("end-time", 0, "latest timestamp to keep")
	types := flags.String("types", "", "comma-separated kinds to decode, e.g. polarity,imu6")
	source := flags.String("source", "", "sensor to assume instead of the one in the header")
	suppress := flags.Bool("suppress-payload", false, "index packets without decoding events (v3)")
	skip := flags.Int64("skip", 1, "decode every n-th packet (v3)")
	indexDB := flags.String("index-db", "", "SQLite file caching v3 packet indexes")
	plotDir := flags.String("plot-dir", "", "directory to write event plots into")
	bin := flags.Duration("bin", 10*time.Millisecond, "bin width of the event rate plot")
	metricsFile := flags.String("metrics-file", "", "write import metrics in Prometheus text format to this file")
	si := flags.Bool("si", false, "report IMU means in m/s² and rad/s")
	debug := flags.Bool("debug", false, "log per-packet decoder detail to stderr")
	quiet := flags.Bool("quiet", false, "suppress import log lines")
	showVersion := flags.Bool("version", false, "print the version and exit")

	if err := flags.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintf(stdout, "aedat-inspect %s (%s)\n", version.Version, version.GitSHA)
		return 0
	}
	if *quiet {
		monitoring.SetLogger(nil)
	} else {
		monitoring.SetLogger(log.New(stderr, "", log.LstdFlags).Printf)
	}
	monitoring.SetDebug(*debug && !*quiet)

	if flags.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: aedat-inspect [flags] recording.aedat...")
		return 2
	}

	cfg := config.EmptyImportConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadImportConfig(*configPath); err != nil {
			fmt.Fprintf(stderr, "load config: %v\n", err)
			return 1
		}
	}

	// Flags given on the command line override the config file.
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "start-event":
			cfg.StartEvent = startEvent
		case "end-event":
			cfg.EndEvent = endEvent
		case "start-packet":
			cfg.StartPacket = startPacket
		case "end-packet":
			cfg.EndPacket = endPacket
		case "start-time":
			s := startTime.String()
			cfg.StartTime = &s
		case "end-time":
			s := endTime.String()
			cfg.EndTime = &s
		case "types":
			cfg.DataTypes = nil
			for _, t := range strings.Split(*types, ",") {
				if t = strings.TrimSpace(t); t != "" {
					cfg.DataTypes = append(cfg.DataTypes, t)
				}
			}
		case "source":
			cfg.Source = source
		case "suppress-payload":
			cfg.SuppressPayload = suppress
		case "skip":
			cfg.SkipEveryNPackets = skip
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid options: %v\n", err)
		return 2
	}
	opts := cfg.Options()

	var cache importer.IndexCache
	if *indexDB != "" {
		store, err := indexstore.Open(*indexDB)
		if err != nil {
			fmt.Fprintf(stderr, "open index cache: %v\n", err)
			return 1
		}
		defer store.Close()
		cache = store
	}
	im := importer.New(nil, cache)
	reg := prometheus.NewRegistry()
	if *metricsFile != "" {
		im.SetMetrics(monitoring.NewImportMetrics(reg))
	}

	status := 0
	for _, path := range flags.Args() {
		if err := inspect(im, path, opts, *plotDir, *bin, *si, stdout, stderr); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			status = 1
		}
	}

	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
			fmt.Fprintf(stderr, "write metrics: %v\n", err)
			status = 1
		}
	}
	return status
}

func inspect(im *importer.Importer, path string, opts importer.Options, plotDir string, bin time.Duration, si bool, stdout, stderr io.Writer) error {
	res, err := im.Import(path, opts)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(stderr, "%s: warning: %v\n", path, w)
	}

	h := res.Header
	fmt.Fprintf(stdout, "%s: AEDAT v%d, source %s", path, h.FormatVersion, h.Source)
	if h.RecordedAt != "" {
		fmt.Fprintf(stdout, ", recorded %s", h.RecordedAt)
	}
	if res.Index != nil {
		fmt.Fprintf(stdout, ", %d packets", res.Index.Len())
		if !res.Index.Complete {
			fmt.Fprint(stdout, " (partial)")
		}
	}
	fmt.Fprintln(stdout)

	sum := summary.Compute(res.Store)
	if si && sum.Imu != nil {
		m := sum.Imu.Convert(units.MPS2, units.RADPS)
		sum.Imu = &m
	}
	if _, err := sum.WriteTo(stdout); err != nil {
		return err
	}

	if plotDir == "" || res.Store.Empty() {
		return nil
	}
	written, err := eventplot.SaveReport(res.Store, h.Source, path, plotDir, bin)
	if err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	for _, p := range written {
		fmt.Fprintf(stdout, "wrote %s\n", p)
	}
	return nil
}
