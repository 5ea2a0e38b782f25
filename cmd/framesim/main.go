// Command framesim runs the framealloc allocators through a simulated frame
// loop and prints how they behaved.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pavanmanishd/framealloc/internal/framesim"
)

type runCommand struct {
	configFile *string
	frames     *int
	mmap       *bool
	logLevel   *string
	listenAddr *string
}

func (cmd *runCommand) run(_ *kingpin.ParseContext) error {
	logger := newLogger(*cmd.logLevel)

	cfg, err := framesim.LoadConfig(*cmd.configFile)
	if err != nil {
		return err
	}
	if *cmd.frames > 0 {
		cfg.Frames = *cmd.frames
	}
	if *cmd.mmap {
		cfg.Mmap = true
	}

	reg := prometheus.NewRegistry()
	if *cmd.listenAddr != "" {
		srv := &http.Server{
			Addr:              *cmd.listenAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				level.Error(logger).Log("msg", "metrics server failed", "err", err)
			}
		}()
		defer func() { _ = srv.Close() }()
		level.Info(logger).Log("msg", "serving metrics", "addr", *cmd.listenAddr)
	}

	loop, err := framesim.NewLoop(cfg, logger, reg)
	if err != nil {
		return errors.Wrap(err, "failed to build frame loop")
	}
	defer func() { _ = loop.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := loop.Run(ctx)
	printSummary(summary)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printSummary(s framesim.Summary) {
	bold := color.New(color.Bold)
	bold.Println("Frames:")
	fmt.Printf("\tran: %d, drawn: %d, material switches: %d, retired: %d\n",
		s.Frames, s.Drawn, s.MaterialSwitches, s.Retired)

	bold.Println("Allocators:")
	names := make([]string, 0, len(s.Stats))
	for name := range s.Stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st := s.Stats[name]
		failures := color.GreenString("0")
		if n := s.Failures[name]; n > 0 {
			failures = color.RedString("%d", n)
		}
		fmt.Printf("\t%s: capacity %v, peak %v (%.1f%%), allocations %d, failures %s\n",
			name,
			humanize.IBytes(uint64(st.Capacity)),
			humanize.IBytes(uint64(st.Peak)),
			peakRatio(st.Peak, st.Capacity)*100,
			st.Allocations,
			failures,
		)
	}
}

func peakRatio(peak, capacity int) float64 {
	if capacity == 0 {
		return 0
	}
	return float64(peak) / float64(capacity)
}

func newLogger(lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	switch lvl {
	case "debug":
		return level.NewFilter(logger, level.AllowDebug())
	case "warn":
		return level.NewFilter(logger, level.AllowWarn())
	case "error":
		return level.NewFilter(logger, level.AllowError())
	default:
		return level.NewFilter(logger, level.AllowInfo())
	}
}

func main() {
	app := kingpin.New("framesim", "Run framealloc allocators through a simulated frame loop.")
	app.HelpFlag.Short('h')

	cmd := &runCommand{}
	run := app.Command("run", "Run the simulation and print allocator statistics.").Default().Action(cmd.run)
	cmd.configFile = run.Flag("config.file", "YAML config file. Environment variables prefixed with "+framesim.EnvPrefix+"_ override it.").String()
	cmd.frames = run.Flag("frames", "Number of frames to run, overriding the config.").Int()
	cmd.mmap = run.Flag("mmap", "Back owned regions with anonymous mappings.").Bool()
	cmd.logLevel = run.Flag("log.level", "Only log messages with the given severity or above.").Default("info").Enum("debug", "info", "warn", "error")
	cmd.listenAddr = run.Flag("web.listen-address", "Address to serve Prometheus metrics on while running. Empty disables it.").Default("").String()

	kingpin.MustParse(app.Parse(os.Args[1:]))
}
