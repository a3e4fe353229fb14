package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/lidar-samples/internal/admin"
	"github.com/banshee-data/lidar-samples/internal/config"
	"github.com/banshee-data/lidar-samples/internal/lidar"
	"github.com/banshee-data/lidar-samples/internal/lidar/l1packets"
	"github.com/banshee-data/lidar-samples/internal/lidar/pipeline"
	"github.com/banshee-data/lidar-samples/internal/lidar/samplestore"
)

// maxWriteRetries bounds how often a failed sample write is retried
// before the run gives up.
const maxWriteRetries = 3

// retryBackoff is multiplied by the attempt number between retries.
var retryBackoff = time.Second

type convertFlags struct {
	configPath string
	overrides  config.Overrides
	dirs       string

	udpAddr  string
	udpIdle  time.Duration
	rcvBuf   int
	pcapFile string
	pcapPort int

	listen  string
	verbose bool
	trace   bool
}

func parseConvertFlags(args []string) (*convertFlags, error) {
	f := &convertFlags{}
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "Path to a converter JSON config")
	fs.StringVar(&f.dirs, "dirs", "", "Comma-separated recording directories (episode_NNN/<lidar>/lidar_NNNNN.json)")
	fs.StringVar(&f.overrides.LidarName, "lidar", "", "Sensor name inside each episode (default Lidar32)")
	fs.StringVar(&f.overrides.OutputDir, "out", "", "Sample output directory (default _samples)")
	fs.StringVar(&f.overrides.CatalogPath, "catalog", "", "SQLite sample catalog path (empty = no catalog)")
	fs.IntVar(&f.overrides.ChannelCount, "channels", 0, "Channel count (default 32)")
	fs.IntVar(&f.overrides.PointsPerSecond, "pps", 0, "Points per second (default 640000)")
	fs.Float64Var(&f.overrides.RevolutionFrequency, "hz", 0, "Revolution frequency in Hz (default 10)")
	fs.BoolVar(&f.overrides.StrictChannelCounts, "strict", false, "Reject packets with non-uniform per-channel counts")
	fs.IntVar(&f.overrides.StartIndex, "start-index", 0, "Index of the first sample written")
	fs.IntVar(&f.overrides.Prefetch, "prefetch", 0, "Packets to read ahead (0 = synchronous)")
	fs.StringVar(&f.udpAddr, "udp", "", "Receive live packets on this UDP address instead of reading directories")
	fs.DurationVar(&f.udpIdle, "udp-idle", 5*time.Second, "End a UDP stream after this long without data (0 = never)")
	fs.IntVar(&f.rcvBuf, "rcvbuf", 4<<20, "UDP receive buffer size in bytes")
	fs.StringVar(&f.pcapFile, "pcap", "", "Replay packets from a PCAP capture (requires -tags=pcap)")
	fs.IntVar(&f.pcapPort, "pcap-port", 2370, "UDP port carrying packets in the PCAP capture")
	fs.StringVar(&f.listen, "listen", "", "Serve /debug/ admin routes on this address")
	fs.BoolVar(&f.verbose, "v", false, "Log one line per completed scan")
	fs.BoolVar(&f.trace, "trace", false, "Log every packet")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	f.overrides.InputDirs = splitList(f.dirs)
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadConfig(f *convertFlags) (*config.ConverterConfig, error) {
	cfg := config.EmptyConverterConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = config.LoadConverterConfig(f.configPath); err != nil {
			return nil, err
		}
	}
	cfg.Apply(f.overrides)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openSource(ctx context.Context, f *convertFlags, cfg *config.ConverterConfig) (l1packets.Source, string, func(), error) {
	var src l1packets.Source
	var desc string
	closeFn := func() {}

	switch {
	case f.pcapFile != "":
		ps, err := l1packets.NewPCAPSource(f.pcapFile, f.pcapPort)
		if err != nil {
			return nil, "", nil, err
		}
		src, desc, closeFn = ps, "pcap:"+f.pcapFile, func() { ps.Close() }
	case f.udpAddr != "":
		us, err := l1packets.NewUDPSource(l1packets.UDPSourceConfig{
			Address: f.udpAddr, RcvBuf: f.rcvBuf, IdleTimeout: f.udpIdle,
		})
		if err != nil {
			return nil, "", nil, err
		}
		src, desc, closeFn = us, "udp:"+f.udpAddr, func() { us.Close() }
	default:
		if len(cfg.InputDirs) == 0 {
			return nil, "", nil, errors.New("no input: pass -dirs, -udp or -pcap")
		}
		src = l1packets.NewDirSource(nil, cfg.GetLidarName(), cfg.InputDirs...)
		desc = "dirs:" + strings.Join(cfg.InputDirs, ",")
	}

	if n := cfg.GetPrefetch(); n > 0 {
		pf := l1packets.NewPrefetchSource(ctx, src, n)
		inner := closeFn
		src, closeFn = pf, func() { pf.Close(); inner() }
	}
	return src, desc, closeFn, nil
}

func runConvert(args []string) error {
	f, err := parseConvertFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	writers := lidar.LogWriters{Ops: os.Stderr}
	if f.verbose {
		writers.Diag = os.Stderr
	}
	if f.trace {
		writers.Trace = os.Stderr
	}
	lidar.SetLogWriters(writers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scan := cfg.ScanConfig()
	driver, err := pipeline.NewDriver(pipeline.Config{Scan: scan, StartIndex: cfg.GetStartIndex()})
	if err != nil {
		return err
	}
	target, _ := scan.TargetPointsPerChannel()
	lidar.Opsf("converting: channels=%d points/s=%d hz=%v -> %d points per channel per sample",
		scan.ChannelCount, scan.PointsPerSecond, scan.RevolutionFrequency, target)

	src, desc, closeSrc, err := openSource(ctx, f, cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	fileWriter := samplestore.NewFileWriter(nil, cfg.GetOutputDir())
	var writer pipeline.SampleWriter = fileWriter

	var catalog *samplestore.Catalog
	var runID string
	if path := cfg.GetCatalogPath(); path != "" {
		if catalog, err = samplestore.OpenCatalog(path); err != nil {
			return err
		}
		defer catalog.Close()
		if runID, err = catalog.StartRun(ctx, scan, desc); err != nil {
			return err
		}
		writer = samplestore.NewCatalogWriter(fileWriter, catalog, runID)
		lidar.Opsf("catalog run %s in %s", runID, path)
	}

	if f.listen != "" {
		shutdown, err := serveAdmin(f.listen, catalog, driver)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	stats, runErr := runWithRetry(ctx, driver, src, writer)

	if catalog != nil {
		status := samplestore.RunCompleted
		switch {
		case runErr != nil:
			status = samplestore.RunFailed
		case stats.Cancelled:
			status = samplestore.RunCancelled
		}
		// The signal context may be done; record the outcome regardless.
		if err := catalog.FinishRun(context.Background(), runID, status, stats.Packets, stats.Samples, runErr); err != nil {
			lidar.Opsf("failed to record run outcome: %v", err)
		}
	}

	lidar.Opsf("processed %d packets, wrote %d samples to %s (next index %d, discarded %d trailing packets)",
		stats.Packets, stats.Samples, fileWriter.Dir(), stats.NextIndex, stats.DiscardedPackets)
	if stats.Cancelled {
		fmt.Fprintln(os.Stderr, "\nCancelled by user. Bye!")
	}
	return runErr
}

// runWithRetry runs the driver to completion, retrying failed sample
// writes a bounded number of times before giving up.
func runWithRetry(ctx context.Context, driver *pipeline.Driver, src l1packets.Source, w pipeline.SampleWriter) (pipeline.RunStats, error) {
	for {
		stats, err := driver.Run(ctx, src, w)
		var wf *pipeline.WriteFailureError
		if !errors.As(err, &wf) {
			return stats, err
		}

		for attempt := 1; ; attempt++ {
			if attempt > maxWriteRetries {
				return driver.Stats(), err
			}
			select {
			case <-ctx.Done():
				return driver.Stats(), err
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
			lidar.Opsf("retrying sample %d (attempt %d/%d)", wf.SampleIndex, attempt, maxWriteRetries)
			if err = driver.RetryPending(ctx, w); err == nil {
				break
			}
		}
	}
}

func serveAdmin(addr string, catalog *samplestore.Catalog, driver *pipeline.Driver) (func(), error) {
	mux := http.NewServeMux()
	if err := admin.AttachAdminRoutes(mux, catalog, func() interface{} { return driver.Stats() }); err != nil {
		return nil, err
	}
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("admin server error: %v", err)
		}
	}()
	lidar.Opsf("admin routes on http://%s/debug/", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("admin server shutdown error: %v", err)
		}
	}, nil
}
