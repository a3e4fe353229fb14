package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/lidar-samples/internal/lidar/inspect"
	"github.com/banshee-data/lidar-samples/internal/lidar/l2scans"
)

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	channels := fs.Int("channels", 32, "Channel count of the samples")
	pps := fs.Int("pps", 640000, "Points per second used when the samples were written")
	hz := fs.Float64("hz", 10, "Revolution frequency used when the samples were written")
	png := fs.Bool("png", false, "Write a top-down PNG next to each sample")
	html := fs.Bool("html", false, "Write an interactive HTML scatter next to each sample")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("no sample files given")
	}

	scan := l2scans.ScanConfig{ChannelCount: *channels, PointsPerSecond: *pps, RevolutionFrequency: *hz}
	target, err := scan.TargetPointsPerChannel()
	if err != nil {
		return err
	}

	for _, path := range fs.Args() {
		s, err := inspect.DecodeFile(nil, path, *channels, target)
		if err != nil {
			return err
		}
		printSummary(path, inspect.Summarize(s))

		base := strings.TrimSuffix(path, filepath.Ext(path))
		if *png {
			if err := inspect.RenderPNG(s, base+".png"); err != nil {
				return err
			}
		}
		if *html {
			if err := writeHTML(s, base+".html"); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeHTML(s *inspect.Sample, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := inspect.RenderHTML(f, s, filepath.Base(s.Path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(path string, sum *inspect.Summary) {
	fmt.Printf("%s\n", path)
	fmt.Printf("  %4s %8s %10s %10s %10s %8s %5s\n", "ring", "points", "mean_r", "std_r", "max_r", "mean_z", "ok")
	for _, c := range sum.Channels {
		fmt.Printf("  %4d %8d %10.2f %10.2f %10.2f %8.2f %5v\n",
			c.Ring, c.Points, c.MeanRange, c.StdDevRange, c.MaxRange, c.MeanZ, c.RingValid)
	}
	fmt.Printf("  labels:")
	for _, l := range sum.Labels() {
		fmt.Printf(" %d=%d", l, sum.LabelHistogram[l])
	}
	fmt.Println()
}
