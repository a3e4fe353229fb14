// Command lidar-samples converts recorded or live simulator LiDAR packets
// into fixed-size per-revolution training samples.
//
// Usage:
//
//	lidar-samples convert [flags]          accumulate packets and write samples
//	lidar-samples inspect [flags] FILE...  summarise and render written samples
//	lidar-samples migrate up|down|version  manage the sample catalog schema
//	lidar-samples version                  print build information
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/lidar-samples/internal/version"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: lidar-samples <command> [flags]

Commands:
  convert   accumulate packets into samples
  inspect   summarise and render sample files
  migrate   manage the sample catalog schema (up, down, version)
  version   print build information
`)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "convert":
		err = runConvert(os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:])
	case "migrate":
		err = runMigrate(os.Args[2:])
	case "version":
		fmt.Println(version.String())
		return
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}
