package main

import (
	"flag"
	"fmt"

	"github.com/banshee-data/lidar-samples/internal/lidar/samplestore"
)

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	path := fs.String("catalog", "samples.db", "SQLite sample catalog path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: lidar-samples migrate [-catalog path] up|down|version")
	}

	catalog, err := samplestore.OpenCatalogNoMigrate(*path)
	if err != nil {
		return err
	}
	defer catalog.Close()

	switch action := fs.Arg(0); action {
	case "up":
		if err := catalog.MigrateUp(); err != nil {
			return err
		}
	case "down":
		if err := catalog.MigrateDown(); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}

	version, dirty, err := catalog.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Printf("catalog %s: schema version %d (dirty=%v)\n", *path, version, dirty)
	return nil
}
