// Command update-cache regenerates the ZIP table snapshot from raw data.
//
// Usage:
//
//	go run ./cmd/update-cache [-data ./civix-data] [-cache ./civix-cache]
//
// Rows the loader rejects are logged. After running, optionally compress:
//
//	bzip2 -f civix-cache/zips.dmp
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bison808/civix"
	"go.uber.org/zap"
)

func main() {
	dataDir := flag.String("data", "./civix-data", "directory with raw data files")
	cacheDir := flag.String("cache", "./civix-cache", "directory for the snapshot")
	validate := flag.Bool("validate", true, "run data validation after regenerating")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	opts := []civix.Option{
		civix.WithDataDir(*dataDir),
		civix.WithCacheDir(*cacheDir),
		civix.WithLogger(logger),
	}

	fmt.Println("Regenerating ZIP table snapshot from raw data...")
	n, err := civix.RegenerateCache(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Snapshot written: %d records.\n", n)

	if *validate {
		fmt.Println("Validating...")
		if err := civix.ValidateData(os.Stdout, opts...); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Run 'bzip2 -f %s/zips.dmp' to compress the snapshot.\n", *cacheDir)
}
