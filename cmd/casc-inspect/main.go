// casc-inspect opens a CASC storage and prints its StorageInfo summary: a
// thin additive surface over the engine, not part of it. It does not
// extract or list individual files.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/cascfs/casc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "casc-inspect: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var localPath, cdnURL, codeName, region, buildKey string
	var verbose bool

	flagSet := pflag.NewFlagSet("casc-inspect", pflag.ContinueOnError)
	flagSet.StringVar(&localPath, "local", "", "local storage directory")
	flagSet.StringVar(&cdnURL, "cdn", "", "CDN base URL (enables online mode)")
	flagSet.StringVar(&codeName, "product", "", "product code name")
	flagSet.StringVar(&region, "region", "", "build-descriptor region")
	flagSet.StringVar(&buildKey, "build-key", "", "select a build descriptor row by key instead of region")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log each assembly stage")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		flagSet.PrintDefaults()
		return nil
	}
	if localPath == "" && cdnURL == "" {
		return fmt.Errorf("one of --local or --cdn is required")
	}

	logHandler := slog.NewTextHandler(io.Discard, nil)
	if verbose {
		logHandler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)

	params := casc.Params{LocalPath: localPath, CDNURL: cdnURL, CodeName: codeName, Region: region, BuildKey: buildKey, Online: cdnURL != ""}

	storage, err := casc.OpenStorage(context.Background(), params, casc.Params{}, casc.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer casc.CloseStorage(storage)

	info := storage.Info()
	fmt.Printf("product:       %s (build %d)\n", info.Product.CodeName, info.Product.BuildNumber)
	fmt.Printf("local files:   %d\n", info.LocalFileCount)
	fmt.Printf("total files:   %d\n", info.TotalFileCount)
	fmt.Printf("features:      %v\n", info.Features)
	fmt.Printf("path product:  %s\n", info.PathProduct)
	fmt.Printf("installed locales: %#x\n", info.InstalledLocales)
	fmt.Printf("tags:          %d\n", len(info.Tags))
	for _, t := range info.Tags {
		fmt.Printf("  %s (%d)\n", t.Name, t.Value)
	}
	return nil
}
