// Command photo-extract runs the extraction pipeline against real images and
// prints one JSON line per image.
//
//	photo-extract -domain diet -concurrency 4 gs://fitglue-photos/u/1.jpg gs://...
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"cloud.google.com/go/storage"

	"github.com/ripixel/fitglue-vision/pkg/bootstrap"
	"github.com/ripixel/fitglue-vision/pkg/domain/metadata"
	"github.com/ripixel/fitglue-vision/pkg/infrastructure/database"
	"github.com/ripixel/fitglue-vision/pkg/infrastructure/secrets"
	infrastorage "github.com/ripixel/fitglue-vision/pkg/infrastructure/storage"
)

func main() {
	domainFlag := flag.String("domain", "exercise", "Extraction domain: exercise or diet")
	dbPath := flag.String("db", "photo-extract.db", "SQLite file for results (empty to disable)")
	concurrency := flag.Int("concurrency", 4, "Images processed in parallel")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: photo-extract [flags] <image-ref>...")
		flag.PrintDefaults()
		os.Exit(2)
	}
	domain, err := metadata.ParseDomain(*domainFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, domain, *dbPath, *concurrency, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, domain metadata.Domain, dbPath string, concurrency int, refs []string, out io.Writer) error {
	bootstrap.InitLogger()
	cfg := bootstrap.LoadConfig()

	gcs, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("storage client: %w", err)
	}
	defer gcs.Close()

	gen, err := bootstrap.NewGenerator(ctx, cfg, &secrets.SecretsAdapter{})
	if err != nil {
		return err
	}
	if c, ok := gen.(io.Closer); ok {
		defer c.Close()
	}

	var results ResultStore
	if dbPath != "" {
		store, err := database.NewSQLiteStore(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		results = store
	}

	pipeline := bootstrap.NewPipeline(cfg, &infrastorage.StorageAdapter{Client: gcs}, gen, nil)
	b := &batch{
		orchestrator: pipeline.Orchestrator,
		results:      results,
		concurrency:  concurrency,
		out:          out,
	}
	summary, err := b.Run(ctx, domain, refs)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d images: %d ok, %d degraded\n", summary.Total, summary.Total-summary.Degraded, summary.Degraded)
	return nil
}
