package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/briangreenhill/petmatch/internal/app"
	"github.com/briangreenhill/petmatch/internal/config"
	"github.com/briangreenhill/petmatch/pkg/petfinder"
)

const version = "PetMatch v0.1.0"

func main() {
	if err := runCLI(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("petmatch")
	}
}

func runCLI(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return nil
	}

	switch args[0] {
	case "help", "--help", "-h":
		printUsage(out)
	case "version", "--version", "-v":
		fmt.Fprintln(out, version)
	case "fetch":
		location := ""
		if len(args) > 1 {
			location = args[1]
		}
		return runFetch(ctx, location, out)
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
	return nil
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: petmatch <command>")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  help, -h                 Show this help message")
	fmt.Fprintln(out, "  version, -v              Print the version")
	fmt.Fprintln(out, "  fetch [location]         Fetch one page of adoptable animals")
	fmt.Fprintln(out, "Environment:")
	fmt.Fprintln(out, "  PETFINDER_CLIENT_ID      Petfinder API key (required)")
	fmt.Fprintln(out, "  PETFINDER_CLIENT_SECRET  Petfinder API secret (required)")
	fmt.Fprintln(out, "  PETFINDER_DEFAULT_TYPE   Species to search for (default dog)")
	fmt.Fprintln(out, "  CACHE_BACKEND            file, memory or redis (default file)")
}

func runFetch(ctx context.Context, location string, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if location != "" {
		cfg.Petfinder.DefaultLocation = location
	}

	pf, err := app.NewPetfinder(ctx, cfg, app.NewLogger(cfg))
	if err != nil {
		return err
	}
	defer pf.Close() //nolint:errcheck

	records, err := pf.Client.Fetch(ctx, app.DefaultQuery(cfg))
	if err != nil {
		return fmt.Errorf("fetch animals: %w", err)
	}
	printRecords(out, records)
	return nil
}

func printRecords(out io.Writer, records []petfinder.Record) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No animals found.")
		return
	}
	for _, r := range records {
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, breedLine(r), strings.Join(r.Tags, ", "), r.URL)
	}
}

func breedLine(r petfinder.Record) string {
	if r.BreedSecondary != "" {
		return r.BreedPrimary + " / " + r.BreedSecondary
	}
	return r.BreedPrimary
}
