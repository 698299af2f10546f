// Command import_excel bulk-loads a spreadsheet into the configured storage
// backend without going through the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"assettrack-api/internal/config"
	"assettrack-api/internal/history"
	"assettrack-api/internal/repository"
	"assettrack-api/pkg/importer"
	"assettrack-api/pkg/normalizer"
)

func main() {
	var (
		filePath  = flag.String("file", "", "Path to the .xlsx or .csv file to import")
		aliasPath = flag.String("aliases", "", "Optional YAML header-alias table (overrides ALIAS_FILE)")
		dryRun    = flag.Bool("dry-run", false, "Normalize and report without writing")
	)
	flag.Parse()

	if *filePath == "" {
		fmt.Println("Usage: import_excel --file=path.xlsx [--aliases=aliases.yaml] [--dry-run]")
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if *aliasPath != "" {
		cfg.AliasFile = *aliasPath
	}

	opts := normalizer.Options{EnforceSitePattern: cfg.EnforceSitePattern}
	if cfg.AliasFile != "" {
		aliases, err := normalizer.LoadAliasFile(cfg.AliasFile)
		if err != nil {
			log.Fatalf("Failed to load alias file: %v", err)
		}
		opts.Aliases = aliases
	}

	rows, err := readRows(*filePath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *filePath, err)
	}

	result := normalizer.NormalizeBatch(rows, opts)
	fmt.Printf("Parsed %d rows: %d accepted, %d rejected\n", len(rows), len(result.Accepted), len(result.Rejected))
	for _, rej := range result.Rejected {
		fmt.Printf("  row %d: %s\n", rej.Row, rej.Message)
	}

	if *dryRun || len(result.Accepted) == 0 {
		return
	}

	ctx := context.Background()
	repo, err := repository.Open(ctx, cfg, history.NewEngine())
	if err != nil {
		log.Fatalf("Failed to open repository: %v", err)
	}

	report, err := repo.AddMany(ctx, result.Accepted)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	fmt.Println(strings.Repeat("=", 60))
	for _, res := range report.Succeeded {
		fmt.Printf("  %s: %d record(s) written\n", res.Partition, res.Count)
	}
	for _, res := range report.Failed {
		fmt.Printf("  %s: FAILED (%s)\n", res.Partition, res.Error)
	}
	if err := report.Err(); err != nil {
		log.Fatalf("Import finished with failures: %v", err)
	}
	fmt.Println("Import complete")
}

func readRows(path string) ([]map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		sheets, err := importer.ParseXLSX(data)
		if err != nil {
			return nil, err
		}
		var rows []map[string]string
		for _, sheet := range sheets {
			rows = append(rows, sheet.Rows...)
		}
		return rows, nil
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return importer.ParseCSV(f)
	default:
		return nil, fmt.Errorf("unsupported file type %q (want .xlsx or .csv)", filepath.Ext(path))
	}
}
