package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"library-lending/internal/config"
	"library-lending/internal/importer"
	"library-lending/internal/logger"
	"library-lending/library"
)

func main() {
	var cfgPath, dbPath string
	cmd := &cobra.Command{
		Use:          "import_books FILE.csv",
		Short:        "Import books from a CSV catalog (isbn,title,author,publisher,year,pages,genre)",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig(cfgPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			log := logger.NewLogger(cfg.Log, "import")
			defer log.Sync() //nolint:errcheck

			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return err
			}
			defer f.Close()

			rows, problems, err := importer.ParseCatalogCSV(f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range problems {
				fmt.Fprintf(out, "Warning: %s\n", p)
			}

			manager, err := library.NewLibraryManager(cmd.Context(), cfg.Database.Path,
				library.WithLogger(log),
				library.WithBusyTimeout(cfg.Database.BusyTimeout),
			)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer manager.Close()

			fmt.Fprintf(out, "Importing %d books from %s...\n", len(rows), args[0])
			res := importer.Import(cmd.Context(), manager.Catalog, rows, out, log)

			fmt.Fprintf(out, "\nImport complete!\n")
			fmt.Fprintf(out, "Successfully imported: %d books\n", len(res.Imported))
			fmt.Fprintf(out, "Errors: %d\n", res.Errors+len(problems))

			if len(res.Imported) > 0 {
				fmt.Fprintln(out, "\nImported books:")
				fmt.Fprintf(out, "%-5s %-50s %-30s\n", "ID", "Title", "Author")
				fmt.Fprintln(out, strings.Repeat("-", 87))
				for _, b := range res.Imported {
					fmt.Fprintf(out, "%-5d %-50s %-30s\n", b.ID, truncateString(b.Title, 50), truncateString(b.Author, 30))
				}
			}
			log.Info("import finished",
				zap.Int("imported", len(res.Imported)),
				zap.Int("errors", res.Errors+len(problems)))
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "config file")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
