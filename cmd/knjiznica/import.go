package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erazemk/knjiznica/internal/catalog"
	"github.com/erazemk/knjiznica/internal/store"
)

func newImportCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <books.csv>",
		Short: "Import books from a CSV file",
		Long: `Import books from a CSV file with a header row.

Recognized columns: title (required), author, category, isbn, price,
copies, description. Unknown columns are ignored. Rows that fail
validation are reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			database, err := openDatabase(cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()

			out := cmd.OutOrStdout()
			res, err := importBooks(cmd.Context(), catalog.New(database, 0), f, out)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Imported %d books, skipped %d\n", res.imported, res.skipped)
			return nil
		},
	}
}

type importResult struct {
	imported int
	skipped  int
}

// importBooks adds every valid row of r to the catalog. Per-row problems are
// written to out and do not stop the import.
func importBooks(ctx context.Context, cat *catalog.Service, r io.Reader, out io.Writer) (importResult, error) {
	var res importResult

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return res, errors.New("empty CSV file")
	}
	if err != nil {
		return res, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["title"]; !ok {
		return res, errors.New(`CSV header must include a "title" column`)
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("reading CSV: %w", err)
		}
		line, _ := cr.FieldPos(0)

		book, err := parseBookRecord(cols, record)
		if err == nil {
			_, err = cat.Create(ctx, book)
		}
		if err != nil {
			fmt.Fprintf(out, "line %d: %v\n", line, err)
			res.skipped++
			continue
		}
		res.imported++
	}

	slog.Info("books imported", "imported", res.imported, "skipped", res.skipped)
	return res, nil
}

func parseBookRecord(cols map[string]int, record []string) (store.NewBook, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	b := store.NewBook{
		Title:       field("title"),
		Author:      field("author"),
		Category:    field("category"),
		ISBN:        field("isbn"),
		Description: field("description"),
		TotalCopies: 1,
	}

	if v := field("price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return b, fmt.Errorf("invalid price %q", v)
		}
		b.Price = price
	}
	if v := field("copies"); v != "" {
		copies, err := strconv.Atoi(v)
		if err != nil {
			return b, fmt.Errorf("invalid copies %q", v)
		}
		b.TotalCopies = copies
	}
	return b, nil
}
