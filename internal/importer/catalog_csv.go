package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"library-lending/library"
)

var requiredHeaders = []string{"isbn", "title", "author", "publisher", "year", "pages", "genre"}

// CatalogRow is one book line of a catalog CSV.
type CatalogRow struct {
	Line int
	Book library.BookRequest
}

// ParseCatalogCSV reads a header row naming at least the required columns (in
// any order, case-insensitive) followed by one book per line. Malformed lines
// are reported in the returned messages and skipped; only an unreadable
// header is fatal.
func ParseCatalogCSV(r io.Reader) ([]CatalogRow, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, errors.Wrap(err, "read header")
	}
	headerIndex := make(map[string]int, len(header))
	for i, h := range header {
		headerIndex[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, h := range requiredHeaders {
		if _, ok := headerIndex[h]; !ok {
			return nil, nil, errors.Errorf("missing required header: %s", h)
		}
	}

	var rows []CatalogRow
	var problems []string
	lineNum := 1
	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			problems = append(problems, fmt.Sprintf("Line %d: %v", lineNum, err))
			continue
		}

		get := func(h string) string {
			if idx := headerIndex[h]; idx < len(record) {
				return strings.TrimSpace(record[idx])
			}
			return ""
		}
		year, err := strconv.Atoi(get("year"))
		if err != nil {
			problems = append(problems, fmt.Sprintf("Line %d: invalid year %q", lineNum, get("year")))
			continue
		}
		pages, err := strconv.Atoi(get("pages"))
		if err != nil {
			problems = append(problems, fmt.Sprintf("Line %d: invalid pages %q", lineNum, get("pages")))
			continue
		}

		rows = append(rows, CatalogRow{
			Line: lineNum,
			Book: library.BookRequest{
				ISBN:            get("isbn"),
				Title:           get("title"),
				Author:          get("author"),
				Publisher:       get("publisher"),
				PublicationYear: year,
				PageCount:       pages,
				Genre:           get("genre"),
			},
		})
	}
	return rows, problems, nil
}

// Result tallies an import run.
type Result struct {
	Imported []*library.Book
	Errors   int
}

// Import adds each row through the catalog and reports progress to w, one
// line per book. A failing row does not stop the run.
func Import(ctx context.Context, catalog *library.Catalog, rows []CatalogRow, w io.Writer, log *zap.Logger) Result {
	var res Result
	for _, row := range rows {
		fmt.Fprintf(w, "Importing: %s by %s... ", row.Book.Title, row.Book.Author)
		book, err := catalog.AddBook(ctx, row.Book)
		if err != nil {
			fmt.Fprintf(w, "ERROR - %v\n", err)
			log.Debug("row rejected", zap.Int("line", row.Line), zap.Error(err))
			res.Errors++
			continue
		}
		fmt.Fprintf(w, "SUCCESS (ID: %d)\n", book.ID)
		res.Imported = append(res.Imported, book)
	}
	return res
}
