// Command import_books loads a CSV catalog into the resource service.
//
// The file needs a header row; recognised columns are title, author, isbn,
// publication_year and category_id. The operator must already be signed in
// with 'library login' against the same session store.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"library-client/config"
	"library-client/library"
	"library-client/logger"
)

func main() {
	path := flag.String("file", "books.csv", "CSV file to import")
	flag.Parse()

	if err := run(context.Background(), *path, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", library.Describe(err))
		os.Exit(1)
	}
}

// run imports the catalog at path. Deferred cleanup has finished by the time
// it returns, so main may exit on error.
func run(ctx context.Context, path string, out io.Writer) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	sessionStore, err := library.OpenStore(ctx, cfg.Session.Store())
	if err != nil {
		return err
	}
	manager, err := library.NewLibraryManager(ctx, library.Options{
		APIURL:  cfg.APIURL,
		AuthURL: cfg.AuthURL,
		Timeout: cfg.HTTPTimeout,
		Store:   sessionStore,
		Logger:  log,
	})
	if err != nil {
		sessionStore.Close()
		return err
	}
	defer manager.Close()

	if !manager.IsLibrarian() {
		return errors.New("sign in as a librarian first (library login)")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	books, err := readCatalog(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	fmt.Fprintf(out, "Importing %d books from %s...\n", len(books), path)

	imported, failed := importBooks(ctx, manager, books, out)

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", imported)
	fmt.Fprintf(out, "Errors: %d\n", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d books were not imported", failed, len(books))
	}
	return nil
}

type bookAdder interface {
	AddBook(ctx context.Context, b library.Book) (*library.Book, error)
}

// importBooks adds each book in turn. It stops early once the session is
// rejected, counting that row as failed.
func importBooks(ctx context.Context, adder bookAdder, books []library.Book, out io.Writer) (imported, failed int) {
	for _, b := range books {
		fmt.Fprintf(out, "Importing: %s by %s... ", b.Title, b.Author)
		created, err := adder.AddBook(ctx, b)
		if err != nil {
			fmt.Fprintf(out, "ERROR - %s\n", library.Describe(err))
			failed++
			if errors.Is(err, library.ErrUnauthorized) {
				break
			}
			continue
		}
		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", created.ID)
		imported++
	}
	return imported, failed
}

// readCatalog parses the CSV into books. Rows with a malformed year or
// category are rejected with their line number.
func readCatalog(r io.Reader) ([]library.Book, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"title", "author", "isbn"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var books []library.Book
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		b := library.Book{
			Title:  field(rec, "title"),
			Author: field(rec, "author"),
			ISBN:   field(rec, "isbn"),
		}
		if y := field(rec, "publication_year"); y != "" {
			if b.PublicationYear, err = strconv.Atoi(y); err != nil {
				return nil, fmt.Errorf("line %d: invalid publication_year %q", line, y)
			}
		}
		if c := field(rec, "category_id"); c != "" {
			if b.CategoryID, err = strconv.ParseInt(c, 10, 64); err != nil {
				return nil, fmt.Errorf("line %d: invalid category_id %q", line, c)
			}
		}
		books = append(books, b)
	}
	return books, nil
}
