package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"library-client/library"
)

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", kind, s)
	}
	return id, nil
}

func newBooksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "books", Short: "Browse and edit the catalog"}

	var filter string
	list := &cobra.Command{
		Use:   "list",
		Short: "List every book",
		RunE: func(cmd *cobra.Command, _ []string) error {
			books, err := a.mgr.GetAllBooks(cmd.Context())
			if err != nil {
				return err
			}
			printBooks(library.FilterBooks(books, filter))
			return nil
		},
	}
	list.Flags().StringVar(&filter, "filter", "", "only show books whose title, author or ISBN contains this")

	search := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search the catalog on the server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			books, err := a.mgr.SearchBooks(cmd.Context(), query)
			if err != nil {
				return err
			}
			if len(books) == 0 {
				fmt.Printf("No books found matching '%s'.\n", query)
				return nil
			}
			fmt.Printf("Found %d book(s) matching '%s':\n", len(books), query)
			printBooks(books)
			return nil
		},
	}

	available := &cobra.Command{
		Use:   "available",
		Short: "List books that can be borrowed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			books, err := a.mgr.AvailableBooks(cmd.Context())
			if err != nil {
				return err
			}
			printBooks(books)
			return nil
		},
	}

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			b, err := a.mgr.GetBook(cmd.Context(), id)
			if err != nil {
				return err
			}
			printBookDetail(*b)
			return nil
		},
	}

	var nb library.Book
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.mgr.AddBook(cmd.Context(), nb)
			if err != nil {
				return err
			}
			fmt.Printf("Added book ID %d.\n", b.ID)
			return nil
		},
	}
	bookFlags(add, &nb)

	var ub library.Book
	update := &cobra.Command{
		Use:   "update ID",
		Short: "Edit a book; unset flags keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			current, err := a.mgr.GetBook(cmd.Context(), id)
			if err != nil {
				return err
			}
			merged := mergeBook(*current, ub, cmd)
			b, err := a.mgr.UpdateBook(cmd.Context(), id, merged)
			if err != nil {
				return err
			}
			fmt.Printf("Updated book ID %d.\n", b.ID)
			return nil
		},
	}
	bookFlags(update, &ub)

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a book from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			if err := a.mgr.DeleteBook(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("Deleted book ID %d.\n", id)
			return nil
		},
	}

	cmd.AddCommand(list, search, available, get, add, update, del)
	return cmd
}

func bookFlags(cmd *cobra.Command, b *library.Book) {
	cmd.Flags().StringVar(&b.Title, "title", "", "title")
	cmd.Flags().StringVar(&b.Author, "author", "", "author")
	cmd.Flags().StringVar(&b.ISBN, "isbn", "", "ISBN")
	cmd.Flags().IntVar(&b.PublicationYear, "year", 0, "publication year")
	cmd.Flags().Int64Var(&b.CategoryID, "category", 0, "category ID")
}

// mergeBook overlays the flags the operator actually set onto current.
func mergeBook(current, set library.Book, cmd *cobra.Command) library.Book {
	f := cmd.Flags()
	if f.Changed("title") {
		current.Title = set.Title
	}
	if f.Changed("author") {
		current.Author = set.Author
	}
	if f.Changed("isbn") {
		current.ISBN = set.ISBN
	}
	if f.Changed("year") {
		current.PublicationYear = set.PublicationYear
	}
	if f.Changed("category") {
		current.CategoryID = set.CategoryID
	}
	return current
}

func newCategoriesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List book categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listCategories(cmd.Context(), a.mgr)
		},
	}

	var c library.Category
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			created, err := a.mgr.AddCategory(cmd.Context(), c)
			if err != nil {
				return err
			}
			fmt.Printf("Added category '%s' with ID %d\n", created.Name, created.ID)
			return nil
		},
	}
	add.Flags().StringVar(&c.Name, "name", "", "category name")
	add.Flags().StringVar(&c.Description, "description", "", "description")
	cmd.AddCommand(add)
	return cmd
}

func listCategories(ctx context.Context, mgr *library.LibraryManager) error {
	cats, err := mgr.Categories(ctx)
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		fmt.Println("No categories.")
		return nil
	}
	fmt.Printf("%-5s %-25s %s\n", "ID", "Name", "Description")
	fmt.Println(strings.Repeat("-", 70))
	for _, c := range cats {
		fmt.Printf("%-5d %-25s %s\n", c.ID, library.Truncate(c.Name, 25), library.Truncate(c.Description, 40))
	}
	return nil
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.mgr.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Books:           %d\n", s.TotalBooks)
			fmt.Printf("Available books: %d\n", s.AvailableBooks)
			fmt.Printf("Users:           %d\n", s.TotalUsers)
			fmt.Printf("Active loans:    %d\n", s.ActiveLoans)
			return nil
		},
	}
}

func printBooks(books []library.Book) {
	if len(books) == 0 {
		fmt.Println("No books in library.")
		return
	}
	fmt.Printf("%-5s %-30s %-25s %-15s %-12s\n", "ID", "Title", "Author", "ISBN", "Status")
	fmt.Println(strings.Repeat("-", 92))
	for _, b := range books {
		fmt.Println(library.PrettyBook(b))
	}
}

func printBookDetail(b library.Book) {
	fmt.Printf("ID:       %d\n", b.ID)
	fmt.Printf("Title:    %s\n", b.Title)
	fmt.Printf("Author:   %s\n", b.Author)
	fmt.Printf("ISBN:     %s\n", b.ISBN)
	if b.PublicationYear > 0 {
		fmt.Printf("Year:     %d\n", b.PublicationYear)
	}
	if b.CategoryID > 0 {
		fmt.Printf("Category: %d\n", b.CategoryID)
	}
	fmt.Printf("Status:   %s\n", b.Status)
}
