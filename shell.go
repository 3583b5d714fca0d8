package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"library-client/library"
)

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive prompt",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runShell(cmd.Context(), bufio.NewScanner(os.Stdin), a.mgr)
			return nil
		},
	}
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  Session: login, logout, whoami")
	fmt.Println("  Books: list books, search book, available books, add book, categories")
	fmt.Println("  Circulation: list loans, create loan, return loan")
	fmt.Println("  Users: list users, add user, delete user")
	fmt.Println("  System: stats, help, exit")
}

func runShell(ctx context.Context, scanner *bufio.Scanner, mgr *library.LibraryManager) {
	fmt.Println("Welcome to the Library Management System!")
	printHelp()
	if p, ok := mgr.Profile(); ok {
		fmt.Printf("\nSigned in as %s (%s).\n", p.Email, p.Role)
	}

	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		cmd := strings.TrimSpace(scanner.Text())

		var err error
		switch cmd {
		case "":
			continue
		case "login":
			err = handleLogin(ctx, scanner, mgr)
		case "logout":
			err = mgr.Logout(ctx)
			if err == nil {
				fmt.Println("Signed out.")
			}
		case "whoami":
			printProfile(mgr)
		case "list books":
			err = handleListBooks(ctx, mgr)
		case "search book":
			err = handleSearchBooks(ctx, scanner, mgr)
		case "available books":
			var books []library.Book
			if books, err = mgr.AvailableBooks(ctx); err == nil {
				printBooks(books)
			}
		case "add book":
			err = handleAddBook(ctx, scanner, mgr)
		case "categories":
			err = listCategories(ctx, mgr)
		case "list loans":
			err = handleListLoans(ctx, scanner, mgr)
		case "create loan":
			err = handleCreateLoan(ctx, scanner, mgr)
		case "return loan":
			err = handleReturnLoan(ctx, scanner, mgr)
		case "list users":
			err = handleListUsers(ctx, scanner, mgr)
		case "add user":
			err = handleAddUser(ctx, scanner, mgr)
		case "delete user":
			err = handleDeleteUser(ctx, scanner, mgr)
		case "stats":
			var s *library.DashboardStats
			if s, err = mgr.Stats(ctx); err == nil {
				fmt.Printf("Books: %d (available %d)  Users: %d  Active loans: %d\n",
					s.TotalBooks, s.AvailableBooks, s.TotalUsers, s.ActiveLoans)
			}
		case "help":
			printHelp()
		case "exit":
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println("Unknown command. Type 'help' to see the available commands.")
		}

		if err != nil {
			fmt.Printf("Error: %s\n", library.Describe(err))
			if errors.Is(err, library.ErrUnauthorized) {
				fmt.Println("You have been signed out. Use 'login' to continue.")
			}
		}
	}
}

// ask prints label and returns the next trimmed line. ok is false at EOF.
func ask(sc *bufio.Scanner, label string) (string, bool) {
	fmt.Print(label)
	if !sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sc.Text()), true
}

func askID(sc *bufio.Scanner, kind string) (int64, bool, error) {
	s, ok := ask(sc, strings.ToUpper(kind[:1])+kind[1:]+" ID: ")
	if !ok {
		return 0, false, nil
	}
	id, err := parseID(kind, s)
	return id, true, err
}

func handleLogin(ctx context.Context, sc *bufio.Scanner, mgr *library.LibraryManager) error {
	email, ok := ask(sc, "Email: ")
	if !ok {
		return nil
	}
	password, err := readPassword(sc, "Password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	p, err := mgr.Login(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s (%s)\n", p.Email, p.Role)
	return nil
}

func handleListBooks(ctx context.Context, mgr *library.LibraryManager) error {
	books, err := mgr.GetAllBooks(ctx)
	if err != nil {
		return err
	}
	printBooks(books)
	return nil
}

func handleSearchBooks(ctx context.Context, sc *bufio.Scanner, mgr *library.LibraryManager) error {
	query, ok := ask(sc, "Query: ")
	if !ok {
		return nil
	}
	books, err := mgr.SearchBooks(ctx, query)
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
}

func handleAddBook(ctx context.Context, sc *bufio.Scanner, mgr *library.LibraryManager) error {
	var b library.Book
	var ok bool
	if b.Title, ok = ask(sc, "Title: "); !ok {
		return nil
	}
	if b.Author, ok = ask(sc, "Author: "); !ok {
		return nil
	}
	if b.ISBN, ok = ask(sc, "ISBN: "); !ok {
		return nil
	}
	created, err := mgr.AddBook(ctx, b)
	if err != nil {
		return err
	}
	fmt.Printf("Added book ID %d.\n", created.ID)
	return nil
}

func handleListLoans(ctx context.Context, sc *bufio.Scanner, mgr *library.LibraryManager) error {
	status, ok := ask(sc, "Status (all/active/returned/overdue, Enter for all): ")
	if !ok {
		return nil
	}
	search, ok := ask(sc, "Search (Enter for none): ")
	if !ok {
		return nil
	}
	loans, err := mgr.ListLoans(ctx, library.LoanFilter{
		Status: library.LoanStatus(strings.ToLower(status)),
		Search: search,
	})
	if err != nil {
		return err
	}
	printLoans(loans)
	return nil
}

func handleCreateLoan(ctx context.Context, sc *bufio.Scanner, mgr *library.LibraryManager) error {
	bookID, ok, err := askID(sc, "book")
	if !ok || err != nil {
		return err
	}
	req := library.LoanRequest{BookID: bookID}
	if mgr.IsLibrarian() {
		userID, ok, err := askID(sc, "user")
		if !ok || err != nil {
			return err
		}
		req.UserID = userID
	}
	return createLoan(ctx, mgr, req)
}

func handleReturnLoan(ctx context.Context, sc *bufio.Scanner, mgr *library.LibraryManager) error {
	id, ok, err := askID(sc, "loan")
	if !ok || err != nil {
		return err
	}
	return returnLoan(ctx, mgr, id)
}

func handleListUsers(ctx context.Context, sc *bufio.Scanner, mgr *library.LibraryManager) error {
	filter, ok := ask(sc, "Filter (Enter for all): ")
	if !ok {
		return nil
	}
	users, err := mgr.GetAllUsers(ctx)
	if err != nil {
		return err
	}
	printUsers(library.FilterUsers(users, filter))
	return nil
}

func handleAddUser(ctx context.Context, sc *bufio.Scanner, mgr *library.LibraryManager) error {
	var nu library.NewUser
	var ok bool
	if nu.FullName, ok = ask(sc, "Name: "); !ok {
		return nil
	}
	if nu.Email, ok = ask(sc, "Email: "); !ok {
		return nil
	}
	if nu.Phone, ok = ask(sc, "Phone (optional): "); !ok {
		return nil
	}
	role, ok := ask(sc, "Role (librarian/user, Enter for user): ")
	if !ok {
		return nil
	}
	r, valid := library.ParseRole(role)
	if !valid {
		return fmt.Errorf("unknown role %q", role)
	}
	nu.Role = r

	password, err := readPassword(sc, fmt.Sprintf("Enter password for %s: ", nu.FullName))
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if password == "" {
		fmt.Println("Error: Password cannot be empty")
		return nil
	}
	nu.Password = password
	return createUser(ctx, mgr, nu)
}

func handleDeleteUser(ctx context.Context, sc *bufio.Scanner, mgr *library.LibraryManager) error {
	id, ok, err := askID(sc, "user")
	if !ok || err != nil {
		return err
	}
	return deleteUser(ctx, mgr, id)
}
