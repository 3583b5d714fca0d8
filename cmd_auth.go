package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-client/library"
)

// stdinIsTerminal reports whether passwords can be read without echo.
var stdinIsTerminal = func() bool { return term.IsTerminal(int(syscall.Stdin)) }

// readPassword reads a password with masking. When stdin is not a terminal
// the next line of sc is taken as is, so piped input stays in step with
// the other prompts reading from sc.
func readPassword(sc *bufio.Scanner, prompt string) (string, error) {
	fmt.Print(prompt)
	if !stdinIsTerminal() {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return strings.TrimSpace(sc.Text()), nil
	}
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println() // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

func newLoginCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with the identity service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(bufio.NewScanner(os.Stdin), "Password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			p, err := a.mgr.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Printf("Signed in as %s (%s)\n", p.Email, p.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.MarkFlagRequired("email")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var su library.SignUp
	var role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an identity and sign in with it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, ok := library.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q (want librarian or user)", role)
			}
			su.Role = r
			password, err := readPassword(bufio.NewScanner(os.Stdin), "Choose a password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			su.Password = password
			p, err := a.mgr.Register(cmd.Context(), su)
			if err != nil {
				return err
			}
			fmt.Printf("Registered and signed in as %s (%s)\n", p.Email, p.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&su.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&su.FullName, "name", "n", "", "full name")
	cmd.Flags().StringVar(&role, "role", "user", "librarian or user")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.mgr.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in profile",
		RunE: func(*cobra.Command, []string) error {
			printProfile(a.mgr)
			return nil
		},
	}
}

func printProfile(mgr *library.LibraryManager) {
	p, ok := mgr.Profile()
	if !ok {
		fmt.Println("Not signed in.")
		return
	}
	fmt.Printf("Email:    %s\n", p.Email)
	fmt.Printf("Name:     %s\n", p.FullName)
	fmt.Printf("Role:     %s\n", p.Role)
	fmt.Printf("Identity: %s\n", p.ID)
	if !p.Expires.IsZero() {
		fmt.Printf("Expires:  %s\n", p.Expires.Local().Format("2006-01-02 15:04"))
	}
}
