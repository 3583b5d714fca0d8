package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"library-client/library"
)

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "users", Short: "Manage library members"}

	var filter string
	list := &cobra.Command{
		Use:   "list",
		Short: "List members",
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := a.mgr.GetAllUsers(cmd.Context())
			if err != nil {
				return err
			}
			printUsers(library.FilterUsers(users, filter))
			return nil
		},
	}
	list.Flags().StringVar(&filter, "filter", "", "only show users whose name, email, phone or auth ID contains this")

	var nu library.NewUser
	var role string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a member in the identity and resource services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, ok := library.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q (want librarian or user)", role)
			}
			nu.Role = r
			password, err := readPassword(bufio.NewScanner(os.Stdin), fmt.Sprintf("Enter password for %s: ", nu.FullName))
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			nu.Password = password
			return createUser(cmd.Context(), a.mgr, nu)
		},
	}
	create.Flags().StringVarP(&nu.FullName, "name", "n", "", "full name")
	create.Flags().StringVarP(&nu.Email, "email", "e", "", "email")
	create.Flags().StringVar(&nu.Phone, "phone", "", "phone")
	create.Flags().StringVar(&role, "role", "user", "librarian or user")
	create.MarkFlagRequired("name")
	create.MarkFlagRequired("email")

	var name, email, phone, status string
	update := &cobra.Command{
		Use:   "update ID",
		Short: "Edit a member profile; unset flags keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("user", args[0])
			if err != nil {
				return err
			}
			existing, err := a.mgr.GetUser(cmd.Context(), id)
			if err != nil {
				return err
			}
			var ch library.ProfileChanges
			f := cmd.Flags()
			if f.Changed("name") {
				ch.FullName = &name
			}
			if f.Changed("email") {
				ch.Email = &email
			}
			if f.Changed("phone") {
				ch.Phone = &phone
			}
			if f.Changed("status") {
				s := library.UserStatus(strings.ToLower(status))
				ch.Status = &s
			}
			u, err := a.mgr.UpdateUser(cmd.Context(), *existing, ch)
			if err != nil {
				return err
			}
			fmt.Printf("Updated user %s (ID: %d)\n", u.FullName, id)
			return nil
		},
	}
	update.Flags().StringVarP(&name, "name", "n", "", "full name")
	update.Flags().StringVarP(&email, "email", "e", "", "email")
	update.Flags().StringVar(&phone, "phone", "", "phone")
	update.Flags().StringVar(&status, "status", "", "active, inactive or suspended")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a member profile (the sign-in account is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("user", args[0])
			if err != nil {
				return err
			}
			return deleteUser(cmd.Context(), a.mgr, id)
		},
	}

	cmd.AddCommand(list, create, update, del)
	return cmd
}

func createUser(ctx context.Context, mgr *library.LibraryManager, nu library.NewUser) error {
	u, err := mgr.CreateUser(ctx, nu)
	if err != nil {
		if errors.Is(err, library.ErrOrphanedIdentity) {
			fmt.Printf("Warning: the sign-in account for %s exists but has no library profile.\n", nu.Email)
		}
		return err
	}
	fmt.Printf("Added user '%s' with ID %d\n", u.FullName, u.ID)
	return nil
}

func deleteUser(ctx context.Context, mgr *library.LibraryManager, id int64) error {
	if err := mgr.DeleteUser(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Deleted user ID %d.\n", id)
	fmt.Println("Warning: the user's sign-in account still exists in the identity service.")
	return nil
}

func printUsers(users []library.User) {
	if len(users) == 0 {
		fmt.Println("No users registered.")
		return
	}
	fmt.Printf("%-5s %-25s %-30s %-15s %-10s %-8s\n", "ID", "Name", "Email", "Phone", "Status", "Auth ID")
	fmt.Println(strings.Repeat("-", 98))
	for _, u := range users {
		authID := "-"
		if u.AuthID != nil {
			authID = strconv.FormatInt(*u.AuthID, 10)
		}
		fmt.Printf("%-5d %-25s %-30s %-15s %-10s %-8s\n",
			u.ID,
			library.Truncate(u.FullName, 25),
			library.Truncate(u.Email, 30),
			u.Phone,
			u.Status,
			authID)
	}
}
