package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/userimport/internal/core"
)

func newListCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all imported users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gateway, closeFn, err := openGateway(global)
			if err != nil {
				return err
			}
			defer closeFn()

			users, err := gateway.GetAllUsers(cmd.Context())
			if err != nil {
				return err
			}
			printUsers(cmd.OutOrStdout(), users)
			return nil
		},
	}
}

func newGetCmd(global *globalOptions) *cobra.Command {
	var id, email string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Look up one user by id or email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (id == "") == (email == "") {
				return errors.New("exactly one of --id or --email is required")
			}

			_, gateway, closeFn, err := openGateway(global)
			if err != nil {
				return err
			}
			defer closeFn()

			var u core.User
			if id != "" {
				u, err = gateway.GetUserByID(cmd.Context(), id)
			} else {
				u, err = gateway.GetUserByEmail(cmd.Context(), email)
			}
			if err != nil {
				return err
			}
			printUsers(cmd.OutOrStdout(), []core.User{u})
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "User id")
	cmd.Flags().StringVar(&email, "email", "", "User email")
	return cmd
}

func printUsers(out io.Writer, users []core.User) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tSTATUS\tCREATED")
	for _, u := range users {
		created := ""
		if !u.CreatedAt.IsZero() {
			created = u.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\n", u.ID, u.FirstName, u.LastName, u.Email, u.Status, created)
	}
	tw.Flush()
}
