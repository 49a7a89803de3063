package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kidandcat/sprintboard/internal/access"
	"github.com/kidandcat/sprintboard/internal/admin"
	"github.com/kidandcat/sprintboard/internal/domain"
)

// cliAdmin is the caller used for updates made from the command line,
// which has direct access to the store.
var cliAdmin = access.Subject{UserID: "cli", DisplayName: "sprintboard cli", Role: domain.RoleAdmin}

func newUserCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserCreateCommand(configPath), newUserUpdateCommand(configPath))
	return cmd
}

func newUserCreateCommand(configPath *string) *cobra.Command {
	var (
		name, password string
		makeAdmin      bool
	)
	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Create an account and its profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			email := args[0]
			if name == "" {
				name = email
			}
			profile, err := a.tracker.SignUp(cmd.Context(), email, password, name)
			if err != nil {
				return err
			}
			if makeAdmin {
				if profile, err = a.tracker.PromoteAdmin(cmd.Context(), email); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", profile.ID, profile.Email, profile.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the email)")
	cmd.Flags().StringVar(&password, "password", "", "initial password, at least 8 characters")
	cmd.Flags().BoolVar(&makeAdmin, "admin", false, "grant the admin role")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newUserUpdateCommand(configPath *string) *cobra.Command {
	var req admin.Request
	cmd := &cobra.Command{
		Use:   "update <uid>",
		Short: "Change a user's email, display name and role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			req.UID = args[0]
			resp, err := a.admin.UpdateUser(cmd.Context(), cliAdmin, req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "new email")
	cmd.Flags().StringVar(&req.DisplayName, "name", "", "new display name")
	cmd.Flags().StringVar(&req.Role, "role", string(domain.RoleMember), "admin or member")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("name")
	return cmd
}
