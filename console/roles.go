package console

import (
	"encoding/json"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-admin-console/listing"
	"github.com/jrsteele09/go-admin-console/management"
	"github.com/jrsteele09/go-admin-console/users"
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Manage a user's realm roles",
}

var rolesListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List the realm roles and the user's membership",
	Args:  cobra.ExactArgs(1),
	RunE:  runRolesList,
}

var rolesGrantCmd = &cobra.Command{
	Use:   "grant <user-id> <role-id> <role-name>",
	Short: "Grant a realm role to a user",
	Args:  cobra.ExactArgs(3),
	RunE:  runRolesGrant,
}

var rolesRevokeCmd = &cobra.Command{
	Use:   "revoke <user-id> <role-id> <role-name>",
	Short: "Revoke a realm role from a user",
	Args:  cobra.ExactArgs(3),
	RunE:  runRolesRevoke,
}

func init() {
	rootCmd.AddCommand(rolesCmd)
	rolesCmd.AddCommand(rolesListCmd)
	rolesCmd.AddCommand(rolesGrantCmd)
	rolesCmd.AddCommand(rolesRevokeCmd)

	rolesListCmd.Flags().Bool("json", false, "output as JSON")
}

func loadRoles(cmd *cobra.Command, svc *management.RoleAssignments, userID string) (listing.State[users.Role], error) {
	svc.SelectUser(userID)
	if err := waitSettled(cmd.Context(), func() bool { return svc.Roles().Loading }); err != nil {
		return listing.State[users.Role]{}, err
	}
	state := svc.Roles()
	if state.Error != "" {
		return listing.State[users.Role]{}, errors.New(state.Error)
	}
	return state, nil
}

func runRolesList(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	app, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()
	if err := requireManager(app); err != nil {
		return err
	}

	svc := management.NewRoleAssignments(app.tokens(), app.api, log)
	svc.Start(cmd.Context())
	defer svc.Close()

	state, err := loadRoles(cmd, svc, args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(state)
	}
	renderRoles(cmd.OutOrStdout(), state)
	return nil
}

func editRole(cmd *cobra.Command, args []string, checked bool) error {
	app, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()
	if err := requireManager(app); err != nil {
		return err
	}

	svc := management.NewRoleAssignments(app.tokens(), app.api, log)
	svc.Start(cmd.Context())
	defer svc.Close()

	svc.Apply(cmd.Context(), users.EditRoleCommand{
		UserID:   args[0],
		RoleID:   args[1],
		RoleName: args[2],
		Checked:  checked,
	})
	if err := waitSettled(cmd.Context(), func() bool { return svc.Roles().Loading }); err != nil {
		return err
	}
	if state := svc.Roles(); state.Error != "" {
		return errors.New(state.Error)
	}

	verb := "Granted"
	if !checked {
		verb = "Revoked"
	}
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "%s role %s\n", verb, args[2])

	// Membership flags are not refreshed automatically; re-select the
	// user to show the current assignments.
	state, err := loadRoles(cmd, svc, args[0])
	if err != nil {
		return err
	}
	renderRoles(cmd.OutOrStdout(), state)
	return nil
}

func runRolesGrant(cmd *cobra.Command, args []string) error {
	return editRole(cmd, args, true)
}

func runRolesRevoke(cmd *cobra.Command, args []string) error {
	return editRole(cmd, args, false)
}
