package console

import (
	"encoding/json"
	"syscall"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jrsteele09/go-admin-console/listing"
	"github.com/jrsteele09/go-admin-console/management"
	"github.com/jrsteele09/go-admin-console/users"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage the realm's users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Long: `Display the realm's users, filtered and paginated.

Examples:
  console users list                   # First page of all users
  console users list --filter al       # Users whose name contains "al"
  console users list --page 2 --size 10
  console users list --json            # Output as JSON`,
	RunE: runUsersList,
}

var usersCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Register a new user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersCreate,
}

var usersToggleCmd = &cobra.Command{
	Use:   "toggle <user-id>",
	Short: "Enable or disable a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersToggle,
}

var usersResetPasswordCmd = &cobra.Command{
	Use:   "reset-password <user-id>",
	Short: "Replace a user's password",
	RunE:  runUsersResetPassword,
	Args:  cobra.ExactArgs(1),
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersToggleCmd)
	usersCmd.AddCommand(usersResetPasswordCmd)

	usersListCmd.Flags().String("filter", "", "substring match on username")
	usersListCmd.Flags().Int("page", 0, "page index, starting at 0")
	usersListCmd.Flags().Int("size", 5, "page size")
	usersListCmd.Flags().Bool("json", false, "output as JSON")

	usersCreateCmd.Flags().Bool("disabled", false, "create the user disabled")
	usersResetPasswordCmd.Flags().String("password", "", "new password (prompted when omitted)")
}

// requireManager refuses commands the gate would redirect away from.
func requireManager(app *App) error {
	if decision := app.gate.RequireManager(); !decision.Allowed {
		return errors.Errorf("user management requires the %q role (redirected to %s)", cfg.ManagerRole, decision.RedirectTo)
	}
	return nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	filter, _ := cmd.Flags().GetString("filter")
	page, _ := cmd.Flags().GetInt("page")
	size, _ := cmd.Flags().GetInt("size")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	app, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()
	if err := requireManager(app); err != nil {
		return err
	}

	dir := management.NewUserDirectory(app.tokens(), app.api,
		management.WithDirectoryLogger(log),
		management.WithDirectoryPipelineOptions(
			listing.WithInitialFilter[users.User](filter),
			listing.WithInitialPage[users.User](page),
			listing.WithPageSize[users.User](size),
		),
	)
	dir.Start(cmd.Context())
	defer dir.Close()

	if err := waitSettled(cmd.Context(), func() bool { return dir.Users().Loading }); err != nil {
		return err
	}
	state := dir.Users()
	if state.Error != "" {
		return errors.New(state.Error)
	}

	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(state)
	}
	renderUsers(cmd.OutOrStdout(), state)
	return nil
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	disabled, _ := cmd.Flags().GetBool("disabled")

	app, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()
	if err := requireManager(app); err != nil {
		return err
	}

	dir := management.NewUserDirectory(app.tokens(), app.api, management.WithDirectoryLogger(log))
	dir.Start(cmd.Context())
	defer dir.Close()
	if err := waitSettled(cmd.Context(), func() bool { return dir.Users().Loading }); err != nil {
		return err
	}

	dir.Create(cmd.Context(), users.CreateUser{Username: args[0], Enabled: !disabled})
	if err := waitSettled(cmd.Context(), func() bool { return dir.Users().Loading }); err != nil {
		return err
	}
	if state := dir.Users(); state.Error != "" {
		return errors.New(state.Error)
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Created user %s\n", args[0])
	return nil
}

func runUsersToggle(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()
	if err := requireManager(app); err != nil {
		return err
	}

	dir := management.NewUserDirectory(app.tokens(), app.api, management.WithDirectoryLogger(log))
	dir.Start(cmd.Context())
	defer dir.Close()
	if err := waitSettled(cmd.Context(), func() bool { return dir.Users().Loading }); err != nil {
		return err
	}

	dir.ToggleEnabled(cmd.Context(), args[0])
	if err := waitSettled(cmd.Context(), func() bool { return dir.Users().Loading }); err != nil {
		return err
	}
	state := dir.Users()
	if state.Error != "" {
		return errors.New(state.Error)
	}

	renderUsers(cmd.OutOrStdout(), state)
	return nil
}

func runUsersResetPassword(cmd *cobra.Command, args []string) error {
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		var err error
		password, err = promptPassword(cmd)
		if err != nil {
			return err
		}
	}

	app, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()
	if err := requireManager(app); err != nil {
		return err
	}

	dir := management.NewUserDirectory(app.tokens(), app.api,
		management.WithDirectoryLogger(log),
		management.WithDirectoryPipelineOptions(listing.WithoutInitialReload[users.User]()),
	)
	dir.Start(cmd.Context())
	defer dir.Close()

	dir.ResetPassword(cmd.Context(), users.ResetPassword{ID: args[0], Credential: password})
	if err := waitSettled(cmd.Context(), func() bool { return dir.Users().Loading }); err != nil {
		return err
	}
	if state := dir.Users(); state.Error != "" {
		return errors.New(state.Error)
	}

	color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "Password updated")
	return nil
}

func promptPassword(cmd *cobra.Command) (string, error) {
	cmd.Print("New password: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	cmd.Println()
	if err != nil {
		return "", errors.Wrap(err, "[promptPassword]")
	}
	return string(raw), nil
}
