package console

import (
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const loginSettleWait = 5 * time.Second

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in through the Keycloak browser handshake",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the Keycloak session",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session",
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	figure.NewFigure("admin console", "cybermedium", true).Print()
	cmd.Println()

	app, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.store.Login(cmd.Context()); err != nil {
		return err
	}

	// The store populates asynchronously from the provider's login
	// event; wait for it so whoami-style output is accurate.
	deadline := time.Now().Add(loginSettleWait)
	for app.store.CurrentUser() == "" {
		if time.Now().After(deadline) {
			return errors.New("session did not become active after login")
		}
		time.Sleep(25 * time.Millisecond)
	}

	if err := app.persistSession(); err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", app.store.CurrentUser())
	if !app.store.IsAuthorized(cfg.ManagerRole) {
		color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(),
			"Note: this account lacks the %q role; user management commands will be refused\n", cfg.ManagerRole)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	logoutErr := app.store.Logout(cmd.Context())
	if err := clearSavedSession(); err != nil {
		return err
	}
	if logoutErr != nil {
		// Local state is already cleared; report the realm failure.
		return logoutErr
	}
	cmd.Println("Logged out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	user := app.store.CurrentUser()
	if user == "" {
		cmd.Println("Not logged in")
		return nil
	}
	cmd.Printf("Logged in as %s\n", user)
	if app.store.IsAuthorized(cfg.ManagerRole) {
		cmd.Printf("Capabilities: %s\n", cfg.ManagerRole)
	} else {
		cmd.Println("Capabilities: none")
	}
	return nil
}
