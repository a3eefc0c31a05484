package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"soc-portal/internal/client"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session cookies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if strings.TrimSpace(email) == "" || password == "" {
				return errors.New("email and password are required")
			}

			res, err := a.api.Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Logged in as %s (%s, %s)\n", res.Email, res.SocPortalID, client.EffectiveRole(res.UserType, res.Role))
			fmt.Fprintf(out, "Session idle timeout %s, warning after %s\n", res.Policy.Timeout, res.Policy.WarningAfter)
			fmt.Fprintf(out, "Session saved to %s\n", a.store.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted if omitted)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and remove the stored cookies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.api.Logout(cmd.Context()); err != nil {
				a.logger.Warn("server logout failed; local session removed", zap.Error(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Confirm the stored session with the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.api.Check(cmd.Context())
			if err != nil {
				return sessionError(err)
			}
			printIdentity(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func printIdentity(out io.Writer, res *client.CheckResult) {
	fmt.Fprintf(out, "SOC portal id: %s\n", res.SocPortalID)
	fmt.Fprintf(out, "Account type:  %s\n", res.UserType)
	fmt.Fprintf(out, "Role:          %s\n", res.Role)
	fmt.Fprintf(out, "Idle timeout:  %s\n", res.Policy.Timeout)
}

// sessionError rewrites gate rejections as instructions.
func sessionError(err error) error {
	switch {
	case client.IsSessionExpired(err):
		return errors.New("your session has expired; run portalctl login")
	case client.IsUnauthenticated(err):
		return errors.New("not logged in; run portalctl login")
	default:
		return err
	}
}
