package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"soc-portal/internal/client"
)

const shellHelp = `Commands:
  whoami          confirm the session
  notifications   list notifications
  read <id>       mark a notification read
  activity        list recent activity (admins)
  logout          end the session and exit
  exit            leave the shell (the session stays)
`

var errShellExit = errors.New("exit")

func newShellCmd(a *app) *cobra.Command {
	var roles []string

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive session guarded by the idle-timeout tracker",
		Long: "shell confirms the session, then reads commands from stdin. Every line counts as activity; " +
			"after the idle timeout the session is ended and the shell exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runShell(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), roles)
		},
	}
	cmd.Flags().StringSliceVar(&roles, "require-role", nil, "Roles allowed to open the shell (User, Admin, Super Admin)")
	return cmd
}

func (a *app) runShell(ctx context.Context, in io.Reader, out io.Writer, roles []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var location string
	nav := client.NavigatorFunc(func(loc string) { location = loc })
	notes := client.NotifierFunc(func(level client.Level, msg string) {
		fmt.Fprintf(out, "[%s] %s\n", level, msg)
	})

	guard := client.NewGuard(a.api, nav, notes, roles...)
	guard.OnLoading(func() { fmt.Fprintln(out, "Checking session...") })
	res, err := guard.Mount(ctx)
	if err != nil {
		if errors.Is(err, client.ErrAccessDenied) {
			return fmt.Errorf("access denied for role %s", client.EffectiveRole(res.UserType, res.Role))
		}
		return sessionError(err)
	}
	defer guard.Unmount()

	tracker := client.NewTracker(a.store, res.Policy, a.api.Logout, nav, notes,
		client.WithTrackerLogger(a.logger.Named("tracker")))
	events := make(chan client.Event, 16)
	teardown := tracker.Start(ctx, events)
	defer teardown()

	// The scanner goroutine may outlive the shell while blocked on stdin.
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-tracker.Done():
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintf(out, "Welcome %s. Type help for commands.\n", res.SocPortalID)
	for {
		fmt.Fprint(out, "> ")
		select {
		case <-ctx.Done():
			return nil
		case <-tracker.Done():
			fmt.Fprintf(out, "\nSession ended (%s).\n", location)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			select {
			case events <- client.EventKeyPress:
			default:
			}
			err := guard.Render(func(*client.CheckResult) error {
				return a.shellCommand(ctx, out, strings.Fields(line))
			})
			switch {
			case errors.Is(err, errShellExit):
				return nil
			case client.IsUnauthenticated(err):
				fmt.Fprintln(out, sessionError(err))
				return nil
			case err != nil:
				fmt.Fprintln(out, "error:", err)
			}
		}
	}
}

func (a *app) shellCommand(ctx context.Context, out io.Writer, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "help":
		fmt.Fprint(out, shellHelp)
	case "whoami":
		res, err := a.api.Check(ctx)
		if err != nil {
			return err
		}
		printIdentity(out, res)
	case "notifications":
		list, err := a.api.Notifications(ctx)
		if err != nil {
			return err
		}
		printNotifications(out, list)
	case "read":
		if len(fields) != 2 {
			return errors.New("usage: read <id>")
		}
		unread, err := a.api.MarkNotificationRead(ctx, fields[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d unread\n", unread)
	case "activity":
		page, err := a.api.ActivityLogs(ctx, 20, 0)
		if err != nil {
			return err
		}
		printActivity(out, page)
	case "logout":
		if err := a.api.Logout(ctx); err != nil {
			fmt.Fprintln(out, "server logout failed; local session removed")
		}
		fmt.Fprintln(out, "Logged out.")
		return errShellExit
	case "exit", "quit":
		return errShellExit
	default:
		return fmt.Errorf("unknown command %q (type help)", fields[0])
	}
	return nil
}
