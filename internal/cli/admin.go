package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"soc-portal/internal/client"
)

func newUsersCmd(a *app) *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts (admins only)",
	}

	var u client.NewUser
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := a.api.CreateUser(cmd.Context(), u)
			if err != nil {
				return fmt.Errorf("create user: %w", sessionError(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s, %s, %s)\n", created.SocPortalID, created.Email, created.Role, created.Status)
			return nil
		},
	}
	add.Flags().StringVar(&u.SocPortalID, "soc-portal-id", "", "SOC portal id")
	add.Flags().StringVar(&u.Email, "email", "", "Email")
	add.Flags().StringVar(&u.FirstName, "first-name", "", "First name")
	add.Flags().StringVar(&u.LastName, "last-name", "", "Last name")
	add.Flags().StringVar(&u.Phone, "phone", "", "Phone number")
	add.Flags().StringVar(&u.Role, "role", "SOC", "Role: SOC, OPS, INTERN or CTO")
	add.Flags().StringVar(&u.Password, "password", "", "Initial password")

	users.AddCommand(add)
	return users
}

func newActivityCmd(a *app) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "List the activity log (admins only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := a.api.ActivityLogs(cmd.Context(), limit, offset)
			if err != nil {
				return fmt.Errorf("activity logs: %w", sessionError(err))
			}
			printActivity(cmd.OutOrStdout(), page)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Rows per page")
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	return cmd
}

func printActivity(out io.Writer, page *client.ActivityPage) {
	if len(page.Logs) == 0 {
		fmt.Fprintln(out, "No activity found.")
		return
	}
	fmt.Fprintf(out, "%-19s  %-8s  %-10s  %-24s  %s\n", "TIME", "SEVERITY", "PORTAL ID", "ACTION", "DESCRIPTION")
	for _, l := range page.Logs {
		fmt.Fprintf(out, "%-19s  %-8s  %-10s  %-24s  %s\n", formatTime(l.CreatedAt), l.Severity, l.SocPortalID, l.Action, l.Description)
	}
	if shown := page.Offset + len(page.Logs); shown < page.Total {
		fmt.Fprintf(out, "\n(%d-%d of %d shown)\n", page.Offset+1, shown, page.Total)
	}
}

func newNotificationsCmd(a *app) *cobra.Command {
	var markRead string

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List notifications or mark one read",
		RunE: func(cmd *cobra.Command, args []string) error {
			if markRead != "" {
				unread, err := a.api.MarkNotificationRead(cmd.Context(), markRead)
				if err != nil {
					return fmt.Errorf("mark read: %w", sessionError(err))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %s read, %d unread\n", markRead, unread)
				return nil
			}
			list, err := a.api.Notifications(cmd.Context())
			if err != nil {
				return fmt.Errorf("notifications: %w", sessionError(err))
			}
			printNotifications(cmd.OutOrStdout(), list)
			return nil
		},
	}
	cmd.Flags().StringVar(&markRead, "read", "", "Mark the notification with this id read")
	return cmd
}

func printNotifications(out io.Writer, list *client.NotificationList) {
	fmt.Fprintf(out, "%d unread\n", list.Unread)
	for _, n := range list.Notifications {
		mark := " "
		if !n.Read {
			mark = "*"
		}
		fmt.Fprintf(out, "%s %-36s  %-19s  %s: %s\n", mark, n.ID, formatTime(n.CreatedAt), n.Title, n.Message)
	}
}
