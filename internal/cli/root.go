// Package cli implements portalctl, a terminal client for the portal API. It keeps the session
// cookies in a file and runs the same guard and idle tracker as the web client.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"soc-portal/internal/client"
	"soc-portal/internal/logging"
)

type app struct {
	server      string
	sessionPath string
	logLevel    string

	logger *zap.Logger
	store  *client.FileStore
	api    *client.Client
}

// defaultServer returns the default server URL, checking SOC_PORTAL_URL first.
func defaultServer() string {
	if s := os.Getenv("SOC_PORTAL_URL"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for portalctl.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "portalctl",
		Short: "Terminal client for the SOC portal",
		Long:  "portalctl logs in to the SOC portal, keeps the session cookies on disk and calls the portal API.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&a.server, "server", defaultServer(), "Portal base URL (or SOC_PORTAL_URL env)")
	root.PersistentFlags().StringVar(&a.sessionPath, "session", "", "Session file (default ~/.socportal/session.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newUsersCmd(a),
		newActivityCmd(a),
		newNotificationsCmd(a),
		newShellCmd(a),
	)
	return root
}

func (a *app) init() error {
	logger, err := logging.New("development", a.logLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.logger = logger

	path := a.sessionPath
	if path == "" {
		if path, err = client.DefaultSessionPath(); err != nil {
			return err
		}
	}
	store, err := client.OpenFileStore(path)
	if err != nil {
		return fmt.Errorf("open session file: %w", err)
	}
	a.store = store
	a.api = client.New(a.server, store, logger.Named("client"))
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
