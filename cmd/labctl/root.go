package main

import (
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"github.com/labtrack/go-liblab/catalog/client"
	"github.com/labtrack/go-liblab/ecache"
	"github.com/labtrack/go-liblab/provider"
	"github.com/labtrack/go-liblab/session"
	"github.com/spf13/cobra"
)

var log = logging.Logger("labctl")

// app holds the state of one labctl invocation.
type app struct {
	configDir string
	jsonOut   bool

	settings settings
	sess     *session.Session
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "labctl",
		Short:         "Lab catalog command line client",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !needsSession(cmd) {
				return nil
			}
			return a.start(cmd)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return userErr(err)
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.configDir, "config-dir", defaultConfigDir, "configuration directory holding labctl.yaml")
	flags.BoolVar(&a.jsonOut, "json", false, "output as JSON")
	flags.String("base-url", "", "catalog API base URL (overrides base_url)")
	flags.String("log-level", "", "log level: debug, info, warn, error (overrides log_level)")

	root.AddCommand(
		a.listCmd(),
		a.preloadCmd(),
		a.putCmd(),
		a.deleteCmd(),
		versionCmd(),
	)
	return root
}

// start loads the configuration and starts the session.
func (a *app) start(cmd *cobra.Command) error {
	s, err := loadSettings(a.configDir, cmd.Flags())
	if err != nil {
		return err
	}
	if err = logging.SetLogLevel("*", s.LogLevel); err != nil {
		return userErrorf("log level %q: %w", s.LogLevel, err)
	}
	if err = s.requireToken(); err != nil {
		return err
	}
	a.settings = s
	log.Debugw("Loaded settings", "settings", s.String())

	sess, err := session.Start(s.Token, s.BaseURL,
		session.WithClientOptions(
			client.WithRetry(s.RetryMax, 0, 0),
			client.WithTimeout(s.Timeout),
		),
		session.WithProviderOptions(
			provider.WithCacheOptions(ecache.WithExpiry(s.CacheExpiry)),
		),
	)
	if err != nil {
		// Start fails only on a malformed token or base URL.
		return userErrorf("start session: %w", err)
	}
	if sess.Expired() {
		sess.End()
		return fmt.Errorf("%w at %s", session.ErrExpired, sess.ExpiresAt())
	}
	a.sess = sess
	return nil
}

func (a *app) close() {
	if a.sess != nil {
		a.sess.End()
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the labctl version",
		Args:  userArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "labctl", version)
		},
	}
}

func needsSession(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return false
	}
	if p := cmd.Parent(); p != nil && p.Name() == "completion" {
		return false
	}
	return true
}

// userArgs marks errors of an argument validator as user errors.
func userArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return userErr(validate(cmd, args))
	}
}
