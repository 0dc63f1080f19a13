// Package main provides the Navigator CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joss/navigator/internal/config"
	"github.com/joss/navigator/internal/logging"
)

var (
	version    = "0.1.0"
	configPath string
	logLevel   string
	cfg        *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "navigator",
		Short: "AI assistant backend for the Jellyfin web client",
		Long: `Navigator answers natural language requests about a Jellyfin library.

It runs a model/tool loop against the user's library and streams the result
to the web client. The same loop can be driven from the terminal with 'ask'.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			level := cfg.Log.Level
			if logLevel != "" {
				level = logLevel
			}
			logging.Setup(os.Stderr, logging.Level(level), cfg.Log.Format)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default navigator.yaml in . or ~/.navigator)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level")

	rootCmd.AddGroup(
		&cobra.Group{ID: "run", Title: "Run:"},
		&cobra.Group{ID: "inspect", Title: "Inspect:"},
	)

	serve := serveCmd()
	serve.GroupID = "run"
	rootCmd.AddCommand(serve)

	ask := askCmd()
	ask.GroupID = "run"
	rootCmd.AddCommand(ask)

	tools := toolsCmd()
	tools.GroupID = "inspect"
	rootCmd.AddCommand(tools)

	prompt := promptCmd()
	prompt.GroupID = "inspect"
	rootCmd.AddCommand(prompt)

	audit := auditCmd()
	audit.GroupID = "inspect"
	rootCmd.AddCommand(audit)

	doctor := doctorCmd()
	doctor.GroupID = "inspect"
	rootCmd.AddCommand(doctor)

	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("navigator %s\n", version)
		},
	}
}
