package main

import (
	"fmt"
	"os"

	"github.com/bwise1/sosedi/config"
	"github.com/bwise1/sosedi/pkg/logging"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	cfg *config.Config

	// rootCmd runs the server when called without a subcommand
	rootCmd = &cobra.Command{
		Use:   "sosedi",
		Short: "neighbourhood social backend",
		Long: `sosedi serves the neighbourhood feed: profiles, posts, groups,
advertisements, events and chats around a location.

Configuration comes from the environment (and a .env file if present).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.New()
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("log-level"); v != "" {
				cfg.LogLevel = v
			}
			logging.SetupWith(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
		RunE: runServe,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sosedi v%s\n", Version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "overrides LOG_LEVEL (debug, info, warn, error)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the command line. It is called once by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
