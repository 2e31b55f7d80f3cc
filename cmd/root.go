/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/rolegate/rolegate/config"
	"github.com/rolegate/rolegate/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rolegate",
	Short: "Session-based login gate with user and admin roles",
	Long: `rolegate serves a small website whose pages are gated by a login
session and, for the admin pages, by the user's current role.

	rolegate server
	rolegate migrate up
	rolegate user promote alice
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// mustLoad reads the configuration or exits with a diagnostic.
func mustLoad() (config.Config, *logrus.Logger) {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	return cfg, logging.New(cfg.Log)
}
