package main

import (
	"os"

	"github.com/spf13/cobra"
)

// @title           Credentials API
// @version         1.0
// @description     Registers accounts, authenticates users and attendants, and issues PASETO tokens.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey TokenAuth
// @in header
// @name x-auth-token
// @description The token returned by registration or authentication.

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "credentials-api",
		Short:        "Credential issuance and validation service",
		Long:         "Registers accounts, authenticates users and attendants, and issues signed identity tokens.",
		SilenceUsage: true,
	}

	serveCmd := newServeCmd()
	rootCmd.AddCommand(serveCmd, newMigrateCmd())

	// Allow running without subcommand (default to serve)
	rootCmd.RunE = serveCmd.RunE
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	return rootCmd
}
