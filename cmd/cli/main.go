package main

import (
	"fmt"
	"os"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var output string = "text" // "text" or "json"

var rootCmd = &cobra.Command{
	Use:   "clapserv",
	Short: "Clap-Serv CLI - Operational tools for the marketplace backend",
	Long: `Clap-Serv CLI provides command-line access to operational tasks.
Manage admin privileges, inspect users, and send test push notifications.
Commands connect directly to the database configured in the environment.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		if err := logger.Initialize(os.Getenv("LOG_LEVEL"), ""); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if err := database.Initialize(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		database.Close()
		logger.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	rootCmd.AddCommand(promoteAdminCmd)
	rootCmd.AddCommand(listUsersCmd)
	rootCmd.AddCommand(testPushCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
