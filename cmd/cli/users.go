package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/models"
	"github.com/spf13/cobra"
)

var (
	listUsersRole  string
	listUsersLimit int
)

var listUsersCmd = &cobra.Command{
	Use:   "list-users",
	Short: "List registered users",
	Long:  "List users ordered by most recently created, optionally filtered by active role.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listUsers()
	},
}

func init() {
	listUsersCmd.Flags().StringVar(&listUsersRole, "role", "", "Filter by active role: buyer or provider")
	listUsersCmd.Flags().IntVar(&listUsersLimit, "limit", 50, "Maximum number of users to list")
}

func listUsers() error {
	query := database.DB.Order("created_at DESC").Limit(listUsersLimit)
	if listUsersRole != "" {
		if listUsersRole != string(models.RoleBuyer) && listUsersRole != string(models.RoleProvider) {
			return fmt.Errorf("invalid role %q: must be buyer or provider", listUsersRole)
		}
		query = query.Where("active_role = ?", listUsersRole)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if output == "json" {
		encoded, err := json.MarshalIndent(users, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode users: %w", err)
		}
		fmt.Println(string(encoded))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLE\tADMIN\tCREATED")
	for _, u := range users {
		admin := ""
		if u.IsAdmin {
			admin = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			u.ID, u.Username, u.Email, u.ActiveRole, admin,
			u.CreatedAt.Format("2006-01-02"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d user(s)\n", len(users))
	return nil
}
