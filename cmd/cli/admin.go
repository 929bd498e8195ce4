package main

import (
	"fmt"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/models"
	"github.com/spf13/cobra"
)

var revokeAdmin bool

var promoteAdminCmd = &cobra.Command{
	Use:   "promote-admin <email>",
	Short: "Grant or revoke admin privileges for a user",
	Long: `Grant admin privileges to the user with the given email address.
Use --revoke to remove privileges instead. Admins can manage the service
catalog (categories and regions) through the API.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return promoteAdmin(args[0], revokeAdmin)
	},
}

func init() {
	promoteAdminCmd.Flags().BoolVar(&revokeAdmin, "revoke", false, "Revoke admin privileges instead of granting")
}

func promoteAdmin(email string, revoke bool) error {
	var user models.User
	if err := database.DB.Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		return fmt.Errorf("user not found: %s", email)
	}

	if revoke {
		if !user.IsAdmin {
			fmt.Printf("⚠️  User %s is not an admin\n", user.Username)
			return nil
		}
		user.IsAdmin = false
		if err := database.DB.Save(&user).Error; err != nil {
			return fmt.Errorf("failed to revoke admin privileges: %w", err)
		}
		fmt.Printf("✓ Admin privileges revoked for %s (%s)\n", user.Username, user.Email)
		return nil
	}

	if user.IsAdmin {
		fmt.Printf("⚠️  User %s is already an admin\n", user.Username)
		return nil
	}
	user.IsAdmin = true
	if err := database.DB.Save(&user).Error; err != nil {
		return fmt.Errorf("failed to grant admin privileges: %w", err)
	}

	fmt.Printf("✓ Admin privileges granted to %s (%s)\n", user.Username, user.Email)
	fmt.Printf("  User ID: %s\n", user.ID)
	fmt.Printf("  The user must log out and log back in for changes to take effect\n")
	return nil
}
