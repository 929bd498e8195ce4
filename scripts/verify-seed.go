package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/models"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	// Initialize database connection
	if err := database.Initialize(); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	fmt.Println("🔍 Verifying seed data...")
	fmt.Println()

	// Count records
	var userCount, providerCount, categoryCount, regionCount, requestCount, proposalCount, projectCount int64

	database.DB.Model(&models.User{}).Where("deleted_at IS NULL").Count(&userCount)
	database.DB.Model(&models.ProviderProfile{}).Where("deleted_at IS NULL").Count(&providerCount)
	database.DB.Model(&models.ServiceCategory{}).Count(&categoryCount)
	database.DB.Model(&models.ServiceRegion{}).Count(&regionCount)
	database.DB.Model(&models.ServiceRequest{}).Where("deleted_at IS NULL").Count(&requestCount)
	database.DB.Model(&models.Proposal{}).Where("deleted_at IS NULL").Count(&proposalCount)
	database.DB.Model(&models.Project{}).Where("deleted_at IS NULL").Count(&projectCount)

	fmt.Println("📊 Record Counts:")
	fmt.Printf("  Users:             %d\n", userCount)
	fmt.Printf("  Provider Profiles: %d\n", providerCount)
	fmt.Printf("  Categories:        %d\n", categoryCount)
	fmt.Printf("  Regions:           %d\n", regionCount)
	fmt.Printf("  Requests:          %d\n", requestCount)
	fmt.Printf("  Proposals:         %d\n", proposalCount)
	fmt.Printf("  Projects:          %d\n", projectCount)
	fmt.Println()

	// Sample data
	fmt.Println("📝 Sample Data:")
	fmt.Println()

	var users []models.User
	database.DB.Where("deleted_at IS NULL").Limit(3).Find(&users)
	fmt.Println("  Sample Users:")
	for _, u := range users {
		fmt.Printf("    - %s (@%s) - %s, %s [%s]\n", u.DisplayName, u.Username, u.City, u.State, u.ActiveRole)
	}
	fmt.Println()

	var requests []models.ServiceRequest
	database.DB.Where("deleted_at IS NULL").Limit(3).Find(&requests)
	fmt.Println("  Sample Requests:")
	for _, r := range requests {
		fmt.Printf("    - %s [%s] - %d proposals\n", r.Title, r.Status, r.ProposalCount)
	}
	fmt.Println()

	var profiles []models.ProviderProfile
	database.DB.Where("deleted_at IS NULL").Order("rating_count DESC").Limit(5).Find(&profiles)
	fmt.Println("  Top Providers:")
	for _, p := range profiles {
		fmt.Printf("    - %s - %.1f stars (%d reviews), %d skills\n", p.BusinessName, p.RatingAverage, p.RatingCount, len(p.Skills))
	}
	fmt.Println()

	// Verify relationships
	fmt.Println("🔗 Relationship Verification:")
	var requestWithBuyer models.ServiceRequest
	database.DB.Preload("Buyer").Preload("Category").Where("deleted_at IS NULL").First(&requestWithBuyer)
	if requestWithBuyer.Buyer.ID != "" {
		fmt.Printf("  ✅ Requests have buyer relationships\n")
	}
	if requestWithBuyer.Category.ID != "" {
		fmt.Printf("  ✅ Requests have category relationships\n")
	}

	var proposalWithRequest models.Proposal
	database.DB.Preload("Request").Where("deleted_at IS NULL").First(&proposalWithRequest)
	if proposalWithRequest.Request.ID != "" {
		fmt.Printf("  ✅ Proposals have request relationships\n")
	}

	var link models.RegionCategory
	database.DB.Preload("Region").Preload("Category").First(&link)
	if link.Region.ID != "" && link.Category.ID != "" {
		fmt.Printf("  ✅ Regions have enabled categories\n")
	}
	fmt.Println()

	// Export sample data as JSON for API testing
	if len(os.Args) > 1 && os.Args[1] == "--json" && len(users) > 0 && len(requests) > 0 {
		sampleData := map[string]interface{}{
			"user_id":    users[0].ID,
			"username":   users[0].Username,
			"request_id": requests[0].ID,
		}
		jsonData, _ := json.MarshalIndent(sampleData, "", "  ")
		fmt.Println("📋 Sample IDs for API testing:")
		fmt.Println(string(jsonData))
	}

	fmt.Println("✅ Seed data verification complete!")
}
