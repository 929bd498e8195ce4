package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/clapserv/backend/internal/logger"
	"github.com/clapserv/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// categorySpec describes one of the built-in service categories
type categorySpec struct {
	name   string
	slug   string
	icon   string
	maxKM  *float64
	detail string
}

func km(v float64) *float64 { return &v }

var builtinCategories = []categorySpec{
	{"House Cleaning", "house-cleaning", "sparkles", km(40), "Regular and deep home cleaning"},
	{"Plumbing", "plumbing", "wrench", km(60), "Repairs, installs, and emergencies"},
	{"Electrical", "electrical", "bolt", km(60), "Licensed electrical work"},
	{"Moving Help", "moving-help", "truck", km(80), "Loading, unloading, and hauling"},
	{"Lawn Care", "lawn-care", "leaf", km(30), "Mowing, trimming, and yard cleanup"},
	{"Handyman", "handyman", "hammer", km(50), "Small repairs and odd jobs"},
	{"Pet Sitting", "pet-sitting", "paw", km(25), "In-home pet care and walks"},
	{"Tutoring", "tutoring", "book", nil, "Academic tutoring, in person or remote"},
	{"Photography", "photography", "camera", km(100), "Events, portraits, and real estate"},
	{"Web Design", "web-design", "code", nil, "Sites and landing pages, fully remote"},
}

// regionSpec doubles as the gazetteer for city/zip geocoding
type regionSpec struct {
	name  string
	city  string
	state string
	zip   string
	lat   float64
	lng   float64
}

var builtinRegions = []regionSpec{
	{"Austin Metro", "Austin", "TX", "78701", 30.2672, -97.7431},
	{"Round Rock", "Round Rock", "TX", "78664", 30.5083, -97.6789},
	{"San Antonio Metro", "San Antonio", "TX", "78205", 29.4241, -98.4936},
	{"Dallas Metro", "Dallas", "TX", "75201", 32.7767, -96.7970},
	{"Houston Metro", "Houston", "TX", "77002", 29.7604, -95.3698},
	{"Denver Metro", "Denver", "CO", "80202", 39.7392, -104.9903},
	{"Boulder", "Boulder", "CO", "80302", 40.0150, -105.2705},
	{"Portland Metro", "Portland", "OR", "97204", 45.5152, -122.6784},
}

// SeedDev seeds the development database with realistic marketplace data
func (s *Seeder) SeedDev() error {
	log := func(msg string) {
		logger.Log.Info(msg)
	}

	log("Creating service categories...")
	categories, err := s.seedCategories()
	if err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}

	log("Creating service regions...")
	regions, err := s.seedRegions(categories)
	if err != nil {
		return fmt.Errorf("failed to seed regions: %w", err)
	}

	log("Creating buyers...")
	buyers, err := s.seedUsers(40, regions, false)
	if err != nil {
		return fmt.Errorf("failed to seed buyers: %w", err)
	}

	log("Creating providers...")
	providers, err := s.seedUsers(25, regions, true)
	if err != nil {
		return fmt.Errorf("failed to seed providers: %w", err)
	}
	if err := s.seedProviderProfiles(providers, categories, regions); err != nil {
		return fmt.Errorf("failed to seed provider profiles: %w", err)
	}

	log("Creating service requests...")
	requests, err := s.seedRequests(buyers, categories, regions, 80)
	if err != nil {
		return fmt.Errorf("failed to seed requests: %w", err)
	}

	log("Creating proposals...")
	proposals, err := s.seedProposals(requests, providers)
	if err != nil {
		return fmt.Errorf("failed to seed proposals: %w", err)
	}

	log("Creating projects and reviews...")
	if err := s.seedProjectsAndReviews(proposals); err != nil {
		return fmt.Errorf("failed to seed projects: %w", err)
	}

	log("Creating conversations...")
	if err := s.seedConversations(proposals, 3); err != nil {
		return fmt.Errorf("failed to seed conversations: %w", err)
	}

	return nil
}

// SeedTest seeds the test database with a small fixed data set
func (s *Seeder) SeedTest() error {
	log := func(msg string) {
		logger.Log.Info(msg)
	}

	log("Creating test categories and regions...")
	categories, err := s.seedCategories()
	if err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}
	regions, err := s.seedRegions(categories)
	if err != nil {
		return fmt.Errorf("failed to seed regions: %w", err)
	}

	log("Creating test users...")
	testUserSpecs := []struct {
		username    string
		email       string
		displayName string
		provider    bool
	}{
		{"alice", "alice@example.com", "Alice Smith", false},
		{"bob", "bob@example.com", "Bob Johnson", true},
		{"charlie", "charlie@example.com", "Charlie Brown", true},
		{"diana", "diana@example.com", "Diana Prince", false},
	}

	var buyers, providers []models.User
	for _, spec := range testUserSpecs {
		var user models.User
		err := s.db.Where("username = ? OR email = ?", spec.username, spec.email).First(&user).Error
		if err == nil {
			if spec.provider {
				providers = append(providers, user)
			} else {
				buyers = append(buyers, user)
			}
			continue
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		hashedPasswordStr := string(hashedPassword)

		region := builtinRegions[0]
		user = models.User{
			Email:         spec.email,
			Username:      spec.username,
			DisplayName:   spec.displayName,
			PasswordHash:  &hashedPasswordStr,
			EmailVerified: true,
			ActiveRole:    models.RoleBuyer,
			AvatarURL:     fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/png?seed=%s", spec.username),
			City:          region.city,
			State:         region.state,
			Zip:           region.zip,
			Lat:           &region.lat,
			Lng:           &region.lng,
		}
		if spec.provider {
			user.ActiveRole = models.RoleProvider
		}
		if err := s.db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create test user %s: %w", spec.username, err)
		}
		if spec.provider {
			providers = append(providers, user)
		} else {
			buyers = append(buyers, user)
		}
	}

	if err := s.seedProviderProfiles(providers, categories, regions); err != nil {
		return fmt.Errorf("failed to seed provider profiles: %w", err)
	}

	log("Creating test requests and proposals...")
	requests, err := s.seedRequests(buyers, categories, regions, 5)
	if err != nil {
		return fmt.Errorf("failed to seed requests: %w", err)
	}
	if _, err := s.seedProposals(requests, providers); err != nil {
		return fmt.Errorf("failed to seed proposals: %w", err)
	}

	return nil
}

// Clean removes all seed data (use with caution!)
func (s *Seeder) Clean() error {
	// Delete in reverse order of dependencies
	tables := []string{
		"notifications",
		"messages",
		"conversations",
		"reviews",
		"projects",
		"proposals",
		"service_requests",
		"region_categories",
		"service_regions",
		"service_categories",
		"push_tokens",
		"password_resets",
		"provider_profiles",
		"users",
	}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}

// seedCategories creates the built-in categories, skipping existing ones
func (s *Seeder) seedCategories() ([]models.ServiceCategory, error) {
	var categories []models.ServiceCategory
	for _, spec := range builtinCategories {
		var category models.ServiceCategory
		err := s.db.Where("slug = ?", spec.slug).First(&category).Error
		if err == nil {
			categories = append(categories, category)
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}

		category = models.ServiceCategory{
			Name:          spec.name,
			Slug:          spec.slug,
			Description:   spec.detail,
			IconName:      spec.icon,
			MaxDistanceKM: spec.maxKM,
			IsActive:      true,
		}
		if err := s.db.Create(&category).Error; err != nil {
			return nil, fmt.Errorf("failed to create category %s: %w", spec.slug, err)
		}
		categories = append(categories, category)
	}
	return categories, nil
}

// seedRegions creates the gazetteer regions and enables every category in each
func (s *Seeder) seedRegions(categories []models.ServiceCategory) ([]models.ServiceRegion, error) {
	var regions []models.ServiceRegion
	for _, spec := range builtinRegions {
		var region models.ServiceRegion
		err := s.db.Where("city = ? AND state = ?", spec.city, spec.state).First(&region).Error
		if err == nil {
			regions = append(regions, region)
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}

		region = models.ServiceRegion{
			Name:     spec.name,
			City:     spec.city,
			State:    spec.state,
			Zip:      spec.zip,
			Lat:      spec.lat,
			Lng:      spec.lng,
			RadiusKM: 50,
			IsActive: true,
		}
		if err := s.db.Create(&region).Error; err != nil {
			return nil, fmt.Errorf("failed to create region %s: %w", spec.name, err)
		}

		for _, category := range categories {
			link := models.RegionCategory{RegionID: region.ID, CategoryID: category.ID}
			if err := s.db.Create(&link).Error; err != nil {
				return nil, fmt.Errorf("failed to enable category %s in %s: %w", category.Slug, region.Name, err)
			}
		}
		regions = append(regions, region)
	}
	return regions, nil
}

// seedUsers creates users located in random seed regions
func (s *Seeder) seedUsers(count int, regions []models.ServiceRegion, provider bool) ([]models.User, error) {
	var users []models.User

	for i := 0; i < count; i++ {
		username := gofakeit.Username()
		email := gofakeit.Email()

		// Ensure unique username/email
		var existing models.User
		for {
			if err := s.db.Where("username = ? OR email = ?", username, email).First(&existing).Error; err == gorm.ErrRecordNotFound {
				break
			}
			username = gofakeit.Username()
			email = gofakeit.Email()
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		hashedPasswordStr := string(hashedPassword)

		region := regions[rand.Intn(len(regions))]

		// Jitter coordinates so users are spread around the region center
		lat := region.Lat + (rand.Float64()-0.5)*0.2
		lng := region.Lng + (rand.Float64()-0.5)*0.2

		user := models.User{
			Email:         email,
			Username:      username,
			DisplayName:   gofakeit.Name(),
			Bio:           gofakeit.Sentence(10),
			Phone:         gofakeit.Phone(),
			PasswordHash:  &hashedPasswordStr,
			EmailVerified: true,
			ActiveRole:    models.RoleBuyer,
			AvatarURL:     fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/png?seed=%s", username),
			City:          region.City,
			State:         region.State,
			Zip:           region.Zip,
			Lat:           &lat,
			Lng:           &lng,
		}
		if provider {
			user.ActiveRole = models.RoleProvider
		}

		if err := s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", username, err)
		}
		users = append(users, user)
	}

	return users, nil
}

// seedProviderProfiles gives each provider 1-3 skills and a service location
func (s *Seeder) seedProviderProfiles(providers []models.User, categories []models.ServiceCategory, regions []models.ServiceRegion) error {
	for _, provider := range providers {
		var existing models.ProviderProfile
		if err := s.db.Where("user_id = ?", provider.ID).First(&existing).Error; err == nil {
			continue
		}

		skillCount := rand.Intn(3) + 1
		skills := make(models.StringArray, 0, skillCount)
		seen := make(map[string]bool)
		for len(skills) < skillCount {
			category := categories[rand.Intn(len(categories))]
			if !seen[category.ID] {
				seen[category.ID] = true
				skills = append(skills, category.ID)
			}
		}

		profile := models.ProviderProfile{
			UserID:       provider.ID,
			BusinessName: gofakeit.Company(),
			Bio:          gofakeit.Sentence(14),
			Skills:       skills,
			City:         provider.City,
			State:        provider.State,
			Zip:          provider.Zip,
			Lat:          provider.Lat,
			Lng:          provider.Lng,
			IsActive:     true,
		}
		if err := s.db.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to create provider profile for %s: %w", provider.Username, err)
		}
	}
	return nil
}

var requestTitles = []string{
	"Need help with %s",
	"Looking for %s this week",
	"%s for a 3-bedroom house",
	"One-time %s job",
	"Recurring %s needed",
}

// seedRequests posts open requests from random buyers
func (s *Seeder) seedRequests(buyers []models.User, categories []models.ServiceCategory, regions []models.ServiceRegion, count int) ([]models.ServiceRequest, error) {
	var requests []models.ServiceRequest

	for i := 0; i < count; i++ {
		buyer := buyers[rand.Intn(len(buyers))]
		category := categories[rand.Intn(len(categories))]

		budget := int64((rand.Intn(40) + 5) * 1000)

		request := models.ServiceRequest{
			BuyerID:     buyer.ID,
			CategoryID:  category.ID,
			Title:       fmt.Sprintf(requestTitles[rand.Intn(len(requestTitles))], category.Name),
			Description: gofakeit.Paragraph(1, 3, 12, " "),
			BudgetCents: &budget,
			City:        buyer.City,
			State:       buyer.State,
			Zip:         buyer.Zip,
			Lat:         buyer.Lat,
			Lng:         buyer.Lng,
			Status:      models.RequestStatusOpen,
		}
		if err := s.db.Create(&request).Error; err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		requests = append(requests, request)
	}

	return requests, nil
}

// seedProposals bids skilled providers onto a subset of open requests
func (s *Seeder) seedProposals(requests []models.ServiceRequest, providers []models.User) ([]models.Proposal, error) {
	// Load profiles up front so skill checks don't hit the database per bid
	profilesByUser := make(map[string]models.ProviderProfile, len(providers))
	for _, provider := range providers {
		var profile models.ProviderProfile
		if err := s.db.Where("user_id = ?", provider.ID).First(&profile).Error; err != nil {
			continue
		}
		profilesByUser[provider.ID] = profile
	}

	var proposals []models.Proposal
	for _, request := range requests {
		for _, provider := range providers {
			profile, ok := profilesByUser[provider.ID]
			if !ok || !profile.Skills.Contains(request.CategoryID) {
				continue
			}
			// Roughly a third of skilled providers bid
			if rand.Intn(3) != 0 {
				continue
			}

			amount := int64((rand.Intn(30) + 5) * 1000)
			proposal := models.Proposal{
				RequestID:   request.ID,
				ProviderID:  provider.ID,
				AmountCents: amount,
				Message:     gofakeit.Sentence(12),
				Status:      models.ProposalStatusPending,
			}
			if err := s.db.Create(&proposal).Error; err != nil {
				return nil, fmt.Errorf("failed to create proposal: %w", err)
			}
			if err := s.db.Model(&models.ServiceRequest{}).
				Where("id = ?", request.ID).
				UpdateColumn("proposal_count", gorm.Expr("proposal_count + 1")).Error; err != nil {
				return nil, fmt.Errorf("failed to bump proposal count: %w", err)
			}
			proposals = append(proposals, proposal)
		}
	}

	return proposals, nil
}

// seedProjectsAndReviews accepts a slice of the pending proposals, completing
// and reviewing some of the resulting projects
func (s *Seeder) seedProjectsAndReviews(proposals []models.Proposal) error {
	acceptedRequests := make(map[string]bool)

	for _, proposal := range proposals {
		if acceptedRequests[proposal.RequestID] {
			continue
		}
		// Accept roughly one in four first bids
		if rand.Intn(4) != 0 {
			continue
		}
		acceptedRequests[proposal.RequestID] = true

		var request models.ServiceRequest
		if err := s.db.First(&request, "id = ?", proposal.RequestID).Error; err != nil {
			return err
		}

		err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Proposal{}).
				Where("id = ?", proposal.ID).
				Update("status", models.ProposalStatusAccepted).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Proposal{}).
				Where("request_id = ? AND id != ? AND status = ?", proposal.RequestID, proposal.ID, models.ProposalStatusPending).
				Update("status", models.ProposalStatusRejected).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.ServiceRequest{}).
				Where("id = ?", proposal.RequestID).
				Update("status", models.RequestStatusMatched).Error; err != nil {
				return err
			}
			project := models.Project{
				RequestID:         proposal.RequestID,
				ProposalID:        proposal.ID,
				BuyerID:           request.BuyerID,
				ProviderID:        proposal.ProviderID,
				AgreedAmountCents: proposal.AmountCents,
				Status:            models.ProjectStatusActive,
			}
			if err := tx.Create(&project).Error; err != nil {
				return err
			}

			// Complete and review about half of the projects
			if rand.Intn(2) == 0 {
				now := time.Now()
				if err := tx.Model(&project).Updates(map[string]interface{}{
					"status":       models.ProjectStatusCompleted,
					"completed_at": now,
				}).Error; err != nil {
					return err
				}
				review := models.Review{
					ProjectID:  project.ID,
					ReviewerID: request.BuyerID,
					ProviderID: proposal.ProviderID,
					Rating:     rand.Intn(3) + 3, // seeded reviews skew positive
					Comment:    gofakeit.Sentence(10),
				}
				if err := tx.Create(&review).Error; err != nil {
					return err
				}
				if err := tx.Model(&models.ProviderProfile{}).
					Where("user_id = ?", proposal.ProviderID).
					Updates(map[string]interface{}{
						"rating_average": gorm.Expr("(SELECT COALESCE(AVG(rating), 0) FROM reviews WHERE provider_id = ?)", proposal.ProviderID),
						"rating_count":   gorm.Expr("(SELECT COUNT(*) FROM reviews WHERE provider_id = ?)", proposal.ProviderID),
					}).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to accept proposal: %w", err)
		}
	}

	return nil
}

// seedConversations opens a chat for some proposals with a short exchange
func (s *Seeder) seedConversations(proposals []models.Proposal, messagesEach int) error {
	for _, proposal := range proposals {
		if rand.Intn(3) != 0 {
			continue
		}

		var request models.ServiceRequest
		if err := s.db.First(&request, "id = ?", proposal.RequestID).Error; err != nil {
			return err
		}

		proposalID := proposal.ID
		conversation := models.Conversation{
			BuyerID:    request.BuyerID,
			ProviderID: proposal.ProviderID,
			ProposalID: &proposalID,
		}
		if err := s.db.Create(&conversation).Error; err != nil {
			return fmt.Errorf("failed to create conversation: %w", err)
		}

		participants := []string{request.BuyerID, proposal.ProviderID}
		var lastAt time.Time
		for i := 0; i < messagesEach; i++ {
			message := models.Message{
				ConversationID: conversation.ID,
				SenderID:       participants[i%2],
				Body:           gofakeit.Question(),
			}
			if err := s.db.Create(&message).Error; err != nil {
				return fmt.Errorf("failed to create message: %w", err)
			}
			lastAt = message.CreatedAt
		}
		if err := s.db.Model(&conversation).Update("last_message_at", lastAt).Error; err != nil {
			return err
		}
	}
	return nil
}
