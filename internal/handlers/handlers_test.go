package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/geo"
	applogger "github.com/clapserv/backend/internal/logger"
	"github.com/clapserv/backend/internal/matching"
	"github.com/clapserv/backend/internal/models"
	"github.com/clapserv/backend/internal/notifications"
	"github.com/clapserv/backend/internal/push"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	applogger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// fakeSender records push messages without hitting the gateway
type fakeSender struct {
	sent []push.Message
}

func (f *fakeSender) Send(_ context.Context, messages []push.Message) []push.Ticket {
	f.sent = append(f.sent, messages...)
	tickets := make([]push.Ticket, len(messages))
	for i := range tickets {
		tickets[i] = push.Ticket{Status: "ok"}
	}
	return tickets
}

// coordResolver resolves only stored coordinates
type coordResolver struct{}

func (coordResolver) Resolve(_ context.Context, loc geo.Location) (geo.Coordinates, bool) {
	if loc.HasCoordinates() {
		return geo.Coordinates{Lat: *loc.Lat, Lng: *loc.Lng}, true
	}
	return geo.Coordinates{}, false
}

// HandlersTestSuite contains marketplace handler tests
type HandlersTestSuite struct {
	suite.Suite
	db       *gorm.DB
	router   *gin.Engine
	handlers *Handlers
	sender   *fakeSender

	buyer    *models.User
	provider *models.User
	category *models.ServiceCategory
}

// SetupSuite initializes test database and handlers
func (suite *HandlersTestSuite) SetupSuite() {
	host := getEnvOrDefault("POSTGRES_HOST", "localhost")
	port := getEnvOrDefault("POSTGRES_PORT", "5432")
	user := getEnvOrDefault("POSTGRES_USER", "postgres")
	password := getEnvOrDefault("POSTGRES_PASSWORD", "")
	dbname := getEnvOrDefault("POSTGRES_DB", "clapserv_test")

	testDSN := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable", host, port, user, dbname)
	if password != "" {
		testDSN = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
	}

	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		suite.T().Skipf("Skipping handler tests: database not available (%v)", err)
		return
	}

	database.DB = db

	err = db.AutoMigrate(
		&models.User{},
		&models.ProviderProfile{},
		&models.PushToken{},
		&models.ServiceCategory{},
		&models.ServiceRequest{},
		&models.Proposal{},
		&models.Project{},
		&models.Review{},
		&models.Conversation{},
		&models.Message{},
		&models.Notification{},
	)
	require.NoError(suite.T(), err)

	suite.db = db
	suite.sender = &fakeSender{}

	matcher := matching.NewMatcher(coordResolver{})
	dispatcher := notifications.NewDispatcher(matcher, suite.sender)
	suite.handlers = NewHandlers(nil, dispatcher)

	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.setupRoutes()
}

// setupRoutes configures the test router with a header-based auth stand-in
func (suite *HandlersTestSuite) setupRoutes() {
	authMiddleware := func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		var user models.User
		if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
			c.Abort()
			return
		}
		c.Set("user", &user)
		c.Set("user_id", user.ID)
		c.Next()
	}

	// Public routes
	suite.router.GET("/api/v1/categories", suite.handlers.ListCategories)
	suite.router.GET("/api/v1/users/:id", suite.handlers.GetUser)
	suite.router.GET("/api/v1/users/:id/reviews", suite.handlers.ListProviderReviews)

	api := suite.router.Group("/api/v1")
	api.Use(authMiddleware)

	api.POST("/requests", suite.handlers.CreateRequest)
	api.GET("/requests/mine", suite.handlers.ListMyRequests)
	api.GET("/requests/open", suite.handlers.ListOpenRequests)
	api.GET("/requests/:id", suite.handlers.GetRequest)
	api.POST("/requests/:id/cancel", suite.handlers.CancelRequest)
	api.POST("/requests/:id/proposals", suite.handlers.SubmitProposal)
	api.GET("/requests/:id/proposals", suite.handlers.ListProposals)
	api.POST("/proposals/:id/accept", suite.handlers.AcceptProposal)
	api.POST("/proposals/:id/reject", suite.handlers.RejectProposal)
	api.POST("/proposals/:id/withdraw", suite.handlers.WithdrawProposal)
	api.GET("/projects", suite.handlers.ListProjects)
	api.POST("/projects/:id/status", suite.handlers.UpdateProjectStatus)
	api.POST("/projects/:id/review", suite.handlers.CreateReview)
	api.POST("/conversations", suite.handlers.CreateConversation)
	api.POST("/conversations/:id/messages", suite.handlers.SendMessage)
	api.GET("/conversations/:id/messages", suite.handlers.ListMessages)
	api.GET("/notifications", suite.handlers.GetNotifications)
	api.GET("/notifications/counts", suite.handlers.GetNotificationCounts)
	api.POST("/notifications/read", suite.handlers.MarkNotificationsRead)
	api.POST("/push-tokens", suite.handlers.RegisterPushToken)
}

// TearDownSuite cleans up after tests
func (suite *HandlersTestSuite) TearDownSuite() {
	if suite.db == nil {
		return
	}
	suite.db.Exec(`DROP TABLE IF EXISTS notifications, messages, conversations, reviews,
		projects, proposals, service_requests, service_categories, push_tokens,
		provider_profiles, users CASCADE`)

	sqlDB, _ := suite.db.DB()
	sqlDB.Close()
}

// SetupTest seeds a fresh buyer, provider, and category before each test
func (suite *HandlersTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM notifications")
	suite.db.Exec("DELETE FROM messages")
	suite.db.Exec("DELETE FROM conversations")
	suite.db.Exec("DELETE FROM reviews")
	suite.db.Exec("DELETE FROM projects")
	suite.db.Exec("DELETE FROM proposals")
	suite.db.Exec("DELETE FROM service_requests")
	suite.db.Exec("DELETE FROM push_tokens")
	suite.db.Exec("DELETE FROM provider_profiles")
	suite.db.Exec("DELETE FROM service_categories")
	suite.db.Exec("DELETE FROM users")
	suite.sender.sent = nil

	maxKM := 50.0
	suite.category = &models.ServiceCategory{
		Name:          "House Cleaning",
		Slug:          "house-cleaning",
		MaxDistanceKM: &maxKM,
		IsActive:      true,
	}
	require.NoError(suite.T(), suite.db.Create(suite.category).Error)

	lat, lng := 30.2672, -97.7431
	suite.buyer = &models.User{
		Email:       "buyer@test.com",
		Username:    "buyer",
		DisplayName: "Buyer",
		ActiveRole:  models.RoleBuyer,
		City:        "Austin",
		State:       "TX",
		Lat:         &lat,
		Lng:         &lng,
	}
	require.NoError(suite.T(), suite.db.Create(suite.buyer).Error)

	plat, plng := 30.25, -97.75
	suite.provider = &models.User{
		Email:       "provider@test.com",
		Username:    "provider",
		DisplayName: "Provider",
		ActiveRole:  models.RoleProvider,
	}
	require.NoError(suite.T(), suite.db.Create(suite.provider).Error)

	profile := models.ProviderProfile{
		UserID:   suite.provider.ID,
		Skills:   models.StringArray{suite.category.ID},
		Lat:      &plat,
		Lng:      &plng,
		IsActive: true,
	}
	require.NoError(suite.T(), suite.db.Create(&profile).Error)
}

func (suite *HandlersTestSuite) doJSON(method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(suite.T(), json.NewEncoder(&buf).Encode(body))
	}

	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlersTestSuite) TestCreateRequestRequiresAuth() {
	w := suite.doJSON("POST", "/api/v1/requests", "", gin.H{
		"category_id": suite.category.ID,
		"title":       "Deep clean",
	})
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestCreateRequest() {
	t := suite.T()

	w := suite.doJSON("POST", "/api/v1/requests", suite.buyer.ID, gin.H{
		"category_id": suite.category.ID,
		"title":       "Deep clean my apartment",
		"description": "Two bedrooms, one bath",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Request models.ServiceRequest `json:"request"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.RequestStatusOpen, resp.Request.Status)
	assert.Equal(t, suite.buyer.ID, resp.Request.BuyerID)
	// Buyer's stored location fills in when the request carries none
	assert.Equal(t, "Austin", resp.Request.City)
	require.NotNil(t, resp.Request.Lat)
}

func (suite *HandlersTestSuite) TestCreateRequestUnknownCategory() {
	w := suite.doJSON("POST", "/api/v1/requests", suite.buyer.ID, gin.H{
		"category_id": "7b0c2f64-0000-0000-0000-000000000000",
		"title":       "Nothing doing",
	})
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestCancelRequestOnlyByOwner() {
	t := suite.T()

	request := models.ServiceRequest{
		BuyerID:    suite.buyer.ID,
		CategoryID: suite.category.ID,
		Title:      "Cancel me",
		Status:     models.RequestStatusOpen,
	}
	require.NoError(t, suite.db.Create(&request).Error)

	w := suite.doJSON("POST", "/api/v1/requests/"+request.ID+"/cancel", suite.provider.ID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = suite.doJSON("POST", "/api/v1/requests/"+request.ID+"/cancel", suite.buyer.ID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stored models.ServiceRequest
	require.NoError(t, suite.db.First(&stored, "id = ?", request.ID).Error)
	assert.Equal(t, models.RequestStatusCancelled, stored.Status)
}

func (suite *HandlersTestSuite) TestProposalLifecycle() {
	t := suite.T()

	request := models.ServiceRequest{
		BuyerID:    suite.buyer.ID,
		CategoryID: suite.category.ID,
		Title:      "Weekly cleaning",
		Status:     models.RequestStatusOpen,
	}
	require.NoError(t, suite.db.Create(&request).Error)

	// Provider submits a proposal
	w := suite.doJSON("POST", "/api/v1/requests/"+request.ID+"/proposals", suite.provider.ID, gin.H{
		"amount_cents": 15000,
		"message":      "Happy to help",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Proposal models.Proposal `json:"proposal"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, models.ProposalStatusPending, created.Proposal.Status)

	// A second proposal from the same provider is rejected
	w = suite.doJSON("POST", "/api/v1/requests/"+request.ID+"/proposals", suite.provider.ID, gin.H{
		"amount_cents": 12000,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Proposal count cache incremented
	var stored models.ServiceRequest
	require.NoError(t, suite.db.First(&stored, "id = ?", request.ID).Error)
	assert.Equal(t, 1, stored.ProposalCount)

	// Buyer receives an in-app notification
	var notifCount int64
	suite.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ?", suite.buyer.ID, models.NotificationProposalReceived).
		Count(&notifCount)
	assert.Equal(t, int64(1), notifCount)

	// Buyer accepts; request matches and a project appears
	w = suite.doJSON("POST", "/api/v1/proposals/"+created.Proposal.ID+"/accept", suite.buyer.ID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var accepted struct {
		Proposal models.Proposal `json:"proposal"`
		Project  models.Project  `json:"project"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	assert.Equal(t, models.ProposalStatusAccepted, accepted.Proposal.Status)
	assert.Equal(t, models.ProjectStatusActive, accepted.Project.Status)
	assert.Equal(t, int64(15000), accepted.Project.AgreedAmountCents)

	require.NoError(t, suite.db.First(&stored, "id = ?", request.ID).Error)
	assert.Equal(t, models.RequestStatusMatched, stored.Status)

	// Accepting the same proposal twice fails
	w = suite.doJSON("POST", "/api/v1/proposals/"+created.Proposal.ID+"/accept", suite.buyer.ID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func (suite *HandlersTestSuite) TestAcceptRacingProposalsCreatesOneProject() {
	t := suite.T()

	second := models.User{
		Email:       "provider2@test.com",
		Username:    "provider2",
		DisplayName: "Second Provider",
		ActiveRole:  models.RoleProvider,
	}
	require.NoError(t, suite.db.Create(&second).Error)
	require.NoError(t, suite.db.Create(&models.ProviderProfile{
		UserID:   second.ID,
		Skills:   models.StringArray{suite.category.ID},
		IsActive: true,
	}).Error)

	request := models.ServiceRequest{
		BuyerID:    suite.buyer.ID,
		CategoryID: suite.category.ID,
		Title:      "Deep clean",
		Status:     models.RequestStatusOpen,
	}
	require.NoError(t, suite.db.Create(&request).Error)

	first := models.Proposal{
		RequestID:   request.ID,
		ProviderID:  suite.provider.ID,
		AmountCents: 10000,
		Status:      models.ProposalStatusPending,
	}
	require.NoError(t, suite.db.Create(&first).Error)
	other := models.Proposal{
		RequestID:   request.ID,
		ProviderID:  second.ID,
		AmountCents: 11000,
		Status:      models.ProposalStatusPending,
	}
	require.NoError(t, suite.db.Create(&other).Error)

	// Accept both proposals at once; the request can only match once
	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i, id := range []string{first.ID, other.ID} {
		wg.Add(1)
		go func(i int, proposalID string) {
			defer wg.Done()
			w := suite.doJSON("POST", "/api/v1/proposals/"+proposalID+"/accept", suite.buyer.ID, nil)
			codes[i] = w.Code
		}(i, id)
	}
	wg.Wait()

	okCount := 0
	for _, code := range codes {
		if code == http.StatusOK {
			okCount++
		} else {
			assert.Equal(t, http.StatusBadRequest, code)
		}
	}
	assert.Equal(t, 1, okCount)

	var projectCount int64
	suite.db.Model(&models.Project{}).Where("request_id = ?", request.ID).Count(&projectCount)
	assert.Equal(t, int64(1), projectCount)

	var acceptedCount int64
	suite.db.Model(&models.Proposal{}).
		Where("request_id = ? AND status = ?", request.ID, models.ProposalStatusAccepted).
		Count(&acceptedCount)
	assert.Equal(t, int64(1), acceptedCount)

	var stored models.ServiceRequest
	require.NoError(t, suite.db.First(&stored, "id = ?", request.ID).Error)
	assert.Equal(t, models.RequestStatusMatched, stored.Status)
}

func (suite *HandlersTestSuite) TestSubmitProposalRequiresSkill() {
	t := suite.T()

	other := models.ServiceCategory{Name: "Plumbing", Slug: "plumbing", IsActive: true}
	require.NoError(t, suite.db.Create(&other).Error)

	request := models.ServiceRequest{
		BuyerID:    suite.buyer.ID,
		CategoryID: other.ID,
		Title:      "Fix my sink",
		Status:     models.RequestStatusOpen,
	}
	require.NoError(t, suite.db.Create(&request).Error)

	w := suite.doJSON("POST", "/api/v1/requests/"+request.ID+"/proposals", suite.provider.ID, gin.H{
		"amount_cents": 9000,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func (suite *HandlersTestSuite) TestProjectCompletionAndReview() {
	t := suite.T()

	request := models.ServiceRequest{
		BuyerID:    suite.buyer.ID,
		CategoryID: suite.category.ID,
		Status:     models.RequestStatusMatched,
		Title:      "Done deal",
	}
	require.NoError(t, suite.db.Create(&request).Error)

	proposal := models.Proposal{
		RequestID:   request.ID,
		ProviderID:  suite.provider.ID,
		AmountCents: 20000,
		Status:      models.ProposalStatusAccepted,
	}
	require.NoError(t, suite.db.Create(&proposal).Error)

	project := models.Project{
		RequestID:         request.ID,
		ProposalID:        proposal.ID,
		BuyerID:           suite.buyer.ID,
		ProviderID:        suite.provider.ID,
		AgreedAmountCents: 20000,
		Status:            models.ProjectStatusInProgress,
	}
	require.NoError(t, suite.db.Create(&project).Error)

	// Provider cannot mark completed
	w := suite.doJSON("POST", "/api/v1/projects/"+project.ID+"/status", suite.provider.ID, gin.H{
		"status": "completed",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Buyer completes
	w = suite.doJSON("POST", "/api/v1/projects/"+project.ID+"/status", suite.buyer.ID, gin.H{
		"status": "completed",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Review updates the provider rating cache
	w = suite.doJSON("POST", "/api/v1/projects/"+project.ID+"/review", suite.buyer.ID, gin.H{
		"rating":  5,
		"comment": "Spotless work",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var profile models.ProviderProfile
	require.NoError(t, suite.db.First(&profile, "user_id = ?", suite.provider.ID).Error)
	assert.Equal(t, 5.0, profile.RatingAverage)
	assert.Equal(t, 1, profile.RatingCount)

	// Second review on the same project conflicts
	w = suite.doJSON("POST", "/api/v1/projects/"+project.ID+"/review", suite.buyer.ID, gin.H{
		"rating": 4,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func (suite *HandlersTestSuite) TestConversationMessaging() {
	t := suite.T()

	w := suite.doJSON("POST", "/api/v1/conversations", suite.buyer.ID, gin.H{
		"participant_id": suite.provider.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Conversation models.Conversation `json:"conversation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// Creating again returns the existing conversation
	w = suite.doJSON("POST", "/api/v1/conversations", suite.buyer.ID, gin.H{
		"participant_id": suite.provider.ID,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Send a message; the other participant is notified in-app
	w = suite.doJSON("POST", "/api/v1/conversations/"+created.Conversation.ID+"/messages", suite.buyer.ID, gin.H{
		"body": "When can you start?",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var notifCount int64
	suite.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ?", suite.provider.ID, models.NotificationNewMessage).
		Count(&notifCount)
	assert.Equal(t, int64(1), notifCount)

	// Outsiders cannot read the thread
	outsider := models.User{Email: "x@test.com", Username: "outsider", DisplayName: "X"}
	require.NoError(t, suite.db.Create(&outsider).Error)
	w = suite.doJSON("GET", "/api/v1/conversations/"+created.Conversation.ID+"/messages", outsider.ID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func (suite *HandlersTestSuite) TestNotificationEndpoints() {
	t := suite.T()

	for i := 0; i < 3; i++ {
		notif := models.Notification{
			RecipientID: suite.buyer.ID,
			Type:        models.NotificationRequestMatch,
			Title:       "match",
		}
		require.NoError(t, suite.db.Create(&notif).Error)
	}

	w := suite.doJSON("GET", "/api/v1/notifications/counts", suite.buyer.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var counts struct {
		Unseen int64 `json:"unseen"`
		Unread int64 `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
	assert.Equal(t, int64(3), counts.Unseen)
	assert.Equal(t, int64(3), counts.Unread)

	w = suite.doJSON("POST", "/api/v1/notifications/read", suite.buyer.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = suite.doJSON("GET", "/api/v1/notifications/counts", suite.buyer.ID, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
	assert.Equal(t, int64(0), counts.Unread)
	assert.Equal(t, int64(0), counts.Unseen)
}

func (suite *HandlersTestSuite) TestRegisterPushToken() {
	t := suite.T()

	w := suite.doJSON("POST", "/api/v1/push-tokens", suite.provider.ID, gin.H{
		"token":    "not-an-expo-token",
		"platform": "ios",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = suite.doJSON("POST", "/api/v1/push-tokens", suite.provider.ID, gin.H{
		"token":    "ExponentPushToken[abc123]",
		"platform": "ios",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var count int64
	suite.db.Model(&models.PushToken{}).Where("user_id = ?", suite.provider.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

// Run the test suite
func TestHandlersSuite(t *testing.T) {
	if os.Getenv("SKIP_DB_TESTS") == "true" {
		t.Skip("Skipping database tests")
	}

	suite.Run(t, new(HandlersTestSuite))
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
