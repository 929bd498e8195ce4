package notifications

import (
	"context"
	"fmt"
	"os"
	"testing"
	"unicode/utf8"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/geo"
	"github.com/clapserv/backend/internal/logger"
	"github.com/clapserv/backend/internal/matching"
	"github.com/clapserv/backend/internal/models"
	"github.com/clapserv/backend/internal/push"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	logger.SugaredLog = logger.Log.Sugar()
	os.Exit(m.Run())
}

// fakeSender records sent messages and optionally fails every ticket.
type fakeSender struct {
	sent     []push.Message
	failAll  bool
}

func (f *fakeSender) Send(_ context.Context, messages []push.Message) []push.Ticket {
	f.sent = append(f.sent, messages...)
	tickets := make([]push.Ticket, len(messages))
	for i := range tickets {
		if f.failAll {
			tickets[i] = push.Ticket{Status: "error", Message: "DeviceNotRegistered"}
		} else {
			tickets[i] = push.Ticket{Status: "ok"}
		}
	}
	return tickets
}

// coordResolver resolves stored coordinates only.
type coordResolver struct{}

func (coordResolver) Resolve(_ context.Context, loc geo.Location) (geo.Coordinates, bool) {
	if loc.HasCoordinates() {
		return geo.Coordinates{Lat: *loc.Lat, Lng: *loc.Lng}, true
	}
	return geo.Coordinates{}, false
}

type DispatcherTestSuite struct {
	suite.Suite
	db     *gorm.DB
	sender *fakeSender
	disp   *Dispatcher

	category models.ServiceCategory
	buyer    models.User
	near     models.User
	far      models.User
}

func (suite *DispatcherTestSuite) SetupSuite() {
	host := envOrDefault("POSTGRES_HOST", "localhost")
	port := envOrDefault("POSTGRES_PORT", "5432")
	user := envOrDefault("POSTGRES_USER", "postgres")
	password := os.Getenv("POSTGRES_PASSWORD")
	dbname := envOrDefault("POSTGRES_DB", "clapserv_test")

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable", host, port, user, dbname)
	if password != "" {
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		suite.T().Skipf("Skipping dispatcher tests: database not available (%v)", err)
		return
	}

	database.DB = db
	err = db.AutoMigrate(
		&models.User{},
		&models.ProviderProfile{},
		&models.PushToken{},
		&models.ServiceCategory{},
		&models.ServiceRequest{},
		&models.Notification{},
	)
	require.NoError(suite.T(), err)

	suite.db = db
}

func (suite *DispatcherTestSuite) SetupTest() {
	suite.cleanup()

	suite.sender = &fakeSender{}
	matcher := matching.NewMatcher(coordResolver{})
	suite.disp = NewDispatcher(matcher, suite.sender)

	maxKM := 50.0
	suite.category = models.ServiceCategory{
		Name: "test-plumbing", Slug: "test-plumbing", MaxDistanceKM: &maxKM,
	}
	require.NoError(suite.T(), suite.db.Create(&suite.category).Error)

	suite.buyer = suite.createUser("test-buyer")
	suite.near = suite.createUser("test-near")
	suite.far = suite.createUser("test-far")

	suite.createProvider(suite.near.ID, []string{suite.category.ID}, 30.0, -97.0)
	suite.createProvider(suite.far.ID, []string{suite.category.ID}, 35.0, -97.0)

	require.NoError(suite.T(), suite.db.Create(&models.PushToken{
		UserID: suite.near.ID,
		Token:  "ExponentPushToken[near-device]",
	}).Error)
	require.NoError(suite.T(), suite.db.Create(&models.PushToken{
		UserID: suite.far.ID,
		Token:  "ExponentPushToken[far-device]",
	}).Error)
}

func (suite *DispatcherTestSuite) TearDownSuite() {
	if suite.db == nil {
		return
	}
	suite.cleanup()
	sqlDB, _ := suite.db.DB()
	sqlDB.Close()
}

func (suite *DispatcherTestSuite) cleanup() {
	suite.db.Exec("DELETE FROM notifications WHERE recipient_id IN (SELECT id FROM users WHERE username LIKE 'test-%')")
	suite.db.Exec("DELETE FROM push_tokens WHERE user_id IN (SELECT id FROM users WHERE username LIKE 'test-%')")
	suite.db.Exec("DELETE FROM service_requests WHERE title LIKE 'test-%'")
	suite.db.Exec("DELETE FROM provider_profiles WHERE user_id IN (SELECT id FROM users WHERE username LIKE 'test-%')")
	suite.db.Exec("DELETE FROM service_categories WHERE slug LIKE 'test-%'")
	suite.db.Exec("DELETE FROM users WHERE username LIKE 'test-%'")
}

func (suite *DispatcherTestSuite) createUser(username string) models.User {
	user := models.User{
		Email:       username + "@example.com",
		Username:    username,
		DisplayName: username,
	}
	require.NoError(suite.T(), suite.db.Create(&user).Error)
	return user
}

func (suite *DispatcherTestSuite) createProvider(userID string, skills []string, lat, lng float64) {
	profile := models.ProviderProfile{
		UserID:   userID,
		Skills:   models.StringArray(skills),
		Lat:      &lat,
		Lng:      &lng,
		IsActive: true,
	}
	require.NoError(suite.T(), suite.db.Create(&profile).Error)
}

func (suite *DispatcherTestSuite) createRequest(lat, lng float64) *models.ServiceRequest {
	request := &models.ServiceRequest{
		BuyerID:    suite.buyer.ID,
		CategoryID: suite.category.ID,
		Title:      "test-fix my sink",
		Lat:        &lat,
		Lng:        &lng,
		Status:     models.RequestStatusOpen,
	}
	require.NoError(suite.T(), suite.db.Create(request).Error)
	return request
}

func (suite *DispatcherTestSuite) notificationCountFor(userID string) int64 {
	var count int64
	suite.db.Model(&models.Notification{}).Where("recipient_id = ?", userID).Count(&count)
	return count
}

func (suite *DispatcherTestSuite) TestDispatchNotifiesOnlyProvidersInRange() {
	// Request at (30,-97): "near" is at the same point, "far" is ~555 km away
	request := suite.createRequest(30.0, -97.0)

	err := suite.disp.DispatchRequestCreated(context.Background(), request)
	require.NoError(suite.T(), err)

	suite.Equal(int64(1), suite.notificationCountFor(suite.near.ID))
	suite.Equal(int64(0), suite.notificationCountFor(suite.far.ID))

	require.Len(suite.T(), suite.sent(), 1)
	suite.Equal("ExponentPushToken[near-device]", suite.sent()[0].To)
	suite.Equal(models.NotificationRequestMatch, suite.latestNotification(suite.near.ID).Type)
}

func (suite *DispatcherTestSuite) TestPushFailureDoesNotBlockRows() {
	suite.sender.failAll = true
	request := suite.createRequest(30.0, -97.0)

	err := suite.disp.DispatchRequestCreated(context.Background(), request)
	require.NoError(suite.T(), err)

	// Rows persist even though every push ticket errored
	suite.Equal(int64(1), suite.notificationCountFor(suite.near.ID))
}

func (suite *DispatcherTestSuite) TestMalformedTokensAreSkipped() {
	require.NoError(suite.T(), suite.db.Create(&models.PushToken{
		UserID: suite.near.ID,
		Token:  "not-an-expo-token",
	}).Error)

	request := suite.createRequest(30.0, -97.0)
	require.NoError(suite.T(), suite.disp.DispatchRequestCreated(context.Background(), request))

	for _, msg := range suite.sent() {
		suite.True(push.IsValidToken(msg.To))
	}
}

func (suite *DispatcherTestSuite) TestNoMatchesIsNotAnError() {
	// Request has resolvable coordinates nowhere near any provider, and
	// both providers have resolvable locations, so everyone is filtered
	request := suite.createRequest(-40.0, 120.0)

	err := suite.disp.DispatchRequestCreated(context.Background(), request)
	require.NoError(suite.T(), err)
	suite.Empty(suite.sent())
}

func (suite *DispatcherTestSuite) TestNotifyProposalReceived() {
	request := suite.createRequest(30.0, -97.0)
	proposal := &models.Proposal{ID: "prop-1", RequestID: request.ID, ProviderID: suite.near.ID}

	suite.disp.NotifyProposalReceived(context.Background(), request, proposal)

	notif := suite.latestNotification(suite.buyer.ID)
	suite.Equal(models.NotificationProposalReceived, notif.Type)
	suite.Equal(proposal.ID, notif.Data["proposal_id"])
}

func (suite *DispatcherTestSuite) sent() []push.Message {
	return suite.sender.sent
}

func (suite *DispatcherTestSuite) latestNotification(userID string) models.Notification {
	var notif models.Notification
	err := suite.db.Where("recipient_id = ?", userID).Order("created_at DESC").First(&notif).Error
	require.NoError(suite.T(), err)
	return notif
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	long := "résumé réview ééééééééééééééééééééééééééééééé"
	got := truncate(long, 20)
	require.True(t, utf8.ValidString(got))
	require.LessOrEqual(t, len(got), 20)

	short := "hello"
	require.Equal(t, short, truncate(short, 20))
}

func TestDispatcherTestSuite(t *testing.T) {
	suite.Run(t, new(DispatcherTestSuite))
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
