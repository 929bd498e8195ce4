package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/models"
	"github.com/clapserv/backend/internal/push"
	"github.com/spf13/cobra"
)

var (
	testPushTitle string
	testPushBody  string
)

var testPushCmd = &cobra.Command{
	Use:   "test-push <email>",
	Short: "Send a test push notification to a user's devices",
	Long: `Send a test notification through the Expo push gateway to every
push token the user has registered. Useful for verifying device setup.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendTestPush(args[0])
	},
}

func init() {
	testPushCmd.Flags().StringVar(&testPushTitle, "title", "Clap-Serv test", "Notification title")
	testPushCmd.Flags().StringVar(&testPushBody, "body", "If you can read this, push notifications work.", "Notification body")
}

func sendTestPush(email string) error {
	var user models.User
	if err := database.DB.Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		return fmt.Errorf("user not found: %s", email)
	}

	var tokens []models.PushToken
	if err := database.DB.Where("user_id = ?", user.ID).Find(&tokens).Error; err != nil {
		return fmt.Errorf("failed to load push tokens: %w", err)
	}
	if len(tokens) == 0 {
		fmt.Printf("⚠️  User %s has no registered push tokens\n", user.Username)
		return nil
	}

	messages := make([]push.Message, 0, len(tokens))
	for _, t := range tokens {
		messages = append(messages, push.Message{
			To:    t.Token,
			Title: testPushTitle,
			Body:  testPushBody,
			Data:  map[string]string{"type": "test"},
			Sound: "default",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := push.NewExpoClient(os.Getenv("EXPO_PUSH_URL"))
	tickets := client.Send(ctx, messages)

	sent := 0
	for i, ticket := range tickets {
		if ticket.Status == "ok" {
			sent++
			continue
		}
		token := "unknown"
		if i < len(tokens) {
			token = tokens[i].Token
		}
		fmt.Printf("❌ %s: %s (%s)\n", token, ticket.Message, ticket.Details.Error)
	}
	fmt.Printf("✓ Sent %d of %d notification(s) to %s\n", sent, len(tokens), user.Username)
	return nil
}
