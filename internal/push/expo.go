package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clapserv/backend/internal/logger"
	"github.com/clapserv/backend/internal/metrics"
	"go.uber.org/zap"
)

// maxBatchSize is the Expo push API limit per request.
const maxBatchSize = 100

const defaultExpoURL = "https://exp.host/--/api/v2/push/send"

// Message is a single push notification addressed to one Expo token.
type Message struct {
	To    string            `json:"to"`
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound,omitempty"`
}

// Ticket is the per-message receipt returned by the gateway.
type Ticket struct {
	Status  string `json:"status"` // "ok" or "error"
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details,omitempty"`
}

// Sender sends push messages. Satisfied by *ExpoClient; faked in tests.
type Sender interface {
	Send(ctx context.Context, messages []Message) []Ticket
}

// ExpoClient talks to the Expo push gateway.
type ExpoClient struct {
	url    string
	client *http.Client
}

// NewExpoClient creates a push client. url is overridable for tests;
// empty means the production endpoint.
func NewExpoClient(url string) *ExpoClient {
	if url == "" {
		url = defaultExpoURL
	}
	return &ExpoClient{
		url: url,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// IsValidToken checks the token shape by string prefix only; the gateway
// is the authority on actual validity.
func IsValidToken(token string) bool {
	return (strings.HasPrefix(token, "ExponentPushToken[") ||
		strings.HasPrefix(token, "ExpoPushToken[")) &&
		strings.HasSuffix(token, "]")
}

// Send delivers messages in batches of at most 100 per call. Failures are
// reflected in the returned tickets and logged; there is no retry. A
// transport-level failure yields synthetic error tickets for that batch so
// callers always get one ticket per message.
func (c *ExpoClient) Send(ctx context.Context, messages []Message) []Ticket {
	mtr := metrics.Get()
	tickets := make([]Ticket, 0, len(messages))

	for start := 0; start < len(messages); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(messages) {
			end = len(messages)
		}
		batch := messages[start:end]

		batchTickets, err := c.sendBatch(ctx, batch)
		if err != nil {
			logger.Log.Error("push batch send failed",
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			mtr.PushBatchesTotal.WithLabelValues("error").Inc()
			for range batch {
				mtr.PushMessagesSentTotal.WithLabelValues("error").Inc()
				tickets = append(tickets, Ticket{Status: "error", Message: err.Error()})
			}
			continue
		}

		mtr.PushBatchesTotal.WithLabelValues("ok").Inc()
		for _, t := range batchTickets {
			mtr.PushMessagesSentTotal.WithLabelValues(t.Status).Inc()
			if t.Status != "ok" {
				logger.Log.Warn("push message rejected by gateway",
					zap.String("error", t.Details.Error),
					zap.String("message", t.Message),
				)
			}
		}
		tickets = append(tickets, batchTickets...)
	}

	return tickets
}

type expoResponse struct {
	Data []Ticket `json:"data"`
}

func (c *ExpoClient) sendBatch(ctx context.Context, batch []Message) ([]Ticket, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("push gateway error: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed expoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode push response: %w", err)
	}

	// The gateway returns one ticket per message in order. Keep that
	// contract for callers that index tickets by message position: pad a
	// short response with error tickets and drop any excess.
	if len(parsed.Data) != len(batch) {
		logger.Log.Warn("push gateway returned unexpected ticket count",
			zap.Int("expected", len(batch)),
			zap.Int("got", len(parsed.Data)),
		)
		if len(parsed.Data) > len(batch) {
			parsed.Data = parsed.Data[:len(batch)]
		}
		for len(parsed.Data) < len(batch) {
			parsed.Data = append(parsed.Data, Ticket{
				Status:  "error",
				Message: "no ticket returned by gateway",
			})
		}
	}

	return parsed.Data, nil
}
