package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clapserv/backend/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	logger.SugaredLog = logger.Log.Sugar()
	m.Run()
}

func TestIsValidToken(t *testing.T) {
	assert.True(t, IsValidToken("ExponentPushToken[xxxxxxxxxxxxxxxxxxxxxx]"))
	assert.True(t, IsValidToken("ExpoPushToken[yyyyyyyyyyyy]"))

	assert.False(t, IsValidToken(""))
	assert.False(t, IsValidToken("ExponentPushToken[missing-bracket"))
	assert.False(t, IsValidToken("FCMToken[zzzz]"))
	assert.False(t, IsValidToken("random-string"))
}

func okServer(t *testing.T, batchSizes *[]int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		*batchSizes = append(*batchSizes, len(batch))

		tickets := make([]Ticket, len(batch))
		for i := range tickets {
			tickets[i] = Ticket{Status: "ok", ID: fmt.Sprintf("ticket-%d", i)}
		}
		json.NewEncoder(w).Encode(expoResponse{Data: tickets})
	}))
}

func TestSendSingleBatch(t *testing.T) {
	var batchSizes []int
	server := okServer(t, &batchSizes)
	defer server.Close()

	client := NewExpoClient(server.URL)
	messages := make([]Message, 5)
	for i := range messages {
		messages[i] = Message{To: fmt.Sprintf("ExponentPushToken[t%d]", i), Title: "New request"}
	}

	tickets := client.Send(context.Background(), messages)
	assert.Len(t, tickets, 5)
	assert.Equal(t, []int{5}, batchSizes)
}

func TestSendSplitsBatchesAt100(t *testing.T) {
	var batchSizes []int
	server := okServer(t, &batchSizes)
	defer server.Close()

	client := NewExpoClient(server.URL)
	messages := make([]Message, 250)
	for i := range messages {
		messages[i] = Message{To: fmt.Sprintf("ExponentPushToken[t%d]", i)}
	}

	tickets := client.Send(context.Background(), messages)
	assert.Len(t, tickets, 250)
	assert.Equal(t, []int{100, 100, 50}, batchSizes)
}

func TestSendExactly100IsOneBatch(t *testing.T) {
	var batchSizes []int
	server := okServer(t, &batchSizes)
	defer server.Close()

	client := NewExpoClient(server.URL)
	messages := make([]Message, 100)
	for i := range messages {
		messages[i] = Message{To: fmt.Sprintf("ExpoPushToken[t%d]", i)}
	}

	client.Send(context.Background(), messages)
	assert.Equal(t, []int{100}, batchSizes)
}

func TestSendGatewayFailureYieldsErrorTickets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewExpoClient(server.URL)
	messages := []Message{
		{To: "ExponentPushToken[a]"},
		{To: "ExponentPushToken[b]"},
	}

	tickets := client.Send(context.Background(), messages)
	require.Len(t, tickets, 2)
	for _, ticket := range tickets {
		assert.Equal(t, "error", ticket.Status)
	}
}

func TestSendPartialBatchFailureContinues(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var batch []Message
		json.NewDecoder(r.Body).Decode(&batch)
		tickets := make([]Ticket, len(batch))
		for i := range tickets {
			tickets[i] = Ticket{Status: "ok"}
		}
		json.NewEncoder(w).Encode(expoResponse{Data: tickets})
	}))
	defer server.Close()

	client := NewExpoClient(server.URL)
	messages := make([]Message, 150)
	for i := range messages {
		messages[i] = Message{To: fmt.Sprintf("ExponentPushToken[t%d]", i)}
	}

	tickets := client.Send(context.Background(), messages)
	require.Len(t, tickets, 150)
	assert.Equal(t, "error", tickets[0].Status)
	assert.Equal(t, "ok", tickets[149].Status)
}

func TestSendEmptyMessages(t *testing.T) {
	client := NewExpoClient("http://localhost:1") // never dialed
	tickets := client.Send(context.Background(), nil)
	assert.Empty(t, tickets)
}

func TestSendShortGatewayResponseStaysPositional(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// One ticket for a three-message batch
		json.NewEncoder(w).Encode(expoResponse{Data: []Ticket{{Status: "ok", ID: "ticket-0"}}})
	}))
	defer server.Close()

	client := NewExpoClient(server.URL)
	messages := []Message{
		{To: "ExponentPushToken[a]"},
		{To: "ExponentPushToken[b]"},
		{To: "ExponentPushToken[c]"},
	}

	tickets := client.Send(context.Background(), messages)
	require.Len(t, tickets, 3)
	assert.Equal(t, "ok", tickets[0].Status)
	assert.Equal(t, "error", tickets[1].Status)
	assert.Equal(t, "error", tickets[2].Status)
}
