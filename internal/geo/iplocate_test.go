package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPLocateSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"latitude": 30.2672, "longitude": -97.7431, "city": "Austin", "region": "Texas"}`))
	}))
	defer server.Close()

	client := NewIPLocateClient(server.URL)
	coords, err := client.Locate(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 30.2672, coords.Lat, 0.0001)
	assert.InDelta(t, -97.7431, coords.Lng, 0.0001)
}

func TestIPLocateErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": true, "reason": "RateLimited"}`))
	}))
	defer server.Close()

	client := NewIPLocateClient(server.URL)
	_, err := client.Locate(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "RateLimited")
}

func TestIPLocateHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewIPLocateClient(server.URL)
	_, err := client.Locate(context.Background())
	assert.Error(t, err)
}

func TestIPLocateInvalidCoordinates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"latitude": 999, "longitude": 0}`))
	}))
	defer server.Close()

	client := NewIPLocateClient(server.URL)
	_, err := client.Locate(context.Background())
	assert.Error(t, err)
}

func TestIPLocateRespectsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewIPLocateClient(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Locate(ctx)
	assert.Error(t, err)
}
