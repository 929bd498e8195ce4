package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ipLocateTimeout bounds the IP-geolocation fallback; the original client
// aborted the request after 8 seconds.
const ipLocateTimeout = 8 * time.Second

const defaultIPLocateURL = "https://ipapi.co/json/"

// IPLocateClient resolves the server's approximate position from a
// third-party IP-geolocation endpoint. Used only as a last-resort
// fallback when a location carries no coordinates and no address.
type IPLocateClient struct {
	baseURL string
	client  *http.Client
}

// NewIPLocateClient creates a new IP-geolocation client. baseURL is
// overridable for tests; empty means the default endpoint.
func NewIPLocateClient(baseURL string) *IPLocateClient {
	if baseURL == "" {
		baseURL = defaultIPLocateURL
	}
	return &IPLocateClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: ipLocateTimeout,
		},
	}
}

type ipLocateResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city"`
	Region    string  `json:"region"`
	Error     bool    `json:"error"`
	Reason    string  `json:"reason"`
}

// Locate fetches coordinates for the current public IP.
func (c *IPLocateClient) Locate(ctx context.Context) (Coordinates, error) {
	ctx, cancel := context.WithTimeout(ctx, ipLocateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return Coordinates{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Coordinates{}, fmt.Errorf("ip geolocation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Coordinates{}, fmt.Errorf("ip geolocation error: status %d", resp.StatusCode)
	}

	var body ipLocateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Coordinates{}, fmt.Errorf("failed to decode ip geolocation response: %w", err)
	}
	if body.Error {
		return Coordinates{}, fmt.Errorf("ip geolocation error: %s", body.Reason)
	}

	coords := Coordinates{Lat: body.Latitude, Lng: body.Longitude}
	if !coords.Valid() {
		return Coordinates{}, fmt.Errorf("ip geolocation returned invalid coordinates")
	}

	return coords, nil
}
