package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/party-rides/internal/models"
)

// NominatimProvider performs address lookups against an OpenStreetMap
// Nominatim server.
type NominatimProvider struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
}

func NewNominatimProvider(endpoint string) *NominatimProvider {
	return &NominatimProvider{
		Endpoint:  strings.TrimRight(endpoint, "/"),
		UserAgent: "party-rides/1.0",
		Client:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Lookup queries /search?format=jsonv2&limit=1 and returns the top hit.
func (n *NominatimProvider) Lookup(ctx context.Context, address string) (models.Coordinates, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.Endpoint+"/search?"+q.Encode(), nil)
	if err != nil {
		return models.Coordinates{}, err
	}
	req.Header.Set("User-Agent", n.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return models.Coordinates{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Coordinates{}, fmt.Errorf("nominatim status %d", resp.StatusCode)
	}

	// nominatim encodes coordinates as strings
	var out []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Coordinates{}, err
	}
	if len(out) == 0 {
		return models.Coordinates{}, ErrNotFound
	}
	lat, err := strconv.ParseFloat(out[0].Lat, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("nominatim lat: %w", err)
	}
	lng, err := strconv.ParseFloat(out[0].Lon, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("nominatim lon: %w", err)
	}
	return models.Coordinates{Lat: lat, Lng: lng}, nil
}
