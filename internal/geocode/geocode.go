// Package geocode wraps the forward/reverse geocoding provider. The
// provider's feature shapes vary (geometry.coordinates, a flat
// coordinates array, or a legacy center pair); everything is
// normalized here into one canonical result so shape variance never
// leaks into the core.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vetelca/booking-widget/internal/appointment"
	"github.com/vetelca/booking-widget/pkg/logging"
)

const defaultBaseURL = "https://api.mapbox.com/search/geocode/v6"

// ErrNoResults is returned when the provider finds nothing for a query.
var ErrNoResults = errors.New("geocode: no results")

// Config controls how the geocoding client behaves.
type Config struct {
	BaseURL     string
	AccessToken string
	Language    string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *logging.Logger
}

// Client calls the forward and reverse geocoding endpoints.
type Client struct {
	baseURL     string
	accessToken string
	language    string
	httpClient  *http.Client
	logger      *logging.Logger
}

// Result is the canonical geocoding outcome.
type Result struct {
	Lat   float64
	Lng   float64
	Label string
	City  string
	State string
}

// New creates a configured client. The provider refuses requests
// without an access token, so its absence is a construction error.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("geocode: access token is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	language := cfg.Language
	if language == "" {
		language = "es"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:     baseURL,
		accessToken: cfg.AccessToken,
		language:    language,
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

// Forward geocodes a free-text query to the single best result.
func (c *Client) Forward(ctx context.Context, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("geocode: query is required")
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("access_token", c.accessToken)
	q.Set("language", c.language)
	q.Set("limit", "1")
	return c.lookup(ctx, "/forward", q)
}

// Reverse resolves coordinates to the nearest labeled place.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (*Result, error) {
	q := url.Values{}
	q.Set("longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("types", "place,locality,neighborhood,address")
	q.Set("access_token", c.accessToken)
	return c.lookup(ctx, "/reverse", q)
}

func (c *Client) lookup(ctx context.Context, path string, q url.Values) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("geocode: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("geocode: http error: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("geocode: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geocode: http status %d", resp.StatusCode)
	}

	var payload struct {
		Features []feature `json:"features"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("geocode: decode response: %w", err)
	}
	if len(payload.Features) == 0 {
		return nil, ErrNoResults
	}
	return payload.Features[0].normalize()
}

// feature tolerates the provider's duck-typed response shapes.
type feature struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Coordinates []float64 `json:"coordinates"`
	Center      []float64 `json:"center"`
	PlaceName   string    `json:"place_name"`
	Properties  struct {
		FullAddress string `json:"full_address"`
		PlaceName   string `json:"place_name"`
		Locality    string `json:"locality"`
		Place       string `json:"place"`
		Region      string `json:"region"`
		Context     struct {
			Locality struct {
				Name string `json:"name"`
			} `json:"locality"`
			Place struct {
				Name string `json:"name"`
			} `json:"place"`
			Region struct {
				Name string `json:"name"`
			} `json:"region"`
		} `json:"context"`
	} `json:"properties"`
}

func (f feature) normalize() (*Result, error) {
	coords := f.Geometry.Coordinates
	if len(coords) < 2 {
		coords = f.Coordinates
	}
	if len(coords) < 2 {
		coords = f.Center
	}
	if len(coords) < 2 {
		return nil, errors.New("geocode: feature has no coordinates")
	}

	// Full formatted address beats a bare place name.
	label := appointment.Clean(f.Properties.FullAddress)
	if label == "" {
		label = appointment.Clean(f.Properties.PlaceName)
	}
	if label == "" {
		label = appointment.Clean(f.PlaceName)
	}

	city := appointment.Clean(f.Properties.Context.Locality.Name)
	if city == "" {
		city = appointment.Clean(f.Properties.Locality)
	}
	if city == "" {
		city = appointment.Clean(f.Properties.Context.Place.Name)
	}
	if city == "" {
		city = appointment.Clean(f.Properties.Place)
	}
	state := appointment.Clean(f.Properties.Context.Region.Name)
	if state == "" {
		state = appointment.Clean(f.Properties.Region)
	}

	// Provider order is [lng, lat].
	return &Result{Lat: coords[1], Lng: coords[0], Label: label, City: city, State: state}, nil
}
