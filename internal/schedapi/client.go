// Package schedapi wraps the scheduling backend's HTTP surface: the
// chat endpoint, lead verification by one-time token, the requirement
// catalog, and the service-viability check.
package schedapi

import (
	"bytes"
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

// Config controls how the backend client behaves.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Client calls the scheduling backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// New creates a configured client with a bounded request timeout.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("schedapi: base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}, nil
}

// ChatRequest is the chat endpoint payload. The widget identifier is
// sent under two keys for backend compatibility.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Timezone  string `json:"timezone"`
	ID        string `json:"id"`
	ChatbotID string `json:"chatbot_id"`
}

// ChatResponse is the chat endpoint reply.
type ChatResponse struct {
	Response          string               `json:"response"`
	SessionID         string               `json:"session_id"`
	Details           *appointment.Details `json:"appointmentDetails,omitempty"`
	NeedsConfirmation bool                 `json:"needs_confirmation,omitempty"`
}

// Chat posts one conversation turn.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("schedapi: marshal chat request: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPost, "/chatbot/chat", nil, body)
	if err != nil {
		return nil, err
	}
	var resp ChatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("schedapi: decode chat response: %w", err)
	}
	return &resp, nil
}

// Lead is a verified customer lead used to pre-fill the booking form.
type Lead struct {
	ID       string `json:"id"`
	Customer struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
		Email     string `json:"email"`
	} `json:"customer"`
	Address struct {
		FiscalAddress string   `json:"fiscal_address"`
		HouseNumber   string   `json:"house_number"`
		Sector        string   `json:"sector"`
		City          string   `json:"city"`
		State         string   `json:"state"`
		Latitude      *float64 `json:"latitude"`
		Longitude     *float64 `json:"longitude"`
	} `json:"address"`
	Contract struct {
		InstallationNotes string `json:"installation_notes"`
	} `json:"contract"`
}

// VerifyLead resolves a one-time token into a lead record.
func (c *Client) VerifyLead(ctx context.Context, token string) (*Lead, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("schedapi: token is required")
	}
	q := url.Values{}
	q.Set("token", token)
	data, err := c.invoke(ctx, http.MethodGet, "/api/v1/admin/customer-leads/verify/link", q, nil)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope[Lead](data)
}

// ActiveIssues fetches the enumerated requirement catalog. Order is
// meaningful; failures are surfaced so callers can degrade to an
// empty set.
func (c *Client) ActiveIssues(ctx context.Context) ([]string, error) {
	data, err := c.invoke(ctx, http.MethodGet, "/api/v1/customer-issues/active", nil, nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeEnvelope[[]struct {
		CustomerIssue string `json:"customer_issue"`
	}](data)
	if err != nil {
		return nil, err
	}
	issues := make([]string, 0, len(*items))
	for _, it := range *items {
		if it.CustomerIssue != "" {
			issues = append(issues, it.CustomerIssue)
		}
	}
	return issues, nil
}

// Viability is the service-coverage answer for a coordinate pair.
type Viability struct {
	Installable bool   `json:"isInstallable"`
	Detail      string `json:"detail"`
}

// CheckViability reports whether a location is serviceable.
func (c *Client) CheckViability(ctx context.Context, lat, lng float64) (*Viability, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	data, err := c.invoke(ctx, http.MethodGet, "/api/v1/admin/customer-leads/check-viability", q, nil)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope[Viability](data)
}

func (c *Client) invoke(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("schedapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("schedapi: http error: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("schedapi: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, data)
	}
	return data, nil
}

// APIError is a semantic failure reported by the backend envelope.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("schedapi: %s (status=%d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("schedapi: http status %d", e.StatusCode)
}

func decodeAPIError(status int, body []byte) error {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error.Message == "" {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	return &APIError{StatusCode: status, Message: parsed.Error.Message}
}

// decodeEnvelope unwraps the backend's {success, data} envelope. A
// success=false body carries the error message inside the envelope
// even on HTTP 200.
func decodeEnvelope[T any](body []byte) (*T, error) {
	var wrapper struct {
		Success bool `json:"success"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
		Data T `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("schedapi: decode response: %w", err)
	}
	if !wrapper.Success {
		return nil, &APIError{StatusCode: http.StatusOK, Message: wrapper.Error.Message}
	}
	return &wrapper.Data, nil
}
