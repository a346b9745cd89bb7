package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/measurement"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/position"
)

const (
	CampaignsPath = "/campaigns"
	PositionsPath = "/positions"
	ResultsPath   = "/campaign-results"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP error status: %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP error status: %d: %s", e.StatusCode, e.Body)
}

// Client talks to the external system of record.
type Client struct {
	baseURL string
	token   string
	long    *http.Client
	short   *http.Client
}

// NewClient creates a client. The long timeout bounds batch and offline
// calls, the short one interactive calls.
func NewClient(baseURL, token string, longTimeout, shortTimeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		long:    &http.Client{Timeout: longTimeout},
		short:   &http.Client{Timeout: shortTimeout},
	}
}

func (c *Client) request(ctx context.Context, httpClient *http.Client, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Send replays a change with the given verb.
func (c *Client) Send(ctx context.Context, method, path string, body any) error {
	return c.request(ctx, c.long, method, path, body, nil)
}

// Result is one measurement as served by the backend.
type Result struct {
	Time          time.Time `json:"time"`
	MeasurementID int64     `json:"measurementId"`
	CampaignID    uuid.UUID `json:"campaign_id"`
	VehicleID     string    `json:"agv_id"`
	ClientID      string    `json:"client_id"`
	EndpointID    string    `json:"endpoint_id"`
	DataRate      *float32  `json:"datarate,omitempty"`
	Latency       *float32  `json:"latency,omitempty"`
	LocationX     *float32  `json:"locationX,omitempty"`
	LocationY     *float32  `json:"locationY,omitempty"`
	LocationZ     *float32  `json:"locationZ,omitempty"`
}

// Measurement converts the result into a stored measurement for campaignID.
func (r Result) Measurement(campaignID uuid.UUID) *measurement.Measurement {
	m := &measurement.Measurement{
		ID:            uuid.New(),
		MeasurementID: r.MeasurementID,
		CampaignID:    campaignID,
		CreatedAt:     time.Now().UTC(),
		DataRate:      r.DataRate,
		Latency:       r.Latency,
	}
	if r.LocationX != nil || r.LocationY != nil || r.LocationZ != nil {
		m.Coordinates = &position.Point{
			MeasuredAt: r.Time.UTC(),
			X:          deref(r.LocationX),
			Y:          deref(r.LocationY),
			Z:          deref(r.LocationZ),
		}
	}
	return m
}

func deref(f *float32) float32 {
	if f == nil {
		return 0
	}
	return *f
}

// PullResults fetches measurements of a campaign starting at fromID. A nil
// fromID fetches from the start. short selects the short timeout.
func (c *Client) PullResults(ctx context.Context, campaignID uuid.UUID, fromID *int64, short bool) ([]Result, error) {
	q := url.Values{}
	q.Set("campaignId", campaignID.String())
	if fromID != nil {
		q.Set("fromId", strconv.FormatInt(*fromID, 10))
	}
	httpClient := c.long
	if short {
		httpClient = c.short
	}
	var results []Result
	if err := c.request(ctx, httpClient, http.MethodGet, ResultsPath+"?"+q.Encode(), nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}
