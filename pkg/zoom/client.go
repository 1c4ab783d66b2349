package zoom

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/joez89/autism-center-api/pkg/circuitbreaker"
)

const timeFormat = "2006-01-02T15:04:05Z"

type Config struct {
	BaseURL      string
	AccountID    string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client talks to the Zoom REST API using server-to-server OAuth.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.zoom.us/v2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:             "zoom",
			FailureThreshold: 5,
			Timeout:          30 * time.Second,
		}),
	}
}

type meetingPayload struct {
	Topic     string          `json:"topic"`
	Type      int             `json:"type"`
	StartTime string          `json:"start_time"`
	Duration  int             `json:"duration"`
	Password  string          `json:"password,omitempty"`
	Settings  meetingSettings `json:"settings"`
}

type meetingSettings struct {
	WaitingRoom    bool `json:"waiting_room"`
	JoinBeforeHost bool `json:"join_before_host"`
}

type meetingResponse struct {
	ID      int64  `json:"id"`
	JoinURL string `json:"join_url"`
}

func (c *Client) CreateMeeting(ctx context.Context, req MeetingRequest) (*Meeting, error) {
	payload := meetingPayload{
		Topic:     req.Topic,
		Type:      2, // scheduled meeting
		StartTime: req.StartTime.UTC().Format(timeFormat),
		Duration:  req.DurationMinutes,
		Password:  req.Password,
		Settings: meetingSettings{
			WaitingRoom:    req.WaitingRoom,
			JoinBeforeHost: req.JoinBeforeHost,
		},
	}

	var resp meetingResponse
	err := c.cb.Execute(func() error {
		return c.do(ctx, http.MethodPost, "/users/me/meetings", payload, &resp)
	})
	if err != nil {
		return nil, err
	}

	return &Meeting{
		ID:      strconv.FormatInt(resp.ID, 10),
		JoinURL: resp.JoinURL,
	}, nil
}

func (c *Client) UpdateMeeting(ctx context.Context, meetingID string, req MeetingRequest) error {
	payload := meetingPayload{
		Topic:     req.Topic,
		Type:      2,
		StartTime: req.StartTime.UTC().Format(timeFormat),
		Duration:  req.DurationMinutes,
		Settings: meetingSettings{
			WaitingRoom:    req.WaitingRoom,
			JoinBeforeHost: req.JoinBeforeHost,
		},
	}
	return c.cb.Execute(func() error {
		return c.do(ctx, http.MethodPatch, "/meetings/"+meetingID, payload, nil)
	})
}

func (c *Client) DeleteMeeting(ctx context.Context, meetingID string) error {
	return c.cb.Execute(func() error {
		return c.do(ctx, http.MethodDelete, "/meetings/"+meetingID, nil, nil)
	})
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	token, err := c.getToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("zoom request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("zoom API returned %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode zoom response: %w", err)
		}
	}
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "account_credentials")
	form.Set("account_id", c.cfg.AccountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://zoom.us/oauth/token?"+form.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	creds := base64.StdEncoding.EncodeToString([]byte(c.cfg.ClientID + ":" + c.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+creds)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("zoom token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("zoom token request returned %d: %s", resp.StatusCode, string(data))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	c.accessToken = tr.AccessToken
	// refresh a minute early
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn-60) * time.Second)
	return c.accessToken, nil
}
