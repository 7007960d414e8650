package bots

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const slackAPIBase = "https://slack.com/api"

// Client is a minimal Slack Web API client covering the calls the host
// needs: posting messages and opening Socket Mode connections.
type Client struct {
	botToken string
	appToken string
	baseURL  string
	http     *http.Client
}

// NewClient creates a Slack Web API client. appToken may be empty when
// Socket Mode is not used.
func NewClient(botToken, appToken string) *Client {
	return &Client{
		botToken: botToken,
		appToken: appToken,
		baseURL:  slackAPIBase,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// slackAPIResponse is the common envelope of Web API responses.
type slackAPIResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	URL   string `json:"url"`
}

// PostMessage sends a text message to a channel (or DM channel).
func (c *Client) PostMessage(ctx context.Context, channel, text string) error {
	payload, err := json.Marshal(map[string]string{
		"channel": channel,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("marshalling message: %w", err)
	}

	resp, err := c.call(ctx, "chat.postMessage", c.botToken, payload)
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("chat.postMessage failed: %s", resp.Error)
	}
	return nil
}

// OpenConnection requests a Socket Mode websocket URL using the
// app-level token.
func (c *Client) OpenConnection(ctx context.Context) (string, error) {
	if c.appToken == "" {
		return "", fmt.Errorf("app token not configured")
	}

	resp, err := c.call(ctx, "apps.connections.open", c.appToken, nil)
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("apps.connections.open failed: %s", resp.Error)
	}
	return resp.URL, nil
}

func (c *Client) call(ctx context.Context, method, token string, payload []byte) (*slackAPIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	defer httpResp.Body.Close()

	var resp slackAPIResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", method, err)
	}
	return &resp, nil
}
