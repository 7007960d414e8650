package bots

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// SlackHandler serves the Slack Events API webhook and the slash-command
// endpoint. Replies to DMs go out through the Web API client; slash
// commands are answered in the command response payload.
type SlackHandler struct {
	gateway       *Gateway
	client        *Client
	signingSecret string
}

// NewSlackHandler creates a Slack webhook handler.
func NewSlackHandler(gateway *Gateway, client *Client, signingSecret string) *SlackHandler {
	return &SlackHandler{
		gateway:       gateway,
		client:        client,
		signingSecret: signingSecret,
	}
}

// RegisterRoutes mounts the Slack endpoints on the given router.
func (h *SlackHandler) RegisterRoutes(r chi.Router) {
	r.Post("/slack/events", h.HandleEvent)
	r.Post("/slack/commands", h.HandleCommand)
}

// slackEvent is the top-level Slack event payload.
type slackEvent struct {
	Type      string          `json:"type"`
	Challenge string          `json:"challenge"`
	Event     slackInnerEvent `json:"event"`
}

// slackInnerEvent is the inner event in a Slack event_callback.
type slackInnerEvent struct {
	Type        string `json:"type"`
	User        string `json:"user"`
	Text        string `json:"text"`
	Channel     string `json:"channel"`
	ChannelType string `json:"channel_type"`
	TS          string `json:"ts"`
	BotID       string `json:"bot_id"`
}

// HandleEvent handles incoming Slack events (HTTP POST).
func (h *SlackHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if h.signingSecret != "" && !h.verifySignature(r, body) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var event slackEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "url_verification":
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"challenge": event.Challenge})

	case "event_callback":
		// Ack immediately; Slack retries slow responses.
		w.WriteHeader(http.StatusOK)
		h.processEvent(event, body)

	default:
		w.WriteHeader(http.StatusOK)
	}
}

// processEvent routes one inner event. Only direct messages reach the
// dispatcher; everything else gets the static redirect or is dropped.
func (h *SlackHandler) processEvent(event slackEvent, body []byte) {
	inner := event.Event

	if inner.Type == "app_mention" {
		h.post(inner.Channel, h.gateway.MentionReply())
		return
	}
	if inner.Type != "message" {
		return
	}
	// Ignore our own (and any other bot's) messages to avoid loops.
	if inner.BotID != "" {
		return
	}
	if inner.ChannelType != "im" {
		return
	}
	if inner.Text == "" || inner.User == "" {
		return
	}

	msg := IncomingMessage{
		Platform:  PlatformSlack,
		ChannelID: inner.Channel,
		UserID:    inner.User,
		Text:      inner.Text,
		Timestamp: inner.TS,
		Raw:       rawEvent(body),
	}

	// Dispatch outside the webhook deadline.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		for _, reply := range h.gateway.HandleDM(ctx, msg) {
			h.post(msg.ChannelID, reply)
		}
	}()
}

// HandleCommand handles a Slack slash command (form-encoded POST). The
// replies are returned in the response payload, visible to the caller.
func (h *SlackHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if h.signingSecret != "" && !h.verifySignature(r, body) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	form, err := parseForm(body)
	if err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	userID, command := form["user_id"], form["command"]
	if userID == "" || command == "" {
		http.Error(w, "user_id and command are required", http.StatusBadRequest)
		return
	}

	replies := h.gateway.HandleCommand(r.Context(), userID, command)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"response_type": "ephemeral",
		"text":          strings.Join(replies, "\n\n"),
	})
}

func (h *SlackHandler) post(channel, text string) {
	if h.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.client.PostMessage(ctx, channel, text); err != nil {
		log.Printf("slack: posting message: %v", err)
	}
}

// verifySignature verifies the Slack request signature using HMAC-SHA256.
func (h *SlackHandler) verifySignature(r *http.Request, body []byte) bool {
	timestamp := r.Header.Get("X-Slack-Request-Timestamp")
	signature := r.Header.Get("X-Slack-Signature")

	if timestamp == "" || signature == "" {
		return false
	}
	if !verifyTimestamp(timestamp) {
		return false
	}

	baseString := fmt.Sprintf("v0:%s:%s", timestamp, string(body))
	mac := hmac.New(sha256.New, []byte(h.signingSecret))
	mac.Write([]byte(baseString))
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// verifyTimestamp checks that the request timestamp is within 5 minutes,
// guarding against replayed requests.
func verifyTimestamp(timestamp string) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	diff := time.Now().Unix() - ts
	if diff < 0 {
		diff = -diff
	}
	return diff <= 300
}

// rawEvent extracts the inner event as a generic map for pass-through to
// handlers.
func rawEvent(body []byte) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	if inner, ok := payload["event"].(map[string]any); ok {
		return inner
	}
	return nil
}

// parseForm decodes a URL-encoded form body into a flat map.
func parseForm(body []byte) (map[string]string, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(values))
	for key := range values {
		out[key] = values.Get(key)
	}
	return out, nil
}
