package bots

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// SocketMode runs the Slack Socket Mode loop: it opens a websocket via
// apps.connections.open, acknowledges every envelope, and routes events
// and slash commands through the gateway. It lets the host run without a
// public webhook URL.
type SocketMode struct {
	gateway *Gateway
	client  *Client
	dialer  *websocket.Dialer
}

// NewSocketMode creates a Socket Mode runner.
func NewSocketMode(gateway *Gateway, client *Client) *SocketMode {
	return &SocketMode{
		gateway: gateway,
		client:  client,
		dialer:  websocket.DefaultDialer,
	}
}

// envelope is one Socket Mode frame from Slack.
type envelope struct {
	EnvelopeID             string          `json:"envelope_id"`
	Type                   string          `json:"type"`
	Payload                json.RawMessage `json:"payload"`
	AcceptsResponsePayload bool            `json:"accepts_response_payload"`
	Reason                 string          `json:"reason"` // set on disconnect frames
}

// ack is the acknowledgement sent back for each envelope.
type ack struct {
	EnvelopeID string `json:"envelope_id"`
	Payload    any    `json:"payload,omitempty"`
}

// Run connects and processes envelopes until ctx is cancelled,
// reconnecting with backoff on connection loss.
func (s *SocketMode) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		connected, err := s.runOnce(ctx)
		if err != nil {
			log.Printf("socketmode: connection lost: %v", err)
		}
		if connected {
			// The session was healthy; a later drop restarts the backoff.
			backoff = time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// runOnce runs one websocket session. connected reports whether Slack
// acknowledged the session with a hello envelope.
func (s *SocketMode) runOnce(ctx context.Context) (connected bool, err error) {
	wsURL, err := s.client.OpenConnection(ctx)
	if err != nil {
		return false, err
	}

	conn, _, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	log.Printf("socketmode: connected")

	// Close the connection when ctx is cancelled to unblock ReadMessage.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return connected, err
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("socketmode: invalid envelope: %v", err)
			continue
		}

		switch env.Type {
		case "hello":
			// Connection established; nothing to ack.
			connected = true

		case "disconnect":
			// Slack asks us to reconnect (deploys, link refresh).
			log.Printf("socketmode: disconnect requested: %s", env.Reason)
			return connected, nil

		case "events_api":
			s.send(conn, ack{EnvelopeID: env.EnvelopeID})
			s.handleEventsAPI(ctx, env.Payload)

		case "slash_commands":
			s.handleSlashCommand(ctx, conn, env)

		default:
			s.send(conn, ack{EnvelopeID: env.EnvelopeID})
		}
	}
}

// handleEventsAPI routes an Events API envelope payload. Only DMs reach
// the dispatcher; mentions get the static redirect.
func (s *SocketMode) handleEventsAPI(ctx context.Context, payload json.RawMessage) {
	var event slackEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("socketmode: invalid events payload: %v", err)
		return
	}
	inner := event.Event

	if inner.Type == "app_mention" {
		s.post(ctx, inner.Channel, s.gateway.MentionReply())
		return
	}
	if inner.Type != "message" || inner.BotID != "" || inner.ChannelType != "im" {
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
		Raw:       rawEvent(payload),
	}

	// Each message is its own task; a slow handler call must not stall
	// the read loop or other users.
	go func() {
		dmCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		for _, reply := range s.gateway.HandleDM(dmCtx, msg) {
			s.post(dmCtx, msg.ChannelID, reply)
		}
	}()
}

// slashPayload is the Socket Mode slash command payload.
type slashPayload struct {
	UserID  string `json:"user_id"`
	Command string `json:"command"`
	Text    string `json:"text"`
}

func (s *SocketMode) handleSlashCommand(ctx context.Context, conn *websocket.Conn, env envelope) {
	var cmd slashPayload
	if err := json.Unmarshal(env.Payload, &cmd); err != nil {
		log.Printf("socketmode: invalid slash payload: %v", err)
		s.send(conn, ack{EnvelopeID: env.EnvelopeID})
		return
	}

	replies := s.gateway.HandleCommand(ctx, cmd.UserID, cmd.Command)

	if env.AcceptsResponsePayload {
		s.send(conn, ack{
			EnvelopeID: env.EnvelopeID,
			Payload: map[string]string{
				"response_type": "ephemeral",
				"text":          strings.Join(replies, "\n\n"),
			},
		})
		return
	}
	s.send(conn, ack{EnvelopeID: env.EnvelopeID})
}

func (s *SocketMode) send(conn *websocket.Conn, a ack) {
	if err := conn.WriteJSON(a); err != nil {
		log.Printf("socketmode: writing ack: %v", err)
	}
}

func (s *SocketMode) post(ctx context.Context, channel, text string) {
	if err := s.client.PostMessage(ctx, channel, text); err != nil {
		log.Printf("socketmode: posting message: %v", err)
	}
}
