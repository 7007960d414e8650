package bots

// Platform identifies the messaging platform.
type Platform string

const (
	PlatformSlack Platform = "slack"
)

// IncomingMessage represents a direct message received from the platform.
type IncomingMessage struct {
	Platform  Platform
	ChannelID string
	UserID    string
	Text      string
	Timestamp string
	Raw       map[string]any // full platform event, passed through to handlers
}
