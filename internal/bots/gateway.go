package bots

import (
	"context"
	"fmt"
	"strings"

	"github.com/zidanhm/switchboard/internal/dispatch"
)

const (
	helpCommand   = "/bot-help"
	statusCommand = "/bot-status"
	mentionReply  = "DM me to get started, or use `/bot-help` to see available handlers."
)

// Gateway is the platform-agnostic bridge between a chat transport and
// the dispatcher. Transports hand it DMs and slash commands; it returns
// the reply texts to deliver.
type Gateway struct {
	dispatcher *dispatch.Dispatcher
	commands   map[string]string // slash command -> handler name
}

// NewGateway creates a Gateway, binding each loaded handler's invocation
// command to a switch request.
func NewGateway(dispatcher *dispatch.Dispatcher) *Gateway {
	g := &Gateway{
		dispatcher: dispatcher,
		commands:   make(map[string]string),
	}
	reg := dispatcher.Registry()
	for _, name := range reg.Names() {
		if h, ok := reg.Get(name); ok {
			g.commands[h.Info().Command] = name
		}
	}
	return g
}

// HandleDM routes one direct message.
func (g *Gateway) HandleDM(ctx context.Context, msg IncomingMessage) []string {
	return g.dispatcher.HandleMessage(ctx, msg.UserID, msg.Text, msg.Raw)
}

// HandleCommand handles a slash command: either one of the two host
// commands or a handler's invocation command.
func (g *Gateway) HandleCommand(ctx context.Context, userID, command string) []string {
	switch command {
	case helpCommand:
		return []string{g.helpText(ctx, userID)}
	case statusCommand:
		return []string{g.statusText(ctx, userID)}
	}

	if name, ok := g.commands[command]; ok {
		return g.dispatcher.Switch(ctx, userID, name)
	}
	return []string{fmt.Sprintf("Unknown command `%s`. Use `%s` to see available handlers.", command, helpCommand)}
}

// MentionReply is the static response for group mentions; those never
// reach the dispatcher.
func (g *Gateway) MentionReply() string { return mentionReply }

// Commands returns the bound slash commands, host commands first and
// handler commands in registry order.
func (g *Gateway) Commands() []string {
	out := []string{helpCommand, statusCommand}
	reg := g.dispatcher.Registry()
	for _, name := range reg.Names() {
		if h, ok := reg.Get(name); ok {
			out = append(out, h.Info().Command)
		}
	}
	return out
}

func (g *Gateway) helpText(ctx context.Context, userID string) string {
	infos := g.dispatcher.Available(ctx, userID)
	if len(infos) == 0 {
		return "You don't have access to any handlers. Contact an administrator."
	}

	var b strings.Builder
	b.WriteString("*Available handlers:*\n\n")
	for _, info := range infos {
		fmt.Fprintf(&b, "*%s*\n  Command: `%s`\n  %s\n\n", info.DisplayName, info.Command, info.Description)
	}

	if current := g.dispatcher.Current(ctx, userID); current != nil {
		fmt.Fprintf(&b, "_Current handler: %s_", current.DisplayName)
	} else {
		b.WriteString("_No handler selected. Use a command above to get started._")
	}
	return b.String()
}

func (g *Gateway) statusText(ctx context.Context, userID string) string {
	current := g.dispatcher.Current(ctx, userID)
	if current == nil {
		return fmt.Sprintf("No handler selected. Use `%s` to see available options.", helpCommand)
	}
	return fmt.Sprintf("You're currently using *%s*.\n\nType `help` for handler-specific help.", current.DisplayName)
}
