// Package dispatch routes inbound messages and switch requests to the
// handler each user is attached to, enforcing permissions on every turn.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zidanhm/switchboard/internal/access"
	"github.com/zidanhm/switchboard/internal/handler"
	"github.com/zidanhm/switchboard/internal/session"
	"github.com/zidanhm/switchboard/internal/usage"
)

const (
	genericErrorReply = "An error occurred while processing your message.\nPlease try again or contact an administrator."
	noAccessReply     = "You don't have access to any handlers.\nPlease contact an administrator."
)

// Dispatcher orchestrates the registry, session store, permission
// resolver and usage recorder. It owns no durable state of its own.
type Dispatcher struct {
	registry *handler.Registry
	sessions *session.Store
	access   *access.Resolver
	usage    *usage.Recorder
	timeout  time.Duration
	locks    keyedMutex
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHandlerTimeout bounds each handler call. A timed-out call is
// treated as a handler fault; zero disables the bound.
func WithHandlerTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.timeout = d }
}

// New creates a Dispatcher over the given components.
func New(registry *handler.Registry, sessions *session.Store, resolver *access.Resolver, recorder *usage.Recorder, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		sessions: sessions,
		access:   resolver,
		usage:    recorder,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleMessage routes one direct message from a user and returns the
// replies to send back. Nothing a handler does propagates past this
// boundary; every failure is downgraded to a reply plus a log entry.
func (d *Dispatcher) HandleMessage(ctx context.Context, userID, text string, event map[string]any) []string {
	unlock := d.locks.lock(userID)
	defer unlock()

	current, err := d.sessions.Current(ctx, userID)
	if err != nil {
		log.Printf("dispatch: reading session for %s: %v", userID, err)
		return []string{genericErrorReply}
	}

	if current == "" {
		return d.unattachedReplies(ctx, userID)
	}

	h, ok := d.registry.Get(current)
	if !ok {
		// The attached handler is gone; self-heal and re-present the list.
		log.Printf("dispatch: handler %q not found for user %s", current, userID)
		if err := d.sessions.Clear(ctx, userID); err != nil {
			log.Printf("dispatch: clearing stale session for %s: %v", userID, err)
		}
		replies := []string{fmt.Sprintf(
			"The handler `%s` is no longer available.\nYour selection has been cleared. Please choose a new handler.", current)}
		return append(replies, d.unattachedReplies(ctx, userID)...)
	}

	allowed, err := d.access.IsAllowed(ctx, userID, current)
	if err != nil {
		log.Printf("dispatch: permission check for %s on %q: %v", userID, current, err)
		return []string{genericErrorReply}
	}
	if !allowed {
		// Permission loss forcibly detaches.
		log.Printf("dispatch: access to %q revoked for attached user %s", current, userID)
		if err := d.sessions.Clear(ctx, userID); err != nil {
			log.Printf("dispatch: clearing session for %s: %v", userID, err)
		}
		return []string{accessDeniedReply(current)}
	}

	resp, ferr := d.invoke(ctx, h, userID, text, event)
	if ferr != nil {
		log.Printf("dispatch: handler %q failed for user %s: %v", current, userID, ferr)
		if err := d.usage.Error(ctx, userID, current, ferr.Error()); err != nil {
			log.Printf("dispatch: recording error event: %v", err)
		}
		// The user stays attached; a single failed turn is recoverable.
		return []string{genericErrorReply}
	}

	if err := d.usage.Message(ctx, userID, current, text, resp.Metadata); err != nil {
		log.Printf("dispatch: recording message event: %v", err)
	}
	if err := d.sessions.Touch(ctx, userID); err != nil {
		log.Printf("dispatch: touching session for %s: %v", userID, err)
	}

	return resp.Messages
}

// Switch attaches the user to the named handler and returns the replies
// to send back. On any refusal (unknown handler, permission denied) the
// session is left exactly as it was.
func (d *Dispatcher) Switch(ctx context.Context, userID, name string) []string {
	unlock := d.locks.lock(userID)
	defer unlock()

	h, ok := d.registry.Get(name)
	if !ok {
		return []string{fmt.Sprintf("Handler `%s` not found.", name)}
	}

	allowed, err := d.access.IsAllowed(ctx, userID, name)
	if err != nil {
		log.Printf("dispatch: permission check for %s on %q: %v", userID, name, err)
		return []string{genericErrorReply}
	}
	if !allowed {
		log.Printf("dispatch: denied switch: user %s -> %q", userID, name)
		return []string{accessDeniedReply(name)}
	}

	previous, err := d.sessions.Current(ctx, userID)
	if err != nil {
		log.Printf("dispatch: reading session for %s: %v", userID, err)
		return []string{genericErrorReply}
	}

	// Deactivation of the outgoing handler is advisory cleanup; it always
	// runs (and completes) before the new state is persisted.
	if previous != "" && previous != name {
		if prev, ok := d.registry.Get(previous); ok {
			d.deactivate(ctx, prev, userID)
		}
	}

	if err := d.sessions.Set(ctx, userID, name); err != nil {
		log.Printf("dispatch: persisting switch for %s: %v", userID, err)
		return []string{genericErrorReply}
	}

	if err := d.usage.Switch(ctx, userID, previous, name); err != nil {
		log.Printf("dispatch: recording switch event: %v", err)
	}

	replies := []string{h.Welcome()}

	if activationMsg, ferr := d.activate(ctx, h, userID); ferr != nil {
		log.Printf("dispatch: activating %q for user %s: %v", name, userID, ferr)
		if err := d.usage.Error(ctx, userID, name, ferr.Error()); err != nil {
			log.Printf("dispatch: recording error event: %v", err)
		}
		replies = append(replies, genericErrorReply)
	} else if activationMsg != "" {
		replies = append(replies, activationMsg)
	}

	log.Printf("dispatch: user %s switched to handler %q", userID, name)
	return replies
}

// Available returns the handlers the user may use, in registry order.
func (d *Dispatcher) Available(ctx context.Context, userID string) []handler.Info {
	names, err := d.access.Allowed(ctx, userID, d.registry.Names())
	if err != nil {
		log.Printf("dispatch: listing allowed handlers for %s: %v", userID, err)
		return nil
	}
	var infos []handler.Info
	for _, name := range names {
		if h, ok := d.registry.Get(name); ok {
			infos = append(infos, h.Info())
		}
	}
	return infos
}

// Current returns the info of the user's attached handler, or nil when
// the user is unattached or the handler is no longer registered.
func (d *Dispatcher) Current(ctx context.Context, userID string) *handler.Info {
	current, err := d.sessions.Current(ctx, userID)
	if err != nil {
		log.Printf("dispatch: reading session for %s: %v", userID, err)
		return nil
	}
	if current == "" {
		return nil
	}
	h, ok := d.registry.Get(current)
	if !ok {
		return nil
	}
	info := h.Info()
	return &info
}

// Registry returns the dispatcher's handler registry.
func (d *Dispatcher) Registry() *handler.Registry { return d.registry }

// unattachedReplies lists the handlers the user may pick from.
func (d *Dispatcher) unattachedReplies(ctx context.Context, userID string) []string {
	infos := d.Available(ctx, userID)
	if len(infos) == 0 {
		return []string{noAccessReply}
	}

	var b strings.Builder
	b.WriteString("Welcome! You haven't selected a handler yet.\n\n*Available handlers:*\n")
	for _, info := range infos {
		fmt.Fprintf(&b, "- `%s` - %s\n", info.Command, info.Description)
	}
	b.WriteString("\nUse a command to get started.")
	return []string{b.String()}
}

// invoke calls the handler with panic containment and the optional
// per-call timeout. It holds only the calling user's lock while waiting.
func (d *Dispatcher) invoke(ctx context.Context, h handler.Handler, userID, text string, event map[string]any) (*handler.Response, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	type result struct {
		resp *handler.Response
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				ch <- result{nil, fmt.Errorf("handler panicked: %v", rec)}
			}
		}()
		resp, err := h.Handle(ctx, userID, text, event)
		ch <- result{resp, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if res.resp == nil {
			return nil, fmt.Errorf("handler returned no response")
		}
		return res.resp, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("handler call aborted: %w", ctx.Err())
	}
}

// activate runs the optional activation hook with panic containment.
func (d *Dispatcher) activate(ctx context.Context, h handler.Handler, userID string) (msg string, err error) {
	act, ok := h.(handler.Activator)
	if !ok {
		return "", nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			msg, err = "", fmt.Errorf("activation hook panicked: %v", rec)
		}
	}()
	return act.OnActivate(ctx, userID)
}

// deactivate runs the optional deactivation hook; failures are logged
// and swallowed.
func (d *Dispatcher) deactivate(ctx context.Context, h handler.Handler, userID string) {
	deact, ok := h.(handler.Deactivator)
	if !ok {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("dispatch: deactivation hook for %q panicked: %v", h.Info().Name, rec)
		}
	}()
	if err := deact.OnDeactivate(ctx, userID); err != nil {
		log.Printf("dispatch: deactivation hook for %q: %v", h.Info().Name, err)
	}
}

func accessDeniedReply(name string) string {
	return fmt.Sprintf("You don't have access to `%s`.\nPlease contact an administrator if you need access.", name)
}
