// Package bridge is the connection and session core of delight-watch.
//
// A Client owns one actor loop. The reducer in this package is the only code
// that mutates State; the Runtime turns its effects into websocket I/O and
// timers, and the facade methods on Client only enqueue commands. Every
// facade call is fire-and-forget and results surface as State changes.
package bridge

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bhandras/delight/watch/internal/actor"
	"github.com/bhandras/delight/watch/internal/protocol/wire"
	"github.com/bhandras/delight/watch/internal/websocket"
	"github.com/bhandras/delight/watch/pkg/logger"
	"github.com/google/uuid"
	"pkt.systems/pslog"
)

var (
	// ErrNotStarted is returned by Disconnect on a client that was never
	// started.
	ErrNotStarted = errors.New("bridge client not started")
	// ErrEmptyHost is returned by New when no host is configured.
	ErrEmptyHost = errors.New("bridge host is empty")
)

// Config configures a Client.
type Config struct {
	// Host is the initial bridge host.
	Host string
	// Port is the plaintext port used for raw IP hosts.
	Port int
	// TailnetSuffix is appended to short host names.
	TailnetSuffix string
	// ReconnectDelay is the fixed delay between reconnect attempts.
	ReconnectDelay time.Duration

	// Clock schedules reconnect timers. Defaults to the real clock.
	Clock actor.Clock
	// Dial opens connections. Defaults to DialWebsocket.
	Dial Dialer
	// Logger receives client logs. Defaults to the process logger.
	Logger pslog.Logger
	// MailboxSize overrides the actor mailbox size.
	MailboxSize int

	// OnChange, when set, sees every transition that changed the state, in
	// order, on the actor goroutine. Unlike Subscribe it never skips
	// intermediate states, so one-shot signals can be derived from it. It
	// must return quickly.
	OnChange func(prev, next State)
}

// Client is the bridge connection plus the command facade.
type Client struct {
	id    string
	log   pslog.Logger
	actor *actor.Actor[State]

	started  atomic.Bool
	stopOnce sync.Once
	stopErr  error
}

// New builds a client. Nothing is dialed until Start and Connect.
func New(cfg Config) (*Client, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, ErrEmptyHost
	}
	if cfg.Dial == nil {
		cfg.Dial = DialWebsocket
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Logger()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelayMs * time.Millisecond
	}

	id := uuid.NewString()
	log := cfg.Logger.With("client", id)

	port, suffix, onChange := cfg.Port, cfg.TailnetSuffix, cfg.OnChange
	resolve := func(h string) string { return websocket.ResolveURL(h, port, suffix) }
	rt := NewRuntime(cfg.Dial, resolve, cfg.Clock, log)

	opts := []actor.Option[State]{
		actor.WithEqual(func(a, b State) bool { return reflect.DeepEqual(a, b) }),
		actor.WithHooks(actor.Hooks[State]{
			OnInput: func(in actor.Input) {
				if logger.Enabled(logger.LevelTrace) {
					log.Trace("bridge input", "input", typeName(in))
				}
			},
			OnTransition: func(prev, next State, _ actor.Input) {
				if onChange != nil && !reflect.DeepEqual(prev, next) {
					onChange(prev, next)
				}
				if prev.Conn != next.Conn {
					log.Debug("bridge connection state", "from", prev.Conn.String(), "to", next.Conn.String())
				}
				if prev.ActiveSession != next.ActiveSession {
					log.Info("bridge active session", "session", next.ActiveSession)
				}
			},
			OnDrop: func(in actor.Input) {
				log.Warn("bridge mailbox full, dropping input", "input", typeName(in))
			},
			OnPanic: func(r any) {
				log.Error("bridge actor panic", "panic", r)
			},
		}),
	}
	if cfg.MailboxSize > 0 {
		opts = append(opts, actor.WithMailboxSize[State](cfg.MailboxSize))
	}

	initial := InitialState(host, cfg.ReconnectDelay.Milliseconds())
	return &Client{
		id:    id,
		log:   log,
		actor: actor.New(initial, Reduce, rt, opts...),
	}, nil
}

// ID returns the client instance id used in logs.
func (c *Client) ID() string { return c.id }

// Start launches the actor loop. It is idempotent.
func (c *Client) Start() {
	c.actor.Start()
	c.started.Store(true)
}

// State returns the latest state.
func (c *Client) State() State { return c.actor.State() }

// Subscribe returns a channel that receives the current state immediately
// and the latest state after every change. Call cancel to unsubscribe.
func (c *Client) Subscribe() (<-chan State, func()) { return c.actor.Subscribe() }

// Connect dials the configured host unless a connection is live or in
// flight.
func (c *Client) Connect() { c.enqueue(cmdConnect{}) }

// UpdateHost switches to a new host. A live connection is closed and a new
// one is dialed; the active session is kept for auto-rejoin.
func (c *Client) UpdateHost(host string) { c.enqueue(cmdUpdateHost{Host: host}) }

// Disconnect closes the connection, cancels pending reconnects and stops
// the loop. The client cannot be restarted afterwards.
func (c *Client) Disconnect(ctx context.Context) error {
	if !c.started.Load() {
		return ErrNotStarted
	}
	c.stopOnce.Do(func() {
		reply := make(chan error, 1)
		if c.actor.Enqueue(cmdDisconnect{Reply: reply}) {
			select {
			case err := <-reply:
				c.stopErr = err
			case <-ctx.Done():
				c.stopErr = ctx.Err()
			}
		}
		c.actor.Stop()

		select {
		case <-c.actor.Done():
		case <-ctx.Done():
			if c.stopErr == nil {
				c.stopErr = ctx.Err()
			}
		}
		c.log.Info("bridge client stopped")
	})
	return c.stopErr
}

// JoinSession joins the named session. The name is sent as given.
func (c *Client) JoinSession(name string) { c.send(wire.Join(name)) }

// CreateSession asks the bridge for a new session.
func (c *Client) CreateSession() { c.send(wire.NewCommand(wire.CmdCreate, nil)) }

// RequestList asks the bridge for the session list.
func (c *Client) RequestList() { c.send(wire.NewCommand(wire.CmdList, nil)) }

// LeaveSession clears the active session locally, then tells the bridge.
func (c *Client) LeaveSession() { c.enqueue(cmdLeave{}) }

// SendKey answers a prompt with option num. Non-positive values are ignored.
func (c *Client) SendKey(num int) {
	if num <= 0 {
		return
	}
	c.send(wire.Key(num))
}

// SendDictation sends free text to the assistant unchanged.
func (c *Client) SendDictation(text string) { c.send(wire.Dictation(text)) }

// Pause pauses the assistant.
func (c *Client) Pause() { c.send(wire.NewCommand(wire.CmdPause, nil)) }

// Resume resumes a paused assistant.
func (c *Client) Resume() { c.send(wire.NewCommand(wire.CmdResume, nil)) }

// Accept accepts the assistant's pending suggestion.
func (c *Client) Accept() { c.send(wire.NewCommand(wire.CmdAccept, nil)) }

func (c *Client) send(cmd wire.Command) { c.enqueue(cmdSend{Command: cmd}) }

func (c *Client) enqueue(in actor.Input) {
	if !c.actor.Enqueue(in) {
		c.log.Debug("bridge client not accepting input", "input", typeName(in))
	}
}

func typeName(in actor.Input) string {
	switch v := in.(type) {
	case cmdConnect:
		return "connect"
	case cmdUpdateHost:
		return "update_host"
	case cmdDisconnect:
		return "disconnect"
	case cmdSend:
		return "send:" + string(v.Command.Type)
	case cmdLeave:
		return "leave"
	case evConnected:
		return "connected"
	case evConnectFailed:
		return "connect_failed"
	case evClosed:
		return "closed"
	case evFrame:
		return "frame:" + string(v.Event.EventType())
	case evTimerFired:
		return "timer:" + v.Name
	default:
		return "unknown"
	}
}
