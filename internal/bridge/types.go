package bridge

import (
	"github.com/bhandras/delight/watch/internal/actor"
	"github.com/bhandras/delight/watch/internal/protocol/wire"
	"github.com/bhandras/delight/watch/pkg/types"
)

const (
	// MaxRollingHistory caps the locally collected summary history.
	MaxRollingHistory = 50

	// DefaultReconnectDelayMs is the fixed delay before a reconnect attempt.
	DefaultReconnectDelayMs = 3000

	reconnectTimerName = "reconnect"
)

// State is the loop-owned view of the bridge connection and the active
// session. Observers receive copies; they must not mutate slices in place.
type State struct {
	// Host is the configured bridge host (IP, short name or full name).
	Host string

	// Conn is the connection status. Only the transport path changes it.
	Conn types.ConnState

	// ConnGen identifies the current connection attempt. Runtime events
	// carry the generation they belong to so late events from a replaced
	// connection are ignored.
	ConnGen int64

	// LastError describes the most recent transport failure, if any.
	LastError string

	// Stopped is set by Disconnect. A stopped state ignores every input.
	Stopped bool

	// ReconnectDelayMs is the fixed reconnect delay.
	ReconnectDelayMs int64

	// Sessions is the session list in bridge order.
	Sessions []string

	// ActiveSession is the joined session name, empty when none.
	ActiveSession string

	// Snapshot is the latest status reported for the active session.
	Snapshot types.StatusSnapshot

	// Prompt is the pending prompt, nil when the last output had none.
	Prompt *types.PromptData

	// History is the rolling log of distinct consecutive summaries.
	History []string

	// BridgeHistory is the transcript the bridge seeded on join.
	BridgeHistory []types.HistoryLine
}

// InitialState returns the state of a client that has not connected yet.
func InitialState(host string, reconnectDelayMs int64) State {
	if reconnectDelayMs <= 0 {
		reconnectDelayMs = DefaultReconnectDelayMs
	}
	return State{
		Host:             host,
		ReconnectDelayMs: reconnectDelayMs,
		Snapshot:         types.DefaultSnapshot(),
	}
}

// Commands issued by the Client facade.

type cmdConnect struct {
	actor.InputBase
}

type cmdUpdateHost struct {
	actor.InputBase
	Host string
}

type cmdDisconnect struct {
	actor.InputBase
	Reply chan error
}

type cmdSend struct {
	actor.InputBase
	Command wire.Command
}

type cmdLeave struct {
	actor.InputBase
}

// Events emitted by the runtime.

type evConnected struct {
	actor.InputBase
	Gen int64
}

type evConnectFailed struct {
	actor.InputBase
	Gen int64
	Err error
}

type evClosed struct {
	actor.InputBase
	Gen int64
	Err error
}

type evFrame struct {
	actor.InputBase
	Gen   int64
	Event wire.Event
}

type evTimerFired struct {
	actor.InputBase
	Name string
}

// Effects interpreted by the runtime.

// effDial opens a connection for Gen, replacing any live one.
type effDial struct {
	actor.EffectBase
	Gen  int64
	Host string
}

// effClose tears down the connection for Gen, if it is still tracked.
type effClose struct {
	actor.EffectBase
	Gen int64
}

// effSend writes an encoded command on the connection for Gen.
type effSend struct {
	actor.EffectBase
	Gen     int64
	Command wire.Command
}

// effDropSend records a command discarded while offline.
type effDropSend struct {
	actor.EffectBase
	Command wire.Command
	Conn    types.ConnState
}

type effStartTimer struct {
	actor.EffectBase
	Name    string
	AfterMs int64
}

type effCancelTimer struct {
	actor.EffectBase
	Name string
}

// effDispatch re-enqueues Input after the current state has been published.
type effDispatch struct {
	actor.EffectBase
	Input actor.Input
}

type effCompleteReply struct {
	actor.EffectBase
	Reply chan error
	Err   error
}
