package bridge

import (
	"strings"

	"github.com/bhandras/delight/watch/internal/actor"
	"github.com/bhandras/delight/watch/internal/protocol/wire"
	"github.com/bhandras/delight/watch/pkg/types"
)

// Reduce is the bridge client reducer. It is pure: all I/O is described by the
// returned effects.
func Reduce(state State, input actor.Input) (State, []actor.Effect) {
	if state.Stopped {
		if cmd, ok := input.(cmdDisconnect); ok && cmd.Reply != nil {
			return state, []actor.Effect{effCompleteReply{Reply: cmd.Reply}}
		}
		return state, nil
	}

	switch in := input.(type) {
	case cmdConnect:
		return reduceConnect(state)
	case cmdUpdateHost:
		return reduceUpdateHost(state, in)
	case cmdDisconnect:
		return reduceDisconnect(state, in)
	case cmdSend:
		return reduceSend(state, in.Command)
	case cmdLeave:
		return reduceLeave(state)

	case evConnected:
		return reduceConnected(state, in)
	case evConnectFailed:
		return reduceConnLost(state, in.Gen, in.Err)
	case evClosed:
		return reduceConnLost(state, in.Gen, in.Err)
	case evTimerFired:
		return reduceTimerFired(state, in)
	case evFrame:
		if in.Gen != state.ConnGen {
			return state, nil
		}
		return ReduceEvent(state, in.Event), nil
	default:
		return state, nil
	}
}

func reduceConnect(state State) (State, []actor.Effect) {
	if state.Conn != types.Disconnected {
		return state, nil
	}
	state.ConnGen++
	state.Conn = types.Connecting
	return state, []actor.Effect{
		effCancelTimer{Name: reconnectTimerName},
		effDial{Gen: state.ConnGen, Host: state.Host},
	}
}

func reduceUpdateHost(state State, cmd cmdUpdateHost) (State, []actor.Effect) {
	host := strings.TrimSpace(cmd.Host)
	if host == "" || host == state.Host {
		return state, nil
	}
	state.Host = host

	// Retire the current generation so its close never schedules a retry.
	effects := []actor.Effect{
		effCancelTimer{Name: reconnectTimerName},
		effClose{Gen: state.ConnGen},
	}
	state.ConnGen++
	state.Conn = types.Disconnected

	// Connect in a later step so observers see Disconnected first.
	effects = append(effects, effDispatch{Input: cmdConnect{}})
	return state, effects
}

func reduceDisconnect(state State, cmd cmdDisconnect) (State, []actor.Effect) {
	effects := []actor.Effect{
		effCancelTimer{Name: reconnectTimerName},
		effClose{Gen: state.ConnGen},
	}
	state.Stopped = true
	state.Conn = types.Disconnected
	if cmd.Reply != nil {
		effects = append(effects, effCompleteReply{Reply: cmd.Reply})
	}
	return state, effects
}

func reduceSend(state State, cmd wire.Command) (State, []actor.Effect) {
	if state.Conn != types.Connected {
		return state, []actor.Effect{effDropSend{Command: cmd, Conn: state.Conn}}
	}
	return state, []actor.Effect{effSend{Gen: state.ConnGen, Command: cmd}}
}

// reduceLeave resets the local session view before the leave command goes out.
func reduceLeave(state State) (State, []actor.Effect) {
	state.ActiveSession = ""
	state.Snapshot = types.DefaultSnapshot()
	return reduceSend(state, wire.NewCommand(wire.CmdLeave, nil))
}

func reduceConnected(state State, ev evConnected) (State, []actor.Effect) {
	if ev.Gen != state.ConnGen || state.Conn != types.Connecting {
		return state, nil
	}
	state.Conn = types.Connected
	state.LastError = ""

	if state.ActiveSession != "" {
		return state, []actor.Effect{effSend{Gen: ev.Gen, Command: wire.Join(state.ActiveSession)}}
	}
	return state, []actor.Effect{effSend{Gen: ev.Gen, Command: wire.NewCommand(wire.CmdList, nil)}}
}

func reduceConnLost(state State, gen int64, err error) (State, []actor.Effect) {
	if gen != state.ConnGen || state.Conn == types.Disconnected {
		return state, nil
	}
	state.Conn = types.Disconnected
	state.LastError = ""
	if err != nil {
		state.LastError = err.Error()
	}
	return state, []actor.Effect{
		effClose{Gen: gen},
		effStartTimer{Name: reconnectTimerName, AfterMs: state.ReconnectDelayMs},
	}
}

func reduceTimerFired(state State, ev evTimerFired) (State, []actor.Effect) {
	if ev.Name != reconnectTimerName {
		return state, nil
	}
	// A manual connect may have won the race.
	if state.Conn != types.Disconnected {
		return state, nil
	}
	return reduceConnect(state)
}

// ReduceEvent applies one decoded bridge event to the session view.
func ReduceEvent(state State, ev wire.Event) State {
	switch e := ev.(type) {
	case wire.MenuEvent:
		// The active session is left alone so a reconnect-time list does
		// not kick the user back to the menu.
		state.Sessions = make([]string, len(e.Sessions))
		copy(state.Sessions, e.Sessions)

	case wire.SessionJoinedEvent:
		state.ActiveSession = e.Name
		state.Snapshot = types.DefaultSnapshot()
		state.History = nil
		state.BridgeHistory = nil
		state.Prompt = nil

	case wire.HistoryEvent:
		state.BridgeHistory = types.HistoryFromLines(e.Lines)

	case wire.OutputEvent:
		snap, src := e.Snapshot()
		switch src {
		case wire.SourceStructured:
			state.Snapshot = snap
			state.History = appendHistory(state.History, snap.Summary)
		case wire.SourceLegacy:
			state.Snapshot = snap
		}
		state.Prompt = clonePrompt(e.Prompt)
	}
	return state
}

// appendHistory returns a new slice so published states never share backing
// arrays with later ones.
func appendHistory(history []string, summary string) []string {
	if summary == "" {
		return history
	}
	if n := len(history); n > 0 && history[n-1] == summary {
		return history
	}
	start := 0
	if len(history) >= MaxRollingHistory {
		start = len(history) - MaxRollingHistory + 1
	}
	next := make([]string, 0, len(history)-start+1)
	next = append(next, history[start:]...)
	return append(next, summary)
}

func clonePrompt(p *types.PromptData) *types.PromptData {
	if p == nil {
		return nil
	}
	out := *p
	out.Options = append([]types.PromptOption(nil), p.Options...)
	return &out
}
