package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/bhandras/delight/watch/internal/actor"
	"github.com/bhandras/delight/watch/internal/protocol/wire"
	"github.com/bhandras/delight/watch/internal/websocket"
	"github.com/google/uuid"
	"pkt.systems/pslog"
)

// sendQueueSize bounds commands waiting for the writer of one connection.
const sendQueueSize = 64

// Conn is the duplex connection the runtime drives.
type Conn interface {
	// ReadLoop blocks delivering text frames until the connection ends.
	ReadLoop(onFrame func([]byte)) error
	// WriteText sends one text frame.
	WriteText(data []byte) error
	// Close tears the connection down. It must be idempotent.
	Close() error
}

// Dialer opens a connection to a resolved bridge URL.
type Dialer func(ctx context.Context, url string) (Conn, error)

// DialWebsocket is the production Dialer.
func DialWebsocket(ctx context.Context, url string) (Conn, error) {
	conn, err := websocket.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// link is one connection attempt and, once dialed, its live handle.
type link struct {
	gen    int64
	id     string
	cancel context.CancelFunc
	conn   Conn
	out    chan []byte
}

// Runtime interprets bridge effects: it dials, reads, writes and runs the
// reconnect timer. It never touches State; results come back as events.
type Runtime struct {
	mu sync.Mutex

	dial    Dialer
	resolve func(host string) string
	clock   actor.Clock
	log     pslog.Logger

	link    *link
	timers  map[string]actor.Timer
	stopped bool
}

// NewRuntime returns a runtime that dials with dial after mapping hosts to
// URLs with resolve.
func NewRuntime(dial Dialer, resolve func(string) string, clock actor.Clock, log pslog.Logger) *Runtime {
	if clock == nil {
		clock = actor.RealClock{}
	}
	return &Runtime{
		dial:    dial,
		resolve: resolve,
		clock:   clock,
		log:     log,
		timers:  make(map[string]actor.Timer),
	}
}

// HandleEffects implements actor.Runtime.
func (r *Runtime) HandleEffects(ctx context.Context, effects []actor.Effect, emit func(actor.Input)) {
	for _, eff := range effects {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch e := eff.(type) {
		case effDial:
			r.startDial(ctx, e, emit)
		case effClose:
			r.closeLink(e.Gen)
		case effSend:
			r.send(e)
		case effDropSend:
			r.log.Debug("bridge offline, dropping command", "type", e.Command.Type, "conn", e.Conn.String())
		case effStartTimer:
			r.startTimer(ctx, e, emit)
		case effCancelTimer:
			r.cancelTimer(e)
		case effDispatch:
			emit(e.Input)
		case effCompleteReply:
			if e.Reply != nil {
				select {
				case e.Reply <- e.Err:
				default:
				}
			}
		default:
			// Unknown effect: ignore.
		}
	}
}

// Stop implements actor.Runtime. It closes the live connection and cancels
// every timer.
func (r *Runtime) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true
	r.retireLocked()
	for name, t := range r.timers {
		t.Stop()
		delete(r.timers, name)
	}
}

func (r *Runtime) startDial(ctx context.Context, eff effDial, emit func(actor.Input)) {
	url := r.resolve(eff.Host)

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	// At most one live handle.
	r.retireLocked()
	linkCtx, cancel := context.WithCancel(ctx)
	l := &link{
		gen:    eff.Gen,
		id:     uuid.NewString(),
		cancel: cancel,
		out:    make(chan []byte, sendQueueSize),
	}
	r.link = l
	r.mu.Unlock()

	log := r.log.With("conn", l.id, "gen", eff.Gen)
	log.Info("bridge connecting", "url", url)

	go r.runLink(linkCtx, l, url, log, emit)
}

func (r *Runtime) runLink(ctx context.Context, l *link, url string, log pslog.Logger, emit func(actor.Input)) {
	defer l.cancel()

	conn, err := r.dial(ctx, url)
	if err != nil {
		log.Warn("bridge connect failed", "url", url, "error", err)
		emit(evConnectFailed{Gen: l.gen, Err: err})
		return
	}

	r.mu.Lock()
	if r.link != l || ctx.Err() != nil {
		r.mu.Unlock()
		_ = conn.Close()
		log.Debug("discarding superseded connection")
		return
	}
	l.conn = conn
	r.mu.Unlock()

	log.Info("bridge connected", "url", url)
	emit(evConnected{Gen: l.gen})

	go writeLoop(ctx, l, conn, log)

	err = conn.ReadLoop(func(frame []byte) {
		ev, derr := wire.Decode(frame)
		if derr != nil {
			log.Warn("dropping bridge frame", "error", derr)
			return
		}
		if unknown, ok := ev.(wire.UnknownEvent); ok {
			log.Trace("ignoring bridge frame", "type", unknown.Type)
			return
		}
		if hist, ok := ev.(wire.HistoryEvent); ok {
			log.Info("bridge history received", "lines", len(hist.Lines))
		}
		emit(evFrame{Gen: l.gen, Event: ev})
	})
	if err != nil {
		log.Warn("bridge connection lost", "error", err)
	} else {
		log.Info("bridge connection closed")
	}
	emit(evClosed{Gen: l.gen, Err: err})
}

func writeLoop(ctx context.Context, l *link, conn Conn, log pslog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-l.out:
			if err := conn.WriteText(data); err != nil {
				log.Warn("bridge write failed", "error", err)
				// The read loop notices the close and reports it.
				_ = conn.Close()
				return
			}
		}
	}
}

func (r *Runtime) closeLink(gen int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.link == nil || r.link.gen != gen {
		return
	}
	r.retireLocked()
}

// retireLocked detaches and cancels the tracked link. The socket is closed
// on its own goroutine so a stalled peer never blocks the actor loop.
func (r *Runtime) retireLocked() {
	l := r.link
	if l == nil {
		return
	}
	r.link = nil
	l.cancel()
	if conn := l.conn; conn != nil {
		go func() { _ = conn.Close() }()
	}
}

func (r *Runtime) send(eff effSend) {
	r.mu.Lock()
	l := r.link
	r.mu.Unlock()

	if l == nil || l.gen != eff.Gen || l.conn == nil {
		r.log.Debug("no live connection, dropping command", "type", eff.Command.Type)
		return
	}

	data, err := wire.Encode(eff.Command)
	if err != nil {
		r.log.Error("encode command", "type", eff.Command.Type, "error", err)
		return
	}

	select {
	case l.out <- data:
		r.log.Trace("bridge command queued", "conn", l.id, "command", eff.Command.String())
	default:
		r.log.Warn("bridge send queue full, dropping command", "conn", l.id, "type", eff.Command.Type)
	}
}

// startTimer schedules a single named timer and emits evTimerFired when it
// fires. A timer with the same name is replaced.
func (r *Runtime) startTimer(ctx context.Context, eff effStartTimer, emit func(actor.Input)) {
	if eff.Name == "" || eff.AfterMs <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if prev := r.timers[eff.Name]; prev != nil {
		prev.Stop()
	}
	after := time.Duration(eff.AfterMs) * time.Millisecond
	r.log.Info("bridge reconnect scheduled", "timer", eff.Name, "after", after.String())
	r.timers[eff.Name] = r.clock.AfterFunc(after, func() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		emit(evTimerFired{Name: eff.Name})
	})
}

// cancelTimer cancels a previously started named timer.
func (r *Runtime) cancelTimer(eff effCancelTimer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t := r.timers[eff.Name]; t != nil {
		t.Stop()
	}
	delete(r.timers, eff.Name)
}
