package notify

import (
	"context"
	"sync/atomic"

	"github.com/bhandras/delight/watch/internal/bridge"
	"github.com/bhandras/delight/watch/pkg/types"
	"pkt.systems/pslog"
)

const (
	summaryRunes    = 80
	statusRunes     = 60
	suggestionRunes = 60

	connectedStatus = "Connected"
)

// Watcher derives notifications from successive snapshots.
//
// While a UI is attached (foreground) nothing is raised and the change
// tracking is frozen, so the first background snapshot is compared against
// what the user last saw notified.
type Watcher struct {
	sinks []Sink
	log   pslog.Logger

	foreground atomic.Bool
	status     atomic.Value

	prevSummary    string
	prevStatus     string
	prevSuggestion string
}

// NewWatcher returns a watcher posting to sinks.
func NewWatcher(log pslog.Logger, sinks ...Sink) *Watcher {
	w := &Watcher{sinks: sinks, log: log}
	w.status.Store(connectedStatus)
	return w
}

// SetForeground marks whether an interactive UI is attached.
func (w *Watcher) SetForeground(on bool) { w.foreground.Store(on) }

// StatusLine is the always-current one-line status.
func (w *Watcher) StatusLine() string { return w.status.Load().(string) }

// Step records snap and returns the notifications it raises. It is not safe
// for concurrent use.
func (w *Watcher) Step(session string, snap types.StatusSnapshot) []Notification {
	line := snap.Status
	if line == "" {
		line = connectedStatus
	}
	w.status.Store(line)

	if w.foreground.Load() {
		return nil
	}

	var out []Notification
	if snap.IsQuestion() {
		out = append(out, Notification{
			Kind:    KindQuestion,
			Title:   "Assistant asks:",
			Body:    snap.QuestionText(),
			Session: session,
		})
	}
	if snap.Summary != "" && snap.Summary != w.prevSummary {
		out = append(out, Notification{
			Kind:    KindSummary,
			Title:   "Assistant",
			Body:    truncate(snap.Summary, summaryRunes),
			Session: session,
		})
		w.prevSummary = snap.Summary
	}
	if snap.Status != "" && snap.Status != w.prevStatus {
		body := truncate(snap.Summary, statusRunes)
		if body == "" {
			body = snap.ActiveTask
		}
		out = append(out, Notification{
			Kind:    KindStatus,
			Title:   "Status: " + snap.Status,
			Body:    body,
			Session: session,
		})
		w.prevStatus = snap.Status
	}
	if snap.Suggestion != "" && snap.Suggestion != w.prevSuggestion {
		out = append(out, Notification{
			Kind:    KindSuggestion,
			Title:   "Suggestion",
			Body:    truncate(snap.Suggestion, suggestionRunes),
			Session: session,
		})
		w.prevSuggestion = snap.Suggestion
	}
	return out
}

// Run consumes states until ctx ends or states closes. Only snapshot changes
// are considered.
func (w *Watcher) Run(ctx context.Context, states <-chan bridge.State) {
	var (
		last types.StatusSnapshot
		seen bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if seen && st.Snapshot == last {
				continue
			}
			last, seen = st.Snapshot, true
			for _, n := range w.Step(st.ActiveSession, st.Snapshot) {
				w.post(ctx, n)
			}
		}
	}
}

func (w *Watcher) post(ctx context.Context, n Notification) {
	for _, sink := range w.sinks {
		if err := sink.Post(ctx, n); err != nil {
			w.log.Warn("notification delivery failed", "kind", string(n.Kind), "error", err)
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
