// Package notify turns bridge status changes into user notifications while
// no interactive UI is attached.
package notify

import (
	"context"

	"pkt.systems/pslog"
)

// Kind identifies why a notification was raised. It doubles as the cooldown
// key for sinks that rate limit.
type Kind string

const (
	KindQuestion   Kind = "question"
	KindSummary    Kind = "summary"
	KindStatus     Kind = "status"
	KindSuggestion Kind = "suggestion"
)

// Notification is one message for the user.
type Notification struct {
	Kind  Kind
	Title string
	Body  string
	// Session is the active session name, if any.
	Session string
}

// Sink delivers notifications.
type Sink interface {
	Post(ctx context.Context, n Notification) error
}

// LogSink writes notifications to a logger.
type LogSink struct {
	Log pslog.Logger
}

// Post implements Sink.
func (s LogSink) Post(_ context.Context, n Notification) error {
	s.Log.Info("notification", "kind", string(n.Kind), "title", n.Title, "body", n.Body, "session", n.Session)
	return nil
}
