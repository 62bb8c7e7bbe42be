package notify

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bhandras/delight/watch/internal/bridge"
	"github.com/bhandras/delight/watch/pkg/types"
	"github.com/stretchr/testify/require"
	"pkt.systems/pslog"
)

type recordingSink struct {
	mu    sync.Mutex
	notes []Notification
	err   error
}

func (r *recordingSink) Post(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return r.err
}

func (r *recordingSink) kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Kind
	for _, n := range r.notes {
		out = append(out, n.Kind)
	}
	return out
}

func quietLogger() pslog.Logger {
	return pslog.NewWithOptions(&bytes.Buffer{}, pslog.Options{Mode: pslog.ModeStructured})
}

func TestWatcherStep(t *testing.T) {
	t.Parallel()

	w := NewWatcher(quietLogger())
	require.Equal(t, "Connected", w.StatusLine())

	notes := w.Step("alpha", types.StatusSnapshot{Summary: "Reading files", Status: "Reading"})
	require.Len(t, notes, 2)
	require.Equal(t, KindSummary, notes[0].Kind)
	require.Equal(t, "Reading files", notes[0].Body)
	require.Equal(t, "alpha", notes[0].Session)
	require.Equal(t, KindStatus, notes[1].Kind)
	require.Equal(t, "Status: Reading", notes[1].Title)
	require.Equal(t, "Reading", w.StatusLine())

	// Nothing changed.
	require.Empty(t, w.Step("alpha", types.StatusSnapshot{Summary: "Reading files", Status: "Reading"}))

	notes = w.Step("alpha", types.StatusSnapshot{Summary: "Reading files", Status: "Reading", Suggestion: "run go test"})
	require.Len(t, notes, 1)
	require.Equal(t, KindSuggestion, notes[0].Kind)

	// Status falls back to the active task when there is no summary.
	notes = w.Step("alpha", types.StatusSnapshot{Status: "Editing", ActiveTask: "parser"})
	require.Len(t, notes, 1)
	require.Equal(t, "parser", notes[0].Body)

	require.Empty(t, w.Step("alpha", types.StatusSnapshot{}))
	require.Equal(t, "Connected", w.StatusLine())
}

func TestWatcherQuestionAndTruncation(t *testing.T) {
	t.Parallel()

	w := NewWatcher(quietLogger())
	long := strings.Repeat("é", 100)
	notes := w.Step("", types.StatusSnapshot{Status: "QUESTION", Summary: "?" + long + "\nOPT:a"})
	require.Equal(t, KindQuestion, notes[0].Kind)
	require.Equal(t, long, notes[0].Body)
	require.Equal(t, KindSummary, notes[1].Kind)
	require.Len(t, []rune(notes[1].Body), 80)
	require.Equal(t, KindStatus, notes[2].Kind)
	require.Len(t, []rune(notes[2].Body), 60)

	// Questions repeat while pending.
	notes = w.Step("", types.StatusSnapshot{Status: "QUESTION", Summary: "?" + long + "\nOPT:a"})
	require.Len(t, notes, 1)
	require.Equal(t, KindQuestion, notes[0].Kind)
}

func TestWatcherForegroundFreezesTracking(t *testing.T) {
	t.Parallel()

	w := NewWatcher(quietLogger())
	w.SetForeground(true)
	require.Empty(t, w.Step("a", types.StatusSnapshot{Summary: "one", Status: "Working"}))
	require.Equal(t, "Working", w.StatusLine())

	w.SetForeground(false)
	notes := w.Step("a", types.StatusSnapshot{Summary: "one", Status: "Working"})
	require.Len(t, notes, 2)
}

func TestWatcherRun(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{err: errors.New("offline")}
	w := NewWatcher(quietLogger(), sink)

	states := make(chan bridge.State, 4)
	snap := types.StatusSnapshot{Summary: "built", Status: "Done"}
	states <- bridge.State{Snapshot: snap}
	// Same snapshot with a different connection state is skipped.
	states <- bridge.State{Snapshot: snap, ConnGen: 2}
	states <- bridge.State{Snapshot: types.StatusSnapshot{Summary: "built", Status: "Done", Suggestion: "ship"}}
	close(states)

	w.Run(context.Background(), states)
	require.Equal(t, []Kind{KindSummary, KindStatus, KindSuggestion}, sink.kinds())
}

func TestPushoverPost(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		forms []url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		mu.Lock()
		forms = append(forms, r.PostForm)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"status":1}`))
	}))
	defer srv.Close()

	p, err := NewPushover(PushoverConfig{
		Token:    "tok",
		UserKey:  "usr",
		Priority: 1,
		Cooldown: time.Minute,
		Endpoint: srv.URL,
	})
	require.NoError(t, err)

	now := time.Unix(1000, 0)
	p.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, p.Post(ctx, Notification{Kind: KindStatus, Title: "Status: Done", Body: "built", Session: "alpha"}))
	require.NoError(t, p.Post(ctx, Notification{Kind: KindStatus, Title: "Status: Ready", Body: "again"}))
	require.NoError(t, p.Post(ctx, Notification{Kind: KindSummary, Body: "summary"}))

	now = now.Add(time.Minute)
	require.NoError(t, p.Post(ctx, Notification{Kind: KindStatus, Body: "later"}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, forms, 3)
	require.Equal(t, "tok", forms[0].Get("token"))
	require.Equal(t, "usr", forms[0].Get("user"))
	require.Equal(t, "[alpha] Status: Done", forms[0].Get("title"))
	require.Equal(t, "built", forms[0].Get("message"))
	require.Equal(t, "1", forms[0].Get("priority"))
	require.Equal(t, "delight-watch", forms[1].Get("title"))
	require.Equal(t, "later", forms[2].Get("message"))
}

func TestPushoverErrors(t *testing.T) {
	t.Parallel()

	_, err := NewPushover(PushoverConfig{UserKey: "u"})
	require.Error(t, err)
	_, err = NewPushover(PushoverConfig{Token: "t"})
	require.Error(t, err)
	_, err = NewPushover(PushoverConfig{Token: "t", UserKey: "u", Cooldown: -time.Second})
	require.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid token", http.StatusBadRequest)
	}))
	defer srv.Close()

	p, err := NewPushover(PushoverConfig{Token: "t", UserKey: "u", Endpoint: srv.URL})
	require.NoError(t, err)

	require.Error(t, p.Post(context.Background(), Notification{Kind: KindSummary}))

	err = p.Post(context.Background(), Notification{Kind: KindSummary, Body: "x"})
	require.ErrorContains(t, err, "invalid token")
	require.Equal(t, err, p.LastError())
}
