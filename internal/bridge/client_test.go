package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bhandras/delight/watch/internal/actor/actortest"
	"github.com/bhandras/delight/watch/internal/websocket"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 5 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeBridge is a websocket server speaking the bridge protocol.
type fakeBridge struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	conns    []*gws.Conn
	received chan map[string]string
	accepted atomic.Int32
}

func newFakeBridge(t *testing.T) *fakeBridge {
	t.Helper()

	b := &fakeBridge{t: t, received: make(chan map[string]string, 64)}
	upgrader := gws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		b.mu.Lock()
		b.conns = append(b.conns, conn)
		b.mu.Unlock()
		b.accepted.Add(1)

		for {
			var cmd map[string]string
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			b.received <- cmd
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBridge) hostPort() (string, int) {
	u, err := url.Parse(b.srv.URL)
	require.NoError(b.t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(b.t, err)
	return u.Hostname(), port
}

// send writes a frame to the newest connection.
func (b *fakeBridge) send(frame string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(b.t, b.conns)
	require.NoError(b.t, b.conns[len(b.conns)-1].WriteMessage(gws.TextMessage, []byte(frame)))
}

// drop kills every connection without a close handshake.
func (b *fakeBridge) drop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.conns {
		_ = c.UnderlyingConn().Close()
	}
}

func (b *fakeBridge) expect(typ string) map[string]string {
	b.t.Helper()
	select {
	case cmd := <-b.received:
		require.Equal(b.t, typ, cmd["type"], "got %v", cmd)
		return cmd
	case <-time.After(waitFor):
		b.t.Fatalf("bridge never received %q", typ)
		return nil
	}
}

func (b *fakeBridge) expectNothing(d time.Duration) {
	b.t.Helper()
	select {
	case cmd := <-b.received:
		b.t.Fatalf("unexpected command %v", cmd)
	case <-time.After(d):
	}
}

func startClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	c.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = c.Disconnect(ctx)
	})
	return c
}

func TestClientSessionFlow(t *testing.T) {
	t.Parallel()

	b := newFakeBridge(t)
	host, port := b.hostPort()
	c := startClient(t, Config{Host: host, Port: port})

	c.Connect()
	b.expect("list")
	require.Eventually(t, func() bool { return c.State().Conn.String() == "connected" }, waitFor, tick)

	b.send(`{"type":"menu","sessions":["alpha","beta"]}`)
	require.Eventually(t, func() bool { return len(c.State().Sessions) == 2 }, waitFor, tick)

	c.JoinSession(" alpha")
	require.Equal(t, " alpha", b.expect("join")["name"])
	c.JoinSession("alpha")
	require.Equal(t, "alpha", b.expect("join")["name"])

	b.send(`{"type":"session_joined","name":"alpha"}`)
	b.send(`{"type":"history","lines":["first","---SEP---","second"]}`)
	b.send(`not json`)
	b.send(`{"type":"output","cleanData":{"summary":"?Ship it?\nOPT:Yes\nOPT:No","status":"QUESTION"},"prompt":{"options":[{"num":1,"label":"Yes"},{"num":2,"label":"No"}]}}`)

	require.Eventually(t, func() bool { return c.State().Snapshot.IsQuestion() }, waitFor, tick)
	st := c.State()
	require.Equal(t, "alpha", st.ActiveSession)
	require.Len(t, st.BridgeHistory, 3)
	require.Equal(t, "Ship it?", st.Snapshot.QuestionText())
	require.Len(t, st.Prompt.Options, 2)

	c.SendKey(0)
	c.SendKey(-3)
	c.SendKey(2)
	require.Equal(t, "2", b.expect("key")["content"])

	// Dictation is free text and goes out verbatim.
	c.SendDictation("  add a test\n")
	require.Equal(t, "  add a test\n", b.expect("dictation")["content"])

	c.Pause()
	b.expect("pause")
	c.Resume()
	b.expect("resume")
	c.Accept()
	b.expect("accept")
	c.CreateSession()
	b.expect("create")
	c.RequestList()
	b.expect("list")

	c.LeaveSession()
	b.expect("leave")
	require.Empty(t, c.State().ActiveSession)
}

func TestClientRejoinsAfterConnectionLoss(t *testing.T) {
	t.Parallel()

	b := newFakeBridge(t)
	host, port := b.hostPort()
	c := startClient(t, Config{Host: host, Port: port, ReconnectDelay: 20 * time.Millisecond})

	c.Connect()
	b.expect("list")
	b.send(`{"type":"session_joined","name":"alpha"}`)
	require.Eventually(t, func() bool { return c.State().ActiveSession == "alpha" }, waitFor, tick)

	b.drop()

	require.Equal(t, "alpha", b.expect("join")["name"])
	require.EqualValues(t, 2, b.accepted.Load())
	require.Eventually(t, func() bool { return c.State().Conn.String() == "connected" }, waitFor, tick)
	require.Equal(t, "alpha", c.State().ActiveSession)
}

func TestClientMenuAfterReconnectKeepsSession(t *testing.T) {
	t.Parallel()

	b := newFakeBridge(t)
	host, port := b.hostPort()
	c := startClient(t, Config{Host: host, Port: port})

	c.Connect()
	b.expect("list")
	b.send(`{"type":"session_joined","name":"alpha"}`)
	b.send(`{"type":"menu","sessions":["beta"]}`)
	require.Eventually(t, func() bool { return len(c.State().Sessions) == 1 }, waitFor, tick)
	require.Equal(t, "alpha", c.State().ActiveSession)
}

func TestClientDisconnectStopsEverything(t *testing.T) {
	t.Parallel()

	b := newFakeBridge(t)
	host, port := b.hostPort()
	c, err := New(Config{Host: host, Port: port, ReconnectDelay: 10 * time.Millisecond})
	require.NoError(t, err)

	require.ErrorIs(t, c.Disconnect(context.Background()), ErrNotStarted)

	c.Start()
	updates, cancel := c.Subscribe()
	defer cancel()

	c.Connect()
	b.expect("list")

	ctx, cancelCtx := context.WithTimeout(context.Background(), waitFor)
	defer cancelCtx()
	require.NoError(t, c.Disconnect(ctx))
	require.NoError(t, c.Disconnect(ctx))

	st := c.State()
	require.True(t, st.Stopped)
	require.Equal(t, "disconnected", st.Conn.String())

	// The subscription drains and closes once the loop is gone.
	for range updates {
	}

	c.Connect()
	c.RequestList()
	b.expectNothing(100 * time.Millisecond)
	require.EqualValues(t, 1, b.accepted.Load())
}

func TestNewRequiresHost(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Host: "  "})
	require.ErrorIs(t, err, ErrEmptyHost)
}

// fakeConn is an in-memory Conn.
type fakeConn struct {
	url    string
	frames chan []byte
	writes chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn(url string) *fakeConn {
	return &fakeConn{
		url:    url,
		frames: make(chan []byte, 16),
		writes: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ReadLoop(onFrame func([]byte)) error {
	for {
		select {
		case <-f.closed:
			return nil
		case frame := <-f.frames:
			onFrame(frame)
		}
	}
}

func (f *fakeConn) WriteText(data []byte) error {
	select {
	case <-f.closed:
		return websocket.ErrClosed
	case f.writes <- data:
		return nil
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// fakeDialer hands out fakeConns, or fails while failing is set.
type fakeDialer struct {
	mu      sync.Mutex
	conns   []*fakeConn
	urls    []string
	failing bool
}

func (d *fakeDialer) dial(_ context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.failing {
		return nil, errors.New("connection refused")
	}
	conn := newFakeConn(url)
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func TestClientReconnectAfterFixedDelay(t *testing.T) {
	t.Parallel()

	clk := actortest.NewFakeClock(time.Unix(0, 0))
	d := &fakeDialer{failing: true}
	c := startClient(t, Config{Host: "vnc", Clock: clk, Dial: d.dial})

	c.Connect()
	require.Eventually(t, func() bool { return clk.Pending() == 1 }, waitFor, tick)
	require.Equal(t, 1, d.dials())
	require.Equal(t, "connection refused", c.State().LastError)

	clk.Advance(2999 * time.Millisecond)
	require.Equal(t, 1, d.dials())

	clk.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return d.dials() == 2 }, waitFor, tick)
	require.Eventually(t, func() bool { return clk.Pending() == 1 }, waitFor, tick)

	d.mu.Lock()
	d.failing = false
	d.mu.Unlock()

	clk.Advance(3 * time.Second)
	require.Eventually(t, func() bool { return c.State().Conn.String() == "connected" }, waitFor, tick)
	require.Zero(t, clk.Pending())
	require.Equal(t, []string{
		"wss://vnc.taildd7ed4.ts.net",
		"wss://vnc.taildd7ed4.ts.net",
		"wss://vnc.taildd7ed4.ts.net",
	}, d.urls)

	// Connected with no session: the client lists.
	select {
	case frame := <-d.conn(0).writes:
		var cmd map[string]string
		require.NoError(t, json.Unmarshal(frame, &cmd))
		require.Equal(t, "list", cmd["type"])
	case <-time.After(waitFor):
		t.Fatal("no list sent")
	}
}

func TestClientNoReconnectAfterDisconnect(t *testing.T) {
	t.Parallel()

	clk := actortest.NewFakeClock(time.Unix(0, 0))
	d := &fakeDialer{failing: true}
	c, err := New(Config{Host: "vnc", Clock: clk, Dial: d.dial})
	require.NoError(t, err)
	c.Start()

	c.Connect()
	require.Eventually(t, func() bool { return clk.Pending() == 1 }, waitFor, tick)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, c.Disconnect(ctx))
	require.Zero(t, clk.Pending())

	clk.Advance(time.Minute)
	require.Equal(t, 1, d.dials())
}

func TestClientUpdateHostClosesBeforeRedial(t *testing.T) {
	t.Parallel()

	clk := actortest.NewFakeClock(time.Unix(0, 0))
	d := &fakeDialer{}
	c := startClient(t, Config{Host: "192.168.1.118", Port: 8080, Clock: clk, Dial: d.dial})

	c.Connect()
	require.Eventually(t, func() bool { return c.State().Conn.String() == "connected" }, waitFor, tick)
	first := d.conn(0)
	first.frames <- []byte(`{"type":"session_joined","name":"alpha"}`)
	require.Eventually(t, func() bool { return c.State().ActiveSession == "alpha" }, waitFor, tick)

	c.UpdateHost("192.168.1.118")
	c.UpdateHost("vnc")
	require.Eventually(t, func() bool { return d.dials() == 2 }, waitFor, tick)
	require.Eventually(t, first.isClosed, waitFor, tick)

	require.Eventually(t, func() bool { return c.State().Conn.String() == "connected" }, waitFor, tick)
	require.Equal(t, []string{"ws://192.168.1.118:8080", "wss://vnc.taildd7ed4.ts.net"}, d.urls)

	// The forced close never armed the reconnect timer.
	require.Zero(t, clk.Pending())

	// Auto-rejoin against the new host.
	select {
	case frame := <-d.conn(1).writes:
		var cmd map[string]string
		require.NoError(t, json.Unmarshal(frame, &cmd))
		require.Equal(t, map[string]string{"type": "join", "name": "alpha"}, cmd)
	case <-time.After(waitFor):
		t.Fatal("no rejoin sent")
	}
}

func TestClientKeepsFramesAndCloseUnderBurst(t *testing.T) {
	t.Parallel()

	b := newFakeBridge(t)
	host, port := b.hostPort()
	c := startClient(t, Config{Host: host, Port: port, ReconnectDelay: 20 * time.Millisecond, MailboxSize: 4})

	c.Connect()
	b.expect("list")
	require.Eventually(t, func() bool { return c.State().Conn.String() == "connected" }, waitFor, tick)

	for i := 0; i < 3000; i++ {
		b.send(`{"type":"output","cleanData":{"summary":"s` + strconv.Itoa(i) + `","status":"Working"}}`)
	}
	b.send(`{"type":"output","cleanData":{"summary":"final","status":"Ready"}}`)
	b.drop()

	// Every frame is applied in order, then the close schedules a reconnect.
	require.Eventually(t, func() bool { return c.State().Snapshot.Summary == "final" }, waitFor, tick)
	b.expect("list")
	require.EqualValues(t, 2, b.accepted.Load())
	require.Eventually(t, func() bool { return c.State().Conn.String() == "connected" }, waitFor, tick)
	require.Equal(t, "final", c.State().History[len(c.State().History)-1])
}

// stallingConn is a fakeConn whose Close blocks until release is closed.
type stallingConn struct {
	*fakeConn
	release chan struct{}
}

func (s *stallingConn) Close() error {
	<-s.release
	return s.fakeConn.Close()
}

func TestClientUpdateHostDoesNotWaitForStalledClose(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	d := &fakeDialer{}
	var stalled atomic.Bool
	dial := func(ctx context.Context, url string) (Conn, error) {
		conn, err := d.dial(ctx, url)
		if err != nil || !stalled.CompareAndSwap(false, true) {
			return conn, err
		}
		return &stallingConn{fakeConn: conn.(*fakeConn), release: release}, nil
	}
	c := startClient(t, Config{Host: "192.168.1.118", Dial: dial})

	c.Connect()
	require.Eventually(t, func() bool { return c.State().Conn.String() == "connected" }, waitFor, tick)

	c.UpdateHost("vnc")
	require.Eventually(t, func() bool { return d.dials() == 2 }, waitFor, tick)
	require.Eventually(t, func() bool { return c.State().Conn.String() == "connected" }, waitFor, tick)
	require.False(t, d.conn(0).isClosed())
}

func TestClientOnChangeSeesEveryTransition(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		statuses []string
	)
	d := &fakeDialer{}
	c := startClient(t, Config{
		Host: "vnc",
		Dial: d.dial,
		OnChange: func(prev, next State) {
			if prev.Snapshot.Status == next.Snapshot.Status {
				return
			}
			mu.Lock()
			statuses = append(statuses, next.Snapshot.Status)
			mu.Unlock()
		},
	})

	c.Connect()
	require.Eventually(t, func() bool { return c.State().Conn.String() == "connected" }, waitFor, tick)

	conn := d.conn(0)
	conn.frames <- []byte(`{"type":"output","cleanData":{"summary":"a","status":"Working"}}`)
	conn.frames <- []byte(`{"type":"output","cleanData":{"summary":"b","status":"Ready"}}`)
	conn.frames <- []byte(`{"type":"output","cleanData":{"summary":"c","status":"Working"}}`)

	require.Eventually(t, func() bool { return c.State().Snapshot.Summary == "c" }, waitFor, tick)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"Working", "Ready", "Working"}, statuses)
}
