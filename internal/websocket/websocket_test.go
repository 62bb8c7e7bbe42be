package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		host   string
		port   int
		suffix string
		want   string
	}{
		{name: "ip", host: "192.168.1.5", port: 8080, want: "ws://192.168.1.5:8080"},
		{name: "ip default port", host: "10.0.0.2", want: "ws://10.0.0.2:8080"},
		{name: "short name", host: "vnc", want: "wss://vnc.taildd7ed4.ts.net"},
		{name: "already suffixed", host: "vnc.taildd7ed4.ts.net", want: "wss://vnc.taildd7ed4.ts.net"},
		{name: "other tailnet", host: "box.tail0000.ts.net", want: "wss://box.tail0000.ts.net"},
		{name: "custom suffix", host: "macbook-pro", suffix: ".example.net", want: "wss://macbook-pro.example.net"},
		{name: "custom suffix present", host: "mini.example.net", suffix: ".example.net", want: "wss://mini.example.net"},
		{name: "whitespace", host: "  vnc ", want: "wss://vnc.taildd7ed4.ts.net"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ResolveURL(tt.host, tt.port, tt.suffix))
		})
	}
}

func echoServer(t *testing.T, onConn func(*websocket.Conn)) string {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		onConn(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnRoundTrip(t *testing.T) {
	t.Parallel()

	url := echoServer(t, func(conn *websocket.Conn) {
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			_ = conn.WriteMessage(websocket.BinaryMessage, []byte("ignored"))
			_ = conn.WriteMessage(kind, data)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, url)
	require.NoError(t, err)

	frames := make(chan string, 4)
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- conn.ReadLoop(func(b []byte) { frames <- string(b) })
	}()

	require.NoError(t, conn.WriteText([]byte(`{"type":"list"}`)))
	select {
	case got := <-frames:
		require.Equal(t, `{"type":"list"}`, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no echo")
	}

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	require.ErrorIs(t, conn.WriteText([]byte("x")), ErrClosed)

	select {
	case err := <-loopDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("read loop did not exit")
	}
}

func TestReadLoopReportsAbnormalClose(t *testing.T) {
	t.Parallel()

	url := echoServer(t, func(conn *websocket.Conn) {
		// Drop the TCP connection without a close frame.
		_ = conn.UnderlyingConn().Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, url)
	require.NoError(t, err)
	defer conn.Close()

	require.Error(t, conn.ReadLoop(func([]byte) {}))
}

func TestDialFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.Error(t, err)
}
