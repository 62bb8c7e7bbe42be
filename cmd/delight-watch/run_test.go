package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bhandras/delight/watch/internal/bridge"
	"github.com/bhandras/delight/watch/pkg/types"
	"github.com/stretchr/testify/require"
	"pkt.systems/pslog"
)

func TestLogCuesSeesShortReady(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	hook := logCues(pslog.NewWithOptions(&buf, pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.InfoLevel}))

	working := bridge.State{ActiveSession: "alpha", Snapshot: types.StatusSnapshot{Status: "Working"}}
	ready := bridge.State{ActiveSession: "alpha", Snapshot: types.StatusSnapshot{Status: types.StatusReady}}

	hook(working, ready)
	hook(ready, working)

	require.Equal(t, 1, strings.Count(buf.String(), "finished"), buf.String())
}
