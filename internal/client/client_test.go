package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/statline/internal/render"
	"github.com/jmylchreest/statline/internal/server"
)

// fakeDaemon accepts one connection at a time, answers the handshake
// and plays a scripted stream of units.
type fakeDaemon struct {
	t        *testing.T
	path     string
	listener net.Listener

	mu         sync.Mutex
	handshakes []server.Handshake
}

func startFakeDaemon(t *testing.T) *fakeDaemon {
	t.Helper()
	dir, err := os.MkdirTemp("", "statline")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "d.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	return &fakeDaemon{t: t, path: path, listener: ln}
}

// serveOnce accepts a single client, replies to its handshake and
// writes the given units, then closes the connection.
func (d *fakeDaemon) serveOnce(reply server.Reply, units ...string) {
	conn, err := d.listener.Accept()
	require.NoError(d.t, err)
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(d.t, err)
	var hs server.Handshake
	require.NoError(d.t, json.Unmarshal(line, &hs))
	d.mu.Lock()
	d.handshakes = append(d.handshakes, hs)
	d.mu.Unlock()

	payload, err := json.Marshal(reply)
	require.NoError(d.t, err)
	_, err = conn.Write(append(payload, '\n'))
	require.NoError(d.t, err)

	for _, u := range units {
		_, err = conn.Write([]byte(u + "\n"))
		require.NoError(d.t, err)
	}
}

// syncWriter collects written lines under a lock so the test can poll.
type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := strings.TrimSuffix(w.buf.String(), "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func testOptions(path string) Options {
	return Options{
		SocketPath:    path,
		Format:        render.FormatPlain,
		RetryInterval: 10 * time.Millisecond,
	}
}

func TestRunStreamsUnits(t *testing.T) {
	d := startFakeDaemon(t)
	go d.serveOnce(server.Reply{OK: true}, "10:30 am", "10:31 am")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var w syncWriter
	done := make(chan error, 1)
	c := New(testOptions(d.path))
	go func() { done <- c.Run(ctx, &w) }()

	require.Eventually(t, func() bool {
		lines := w.lines()
		return len(lines) >= 2 && lines[0] == "10:30 am" && lines[1] == "10:31 am"
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop")
	}
}

func TestRunReconnectsAfterDrop(t *testing.T) {
	d := startFakeDaemon(t)
	go func() {
		d.serveOnce(server.Reply{OK: true}, "first")
		d.serveOnce(server.Reply{OK: true}, "second")
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var w syncWriter
	c := New(testOptions(d.path))
	go c.Run(ctx, &w)

	require.Eventually(t, func() bool {
		lines := w.lines()
		return len(lines) >= 3 && lines[len(lines)-1] == "second"
	}, 2*time.Second, 5*time.Millisecond)

	// The gap between sessions surfaced as a disconnected placeholder.
	lines := w.lines()
	assert.Equal(t, "first", lines[0])
	assert.Contains(t, lines[1], "daemon disconnected")
}

func TestRunExhaustsRetries(t *testing.T) {
	dir, err := os.MkdirTemp("", "statline")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	opts := testOptions(filepath.Join(dir, "nobody.sock"))
	opts.MaxRetries = 3
	c := New(opts)

	var w syncWriter
	err = c.Run(context.Background(), &w)
	require.ErrorIs(t, err, ErrRetriesExhausted)

	// One placeholder for the whole outage, not one per attempt.
	lines := w.lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "daemon disconnected")
}

func TestRunStopsOnHandshakeRejection(t *testing.T) {
	d := startFakeDaemon(t)
	go d.serveOnce(server.Reply{OK: false, Error: "unknown format"})

	var w syncWriter
	c := New(testOptions(d.path))
	err := c.Run(context.Background(), &w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
}

func TestUpdateReportsUnknownModules(t *testing.T) {
	d := startFakeDaemon(t)
	go d.serveOnce(server.Reply{OK: true, Unknown: []string{"bogus"}})

	unknown, err := Update(context.Background(), d.path, []string{"volume", "bogus"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bogus"}, unknown)

	d.mu.Lock()
	defer d.mu.Unlock()
	require.Len(t, d.handshakes, 1)
	assert.Equal(t, server.ActionUpdate, d.handshakes[0].Action)
	assert.Equal(t, []string{"volume", "bogus"}, d.handshakes[0].Modules)
}
