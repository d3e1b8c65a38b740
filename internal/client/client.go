// Package client connects to the daemon socket and streams rendered
// units to a writer, reconnecting with backoff when the daemon is away.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/jmylchreest/statline/internal/render"
	"github.com/jmylchreest/statline/internal/server"
)

// ErrRetriesExhausted is returned when the retry budget runs out
// without ever reaching the daemon again.
var ErrRetriesExhausted = errors.New("connection retries exhausted")

const maxRetryInterval = 30 * time.Second

// Options configures a Client.
type Options struct {
	SocketPath string
	Format     render.Format
	Palette    render.Palette

	// RetryInterval is the first reconnect delay; it doubles per
	// consecutive failure up to 30s. Defaults to 1s.
	RetryInterval time.Duration

	// MaxRetries bounds consecutive failed connection attempts.
	// Zero means retry forever.
	MaxRetries int

	Logger *slog.Logger
}

// Client subscribes to the daemon and copies the unit stream to a
// writer, one line per unit.
type Client struct {
	opts Options
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{opts: opts}
}

// Run streams rendered units to w until ctx is canceled or the retry
// budget is exhausted. While disconnected it emits a placeholder unit
// so the bar shows the outage instead of frozen content.
func (c *Client) Run(ctx context.Context, w io.Writer) error {
	interval := c.opts.RetryInterval
	failures := 0

	for {
		subscribed, err := c.stream(ctx, w)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			// The outage starts fresh after a working session.
			failures = 0
			interval = c.opts.RetryInterval
		}

		var permErr *protocolError
		if errors.As(err, &permErr) {
			// The daemon refused the handshake; retrying cannot help.
			return err
		}

		if failures == 0 {
			fmt.Fprintln(w, render.Disconnected(c.opts.Format, c.opts.Palette))
		}
		failures++
		if c.opts.MaxRetries > 0 && failures > c.opts.MaxRetries {
			return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, failures-1, err)
		}

		c.opts.Logger.Debug("daemon unreachable, retrying",
			"error", err,
			"attempt", failures,
			"retry_in", interval)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}

		if interval *= 2; interval > maxRetryInterval {
			interval = maxRetryInterval
		}
	}
}

// protocolError marks a handshake rejection, which is permanent.
type protocolError struct {
	reason string
}

func (e *protocolError) Error() string {
	return fmt.Sprintf("daemon rejected handshake: %s", e.reason)
}

// stream runs one connected session: dial, subscribe, copy units until
// the connection drops. subscribed reports whether the handshake was
// accepted before the session ended.
func (c *Client) stream(ctx context.Context, w io.Writer) (subscribed bool, _ error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.opts.SocketPath)
	if err != nil {
		return false, fmt.Errorf("failed to dial %s: %w", c.opts.SocketPath, err)
	}
	defer conn.Close()

	// Unblock reads when the caller gives up.
	streamDone := make(chan struct{})
	defer close(streamDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-streamDone:
		}
	}()

	hs := server.Handshake{Action: server.ActionSubscribe, Format: c.opts.Format.String()}
	payload, err := json.Marshal(hs)
	if err != nil {
		return false, err
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return false, fmt.Errorf("failed to send handshake: %w", err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return false, fmt.Errorf("no handshake reply: %w", err)
	}
	var reply server.Reply
	if err := json.Unmarshal(line, &reply); err != nil {
		return false, fmt.Errorf("malformed handshake reply: %w", err)
	}
	if !reply.OK {
		return false, &protocolError{reason: reply.Error}
	}

	c.opts.Logger.Info("subscribed", "socket", c.opts.SocketPath, "format", c.opts.Format)

	for {
		unit, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, fmt.Errorf("stream ended: %w", err)
		}
		if _, err := io.WriteString(w, unit); err != nil {
			return true, fmt.Errorf("failed to write unit: %w", err)
		}
	}
}

// Update asks the daemon to re-poll the named modules; an empty list
// means all of them. It returns the names the daemon did not recognize.
func Update(ctx context.Context, socketPath string, modules []string) ([]string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", socketPath, err)
	}
	defer conn.Close()

	hs := server.Handshake{Action: server.ActionUpdate, Modules: modules}
	payload, err := json.Marshal(hs)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("no reply: %w", err)
	}
	var reply server.Reply
	if err := json.Unmarshal(line, &reply); err != nil {
		return nil, fmt.Errorf("malformed reply: %w", err)
	}
	if !reply.OK {
		return nil, fmt.Errorf("daemon refused update: %s", reply.Error)
	}
	return reply.Unknown, nil
}
