// Package sse implements the push channel over Server-Sent Events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	gosse "github.com/tmaxmax/go-sse"

	"github.com/colonyops/vitals/internal/core/connection"
)

const maxEventSize = 1024 * 1024

// Dialer opens an event stream per session: GET <URL>?session=<id>.
type Dialer struct {
	URL     string
	Headers map[string]string
	Client  *http.Client
}

var _ connection.Dialer = (*Dialer)(nil)

func (d *Dialer) Dial(ctx context.Context, sessionID string) (connection.Channel, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parse stream url: %w", err)
	}
	q := u.Query()
	q.Set("session", sessionID)
	u.RawQuery = q.Encode()

	// The stream outlives Dial, so it gets its own context, cancelled by
	// Close or by the caller's context through the watcher below.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	stop := context.AfterFunc(ctx, cancel)

	resp, err := client.Do(req)
	if err != nil {
		stop()
		cancel()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		stop()
		cancel()
		_ = resp.Body.Close()
		return nil, fmt.Errorf("open stream: unexpected status %s", resp.Status)
	}

	ch := &channel{
		body:   resp.Body,
		frames: make(chan result),
		done:   make(chan struct{}),
		cancel: func() {
			stop()
			cancel()
		},
	}
	go ch.pump()
	return ch, nil
}

type result struct {
	frame []byte
	err   error
}

type channel struct {
	body   io.ReadCloser
	cancel func()
	frames chan result
	done   chan struct{}

	closeOnce sync.Once
}

// pump parses the stream and hands frames to Receive. Events without data
// are skipped.
func (c *channel) pump() {
	defer close(c.frames)

	for ev, err := range gosse.Read(c.body, &gosse.ReadConfig{MaxEventSize: maxEventSize}) {
		r := result{err: err}
		if err == nil {
			if ev.Data == "" {
				continue
			}
			r.frame = frame(ev.Type, ev.Data)
		}

		select {
		case c.frames <- r:
		case <-c.done:
			return
		}
	}
}

// Receive returns the next event's data as one frame.
func (c *channel) Receive(ctx context.Context) ([]byte, error) {
	select {
	case r, ok := <-c.frames:
		if !ok || c.isClosed() {
			return nil, connection.ErrChannelClosed
		}
		if r.err != nil {
			return nil, fmt.Errorf("read stream: %w", r.err)
		}
		return r.frame, nil
	case <-c.done:
		return nil, connection.ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *channel) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		err = c.body.Close()
	})
	return err
}

// frame turns event data into an envelope. Named events fill a missing
// "type" from the event name; when the data is not an envelope (no
// "payload" key, or not an object) it becomes the payload.
func frame(name, data string) []byte {
	if name == "" || name == "message" {
		return []byte(data)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		if !json.Valid([]byte(data)) {
			return []byte(data)
		}
		return wrap(name, json.RawMessage(data))
	}
	if t, ok := fields["type"]; ok && string(t) != `""` {
		return []byte(data)
	}
	if _, ok := fields["payload"]; !ok {
		return wrap(name, json.RawMessage(data))
	}

	typ, _ := json.Marshal(name)
	fields["type"] = typ
	out, err := json.Marshal(fields)
	if err != nil {
		return []byte(data)
	}
	return out
}

func wrap(name string, payload json.RawMessage) []byte {
	out, err := json.Marshal(connection.Envelope{Type: name, Payload: payload})
	if err != nil {
		return payload
	}
	return out
}
