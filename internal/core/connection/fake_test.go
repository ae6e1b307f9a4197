package connection

import (
	"context"
	"errors"
	"sync"
)

var errDial = errors.New("dial refused")

type fakeChannel struct {
	frames chan []byte
	fail   chan error
	done   chan struct{}
	once   sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		frames: make(chan []byte, 16),
		fail:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (c *fakeChannel) Receive(ctx context.Context) ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case err := <-c.fail:
		return nil, err
	case <-c.done:
		return nil, ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeChannel) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeChannel) send(frame string) { c.frames <- []byte(frame) }

func (c *fakeChannel) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// outcome is one scripted Dial result. A nil outcome channel blocks the
// dial until its context is cancelled.
type outcome struct {
	ch   *fakeChannel
	err  error
	gate chan struct{}
}

type fakeDialer struct {
	mu       sync.Mutex
	script   []outcome
	sessions []string
}

func (d *fakeDialer) push(o ...outcome) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.script = append(d.script, o...)
}

func (d *fakeDialer) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *fakeDialer) Dial(ctx context.Context, sessionID string) (Channel, error) {
	d.mu.Lock()
	d.sessions = append(d.sessions, sessionID)
	if len(d.script) == 0 {
		d.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	o := d.script[0]
	d.script = d.script[1:]
	d.mu.Unlock()

	if o.gate != nil {
		<-o.gate
	}
	if o.err != nil {
		return nil, o.err
	}
	return o.ch, nil
}
