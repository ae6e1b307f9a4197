package connection

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrChannelClosed is returned by Channel.Receive once the remote end or
// the local side has closed the channel.
var ErrChannelClosed = errors.New("channel closed")

// Channel is one established push channel. Receive blocks until the next
// frame arrives, the channel fails or ctx is cancelled.
type Channel interface {
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer establishes push channels for a session.
type Dialer interface {
	Dial(ctx context.Context, sessionID string) (Channel, error)
}

// DialerFunc adapts a function to a Dialer.
type DialerFunc func(ctx context.Context, sessionID string) (Channel, error)

func (f DialerFunc) Dial(ctx context.Context, sessionID string) (Channel, error) {
	return f(ctx, sessionID)
}

// Envelope is the wire shape of every inbound frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// BackoffPolicy builds a fresh backoff sequence. A new sequence is started
// for every connect and after every successful dial.
type BackoffPolicy func() retry.Backoff

// ExponentialBackoff returns a policy doubling from base, capped at maxDelay,
// with up to jitter added to each delay. maxAttempts counts dials including
// the first one, so it allows maxAttempts-1 retries; zero retries until
// Disconnect.
func ExponentialBackoff(base, maxDelay time.Duration, maxAttempts uint64, jitter time.Duration) BackoffPolicy {
	return func() retry.Backoff {
		b := retry.NewExponential(base)
		if jitter > 0 {
			b = retry.WithJitter(jitter, b)
		}
		if maxDelay > 0 {
			b = retry.WithCappedDuration(maxDelay, b)
		}
		if maxAttempts > 0 {
			b = retry.WithMaxRetries(maxAttempts-1, b)
		}
		return b
	}
}
