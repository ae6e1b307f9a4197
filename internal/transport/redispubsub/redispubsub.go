// Package redispubsub carries push frames over Redis pub/sub. Each session
// listens on its own channel, <prefix>:<sessionID>.
package redispubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/colonyops/vitals/internal/core/connection"
)

const DefaultPrefix = "vitals:notifications"

var ErrInvalidURL = errors.New("invalid redis url")

// Open parses url, connects and pings the server.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrInvalidURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// ChannelName returns the pub/sub channel for a session.
func ChannelName(prefix, sessionID string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + ":" + sessionID
}

// subscription is the part of *redis.PubSub the channel reads from.
type subscription interface {
	Receive(ctx context.Context) (any, error)
	ReceiveMessage(ctx context.Context) (*redis.Message, error)
	Close() error
}

// Dialer subscribes to the session channel on every Dial.
type Dialer struct {
	prefix    string
	subscribe func(ctx context.Context, channel string) subscription
}

var _ connection.Dialer = (*Dialer)(nil)

// NewDialer returns a dialer subscribing through client.
func NewDialer(client redis.UniversalClient, prefix string) *Dialer {
	return &Dialer{
		prefix: prefix,
		subscribe: func(ctx context.Context, channel string) subscription {
			return client.Subscribe(ctx, channel)
		},
	}
}

func (d *Dialer) Dial(ctx context.Context, sessionID string) (connection.Channel, error) {
	name := ChannelName(d.prefix, sessionID)
	sub := d.subscribe(ctx, name)

	// Wait for the subscription confirmation so a dial only succeeds once
	// messages can actually be delivered.
	msg, err := sub.Receive(ctx)
	if err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", name, err)
	}
	if _, ok := msg.(*redis.Subscription); !ok {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: unexpected reply %T", name, msg)
	}

	return &channel{sub: sub}, nil
}

type channel struct {
	sub subscription
}

func (c *channel) Receive(ctx context.Context) ([]byte, error) {
	msg, err := c.sub.ReceiveMessage(ctx)
	if err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return nil, connection.ErrChannelClosed
		}
		return nil, fmt.Errorf("receive: %w", err)
	}
	return []byte(msg.Payload), nil
}

func (c *channel) Close() error {
	return c.sub.Close()
}

// publisher is the part of a redis client Publisher needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Publisher sends envelopes to session channels. The send command uses it
// to push notifications to running clients.
type Publisher struct {
	client publisher
	prefix string
}

func NewPublisher(client redis.UniversalClient, prefix string) *Publisher {
	return &Publisher{client: client, prefix: prefix}
}

// Publish encodes env and publishes it to the session channel. It returns
// the number of subscribers that received it.
func (p *Publisher) Publish(ctx context.Context, sessionID string, env connection.Envelope) (int64, error) {
	if env.Type == "" {
		return 0, errors.New("envelope type is required")
	}

	data, err := json.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("encode envelope: %w", err)
	}

	n, err := p.client.Publish(ctx, ChannelName(p.prefix, sessionID), data).Result()
	if err != nil {
		return 0, fmt.Errorf("publish: %w", err)
	}
	return n, nil
}
