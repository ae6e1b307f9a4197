package redispubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/vitals/internal/core/connection"
)

type fakeSub struct {
	confirm  any
	confirmE error
	messages []*redis.Message
	closed   bool
}

func (f *fakeSub) Receive(context.Context) (any, error) {
	return f.confirm, f.confirmE
}

func (f *fakeSub) ReceiveMessage(context.Context) (*redis.Message, error) {
	if f.closed {
		return nil, redis.ErrClosed
	}
	if len(f.messages) == 0 {
		return nil, errors.New("i/o timeout")
	}
	m := f.messages[0]
	f.messages = f.messages[1:]
	return m, nil
}

func (f *fakeSub) Close() error {
	f.closed = true
	return nil
}

func dialerWith(sub *fakeSub, channels *[]string) *Dialer {
	return &Dialer{
		prefix: "",
		subscribe: func(_ context.Context, channel string) subscription {
			*channels = append(*channels, channel)
			return sub
		},
	}
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "vitals:notifications:s1", ChannelName("", "s1"))
	assert.Equal(t, "app:s1", ChannelName("app", "s1"))
}

func TestDialer_DialAndReceive(t *testing.T) {
	sub := &fakeSub{
		confirm: &redis.Subscription{Kind: "subscribe", Channel: "vitals:notifications:s1", Count: 1},
		messages: []*redis.Message{
			{Channel: "vitals:notifications:s1", Payload: `{"type":"new_insight","payload":{}}`},
		},
	}
	var channels []string

	ch, err := dialerWith(sub, &channels).Dial(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"vitals:notifications:s1"}, channels)

	frame, err := ch.Receive(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"new_insight","payload":{}}`, string(frame))

	_, err = ch.Receive(context.Background())
	require.Error(t, err)

	require.NoError(t, ch.Close())
	_, err = ch.Receive(context.Background())
	assert.ErrorIs(t, err, connection.ErrChannelClosed)
}

func TestDialer_DialSubscribeError(t *testing.T) {
	sub := &fakeSub{confirmE: errors.New("connection refused")}
	var channels []string

	_, err := dialerWith(sub, &channels).Dial(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, sub.closed)
}

func TestDialer_DialUnexpectedReply(t *testing.T) {
	sub := &fakeSub{confirm: &redis.Message{}}
	var channels []string

	_, err := dialerWith(sub, &channels).Dial(context.Background(), "s1")
	require.Error(t, err)
	assert.True(t, sub.closed)
}

type fakePublisher struct {
	channel string
	message any
	result  int64
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.channel, f.message = channel, message
	return redis.NewIntResult(f.result, f.err)
}

func TestPublisher_Publish(t *testing.T) {
	fp := &fakePublisher{result: 2}
	p := &Publisher{client: fp, prefix: "app"}

	n, err := p.Publish(context.Background(), "s1", connection.Envelope{
		Type:    "new_reminder",
		Payload: []byte(`{"title":"Stretch"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, "app:s1", fp.channel)
	assert.JSONEq(t, `{"type":"new_reminder","payload":{"title":"Stretch"}}`, string(fp.message.([]byte)))
}

func TestPublisher_PublishErrors(t *testing.T) {
	p := &Publisher{client: &fakePublisher{err: errors.New("down")}}

	_, err := p.Publish(context.Background(), "s1", connection.Envelope{})
	require.Error(t, err)

	_, err = p.Publish(context.Background(), "s1", connection.Envelope{Type: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
}

func TestOpen_InvalidURL(t *testing.T) {
	_, err := Open(context.Background(), "http://nope")
	require.ErrorIs(t, err, ErrInvalidURL)
}
