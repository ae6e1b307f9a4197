package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/colonyops/vitals/internal/core/config"
	"github.com/colonyops/vitals/internal/core/connection"
	"github.com/colonyops/vitals/internal/core/validate"
	"github.com/colonyops/vitals/internal/transport/redispubsub"
	"github.com/colonyops/vitals/internal/transport/sse"
)

// openDialer builds the push channel dialer selected by cfg. The returned
// cleanup releases any client the dialer holds and is never nil.
func openDialer(ctx context.Context, cfg *config.Config) (connection.Dialer, func(), error) {
	switch cfg.Transport.Kind {
	case config.TransportRedis:
		client, err := redispubsub.Open(ctx, cfg.Transport.Redis.URL)
		if err != nil {
			return nil, func() {}, fmt.Errorf("open redis: %w", err)
		}
		cleanup := func() {
			if err := client.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close redis client")
			}
		}
		return redispubsub.NewDialer(client, cfg.Transport.Redis.ChannelPrefix), cleanup, nil
	case config.TransportSSE, "":
		return &sse.Dialer{
			URL:     cfg.Transport.SSE.URL,
			Headers: cfg.Transport.SSE.Headers,
		}, func() {}, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown transport kind %q", cfg.Transport.Kind)
	}
}

func requireSession(id string) error {
	if id == "" {
		return fmt.Errorf("session id is required; pass --session or set VITALS_SESSION")
	}
	return validate.SessionIDField("session", id)
}
