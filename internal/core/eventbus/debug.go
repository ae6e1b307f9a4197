package eventbus

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
)

// RegisterDebugLogger registers router hooks that report event activity.
// Handler errors and panics are always logged at error level. Dispatches are
// logged at debug level when the event name matches one of patterns
// (doublestar globs); no patterns means every event.
func RegisterDebugLogger(r *Router, logger zerolog.Logger, patterns ...string) {
	r.OnDispatch(func(event Event, _ any, handlers int) {
		if !matchesAny(patterns, string(event)) {
			return
		}
		if handlers == 0 {
			logger.Debug().Str("event", string(event)).Msg("event dispatched without subscribers")
			return
		}
		logger.Debug().Str("event", string(event)).Int("handlers", handlers).Msg("event dispatched")
	})

	r.OnError(func(event Event, _ any, err error) {
		logger.Error().Err(err).Str("event", string(event)).Msg("subscriber failed")
	})

	r.OnPanic(func(event Event, _ any, recovered any) {
		logger.Error().
			Str("event", string(event)).
			Str("panic", fmt.Sprint(recovered)).
			Msg("subscriber panicked")
	})
}

func matchesAny(patterns []string, name string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
