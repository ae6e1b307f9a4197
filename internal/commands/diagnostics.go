package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/colonyops/vitals/internal/core/logging"
	"github.com/colonyops/vitals/internal/core/notify"
	"github.com/colonyops/vitals/internal/core/toast"
	"github.com/colonyops/vitals/internal/vitals"
	"github.com/colonyops/vitals/pkg/iojson"
	"github.com/colonyops/vitals/pkg/profiler"
)

type snapshot struct {
	SessionID     string                `json:"session_id"`
	State         string                `json:"state"`
	Unread        int                   `json:"unread"`
	Notifications []notify.Notification `json:"notifications"`
	Toasts        []toast.Toast         `json:"toasts"`
}

// snapshotSource is the read side of a session.
type snapshotSource interface {
	Notifications() []notify.Notification
	Toasts() []toast.Toast
	UnreadCount() int
	State() fmt.Stringer
}

// sessionReader adapts *vitals.Session to snapshotSource.
type sessionReader struct{ *vitals.Session }

func (r sessionReader) State() fmt.Stringer { return r.Session.State() }

func snapshotHandler(sessionID string, src snapshotSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = iojson.WriteWith(w, w, snapshot{
			SessionID:     sessionID,
			State:         src.State().String(),
			Unread:        src.UnreadCount(),
			Notifications: src.Notifications(),
			Toasts:        src.Toasts(),
		})
	})
}

// startProfiler serves pprof and the session snapshot when port > 0. The
// returned stop func is never nil.
func startProfiler(ctx context.Context, port int, sessionID string, s *vitals.Session) (func(), error) {
	if port <= 0 {
		return func() {}, nil
	}

	srv := profiler.New(port, logging.Component("profiler"))
	srv.Handle("/debug/vitals", snapshotHandler(sessionID, sessionReader{s}))
	if err := srv.Start(ctx); err != nil {
		return func() {}, fmt.Errorf("failed to start profiler: %w", err)
	}
	log.Info().
		Str("url", fmt.Sprintf("http://%s/debug/pprof/", srv.Addr())).
		Msg("profiler endpoint available")

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown profiler server")
		}
	}, nil
}
