package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/vitals/internal/core/connection"
)

// DefaultDialTimeout bounds the reachability check.
const DefaultDialTimeout = 5 * time.Second

// TransportCheck dials the push channel once for a throwaway session and closes
// it again. It does not wait for frames.
type TransportCheck struct {
	kind      string
	dialer    connection.Dialer
	sessionID string
	timeout   time.Duration
}

func NewTransportCheck(kind string, dialer connection.Dialer, sessionID string, timeout time.Duration) *TransportCheck {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	return &TransportCheck{kind: kind, dialer: dialer, sessionID: sessionID, timeout: timeout}
}

func (c *TransportCheck) Name() string {
	return "Transport"
}

func (c *TransportCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	ch, err := c.dialer.Dial(ctx, c.sessionID)
	if err != nil {
		result.Items = append(result.Items, CheckItem{Label: c.kind, Status: StatusFail, Detail: err.Error()})
		return result
	}
	elapsed := time.Since(start)

	if err := ch.Close(); err != nil {
		result.Items = append(result.Items, CheckItem{Label: c.kind, Status: StatusWarn, Detail: "connected but close failed: " + err.Error()})
		return result
	}

	result.Items = append(result.Items, CheckItem{
		Label:  c.kind,
		Status: StatusPass,
		Detail: fmt.Sprintf("reachable in %s", elapsed.Round(time.Millisecond)),
	})
	return result
}
