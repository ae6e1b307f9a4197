// Package validate provides shared validation functions.
package validate

import (
	"fmt"
	"strings"

	"github.com/hay-kot/criterio"
)

// MaxSessionIDLen bounds session ids so they stay usable in URLs and
// channel names.
const MaxSessionIDLen = 128

// SessionID validates a session id. Ids end up in query strings and pub/sub
// channel names, so only letters, digits, '.', '_' and '-' are allowed.
func SessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("session id is required")
	}
	if len(id) > MaxSessionIDLen {
		return fmt.Errorf("session id is longer than %d characters", MaxSessionIDLen)
	}
	for _, r := range id {
		if !isSessionRune(r) {
			return fmt.Errorf("session id contains invalid character %q", r)
		}
	}
	return nil
}

func isSessionRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}

// SessionIDField returns a criterio validator for session ids.
func SessionIDField(field, id string) error {
	return criterio.Run(field, id, SessionID)
}
