package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/riskgate/pkg/logger"
)

// BreakerReasonParseError is the reason reported when the breaker file exists
// but cannot be read or parsed. An unreadable kill-switch is assumed dangerous.
const BreakerReasonParseError = "circuit_breaker_parse_error"

// BreakerState is the shared kill-switch document, written by the operator
// CLI and read through (never cached) on every check.
type BreakerState struct {
	Active   bool   `json:"active"`
	Reason   string `json:"reason,omitempty"`
	UntilISO string `json:"until_iso,omitempty"`
}

// CircuitBreakerActive reports whether the global kill-switch is effectively
// active, together with the operator-supplied reason. Missing file means
// inactive; unreadable or malformed content fails closed (active).
func (m *Manager) CircuitBreakerActive(correlationID string) (bool, string) {
	log := logger.WithCorrelation(m.log, correlationID)
	path := m.cfg.CircuitBreakerFile
	log.Debug("cb_check", zap.String("cb_file", path))
	if path == "" {
		return false, ""
	}

	st, err := ReadBreakerState(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("cb_file_not_found")
			return false, ""
		}
		log.Error("circuit_breaker_parse_error", zap.String("path", path), zap.Error(err))
		return true, BreakerReasonParseError
	}

	if !st.Active {
		return false, ""
	}
	if st.UntilISO != "" {
		until, err := parseUntil(st.UntilISO)
		if err != nil {
			// Unparsable expiry: breaker stays active indefinitely rather
			// than erroring out of a kill-switch check.
			return true, st.Reason
		}
		if time.Now().UTC().After(until) {
			return false, ""
		}
	}
	return true, st.Reason
}

// ReadBreakerState loads the breaker document from disk.
func ReadBreakerState(path string) (BreakerState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BreakerState{}, err
	}
	var st BreakerState
	if err := json.Unmarshal(data, &st); err != nil {
		return BreakerState{}, fmt.Errorf("parse breaker state: %w", err)
	}
	return st, nil
}

// WriteBreakerState writes the breaker document, creating parent directories
// as needed. Used by the operator CLI, never by the gate itself.
func WriteBreakerState(path string, st BreakerState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// parseUntil parses an ISO-8601 timestamp, accepting a trailing Z or numeric
// offset and treating a timezone-naive value as UTC.
func parseUntil(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	// Naive timestamp, with or without fractional seconds.
	t, err := time.Parse("2006-01-02T15:04:05.999999999", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ParseUntilISO validates and normalizes an operator-supplied expiry to
// RFC 3339 UTC.
func ParseUntilISO(s string) (string, error) {
	t, err := parseUntil(s)
	if err != nil {
		return "", fmt.Errorf("invalid until timestamp %q: %w", s, err)
	}
	return t.UTC().Format(time.RFC3339), nil
}
