package risk

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBreakerFile(t *testing.T, m *Manager, content string) {
	t.Helper()
	path := m.Config().CircuitBreakerFile
	require.NoError(t, os.MkdirAll(m.Config().StateDir, 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBreakerNoFileConfigured(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, func(cfg *Config) { cfg.CircuitBreakerFile = "" })
	active, reason := m.CircuitBreakerActive("cid")
	assert.False(t, active)
	assert.Empty(t, reason)
}

func TestBreakerFileAbsent(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	active, reason := m.CircuitBreakerActive("cid")
	assert.False(t, active)
	assert.Empty(t, reason)
}

func TestBreakerMalformedFailsClosed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{{{"},
		{"empty", ""},
		{"wrong types", `{"active": "definitely"}`},
		{"array", `[1, 2, 3]`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := newTestManager(t, nil)
			writeBreakerFile(t, m, tt.content)

			active, reason := m.CircuitBreakerActive("cid")
			assert.True(t, active)
			assert.Equal(t, BreakerReasonParseError, reason)
		})
	}
}

func TestBreakerInactiveField(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	writeBreakerFile(t, m, `{"active": false, "reason": "resolved"}`)

	active, reason := m.CircuitBreakerActive("cid")
	assert.False(t, active)
	assert.Empty(t, reason)
}

func TestBreakerActiveIndefinite(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	writeBreakerFile(t, m, `{"active": true, "reason": "manual halt"}`)

	active, reason := m.CircuitBreakerActive("cid")
	assert.True(t, active)
	assert.Equal(t, "manual halt", reason)
}

func TestBreakerExpired(t *testing.T) {
	t.Parallel()

	past := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	m := newTestManager(t, nil)
	writeBreakerFile(t, m, `{"active": true, "reason": "old", "until_iso": "`+past+`"}`)

	active, _ := m.CircuitBreakerActive("cid")
	assert.False(t, active)
}

func TestBreakerNotYetExpired(t *testing.T) {
	t.Parallel()

	future := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	m := newTestManager(t, nil)
	writeBreakerFile(t, m, `{"active": true, "reason": "maintenance", "until_iso": "`+future+`"}`)

	active, reason := m.CircuitBreakerActive("cid")
	assert.True(t, active)
	assert.Equal(t, "maintenance", reason)
}

func TestBreakerNaiveUntilTreatedAsUTC(t *testing.T) {
	t.Parallel()

	// Timezone-naive timestamp one hour ahead in UTC.
	future := time.Now().UTC().Add(time.Hour).Format("2006-01-02T15:04:05")
	m := newTestManager(t, nil)
	writeBreakerFile(t, m, `{"active": true, "reason": "naive", "until_iso": "`+future+`"}`)

	active, _ := m.CircuitBreakerActive("cid")
	assert.True(t, active)
}

func TestBreakerBadUntilStaysActive(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	writeBreakerFile(t, m, `{"active": true, "reason": "stuck", "until_iso": "not-a-timestamp"}`)

	// An unparsable expiry means the breaker never expires.
	active, reason := m.CircuitBreakerActive("cid")
	assert.True(t, active)
	assert.Equal(t, "stuck", reason)
}

func TestParseUntilISO(t *testing.T) {
	t.Parallel()

	got, err := ParseUntilISO("2030-06-01T12:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2030-06-01T12:00:00Z", got)

	got, err = ParseUntilISO("2030-06-01T12:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, "2030-06-01T10:00:00Z", got)

	_, err = ParseUntilISO("june first")
	assert.Error(t, err)
}

func TestWriteAndReadBreakerState(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	path := m.Config().CircuitBreakerFile

	st := BreakerState{Active: true, Reason: "ops", UntilISO: "2030-01-01T00:00:00Z"}
	require.NoError(t, WriteBreakerState(path, st))

	got, err := ReadBreakerState(path)
	require.NoError(t, err)
	assert.Equal(t, st, got)
}
