package audit_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spounge-ai/auditchain/internal/audit"
	"github.com/spounge-ai/auditchain/internal/domain"
	app_errors "github.com/spounge-ai/auditchain/internal/errors"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newSigner(t *testing.T) *audit.Signer {
	t.Helper()
	s, err := audit.NewSigner(testSecret)
	require.NoError(t, err)
	return s
}

func sampleEntry() *domain.AuditEntry {
	return &domain.AuditEntry{
		ID:        "e1",
		Timestamp: time.Date(2024, 3, 1, 12, 30, 45, 123_000_000, time.UTC),
		EventType: domain.EventUserUpdated,
		Actor:     &domain.Actor{UserID: "u-1", Email: "a@example.com"},
		Action:    "update profile",
		Changes: &domain.Changes{
			Before: map[string]any{"name": "old", "age": 41},
			After:  map[string]any{"name": "new", "age": 42},
			Fields: []string{"name", "age"},
		},
	}
}

func TestNewSigner(t *testing.T) {
	_, err := audit.NewSigner(nil)
	assert.ErrorIs(t, err, app_errors.ErrMissingSigningSecret)

	_, err = audit.NewSigner([]byte("short"))
	assert.ErrorIs(t, err, app_errors.ErrWeakSigningSecret)

	s, err := audit.NewSigner(testSecret)
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestCanonicalize(t *testing.T) {
	e := sampleEntry()
	got := audit.Canonicalize(e)
	assert.Equal(t,
		`2024-03-01T12:30:45.123Z|USER_UPDATED|u-1|update profile|{"after":{"age":42,"name":"new"},"before":{"age":41,"name":"old"},"fields":["name","age"]}`,
		got)

	e.Actor = nil
	e.Changes = nil
	assert.Equal(t, "2024-03-01T12:30:45.123Z|USER_UPDATED|system|update profile|{}", audit.Canonicalize(e))
}

func TestCanonicalizeIgnoresTimezone(t *testing.T) {
	e := sampleEntry()
	utc := audit.Canonicalize(e)
	e.Timestamp = e.Timestamp.In(time.FixedZone("X", 5*3600))
	assert.Equal(t, utc, audit.Canonicalize(e))
}

func TestSignVerifyRoundTrip(t *testing.T) {
	s := newSigner(t)
	e := sampleEntry()
	sig := s.Sign(e)

	assert.Len(t, sig, 64)
	assert.Equal(t, strings.ToLower(sig), sig)
	assert.True(t, s.Verify(e, sig))
	assert.Equal(t, sig, s.Sign(e), "signing is deterministic")
}

func TestVerifyDetectsMutation(t *testing.T) {
	s := newSigner(t)

	mutations := map[string]func(*domain.AuditEntry){
		"timestamp": func(e *domain.AuditEntry) { e.Timestamp = e.Timestamp.Add(time.Millisecond) },
		"eventType": func(e *domain.AuditEntry) { e.EventType = domain.EventUserDeleted },
		"actor":     func(e *domain.AuditEntry) { e.Actor.UserID = "u-2" },
		"action":    func(e *domain.AuditEntry) { e.Action = "update profile!" },
		"changes":   func(e *domain.AuditEntry) { e.Changes.After = map[string]any{"name": "other", "age": 42} },
		"no actor":  func(e *domain.AuditEntry) { e.Actor = nil },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			e := sampleEntry()
			sig := s.Sign(e)
			mutate(e)
			assert.False(t, s.Verify(e, sig))
		})
	}
}

func TestVerifyRejectsForeignKeyAndGarbage(t *testing.T) {
	s := newSigner(t)
	other, err := audit.NewSigner([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)

	e := sampleEntry()
	assert.False(t, other.Verify(e, s.Sign(e)))
	assert.False(t, s.Verify(e, ""))
	assert.False(t, s.Verify(e, "abc"))
}

func TestCanonicalJSONPreservesNumbers(t *testing.T) {
	out, err := audit.CanonicalJSON([]byte(`{"b":1.50,"a":12345678901234567890}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":12345678901234567890,"b":1.50}`, string(out))
}
