package audit

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spounge-ai/auditchain/internal/domain"
	app_errors "github.com/spounge-ai/auditchain/internal/errors"
)

const (
	// MinSecretLength is the shortest accepted signing secret (256 bits).
	MinSecretLength = 32

	// TimestampLayout is the canonical timestamp form: UTC, millisecond precision.
	TimestampLayout = "2006-01-02T15:04:05.000Z"

	canonicalDelimiter = "|"
	systemActor        = "system"
)

// Signer computes and checks entry signatures under one process-wide secret.
type Signer struct {
	key []byte
}

// NewSigner returns a Signer for secret. There is no fallback key: an empty or short secret
// is a configuration error.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, app_errors.ErrMissingSigningSecret
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", app_errors.ErrWeakSigningSecret, MinSecretLength, len(secret))
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Signer{key: key}, nil
}

// FormatTimestamp renders t the way it appears in the canonical form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Canonicalize builds the signed representation of entry. PreviousHash, archive fields and
// free-form fields are deliberately not part of it.
func Canonicalize(entry *domain.AuditEntry) string {
	actor := systemActor
	if id := entry.ActorID(); id != "" {
		actor = id
	}

	return strings.Join([]string{
		FormatTimestamp(entry.Timestamp),
		string(entry.EventType),
		actor,
		entry.Action,
		canonicalChanges(entry.Changes),
	}, canonicalDelimiter)
}

// Sign returns the lowercase hex HMAC-SHA256 of the entry's canonical form.
func (s *Signer) Sign(entry *domain.AuditEntry) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(Canonicalize(entry)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature of entry and compares it with signature in constant time.
// Signatures of a different length simply do not match.
func (s *Signer) Verify(entry *domain.AuditEntry, signature string) bool {
	expected := s.Sign(entry)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// canonicalChanges serializes changes with sorted keys and verbatim numbers so the result does
// not depend on how a store round-tripped the payload.
func canonicalChanges(changes *domain.Changes) string {
	if changes == nil {
		return "{}"
	}
	raw, err := json.Marshal(changes)
	if err != nil {
		return "{}"
	}
	out, err := CanonicalJSON(raw)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// CanonicalJSON re-encodes raw with object keys sorted and numbers kept as written.
func CanonicalJSON(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
