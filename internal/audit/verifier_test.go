package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spounge-ai/auditchain/internal/audit"
	"github.com/spounge-ai/auditchain/internal/domain"
)

type sliceScanner struct {
	entries []*domain.AuditEntry
	err     error
}

func (s *sliceScanner) ScanRange(ctx context.Context, start, end time.Time, fn func(*domain.AuditEntry) error) error {
	if s.err != nil {
		return s.err
	}
	for _, e := range s.entries {
		if e.Timestamp.Before(start) || e.Timestamp.After(end) {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// buildChain signs n linked entries one second apart.
func buildChain(t *testing.T, s *audit.Signer, n int) []*domain.AuditEntry {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var (
		out  []*domain.AuditEntry
		prev string
	)
	for i := 0; i < n; i++ {
		e := &domain.AuditEntry{
			ID:           string(rune('A' + i)),
			Timestamp:    base.Add(time.Duration(i) * time.Second),
			EventType:    domain.EventDataRead,
			Action:       "read",
			PreviousHash: prev,
		}
		e.Signature = s.Sign(e)
		prev = e.Signature
		out = append(out, e)
	}
	return out
}

func fullRange() (time.Time, time.Time) {
	return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestVerifyChainIntact(t *testing.T) {
	s := newSigner(t)
	v := audit.NewVerifier(s)
	start, end := fullRange()

	report, err := v.VerifyChain(context.Background(), &sliceScanner{entries: buildChain(t, s, 3)}, start, end)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 3, report.Valid)
	assert.Equal(t, 0, report.Invalid)
	assert.Empty(t, report.Broken)
	assert.True(t, report.Intact())
}

func TestVerifyChainTamperedSignature(t *testing.T) {
	s := newSigner(t)
	v := audit.NewVerifier(s)
	start, end := fullRange()

	chain := buildChain(t, s, 3)
	chain[0].Signature = "0000000000000000000000000000000000000000000000000000000000000000"

	report, err := v.VerifyChain(context.Background(), &sliceScanner{entries: chain}, start, end)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Valid)
	assert.Equal(t, 2, report.Invalid)
	require.Len(t, report.Broken, 2)
	assert.Equal(t, audit.BrokenLink{ID: "A", Timestamp: chain[0].Timestamp, Reason: audit.ReasonInvalidSignature}, report.Broken[0])
	assert.Equal(t, audit.BrokenLink{ID: "B", Timestamp: chain[1].Timestamp, Reason: audit.ReasonBrokenChain}, report.Broken[1])
}

func TestVerifyChainTamperedContent(t *testing.T) {
	s := newSigner(t)
	v := audit.NewVerifier(s)

	chain := buildChain(t, s, 3)
	chain[1].Action = "rewritten"

	report := v.VerifyEntries(chain)
	assert.Equal(t, 2, report.Valid)
	assert.Equal(t, 1, report.Invalid)
	require.Len(t, report.Broken, 1)
	assert.Equal(t, "B", report.Broken[0].ID)
	assert.Equal(t, audit.ReasonInvalidSignature, report.Broken[0].Reason)
}

func TestVerifyChainDeletedEntry(t *testing.T) {
	s := newSigner(t)
	v := audit.NewVerifier(s)

	chain := buildChain(t, s, 4)
	gapped := []*domain.AuditEntry{chain[0], chain[2], chain[3]}

	report := v.VerifyEntries(gapped)
	assert.Equal(t, 1, report.Invalid)
	require.Len(t, report.Broken, 1)
	assert.Equal(t, "C", report.Broken[0].ID)
	assert.Equal(t, audit.ReasonBrokenChain, report.Broken[0].Reason)
}

func TestVerifyChainSubrangeStartsFresh(t *testing.T) {
	s := newSigner(t)
	v := audit.NewVerifier(s)

	chain := buildChain(t, s, 5)
	report, err := v.VerifyChain(context.Background(), &sliceScanner{entries: chain}, chain[2].Timestamp, chain[4].Timestamp)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.True(t, report.Intact())
}

func TestVerifyChainEmptyAndError(t *testing.T) {
	s := newSigner(t)
	v := audit.NewVerifier(s)
	start, end := fullRange()

	report, err := v.VerifyChain(context.Background(), &sliceScanner{}, start, end)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
	assert.NotNil(t, report.Broken)

	boom := errors.New("boom")
	_, err = v.VerifyChain(context.Background(), &sliceScanner{err: boom}, start, end)
	assert.ErrorIs(t, err, boom)
}
