package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/spounge-ai/auditchain/internal/domain"
)

const (
	ReasonInvalidSignature = "invalid signature"
	ReasonBrokenChain      = "broken chain"
)

// RangeScanner streams entries of a time range in ascending (timestamp, seq) order.
type RangeScanner interface {
	ScanRange(ctx context.Context, start, end time.Time, fn func(*domain.AuditEntry) error) error
}

type BrokenLink struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// VerificationReport summarizes one verification pass. Valid+Invalid always equals Total;
// an entry with both a bad signature and a bad link appears twice in Broken.
type VerificationReport struct {
	Total   int          `json:"total"`
	Valid   int          `json:"valid"`
	Invalid int          `json:"invalid"`
	Broken  []BrokenLink `json:"brokenLinks"`
}

// Intact reports whether the pass found nothing wrong.
func (r *VerificationReport) Intact() bool {
	return r.Invalid == 0 && len(r.Broken) == 0
}

type Verifier struct {
	signer *Signer
}

func NewVerifier(signer *Signer) *Verifier {
	return &Verifier{signer: signer}
}

// VerifyChain checks every entry in [start, end]. Only the previous entry's signature is kept
// between iterations, so memory use does not grow with the range.
func (v *Verifier) VerifyChain(ctx context.Context, scanner RangeScanner, start, end time.Time) (*VerificationReport, error) {
	report := &VerificationReport{Broken: []BrokenLink{}}

	var (
		prevSig string
		first   = true
	)
	err := scanner.ScanRange(ctx, start, end, func(entry *domain.AuditEntry) error {
		report.Total++
		ok := v.check(entry, prevSig, first, report)
		if ok {
			report.Valid++
		} else {
			report.Invalid++
		}
		prevSig = entry.Signature
		first = false
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit range: %w", err)
	}
	return report, nil
}

// VerifyEntries runs the same checks over an in-memory slice, already in chain order.
func (v *Verifier) VerifyEntries(entries []*domain.AuditEntry) *VerificationReport {
	report := &VerificationReport{Broken: []BrokenLink{}}
	for i, entry := range entries {
		report.Total++
		prevSig := ""
		if i > 0 {
			prevSig = entries[i-1].Signature
		}
		if v.check(entry, prevSig, i == 0, report) {
			report.Valid++
		} else {
			report.Invalid++
		}
	}
	return report
}

func (v *Verifier) check(entry *domain.AuditEntry, prevSig string, first bool, report *VerificationReport) bool {
	ok := true
	if !v.signer.Verify(entry, entry.Signature) {
		ok = false
		report.Broken = append(report.Broken, BrokenLink{
			ID:        entry.ID,
			Timestamp: entry.Timestamp,
			Reason:    ReasonInvalidSignature,
		})
	}
	if !first && entry.PreviousHash != prevSig {
		ok = false
		report.Broken = append(report.Broken, BrokenLink{
			ID:        entry.ID,
			Timestamp: entry.Timestamp,
			Reason:    ReasonBrokenChain,
		})
	}
	return ok
}
