package audit

import (
	"sort"
	"time"

	"github.com/spounge-ai/auditchain/internal/domain"
)

type AnomalyType string

const (
	AnomalyBruteForce          AnomalyType = "BRUTE_FORCE_ATTEMPT"
	AnomalyExcessiveDataAccess AnomalyType = "EXCESSIVE_DATA_ACCESS"
	AnomalyPrivilegeEscalation AnomalyType = "PRIVILEGE_ESCALATION_ATTEMPT"
)

const (
	DefaultBruteForceThreshold      = 5
	DefaultExcessiveAccessThreshold = 100
	DefaultAnomalyWindow            = 60 * time.Minute
)

// AnomalyDetail is one finding inside a record. Fields that do not apply to the record's type
// are left empty.
type AnomalyDetail struct {
	IP                string     `json:"ip,omitempty"`
	Actor             string     `json:"actor,omitempty"`
	Count             int        `json:"count,omitempty"`
	DistinctActors    int        `json:"distinctActors,omitempty"`
	DistinctResources int        `json:"distinctResources,omitempty"`
	EntryID           string     `json:"entryId,omitempty"`
	Resource          string     `json:"resource,omitempty"`
	Timestamp         *time.Time `json:"timestamp,omitempty"`
}

type AnomalyRecord struct {
	Type     AnomalyType     `json:"type"`
	Severity domain.Severity `json:"severity"`
	Details  []AnomalyDetail `json:"details"`
}

type DetectorConfig struct {
	BruteForceThreshold      int
	ExcessiveAccessThreshold int
}

// Detector applies the heuristics to a window of entries. It never writes anything.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector fills unset thresholds with the defaults.
func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.BruteForceThreshold <= 0 {
		cfg.BruteForceThreshold = DefaultBruteForceThreshold
	}
	if cfg.ExcessiveAccessThreshold <= 0 {
		cfg.ExcessiveAccessThreshold = DefaultExcessiveAccessThreshold
	}
	return &Detector{cfg: cfg}
}

type group struct {
	count  int
	others map[string]struct{}
}

// Detect returns one record per heuristic that fired, in a fixed order.
func (d *Detector) Detect(entries []*domain.AuditEntry) []AnomalyRecord {
	failedByIP := make(map[string]*group)
	accessByActor := make(map[string]*group)
	var escalations []AnomalyDetail

	for _, e := range entries {
		switch {
		case e.EventType == domain.EventLoginFailed:
			ip := e.Environment.IPAddress
			g := bump(failedByIP, ip)
			if id := e.ActorID(); id != "" {
				g.others[id] = struct{}{}
			}
		case e.EventType == domain.EventUnauthorizedAccess:
			ts := e.Timestamp
			escalations = append(escalations, AnomalyDetail{
				EntryID:   e.ID,
				Actor:     e.ActorID(),
				IP:        e.Environment.IPAddress,
				Resource:  e.Resource,
				Timestamp: &ts,
			})
		case e.EventType.Category() == domain.CategoryData:
			id := e.ActorID()
			if id == "" {
				continue
			}
			g := bump(accessByActor, id)
			if e.Resource != "" {
				g.others[e.Resource] = struct{}{}
			}
		}
	}

	var records []AnomalyRecord

	if details := overThreshold(failedByIP, d.cfg.BruteForceThreshold, func(ip string, g *group) AnomalyDetail {
		return AnomalyDetail{IP: ip, Count: g.count, DistinctActors: len(g.others)}
	}); len(details) > 0 {
		records = append(records, AnomalyRecord{Type: AnomalyBruteForce, Severity: domain.SeverityHigh, Details: details})
	}

	if details := overThreshold(accessByActor, d.cfg.ExcessiveAccessThreshold, func(actor string, g *group) AnomalyDetail {
		return AnomalyDetail{Actor: actor, Count: g.count, DistinctResources: len(g.others)}
	}); len(details) > 0 {
		records = append(records, AnomalyRecord{Type: AnomalyExcessiveDataAccess, Severity: domain.SeverityMedium, Details: details})
	}

	if len(escalations) > 0 {
		sort.SliceStable(escalations, func(i, j int) bool {
			return escalations[i].Timestamp.Before(*escalations[j].Timestamp)
		})
		records = append(records, AnomalyRecord{Type: AnomalyPrivilegeEscalation, Severity: domain.SeverityCritical, Details: escalations})
	}

	return records
}

func bump(groups map[string]*group, key string) *group {
	g, ok := groups[key]
	if !ok {
		g = &group{others: make(map[string]struct{})}
		groups[key] = g
	}
	g.count++
	return g
}

// overThreshold keeps groups with count >= threshold, ordered by count desc then key asc.
func overThreshold(groups map[string]*group, threshold int, detail func(string, *group) AnomalyDetail) []AnomalyDetail {
	keys := make([]string, 0, len(groups))
	for k, g := range groups {
		if g.count >= threshold {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := groups[keys[i]].count, groups[keys[j]].count
		if ci != cj {
			return ci > cj
		}
		return keys[i] < keys[j]
	})

	out := make([]AnomalyDetail, 0, len(keys))
	for _, k := range keys {
		out = append(out, detail(k, groups[k]))
	}
	return out
}
