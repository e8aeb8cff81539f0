package audit

import (
	"sort"
	"time"

	"github.com/spounge-ai/auditchain/internal/domain"
)

const DefaultTopActors = 10

type TimeRange struct {
	Min *time.Time `json:"min,omitempty"`
	Max *time.Time `json:"max,omitempty"`
}

func (r *TimeRange) observe(ts time.Time) {
	if r.Min == nil || ts.Before(*r.Min) {
		t := ts
		r.Min = &t
	}
	if r.Max == nil || ts.After(*r.Max) {
		t := ts
		r.Max = &t
	}
}

type ComplianceReport struct {
	TotalEvents    int            `json:"totalEvents"`
	SecurityEvents int            `json:"securityEvents"`
	DataOperations int            `json:"dataOperations"`
	UserManagement int            `json:"userManagement"`
	CriticalEvents int            `json:"criticalEvents"`
	ByActor        map[string]int `json:"byActor"`
	ByEventType    map[string]int `json:"byEventType"`
	TimeRange      TimeRange      `json:"timeRange"`
}

// AggregateForCompliance summarizes entries. Entries without an actor are counted under
// "system".
func AggregateForCompliance(entries []*domain.AuditEntry) *ComplianceReport {
	report := &ComplianceReport{
		ByActor:     make(map[string]int),
		ByEventType: make(map[string]int),
	}

	for _, e := range entries {
		report.TotalEvents++
		if IsSecurityEvent(e.EventType) {
			report.SecurityEvents++
		}
		switch e.EventType.Category() {
		case domain.CategoryData:
			report.DataOperations++
		case domain.CategoryUserManagement:
			report.UserManagement++
		}
		if e.Severity == domain.SeverityCritical {
			report.CriticalEvents++
		}

		actor := e.ActorID()
		if actor == "" {
			actor = systemActor
		}
		report.ByActor[actor]++
		report.ByEventType[string(e.EventType)]++
		report.TimeRange.observe(e.Timestamp)
	}

	return report
}

type ActorCount struct {
	Actor string `json:"actor"`
	Count int    `json:"count"`
}

// Stats are the dashboard facets for one range.
type Stats struct {
	Total       int            `json:"total"`
	ByEventType map[string]int `json:"byEventType"`
	BySeverity  map[string]int `json:"bySeverity"`
	ByCategory  map[string]int `json:"byCategory"`
	TopActors   []ActorCount   `json:"topActors"`
	ByHour      [24]int        `json:"byHour"`
}

// StatsBuilder accumulates Stats one entry at a time so a range scan can feed it without
// materializing the range.
type StatsBuilder struct {
	topN    int
	stats   Stats
	byActor map[string]int
}

func NewStatsBuilder(topN int) *StatsBuilder {
	if topN <= 0 {
		topN = DefaultTopActors
	}
	return &StatsBuilder{
		topN: topN,
		stats: Stats{
			ByEventType: make(map[string]int),
			BySeverity:  make(map[string]int),
			ByCategory:  make(map[string]int),
		},
		byActor: make(map[string]int),
	}
}

func (b *StatsBuilder) Add(e *domain.AuditEntry) error {
	b.stats.Total++
	b.stats.ByEventType[string(e.EventType)]++
	b.stats.BySeverity[string(e.Severity)]++
	b.stats.ByCategory[string(e.EventCategory)]++
	b.stats.ByHour[e.Timestamp.UTC().Hour()]++

	actor := e.ActorID()
	if actor == "" {
		actor = systemActor
	}
	b.byActor[actor]++
	return nil
}

// Build returns the facets. Top actors are ordered by count desc, ties by actor asc.
func (b *StatsBuilder) Build() *Stats {
	top := make([]ActorCount, 0, len(b.byActor))
	for actor, n := range b.byActor {
		top = append(top, ActorCount{Actor: actor, Count: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Actor < top[j].Actor
	})
	if len(top) > b.topN {
		top = top[:b.topN]
	}

	out := b.stats
	out.TopActors = top
	return &out
}
