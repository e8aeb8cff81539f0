package persistence

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spounge-ai/auditchain/internal/constants"
	"github.com/spounge-ai/auditchain/internal/domain"
)

func TestBuildQuery(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	t.Run("postgres numbers placeholders in order", func(t *testing.T) {
		qo := newQueryOptimizer(postgresDialect)
		query, args := qo.BuildQuery(domain.QueryFilter{
			Start:           &start,
			End:             &end,
			EventType:       domain.EventLoginFailed,
			Search:          `a_b`,
			ExcludeArchived: true,
		}, domain.Page{Limit: 20, Offset: 40}, domain.Sort{})

		assert.True(t, strings.HasPrefix(query, "SELECT "+constants.EntryColumns+" FROM audit_entries WHERE "))
		assert.Contains(t, query, "ts >= $1 AND ts <= $2 AND event_type = $3 AND is_archived = FALSE")
		assert.Contains(t, query, `LOWER(action) LIKE LOWER($4) ESCAPE '\'`)
		assert.Contains(t, query, `LOWER(actor_email) LIKE LOWER($5) ESCAPE '\'`)
		assert.True(t, strings.HasSuffix(query, " ORDER BY ts DESC, seq DESC LIMIT $6 OFFSET $7"))
		assert.Equal(t, []any{start, end, "LOGIN_FAILED", `%a\_b%`, `%a\_b%`, 20, 40}, args)
	})

	t.Run("sqlite uses positional placeholders and text timestamps", func(t *testing.T) {
		qo := newQueryOptimizer(sqliteDialect)
		query, args := qo.BuildQuery(domain.QueryFilter{Start: &start, ActorID: "u1"}, domain.Page{Limit: 5}, domain.Sort{Ascending: true})

		assert.Contains(t, query, "WHERE ts >= ? AND actor_id = ?")
		assert.True(t, strings.HasSuffix(query, "ORDER BY ts ASC, seq ASC LIMIT ?"))
		assert.Equal(t, []any{"2024-01-01T00:00:00.000Z", "u1", 5}, args)
	})

	t.Run("no filter has no where clause", func(t *testing.T) {
		qo := newQueryOptimizer(postgresDialect)
		query, args := qo.BuildQuery(domain.QueryFilter{}, domain.Page{}, domain.Sort{Field: domain.SortBySeverity})

		assert.NotContains(t, query, "WHERE")
		assert.NotContains(t, query, "LIMIT")
		assert.Contains(t, query, constants.SeverityRankSQL+" DESC, ts DESC, seq DESC")
		assert.Empty(t, args)
	})
}

func TestLowerBound(t *testing.T) {
	whole := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, whole, lowerBound(whole))
	assert.Equal(t, whole.Add(time.Millisecond), lowerBound(whole.Add(500*time.Microsecond)))
	assert.Equal(t, whole.Add(time.Millisecond), lowerBound(whole.Add(time.Nanosecond)))
	assert.Equal(t, "2024-01-01T12:00:00.001Z", formatStoredTime(lowerBound(whole.Add(500*time.Microsecond))))
}
