package persistence

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spounge-ai/auditchain/internal/constants"
	"github.com/spounge-ai/auditchain/internal/domain"
)

const (
	// builderInitialCap is the initial capacity for the string builder.
	builderInitialCap = 512
)

// dialect captures the differences between the SQL stores.
type dialect struct {
	placeholder func(n int) string
	timeArg     func(t time.Time) any
}

var (
	postgresDialect = dialect{
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		timeArg:     func(t time.Time) any { return t.UTC() },
	}
	sqliteDialect = dialect{
		placeholder: func(int) string { return "?" },
		timeArg:     func(t time.Time) any { return formatStoredTime(t) },
	}
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// QueryOptimizer builds filtered entry queries, reusing builders across calls.
type QueryOptimizer struct {
	queryBuilderPool *sync.Pool
	dialect          dialect
}

func newQueryOptimizer(d dialect) *QueryOptimizer {
	return &QueryOptimizer{
		queryBuilderPool: &sync.Pool{
			New: func() any {
				sb := &strings.Builder{}
				sb.Grow(builderInitialCap)
				return sb
			},
		},
		dialect: d,
	}
}

// GetBuilder retrieves a strings.Builder from the pool.
func (qo *QueryOptimizer) GetBuilder() *strings.Builder {
	return qo.queryBuilderPool.Get().(*strings.Builder)
}

// PutBuilder returns a strings.Builder to the pool.
func (qo *QueryOptimizer) PutBuilder(sb *strings.Builder) {
	sb.Reset()
	qo.queryBuilderPool.Put(sb)
}

// BuildQuery renders a SELECT over audit_entries. page and sort are expected to be normalized
// already; a zero limit means no LIMIT clause.
func (qo *QueryOptimizer) BuildQuery(filter domain.QueryFilter, page domain.Page, sort domain.Sort) (string, []any) {
	sb := qo.GetBuilder()
	defer qo.PutBuilder(sb)

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return qo.dialect.placeholder(len(args))
	}

	sb.WriteString("SELECT ")
	sb.WriteString(constants.EntryColumns)
	sb.WriteString(" FROM audit_entries")

	var where []string
	if filter.Start != nil {
		where = append(where, "ts >= "+arg(qo.dialect.timeArg(lowerBound(*filter.Start))))
	}
	if filter.End != nil {
		where = append(where, "ts <= "+arg(qo.dialect.timeArg(*filter.End)))
	}
	if filter.EventType != "" {
		where = append(where, "event_type = "+arg(string(filter.EventType)))
	}
	if filter.Category != "" {
		where = append(where, "event_category = "+arg(string(filter.Category)))
	}
	if filter.Severity != "" {
		where = append(where, "severity = "+arg(string(filter.Severity)))
	}
	if filter.ActorID != "" {
		where = append(where, "actor_id = "+arg(filter.ActorID))
	}
	if filter.IPAddress != "" {
		where = append(where, "ip_address = "+arg(filter.IPAddress))
	}
	if filter.ArchiveID != "" {
		where = append(where, "archive_id = "+arg(filter.ArchiveID))
	}
	if filter.ExcludeArchived {
		where = append(where, "is_archived = FALSE")
	}
	if filter.Search != "" {
		pattern := "%" + likeEscaper.Replace(filter.Search) + "%"
		where = append(where, "(LOWER(action) LIKE LOWER("+arg(pattern)+`) ESCAPE '\'`+
			" OR LOWER(actor_email) LIKE LOWER("+arg(pattern)+`) ESCAPE '\')`)
	}

	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}

	sb.WriteString(" ORDER BY ")
	sb.WriteString(orderBy(sort))

	if page.Limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(arg(page.Limit))
		if page.Offset > 0 {
			sb.WriteString(" OFFSET ")
			sb.WriteString(arg(page.Offset))
		}
	}

	return sb.String(), args
}

func orderBy(sort domain.Sort) string {
	dir := " DESC"
	if sort.Ascending {
		dir = " ASC"
	}
	switch sort.Field {
	case domain.SortBySeverity:
		return constants.SeverityRankSQL + dir + ", ts DESC, seq DESC"
	case domain.SortByEventType:
		return "event_type" + dir + ", ts DESC, seq DESC"
	default:
		return "ts" + dir + ", seq" + dir
	}
}
