package constants

// Prepared statement names
const (
	StmtLatestEntry  = "latest_entry"
	StmtInsertEntry  = "insert_entry"
	StmtMarkArchived = "mark_archived"
	StmtScanRange    = "scan_range"
)

// EntryColumns is the column list every entry query selects, in scan order.
const EntryColumns = `seq, id, ts, event_type, event_category, severity, actor, action,
	resource, resource_id, resource_type, request_context, changes, environment,
	signature, previous_hash, is_archived, archived_at, archive_id, correlation_id, tags, metadata`

// ChainLockID is the advisory lock key serializing appends across writers.
const ChainLockID int64 = 0x61756469745f6c67 // "audit_lg"

// Queries holds the PostgreSQL statements of the audit log store.
var Queries = map[string]string{
	StmtLatestEntry: `
		SELECT ` + EntryColumns + `
		FROM audit_entries
		ORDER BY ts DESC, seq DESC
		LIMIT 1`,

	StmtInsertEntry: `
		INSERT INTO audit_entries (
			id, ts, event_type, event_category, severity, actor, actor_id, actor_email, action,
			resource, resource_id, resource_type, request_context, status_code, changes, environment,
			ip_address, signature, previous_hash, correlation_id, tags, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING seq`,

	StmtMarkArchived: `
		UPDATE audit_entries
		SET is_archived = TRUE, archived_at = $1, archive_id = $2
		WHERE ts < $3 AND is_archived = FALSE`,

	StmtScanRange: `
		SELECT ` + EntryColumns + `
		FROM audit_entries
		WHERE ts >= $1 AND ts <= $2
		ORDER BY ts ASC, seq ASC`,
}

// SeverityRankSQL orders severities from info (0) to critical (4) in ORDER BY clauses.
const SeverityRankSQL = `CASE severity WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END`
