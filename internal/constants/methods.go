package constants

const ServiceName = "auditchain.v1.AuditService"

const (
	MethodIngest                 = "Ingest"
	MethodQuery                  = "Query"
	MethodVerifyChain            = "VerifyChain"
	MethodDetectAnomalies        = "DetectAnomalies"
	MethodArchiveOldLogs         = "ArchiveOldLogs"
	MethodGetStats               = "GetStats"
	MethodAggregateForCompliance = "AggregateForCompliance"
)

// FullMethod returns the gRPC path of a service method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// MethodCosts weights rate limiting: full-range scans cost more tokens than single writes.
var MethodCosts = map[string]int{
	MethodIngest:                 1,
	MethodQuery:                  1,
	MethodVerifyChain:            10,
	MethodDetectAnomalies:        5,
	MethodArchiveOldLogs:         10,
	MethodGetStats:               5,
	MethodAggregateForCompliance: 5,
}
