package internaldefs

import (
	sessionguard "github.com/loocate/sessionguard"
)

// CounterDef defines a public type used by sessionguard APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by sessionguard APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session guard.
var CounterDefs = []CounterDef{
	{ID: sessionguard.MetricSessionCheck, Name: "sessionguard_session_check_total", Help: "Session validity checks."},
	{ID: sessionguard.MetricSessionCheckFailure, Name: "sessionguard_session_check_failure_total", Help: "Session checks that failed to reach the identity provider."},
	{ID: sessionguard.MetricSessionValid, Name: "sessionguard_session_valid_total", Help: "Validation passes that ended with a usable session."},
	{ID: sessionguard.MetricValidationCoalesced, Name: "sessionguard_validation_coalesced_total", Help: "Validation calls that joined an in-flight check."},
	{ID: sessionguard.MetricValidationFailure, Name: "sessionguard_validation_failure_total", Help: "Validation passes that ended in an error."},
	{ID: sessionguard.MetricRefreshTriggered, Name: "sessionguard_refresh_triggered_total", Help: "Refresh attempts started."},
	{ID: sessionguard.MetricRefreshSuccess, Name: "sessionguard_refresh_success_total", Help: "Successful refresh operations."},
	{ID: sessionguard.MetricRefreshFailure, Name: "sessionguard_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: sessionguard.MetricRefreshCoalesced, Name: "sessionguard_refresh_coalesced_total", Help: "Refresh calls coalesced onto an in-flight refresh."},
	{ID: sessionguard.MetricDuplicateRejected, Name: "sessionguard_duplicate_rejected_total", Help: "Submissions rejected as near-duplicates."},
	{ID: sessionguard.MetricSubmissionSuccess, Name: "sessionguard_submission_success_total", Help: "Successful guarded submissions."},
	{ID: sessionguard.MetricSubmissionFailure, Name: "sessionguard_submission_failure_total", Help: "Failed guarded submissions."},
	{ID: sessionguard.MetricPermissionDenied, Name: "sessionguard_permission_denied_total", Help: "Submissions rejected by backend row-level security."},
	{ID: sessionguard.MetricSubmissionTimeout, Name: "sessionguard_submission_timeout_total", Help: "Submissions that hit a backend or budget timeout."},
}

// HistogramDefs is an exported constant or variable used by the session guard.
var HistogramDefs = []HistogramDef{
	{ID: sessionguard.MetricEnsureSessionLatency, Name: "sessionguard_ensure_session_latency_seconds", Help: "EnsureValidSession latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the session guard.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the session guard.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
