// Copyright 2025 Certen Protocol
//
// Deterministic fact extraction over a verified receipt chain, grounded on
// original_source/apps/judge_service/fact_extractor.py.

package judge

import (
	"github.com/certen/agentcourt/pkg/protocol"
)

// Facts are the deterministic metrics derived from a receipt chain, fed
// into both the clause's SLA/abuse rules and (when inconclusive) the AI
// panel.
type Facts struct {
	LatencyMs              int64 `json:"latency_ms"`
	ResponseFormatOK       bool  `json:"response_format_ok"`
	PeakRequestsPerMinute  int   `json:"peak_requests_per_minute"`
	RequestCount           int   `json:"request_count"`
	ResponseCount          int   `json:"response_count"`
}

// ToMap renders Facts as the map[string]interface{} shape stored on a
// VerdictPackage.
func (f Facts) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"latency_ms":               f.LatencyMs,
		"response_format_ok":       f.ResponseFormatOK,
		"peak_requests_per_minute": f.PeakRequestsPerMinute,
		"request_count":            f.RequestCount,
		"response_count":           f.ResponseCount,
	}
}

// ExtractFacts walks receipts to compute latency, request-rate, and
// response-shape metrics, then evaluates clause's SLA and abuse rules
// against them. It returns the facts, any reason codes those rules
// produced, and a logical winner ("plaintiff"/"defendant"/"" when the
// facts alone are inconclusive and the AI panel must decide).
func ExtractFacts(clause protocol.ArbitrationClause, receipts []protocol.EventReceipt) (Facts, []string, string) {
	requestTimes := map[string]int64{}
	responseTimes := map[string]int64{}
	responseFormatOK := true

	for _, r := range receipts {
		switch r.EventType {
		case protocol.EventTypeRequest:
			requestTimes[r.RequestID] = r.TimestampMs
		case protocol.EventTypeResponse:
			responseTimes[r.RequestID] = r.TimestampMs
			if r.Metadata != nil {
				if rt, ok := r.Metadata["result_type"].(string); ok && rt == "bad_format" {
					responseFormatOK = false
				}
			}
		}
	}

	var maxLatency int64
	for reqID, reqTs := range requestTimes {
		if respTs, ok := responseTimes[reqID]; ok {
			latency := respTs - reqTs
			if latency < 0 {
				latency = 0
			}
			if latency > maxLatency {
				maxLatency = latency
			}
		}
	}

	byMinute := map[int64]int{}
	for _, r := range receipts {
		if r.EventType == protocol.EventTypeRequest {
			byMinute[r.TimestampMs/60000]++
		}
	}
	var peakRPM int
	for _, count := range byMinute {
		if count > peakRPM {
			peakRPM = count
		}
	}

	facts := Facts{
		LatencyMs:             maxLatency,
		ResponseFormatOK:      responseFormatOK,
		PeakRequestsPerMinute: peakRPM,
		RequestCount:          len(requestTimes),
		ResponseCount:         len(responseTimes),
	}

	var reasonCodes []string
	for _, rule := range clause.SLARules {
		if rule.Metric == "latency_ms" && rule.Operator == protocol.OpLTE && float64(maxLatency) > rule.Value {
			reasonCodes = append(reasonCodes, "sla_breach:latency")
		}
	}
	for _, rule := range clause.AbuseRules {
		if rule.Metric == "requests_per_minute" && rule.Operator == protocol.OpLTE && float64(peakRPM) > rule.Value {
			reasonCodes = append(reasonCodes, "clause_violated:rate_limit")
		}
	}

	winner := ""
	switch {
	case len(reasonCodes) > 0:
		winner = "plaintiff"
	case facts.RequestCount > 0:
		winner = "defendant"
	}

	return facts, reasonCodes, winner
}
