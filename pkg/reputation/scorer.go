// Copyright 2025 Certen Protocol
//
// Score deltas applied per reputation-affecting event, grounded on
// original_source/apps/reputation_service/scorer.py.

package reputation

import "strings"

// Score deltas, one per well-known reason code.
const (
	ScoreCompletedWithoutDispute = 1
	ScoreWonDispute              = 2
	ScoreLostDispute             = -5
	ScoreLostAsFiler             = -3
)

var scoresByReason = map[string]int{
	"completed_without_dispute": ScoreCompletedWithoutDispute,
	"won_dispute":               ScoreWonDispute,
	"lost_dispute":              ScoreLostDispute,
	"lost_as_filer":             ScoreLostAsFiler,
}

// DeltaFor returns the score delta for a reason code.
func DeltaFor(reason string) int {
	return scoresByReason[reason]
}

// ToDID normalizes a bare address into the did:8004 namespace used
// throughout the reputation store, leaving already-qualified DIDs alone.
func ToDID(address string) string {
	if strings.HasPrefix(address, "did:8004:") {
		return address
	}
	return "did:8004:" + address
}
