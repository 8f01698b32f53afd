// Copyright 2025 Certen Protocol
//
// Canonical ABI for the arbitration escrow contract. Simplified to a
// single struct-argument shape rather than chasing every legacy positional
// variant the original supports, since this module does not need
// multi-variant production compatibility.

package escrow

const contractABI = `[
	{"type":"function","name":"depositPool","stateMutability":"payable","inputs":[{"name":"agreementId","type":"string"}],"outputs":[]},
	{"type":"function","name":"postBond","stateMutability":"nonpayable","inputs":[{"name":"agreementId","type":"string"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"commitEvidenceHash","stateMutability":"nonpayable","inputs":[{"name":"agreementId","type":"string"},{"name":"rootHash","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"fileDispute","stateMutability":"nonpayable","inputs":[{"name":"agreementId","type":"string"},{"name":"defendant","type":"address"},{"name":"stake","type":"uint256"},{"name":"plaintiffEvidence","type":"bytes32"}],"outputs":[{"name":"disputeId","type":"string"}]},
	{"type":"function","name":"submitRuling","stateMutability":"nonpayable","inputs":[{"name":"disputeId","type":"string"},{"name":"winner","type":"address"},{"name":"judgeFeeBps","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getDispute","stateMutability":"view","inputs":[{"name":"disputeId","type":"string"}],"outputs":[
		{"name":"transactionId","type":"string"},
		{"name":"plaintiff","type":"address"},
		{"name":"defendant","type":"address"},
		{"name":"stake","type":"uint256"},
		{"name":"judgeFee","type":"uint256"},
		{"name":"tier","type":"uint8"},
		{"name":"plaintiffEvidence","type":"bytes32"},
		{"name":"defendantEvidence","type":"bytes32"},
		{"name":"resolved","type":"bool"},
		{"name":"winner","type":"address"}
	]},
	{"type":"function","name":"judgeAddress","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"EvidenceCommitted","anonymous":false,"inputs":[
		{"name":"agreementId","type":"string","indexed":false},
		{"name":"rootHash","type":"bytes32","indexed":false},
		{"name":"agent","type":"address","indexed":true}
	]},
	{"type":"event","name":"DisputeFiled","anonymous":false,"inputs":[
		{"name":"disputeId","type":"string","indexed":false},
		{"name":"plaintiff","type":"address","indexed":true},
		{"name":"defendant","type":"address","indexed":true}
	]},
	{"type":"event","name":"RulingSubmitted","anonymous":false,"inputs":[
		{"name":"disputeId","type":"string","indexed":false},
		{"name":"winner","type":"address","indexed":true},
		{"name":"loser","type":"address","indexed":true}
	]},
	{"type":"event","name":"PayoutExecuted","anonymous":false,"inputs":[
		{"name":"disputeId","type":"string","indexed":false},
		{"name":"to","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	]}
]`
