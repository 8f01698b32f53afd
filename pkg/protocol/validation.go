// Copyright 2025 Certen Protocol
//
// Hand-rolled schema validation: field presence, enum membership, numeric
// ranges, and unknown-field rejection. No JSON-schema library exists
// anywhere in the retrieval pack (the original's jsonschema.Draft202012Validator
// has no Go analogue here), so validation is hand-written Go over fixed
// field lists rather than schema-file-driven.

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/certen/agentcourt/pkg/canonical"
)

var clauseFields = []string{
	"schemaVersion", "clauseId", "chainId", "contractAddress", "agreementId",
	"serviceScope", "slaRules", "abuseRules", "disputeWindowSec",
	"evidenceWindowSec", "remedyRules", "judgeFeePercent", "clauseHash",
}

var receiptFields = []string{
	"schemaVersion", "receiptId", "chainId", "contractAddress", "agreementId",
	"clauseHash", "sequence", "eventType", "timestampMs", "actorId",
	"counterpartyId", "requestId", "payloadHash", "prevHash", "metadata",
	"receiptHash", "signature",
}

var verdictFields = []string{
	"schemaVersion", "verdictId", "disputeId", "chainId", "contractAddress",
	"agreementId", "clauseHash", "plaintiff", "defendant", "plaintiffEvidence",
	"defendantEvidence", "plaintiffStake", "defendantStake", "tier",
	"transfers", "judgeFeePercent", "reasonCodes", "receiptIds", "facts",
	"confidence", "flags", "opinion", "verdictHash", "judgeSignature",
}

var validEventTypes = map[string]bool{
	EventTypeRequest:      true,
	EventTypeResponse:     true,
	EventTypePayment:      true,
	EventTypeSLACheck:     true,
	EventTypeDisputeFiled: true,
}

var validOperators = map[string]bool{
	OpLTE: true, OpGTE: true, OpLT: true, OpGT: true, OpEQ: true,
}

// RejectUnknownFields decodes the top-level object in raw and returns one
// ErrUnknownField-wrapped message per key not present in known.
func RejectUnknownFields(raw []byte, known []string) []string {
	allowed := make(map[string]bool, len(known))
	for _, k := range known {
		allowed[k] = true
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return []string{fmt.Sprintf("%v: %v", ErrMissingField, err)}
	}

	var errs []string
	for k := range m {
		if !allowed[k] {
			errs = append(errs, fmt.Sprintf("%v: %q", ErrUnknownField, k))
		}
	}
	return errs
}

// ValidateClauseDoc decodes and validates a clause document, returning the
// decoded clause plus an accumulated list of validation error messages.
// An empty error list means the document is well-formed.
func ValidateClauseDoc(raw []byte) (*ArbitrationClause, []string) {
	var errs []string
	errs = append(errs, RejectUnknownFields(raw, clauseFields)...)

	var c ArbitrationClause
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, append(errs, fmt.Sprintf("decode: %v", err))
	}
	errs = append(errs, validateClause(&c)...)
	return &c, errs
}

func validateClause(c *ArbitrationClause) []string {
	var errs []string
	if c.ClauseID == "" {
		errs = append(errs, fmt.Sprintf("%v: clauseId", ErrMissingField))
	}
	if c.AgreementID == "" {
		errs = append(errs, fmt.Sprintf("%v: agreementId", ErrMissingField))
	}
	if c.ContractAddress == "" {
		errs = append(errs, fmt.Sprintf("%v: contractAddress", ErrMissingField))
	}
	for _, r := range append(append([]Rule{}, c.SLARules...), c.AbuseRules...) {
		if !validOperators[r.Operator] {
			errs = append(errs, fmt.Sprintf("%v: operator %q", ErrInvalidEnum, r.Operator))
		}
	}
	for _, rr := range c.RemedyRules {
		if rr.Percent < 0 || rr.Percent > 100 {
			errs = append(errs, fmt.Sprintf("%v: remedy percent %d", ErrInvalidRange, rr.Percent))
		}
	}
	if c.JudgeFeePercent < 0 || c.JudgeFeePercent > 100 {
		errs = append(errs, fmt.Sprintf("%v: judgeFeePercent %v", ErrInvalidRange, c.JudgeFeePercent))
	}
	if c.DisputeWindowSec < 0 || c.EvidenceWindowSec < 0 {
		errs = append(errs, fmt.Sprintf("%v: negative window duration", ErrInvalidRange))
	}
	return errs
}

// ValidateReceiptDoc decodes and validates a receipt document.
func ValidateReceiptDoc(raw []byte) (*EventReceipt, []string) {
	var errs []string
	errs = append(errs, RejectUnknownFields(raw, receiptFields)...)

	var r EventReceipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, append(errs, fmt.Sprintf("decode: %v", err))
	}
	errs = append(errs, validateReceipt(&r)...)
	return &r, errs
}

func validateReceipt(r *EventReceipt) []string {
	var errs []string
	if r.AgreementID == "" {
		errs = append(errs, fmt.Sprintf("%v: agreementId", ErrMissingField))
	}
	if !validEventTypes[r.EventType] {
		errs = append(errs, fmt.Sprintf("%v: eventType %q", ErrInvalidEnum, r.EventType))
	}
	if r.Sequence < 0 {
		errs = append(errs, fmt.Sprintf("%v: sequence %d", ErrInvalidRange, r.Sequence))
	}
	if _, err := canonical.DIDToAddress(r.ActorID); err != nil {
		errs = append(errs, fmt.Sprintf("%v: actorId %q", ErrInvalidFormat, r.ActorID))
	}
	if r.CounterpartyID != "" {
		if _, err := canonical.DIDToAddress(r.CounterpartyID); err != nil {
			errs = append(errs, fmt.Sprintf("%v: counterpartyId %q", ErrInvalidFormat, r.CounterpartyID))
		}
	}
	if r.Sequence == 0 && r.PrevHash != ZeroHash {
		errs = append(errs, fmt.Sprintf("%v: sequence 0 requires prevHash %q", ErrInvalidFormat, ZeroHash))
	}
	return errs
}

// ValidateVerdictDoc decodes and validates a verdict document.
func ValidateVerdictDoc(raw []byte) (*VerdictPackage, []string) {
	var errs []string
	errs = append(errs, RejectUnknownFields(raw, verdictFields)...)

	var v VerdictPackage
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, append(errs, fmt.Sprintf("decode: %v", err))
	}
	errs = append(errs, validateVerdict(&v)...)
	return &v, errs
}

func validateVerdict(v *VerdictPackage) []string {
	var errs []string
	if v.DisputeID == "" {
		errs = append(errs, fmt.Sprintf("%v: disputeId", ErrMissingField))
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		errs = append(errs, fmt.Sprintf("%v: confidence %v", ErrInvalidRange, v.Confidence))
	}
	if v.Tier < 0 || v.Tier > 2 {
		errs = append(errs, fmt.Sprintf("%v: tier %d", ErrInvalidRange, v.Tier))
	}
	for _, t := range v.Transfers {
		if strings.TrimSpace(t.Amount) == "" {
			errs = append(errs, fmt.Sprintf("%v: transfer amount", ErrMissingField))
		}
	}
	return errs
}
