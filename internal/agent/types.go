// Package agent contains the query orchestration engine: the bounded,
// stateful pipeline that validates a question, generates and safety-checks
// a candidate query, executes it, repairs it on failure, and shapes the
// final answer.
package agent

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"finsight/internal/answer"
)

// FilterContext is the immutable per-request scope. Both ID sets must be
// non-empty; the caller guarantees account IDs are consistent with the
// bank selection.
type FilterContext struct {
	BankIDs       []int64
	AccountIDs    []int64
	ReferenceDate time.Time
}

// Validate checks the non-empty invariants.
func (fc FilterContext) Validate() error {
	if len(fc.BankIDs) == 0 {
		return errors.New("at least one bank ID is required")
	}
	if len(fc.AccountIDs) == 0 {
		return errors.New("at least one account ID is required")
	}
	return nil
}

// BankIDList renders the bank IDs as a sorted comma-separated list for
// predicate injection.
func (fc FilterContext) BankIDList() string {
	return idList(fc.BankIDs)
}

// AccountIDList renders the account IDs as a sorted comma-separated list.
func (fc FilterContext) AccountIDList() string {
	return idList(fc.AccountIDs)
}

func idList(ids []int64) string {
	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

// ResponseKind discriminates the caller-facing result.
type ResponseKind int

const (
	// ResponseGuidance: the question is out of scope; Message holds the
	// guidance text.
	ResponseGuidance ResponseKind = iota
	// ResponseSecurityError: a candidate query violated the security
	// policy; Message holds the generic user-facing text.
	ResponseSecurityError
	// ResponseRetriesExhausted: the attempt budget ran out.
	ResponseRetriesExhausted
	// ResponseSummary: Message holds the natural-language answer.
	ResponseSummary
	// ResponseRecords: Records holds the tabular export.
	ResponseRecords
)

// Response is the caller-facing outcome of one request. Every successful
// or security-rejected response carries the query text actually attempted.
type Response struct {
	Kind      ResponseKind
	Message   string
	QueryText string
	Records   *answer.RecordsExport
	// Log is the read-only execution log for diagnostics.
	Log []LogEntry
}

// Answer renders the response as plain text for history and simple CLIs.
func (r *Response) Answer() string {
	if r.Kind == ResponseRecords && r.Records != nil {
		return r.Records.Intro
	}
	return r.Message
}

// Errors outside the modeled caller-facing responses.
var (
	// ErrUpstreamUnavailable marks an external-call fault outside the
	// modeled flows. The request fails; nothing is fabricated.
	ErrUpstreamUnavailable = errors.New("upstream capability unavailable")
	// ErrTimeout marks expiry of the request-level deadline.
	ErrTimeout = errors.New("request timed out")
)

// Fixed user-facing messages. Full diagnostics go to the execution log and
// the internal logger only.
const (
	securityMessage = "I apologize, but I'm unable to process your question. " +
		"Please rephrase it as a question about viewing or analyzing your transaction data."
	retriesMessage = "I'm sorry, I wasn't able to answer that from your transaction data. " +
		"Please try rephrasing your question."
)
