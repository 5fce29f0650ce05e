// Package guard implements the static security validator for candidate
// queries. Validation is a pure function of the query text and the allowed
// filter scope: no external calls, no hidden state, identical verdicts for
// identical inputs. It runs on every candidate, including refined ones.
package guard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ViolationKind classifies why a query was rejected.
type ViolationKind int

const (
	ViolationNone ViolationKind = iota
	// NotReadOnly: the statement does not start with SELECT, or more than
	// one statement is present.
	NotReadOnly
	// DangerousOperation: a deny-listed keyword appears as a whole token.
	DangerousOperation
	// MissingMandatoryFilter: a mandatory bank/account inclusion predicate
	// is absent, or the query names IDs outside the allowed scope.
	MissingMandatoryFilter
)

// String returns the violation name for logs.
func (k ViolationKind) String() string {
	switch k {
	case ViolationNone:
		return "none"
	case NotReadOnly:
		return "not_read_only"
	case DangerousOperation:
		return "dangerous_operation"
	case MissingMandatoryFilter:
		return "missing_mandatory_filter"
	default:
		return "unknown"
	}
}

// Verdict is the result of validating one candidate query.
type Verdict struct {
	Allowed   bool
	Violation ViolationKind
	// Detail carries the internal diagnostic; it is logged, never shown
	// to the user.
	Detail string
}

// Mutating and administrative keywords that must never appear, matched on
// word boundaries so legitimate column names (transaction_date) pass.
var denyList = []string{
	"DROP", "DELETE", "UPDATE", "ALTER", "CREATE", "INSERT",
	"TRUNCATE", "EXEC", "EXECUTE", "REPLACE", "ATTACH", "DETACH",
	"VACUUM", "PRAGMA", "COMMIT", "BEGIN", "TRANSACTION", "ROLLBACK",
}

var denyPatterns = compileDenyPatterns()

func compileDenyPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(denyList))
	for _, op := range denyList {
		patterns[op] = regexp.MustCompile(`\b` + op + `\b`)
	}
	return patterns
}

var (
	bankIDPredicates = []*regexp.Regexp{
		regexp.MustCompile(`(?i)bank_id\s+IN\s*\(([^)]+)\)`),
		regexp.MustCompile(`(?i)bank_id\s+IN\s+([0-9,\s]+)`),
		regexp.MustCompile(`(?i)bank_id\s*=\s*(\d+)`),
	}
	accountIDPredicates = []*regexp.Regexp{
		regexp.MustCompile(`(?i)account_id\s+IN\s*\(([^)]+)\)`),
		regexp.MustCompile(`(?i)account_id\s+IN\s+([0-9,\s]+)`),
		regexp.MustCompile(`(?i)account_id\s*=\s*(\d+)`),
	}
)

// Validate checks one candidate query against the read-only policy and the
// mandatory filter scope.
func Validate(queryText string, bankIDs, accountIDs []int64) Verdict {
	normalized := strings.TrimSpace(queryText)
	upper := strings.ToUpper(normalized)

	// 1. Default deny: a single SELECT statement or nothing.
	if !strings.HasPrefix(upper, "SELECT") {
		return Verdict{
			Violation: NotReadOnly,
			Detail:    "statement does not begin with SELECT",
		}
	}
	if body := strings.TrimSuffix(normalized, ";"); strings.Contains(body, ";") {
		return Verdict{
			Violation: NotReadOnly,
			Detail:    "multiple statements detected",
		}
	}

	// 2. Deny-listed keywords anywhere in the text.
	for _, op := range denyList {
		if denyPatterns[op].MatchString(upper) {
			return Verdict{
				Violation: DangerousOperation,
				Detail:    fmt.Sprintf("deny-listed keyword %q present", op),
			}
		}
	}

	// 3. Mandatory inclusion predicates for both filter dimensions.
	if v := checkFilter(normalized, "bank_id", bankIDPredicates, bankIDs); v != nil {
		return *v
	}
	if v := checkFilter(normalized, "account_id", accountIDPredicates, accountIDs); v != nil {
		return *v
	}

	return Verdict{Allowed: true, Violation: ViolationNone}
}

// checkFilter verifies that a filter predicate for the given column is
// present and that every literal ID it names is inside the allowed set.
func checkFilter(query, column string, patterns []*regexp.Regexp, allowed []int64) *Verdict {
	var literal string
	for _, p := range patterns {
		if m := p.FindStringSubmatch(query); m != nil {
			literal = m[1]
			break
		}
	}
	if literal == "" {
		return &Verdict{
			Violation: MissingMandatoryFilter,
			Detail:    fmt.Sprintf("no %s inclusion predicate", column),
		}
	}

	allowedSet := make(map[int64]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}

	for _, part := range regexp.MustCompile(`[,\s]+`).Split(literal, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			// Non-numeric predicate (subquery, parameter); the filter is
			// present but its scope cannot be proven.
			return &Verdict{
				Violation: MissingMandatoryFilter,
				Detail:    fmt.Sprintf("%s predicate is not a literal ID list: %q", column, literal),
			}
		}
		if !allowedSet[id] {
			return &Verdict{
				Violation: MissingMandatoryFilter,
				Detail:    fmt.Sprintf("%s %d is outside the allowed scope", column, id),
			}
		}
	}
	return nil
}
