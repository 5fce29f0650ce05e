// Package nlsql implements the language-model capabilities of the engine:
// query generation and refinement, relevance gating, result classification,
// summary rendering, and the auxiliary calculation step. Every type here is
// a thin, deterministic policy wrapper around an llm.Client; the model's
// output is always post-processed before anything downstream sees it.
package nlsql

import (
	"regexp"
	"strings"
)

var (
	fenceOpen  = regexp.MustCompile("(?m)^```(?:sql|json)?\\s*")
	fenceClose = regexp.MustCompile("(?m)\\s*```$")
)

// StripFences removes markdown code fences the model sometimes wraps
// around its output, and trims surrounding whitespace.
func StripFences(s string) string {
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
