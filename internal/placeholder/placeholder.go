// Package placeholder implements the {{...}} substitution applied to
// workflow node configuration before execution. A token of the form
// {{context.path}} resolves via dotted lookup into the ExecutionContext; any
// other token resolves to the variable of that name. Missing values yield
// the empty string, never an error.
package placeholder

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentforge/core"
)

// Substitute replaces every {{token}} occurrence in s with its resolved
// value. Strings without markers are returned unchanged on a fast path.
func Substitute(s string, ctx *core.ExecutionContext) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	var b strings.Builder
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			b.WriteString(s)
			return b.String()
		}
		end += start
		b.WriteString(s[:start])
		token := strings.TrimSpace(s[start+2 : end])
		b.WriteString(resolve(token, ctx))
		s = s[end+2:]
	}
}

// SubstituteParams walks a parameter map, substituting placeholders inside
// every string value, including strings nested in maps and slices. The input
// is not mutated.
func SubstituteParams(params map[string]any, ctx *core.ExecutionContext) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = substituteValue(v, ctx)
	}
	return out
}

func substituteValue(v any, ctx *core.ExecutionContext) any {
	switch t := v.(type) {
	case string:
		return Substitute(t, ctx)
	case map[string]any:
		return SubstituteParams(t, ctx)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = substituteValue(e, ctx)
		}
		return out
	default:
		return v
	}
}

// resolve maps one placeholder token to its string value.
func resolve(token string, ctx *core.ExecutionContext) string {
	if ctx == nil {
		return ""
	}
	var (
		v  any
		ok bool
	)
	if path, found := strings.CutPrefix(token, "context."); found {
		v, ok = ctx.Lookup(path)
	} else {
		v, ok = ctx.Variable(token)
	}
	if !ok || v == nil {
		return ""
	}
	if s, isString := v.(string); isString {
		return s
	}
	return fmt.Sprintf("%v", v)
}
