package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// statusCandidateKeys are checked in priority order before any fallback.
// The order is load-bearing: form payloads are free-form user data and
// different document types historically used different key names.
var statusCandidateKeys = []string{
	"status",
	"documentStatus",
	"requestStatus",
	"state",
	"progress",
}

var filePresenceKeys = []string{"files", "attachments", "uploads"}

// ExtractStatus pulls a best-effort status out of an opaque form payload.
// Fallback order: exact candidate keys, then any key containing "status"
// (stable key order), then file presence (non-empty file list reads as
// completed), then an error key, then empty.
func ExtractStatus(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}

	for _, key := range statusCandidateKeys {
		if v, ok := fields[key]; ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(strings.ToLower(k), "status") {
			if s := stringify(fields[k]); s != "" {
				return s
			}
		}
	}

	for _, key := range filePresenceKeys {
		if v, ok := fields[key]; ok && hasContent(v) {
			return "completed"
		}
	}

	if _, ok := fields["error"]; ok {
		return "error"
	}
	return ""
}

// DecodeFormData tolerates both encodings seen in stored documents: the
// form payload as a JSON string under formData, or already inlined as an
// object. Undecodable payloads yield an empty map.
func DecodeFormData(attrs map[string]any) map[string]any {
	raw, ok := attrs["formData"]
	if !ok {
		return map[string]any{}
	}
	switch v := raw.(type) {
	case string:
		out := map[string]any{}
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return map[string]any{}
		}
		return out
	case map[string]any:
		return v
	}
	return map[string]any{}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func hasContent(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}
