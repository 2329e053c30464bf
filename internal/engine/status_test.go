package engine

import "testing"

func TestExtractStatus_CandidateKeyPriority(t *testing.T) {
	fields := map[string]any{
		"documentStatus": "approved",
		"status":         "inprogress",
		"state":          "open",
	}
	if got := ExtractStatus(fields); got != "inprogress" {
		t.Fatalf("status: want=inprogress got=%q", got)
	}

	delete(fields, "status")
	if got := ExtractStatus(fields); got != "approved" {
		t.Fatalf("status: want=approved got=%q", got)
	}

	delete(fields, "documentStatus")
	if got := ExtractStatus(fields); got != "open" {
		t.Fatalf("status: want=open got=%q", got)
	}
}

func TestExtractStatus_ProgressKey(t *testing.T) {
	// progress does not contain "status", so it must be an explicit
	// candidate rather than relying on the substring scan.
	if got := ExtractStatus(map[string]any{"progress": "75"}); got != "75" {
		t.Fatalf("progress key: want=75 got=%q", got)
	}
	// Exact candidates still outrank it.
	fields := map[string]any{"progress": "75", "state": "open"}
	if got := ExtractStatus(fields); got != "open" {
		t.Fatalf("state over progress: want=open got=%q", got)
	}
}

func TestExtractStatus_SubstringFallback(t *testing.T) {
	fields := map[string]any{
		"reviewStatus": "pending",
		"note":         "hello",
	}
	if got := ExtractStatus(fields); got != "pending" {
		t.Fatalf("status: want=pending got=%q", got)
	}

	// Multiple substring matches resolve in sorted key order.
	fields = map[string]any{
		"zStatusLate":  "late",
		"aStatusEarly": "early",
	}
	if got := ExtractStatus(fields); got != "early" {
		t.Fatalf("status: want=early got=%q", got)
	}
}

func TestExtractStatus_FilePresenceReadsAsCompleted(t *testing.T) {
	fields := map[string]any{
		"files": []any{"upload-1.pdf"},
	}
	if got := ExtractStatus(fields); got != "completed" {
		t.Fatalf("status: want=completed got=%q", got)
	}

	// An empty file list carries no signal.
	fields = map[string]any{"attachments": []any{}}
	if got := ExtractStatus(fields); got != "" {
		t.Fatalf("status: want=empty got=%q", got)
	}
}

func TestExtractStatus_ErrorKeyAndEmpty(t *testing.T) {
	if got := ExtractStatus(map[string]any{"error": "boom"}); got != "error" {
		t.Fatalf("status: want=error got=%q", got)
	}
	if got := ExtractStatus(map[string]any{"note": "hello"}); got != "" {
		t.Fatalf("status: want=empty got=%q", got)
	}
	if got := ExtractStatus(nil); got != "" {
		t.Fatalf("status: want=empty got=%q", got)
	}
}

func TestExtractStatus_EmptyCandidateFallsThrough(t *testing.T) {
	// An empty status value does not mask the lower-priority keys.
	fields := map[string]any{
		"status": "",
		"state":  "open",
	}
	if got := ExtractStatus(fields); got != "open" {
		t.Fatalf("status: want=open got=%q", got)
	}
}

func TestDecodeFormData(t *testing.T) {
	inline := DecodeFormData(map[string]any{
		"formData": map[string]any{"status": "completed"},
	})
	if inline["status"] != "completed" {
		t.Fatalf("inline form: want=completed got=%v", inline["status"])
	}

	encoded := DecodeFormData(map[string]any{
		"formData": `{"status":"inprogress"}`,
	})
	if encoded["status"] != "inprogress" {
		t.Fatalf("encoded form: want=inprogress got=%v", encoded["status"])
	}

	if got := DecodeFormData(map[string]any{"formData": `not json`}); len(got) != 0 {
		t.Fatalf("garbage form: want empty map got=%v", got)
	}
	if got := DecodeFormData(map[string]any{}); len(got) != 0 {
		t.Fatalf("missing form: want empty map got=%v", got)
	}
}
