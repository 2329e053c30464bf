package schema

import (
	"strings"
	"testing"
)

func TestParse_ValidSchema(t *testing.T) {
	raw := []byte(`{"fields":[
		{"name":"ownerName","label":"Owner","type":"text","required":true},
		{"name":"status","type":"select","options":["notstarted","inprogress","completed"]},
		{"name":"floorArea","type":"number"},
		{"name":"heritageListed","type":"boolean"},
		{"name":"sitePlan","type":"file"}
	]}`)
	s, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(s.Fields) != 5 {
		t.Fatalf("fields: want=5 got=%d", len(s.Fields))
	}
}

func TestParse_Rejections(t *testing.T) {
	cases := map[string]string{
		"not json":               `{"fields":`,
		"unnamed field":          `{"fields":[{"type":"text"}]}`,
		"duplicate field":        `{"fields":[{"name":"a","type":"text"},{"name":"a","type":"text"}]}`,
		"unknown type":           `{"fields":[{"name":"a","type":"dropdown"}]}`,
		"select without options": `{"fields":[{"name":"a","type":"select"}]}`,
	}
	for label, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("%s: want error, got nil", label)
		}
	}
}

func mustParse(t *testing.T, raw string) *FormSchema {
	t.Helper()
	s, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return s
}

func TestValidate_RequiredFields(t *testing.T) {
	s := mustParse(t, `{"fields":[{"name":"ownerName","type":"text","required":true}]}`)

	if errs := s.Validate(map[string]any{"ownerName": "Alex"}); len(errs) != 0 {
		t.Fatalf("valid form: want no errors got=%v", errs)
	}
	for _, form := range []map[string]any{
		{},
		{"ownerName": ""},
		{"ownerName": "   "},
		{"ownerName": nil},
	} {
		errs := s.Validate(form)
		if len(errs) != 1 || errs[0].Field != "ownerName" || errs[0].Message != "required" {
			t.Fatalf("form %v: want one required error got=%v", form, errs)
		}
	}
}

func TestValidate_TypeChecks(t *testing.T) {
	s := mustParse(t, `{"fields":[
		{"name":"floorArea","type":"number"},
		{"name":"heritageListed","type":"boolean"},
		{"name":"status","type":"select","options":["notstarted","completed"]}
	]}`)

	errs := s.Validate(map[string]any{
		"floorArea":      float64(120),
		"heritageListed": false,
		"status":         "completed",
	})
	if len(errs) != 0 {
		t.Fatalf("valid form: want no errors got=%v", errs)
	}

	errs = s.Validate(map[string]any{
		"floorArea":      "big",
		"heritageListed": "yes",
		"status":         "unknown",
	})
	if len(errs) != 3 {
		t.Fatalf("invalid form: want=3 errors got=%d (%v)", len(errs), errs)
	}
	byField := map[string]string{}
	for _, e := range errs {
		byField[e.Field] = e.Message
	}
	if byField["floorArea"] != "must be a number" {
		t.Fatalf("floorArea message: got=%q", byField["floorArea"])
	}
	if byField["heritageListed"] != "must be a boolean" {
		t.Fatalf("heritageListed message: got=%q", byField["heritageListed"])
	}
	if !strings.Contains(byField["status"], "must be one of") {
		t.Fatalf("status message: got=%q", byField["status"])
	}
}

func TestValidate_UnknownKeysAllowed(t *testing.T) {
	s := mustParse(t, `{"fields":[{"name":"ownerName","type":"text"}]}`)
	errs := s.Validate(map[string]any{
		"ownerName":    "Alex",
		"reviewStatus": "pending",
		"files":        []any{"plan.pdf"},
	})
	if len(errs) != 0 {
		t.Fatalf("extra keys: want no errors got=%v", errs)
	}
}

func TestApplyFieldState(t *testing.T) {
	s := mustParse(t, `{"fields":[
		{"name":"ownerName","type":"text"},
		{"name":"floorArea","type":"number"}
	]}`)

	out := s.ApplyFieldState([]string{"floorArea"})
	if out.Fields[0].Disabled {
		t.Fatalf("ownerName should not be disabled")
	}
	if !out.Fields[1].Disabled {
		t.Fatalf("floorArea should be disabled")
	}
	// The source schema is untouched.
	if s.Fields[1].Disabled {
		t.Fatalf("ApplyFieldState mutated its receiver")
	}
}
