package engine

import (
	"fmt"
	"strings"
)

// ActionVerb is what a satisfied rule does to its target document type.
type ActionVerb string

const (
	// VerbProcess ensures a document of the type exists and is underway.
	VerbProcess ActionVerb = "process"
	// VerbHide marks the type's document hidden.
	VerbHide ActionVerb = "hide"
	// VerbDisable disables one named form field on the type's document.
	VerbDisable ActionVerb = "disable"
)

// Action is the parsed form of an action string:
// <verb>.<TypeIdentifier>[.<field>].
type Action struct {
	Verb    ActionVerb
	DocType string
	Field   string
}

func (a Action) String() string {
	if a.Field != "" {
		return fmt.Sprintf("%s.%s.%s", a.Verb, a.DocType, a.Field)
	}
	return fmt.Sprintf("%s.%s", a.Verb, a.DocType)
}

func ParseAction(input string) (Action, error) {
	parts := strings.Split(strings.TrimSpace(input), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Action{}, fmt.Errorf("malformed action %q", input)
	}

	verb := ActionVerb(strings.ToLower(strings.TrimSpace(parts[0])))
	docType := strings.TrimSpace(parts[1])
	if docType == "" {
		return Action{}, fmt.Errorf("action %q missing document type", input)
	}

	switch verb {
	case VerbProcess, VerbHide:
		if len(parts) == 3 {
			return Action{}, fmt.Errorf("action %q does not take a field", input)
		}
		return Action{Verb: verb, DocType: docType}, nil
	case VerbDisable:
		if len(parts) != 3 || strings.TrimSpace(parts[2]) == "" {
			return Action{}, fmt.Errorf("action %q requires a field", input)
		}
		return Action{Verb: verb, DocType: docType, Field: strings.TrimSpace(parts[2])}, nil
	}
	return Action{}, fmt.Errorf("unknown action verb %q", parts[0])
}
