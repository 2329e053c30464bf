package types

// Rule is the persisted form of a workflow rule: a validation predicate over
// the project's document graph paired with the action to apply when the
// predicate holds. Both sides use the dotted-path grammar
// (document.<TypeIdentifier>.<attribute> / <verb>.<TypeIdentifier>).
type Rule struct {
	ID         string `json:"id"`
	Validation string `json:"validation"`
	Action     string `json:"action"`
}

// WorkflowAttributes is the decoded attribute payload of a workflow record.
type WorkflowAttributes struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Rules       []Rule `json:"rules"`
}
